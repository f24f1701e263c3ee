package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/pkg/report"
)

// slackCmd represents the slack command
var slackCmd = &cobra.Command{
	Use:   "slack <design.yaml>",
	Short: "Summarize worst and total negative slack",
	Long: `Finds arrival and required times and prints, for setup and for hold,
the worst slack with its pin, the total negative slack and the number of
violating endpoints.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		settings, err := reportOptions(cmd)
		if err != nil {
			return err
		}
		ss, err := openSession(cmd, args[0])
		if err != nil {
			return err
		}
		if err := ss.findArrivals(ctx); err != nil {
			return err
		}
		sums, err := summaries(ctx, report.NewBuilder(ss.search, false), settings.opts.MinMax)
		if err != nil {
			return err
		}
		return report.Write(os.Stdout, report.Report{Design: ss.design.Name, Summary: sums}, settings.format, settings.digits)
	},
}

func init() {
	addSearchFlags(slackCmd)
	addReportFlags(slackCmd)
}
