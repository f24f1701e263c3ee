package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/report"
	"github.com/l3aro/go-sta/pkg/search"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report <design.yaml>",
	Short: "Report the worst paths of each path group",
	Long: `Loads a design, finds arrival times and reports the worst path ends
of every path group with the points of each path and its slack.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, args[0])
	},
}

func init() {
	addSearchFlags(reportCmd)
	addFilterFlags(reportCmd)
	addReportFlags(reportCmd)
	reportCmd.Flags().StringSlice("group", nil, "Only report these path groups")
	reportCmd.Flags().Bool("summary", false, "Append the slack summary")
}

// addReportFlags adds the flags that override the report section of the
// config.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "", "Output format (text, json or msgpack)")
	cmd.Flags().String("path-delay", "both", "Checks to report (min, max or both)")
	cmd.Flags().IntP("group-count", "n", 0, "Paths per path group")
	cmd.Flags().Int("endpoint-count", 0, "Paths per endpoint")
	cmd.Flags().Bool("unique-pins", false, "Skip paths through the same pins")
	cmd.Flags().Bool("sort-by-slack", false, "Sort all paths by slack instead of by group")
	cmd.Flags().Float32("slack-min", 0, "Only report paths with slack above this")
	cmd.Flags().Float32("slack-max", 0, "Only report paths with slack below this")
	cmd.Flags().Int("digits", 0, "Fraction digits of times")
	cmd.Flags().Bool("points", true, "Show the points of each path")
}

// reportSettings are the report options after config and flags.
type reportSettings struct {
	opts   search.ReportOptions
	format report.Format
	digits int
	points bool
}

func reportOptions(cmd *cobra.Command) (reportSettings, error) {
	flags := cmd.Flags()
	rc := cfg.Report
	if flags.Changed("group-count") {
		rc.GroupPathCount, _ = flags.GetInt("group-count")
	}
	if flags.Changed("endpoint-count") {
		rc.EndpointPathCount, _ = flags.GetInt("endpoint-count")
	}
	if flags.Changed("unique-pins") {
		rc.UniquePins, _ = flags.GetBool("unique-pins")
	}
	if flags.Changed("sort-by-slack") {
		rc.SortBySlack, _ = flags.GetBool("sort-by-slack")
	}
	if flags.Changed("slack-min") {
		rc.SlackMin, _ = flags.GetFloat32("slack-min")
	}
	if flags.Changed("slack-max") {
		rc.SlackMax, _ = flags.GetFloat32("slack-max")
	}
	if flags.Changed("format") {
		rc.Format, _ = flags.GetString("format")
	}
	if flags.Changed("digits") {
		rc.Digits, _ = flags.GetInt("digits")
	}
	if rc.GroupPathCount <= 0 || rc.EndpointPathCount <= 0 {
		return reportSettings{}, fmt.Errorf("path counts must be positive")
	}

	pathDelay, _ := flags.GetString("path-delay")
	mm, err := parseMinMax(pathDelay)
	if err != nil {
		return reportSettings{}, err
	}
	format, err := report.ParseFormat(rc.Format)
	if err != nil {
		return reportSettings{}, err
	}
	points, _ := flags.GetBool("points")

	opts := search.DefaultReportOptions()
	opts.MinMax = mm
	opts.GroupCount = rc.GroupPathCount
	opts.EndpointCount = rc.EndpointPathCount
	opts.UniquePins = rc.UniquePins
	opts.SlackMin = rc.SlackMin
	opts.SlackMax = rc.SlackMax
	opts.SortBySlack = rc.SortBySlack
	if flags.Lookup("unconstrained") != nil {
		opts.Unconstrained, _ = flags.GetBool("unconstrained")
		opts.Unconstrained = opts.Unconstrained || cfg.Search.ReportUnconstrained
	}
	return reportSettings{opts: opts, format: format, digits: rc.Digits, points: points}, nil
}

func runReport(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	settings, err := reportOptions(cmd)
	if err != nil {
		return err
	}
	if settings.opts.Groups, err = cmd.Flags().GetStringSlice("group"); err != nil {
		return err
	}

	ss, err := openSession(cmd, path)
	if err != nil {
		return err
	}
	if err := ss.applyFilter(cmd); err != nil {
		return err
	}
	if err := ss.findArrivals(ctx); err != nil {
		return err
	}

	ends, err := ss.search.FindPathEnds(ctx, settings.opts)
	if err != nil {
		return fmt.Errorf("finding path ends: %w", err)
	}
	ss.log.Debug("path ends found", "count", len(ends))

	b := report.NewBuilder(ss.search, settings.points)
	r := report.Report{Design: ss.design.Name, Paths: b.Paths(ends)}
	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		if r.Summary, err = summaries(ctx, b, settings.opts.MinMax); err != nil {
			return err
		}
	}
	return report.Write(os.Stdout, r, settings.format, settings.digits)
}

// summaries computes the slack summary of each selected check type.
func summaries(ctx context.Context, b *report.Builder, sel corner.MinMaxAll) ([]report.Summary, error) {
	var sums []report.Summary
	for _, mm := range []corner.MinMax{corner.Max, corner.Min} {
		if !sel.Matches(mm) {
			continue
		}
		sum, err := b.Summary(ctx, mm)
		if err != nil {
			return nil, fmt.Errorf("computing %s summary: %w", mm.CheckName(), err)
		}
		sums = append(sums, sum)
	}
	return sums, nil
}
