package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/report"
)

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths <design.yaml> <endpoint>",
	Short: "Enumerate the worst paths to one endpoint",
	Long: `Enumerates the N worst paths that end at a pin, diverting the worst
path onto the other fanin paths that merged into it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPaths(cmd, args[0], args[1])
	},
}

func init() {
	addSearchFlags(pathsCmd)
	addReportFlags(pathsCmd)
}

// defaultPathCount is the number of paths enumerated without -n.
const defaultPathCount = 5

func runPaths(cmd *cobra.Command, path, endpoint string) error {
	ctx := cmd.Context()
	settings, err := reportOptions(cmd)
	if err != nil {
		return err
	}

	ss, err := openSession(cmd, path)
	if err != nil {
		return err
	}
	v, err := ss.pin(endpoint)
	if err != nil {
		return err
	}
	settings.opts.Endpoints = []graph.VertexID{v}
	if !cmd.Flags().Changed("group-count") {
		settings.opts.GroupCount = defaultPathCount
	}
	if !cmd.Flags().Changed("endpoint-count") {
		settings.opts.EndpointCount = settings.opts.GroupCount
	}
	if err := ss.findArrivals(ctx); err != nil {
		return err
	}

	ends, err := ss.search.FindPathEnds(ctx, settings.opts)
	if err != nil {
		return fmt.Errorf("enumerating paths: %w", err)
	}
	if len(ends) == 0 {
		ss.log.Warn("no paths end at pin", "pin", endpoint)
	}
	b := report.NewBuilder(ss.search, settings.points)
	return report.Write(os.Stdout, report.Report{Design: ss.design.Name, Paths: b.Paths(ends)}, settings.format, settings.digits)
}
