package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/internal/log"
	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/design"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
	"github.com/l3aro/go-sta/pkg/search"
)

// addSearchFlags adds the flags that override the search section of the
// config.
func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("threads", "j", 0, "Parallel visits (0 = one per CPU)")
	cmd.Flags().Bool("crpr", true, "Remove clock reconvergence pessimism")
	cmd.Flags().String("crpr-mode", "", "CRPR mode (same_pin or same_transition)")
	cmd.Flags().Bool("pocv", false, "Use statistical delays")
	cmd.Flags().Float32("sigma", 0, "Sigma factor of statistical delays")
	cmd.Flags().Bool("unconstrained", false, "Report unconstrained endpoints")
}

// addFilterFlags adds the -from/-through/-to report filter flags.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("from", nil, "Report paths from these pins or clocks")
	cmd.Flags().StringArray("through", nil, "Report paths through these comma separated pins (repeatable)")
	cmd.Flags().StringSlice("to", nil, "Report paths to these pins or clocks")
}

func searchOptions(cmd *cobra.Command) ([]search.Option, error) {
	flags := cmd.Flags()
	sc := cfg.Search
	if flags.Changed("threads") {
		sc.Threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("crpr") {
		sc.CrprEnabled, _ = flags.GetBool("crpr")
	}
	if flags.Changed("crpr-mode") {
		sc.CrprMode, _ = flags.GetString("crpr-mode")
	}
	if flags.Changed("pocv") {
		sc.PocvEnabled, _ = flags.GetBool("pocv")
	}
	if flags.Changed("sigma") {
		sc.SigmaFactor, _ = flags.GetFloat32("sigma")
	}
	if flags.Changed("unconstrained") {
		sc.ReportUnconstrained, _ = flags.GetBool("unconstrained")
	}

	threads := sc.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	opts := []search.Option{
		search.WithThreads(threads),
		search.WithUnconstrained(sc.ReportUnconstrained),
	}
	if sc.CrprEnabled {
		mode, err := search.ParseCrprMode(sc.CrprMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithCrpr(mode))
	}
	if sc.PocvEnabled {
		if sc.SigmaFactor <= 0 {
			return nil, fmt.Errorf("sigma factor must be positive, got %v", sc.SigmaFactor)
		}
		opts = append(opts, search.WithPocv(sc.SigmaFactor))
	}
	return opts, nil
}

// session is a loaded design with its search.
type session struct {
	design *design.Design
	search *search.Search
	log    *log.DefaultLogger
}

// openSession loads the design at path and creates its search.
func openSession(cmd *cobra.Command, path string) (*session, error) {
	d, err := design.Load(path)
	if err != nil {
		return nil, err
	}
	l := logger.With("design", d.Name)
	opts, err := searchOptions(cmd)
	if err != nil {
		return nil, err
	}
	s, err := search.New(d.Graph, d.Sdc, d.Corners, append(opts, search.WithLogger(l))...)
	if err != nil {
		return nil, fmt.Errorf("creating search: %w", err)
	}
	l.Debug("design loaded", "pins", d.Graph.VertexCount(), "edges", d.Graph.EdgeCount(),
		"clocks", len(d.Sdc.Clocks()), "corners", d.Corners.Count())
	return &session{design: d, search: s, log: l}, nil
}

// findArrivals runs the arrival search, with a spinner on terminals.
func (ss *session) findArrivals(ctx context.Context) error {
	if log.IsTerminal(os.Stderr) && !cfg.LogJSON {
		sp := log.NewSpinner(os.Stderr, "Searching "+ss.design.Name+"...")
		sp.Start()
		defer sp.Stop()
	}
	if err := ss.search.FindArrivals(ctx); err != nil {
		return fmt.Errorf("arrival search failed: %w", err)
	}
	ss.log.Debug("arrivals found", "tags", ss.search.TagCount(), "tag_groups", ss.search.TagGroupCount(),
		"clk_infos", ss.search.ClkInfoCount())
	return nil
}

func (ss *session) pin(name string) (graph.VertexID, error) {
	return ss.design.Graph.VertexByName(name)
}

// point resolves names to an exception point. Names of clocks select the
// clock, other names select pins.
func (ss *session) point(names []string) (*sdc.ExceptionPt, error) {
	var pins []graph.VertexID
	var clocks []*sdc.Clock
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if clk, err := ss.design.Sdc.ClockByName(name); err == nil {
			clocks = append(clocks, clk)
			continue
		}
		v, err := ss.pin(name)
		if err != nil {
			return nil, err
		}
		pins = append(pins, v)
	}
	if len(pins) == 0 && len(clocks) == 0 {
		return nil, nil
	}
	return sdc.NewExceptionPt(pins, clocks, corner.RiseFallBothBoth), nil
}

// applyFilter installs the report filter given by the filter flags.
func (ss *session) applyFilter(cmd *cobra.Command) error {
	flags := cmd.Flags()
	fromNames, _ := flags.GetStringSlice("from")
	thruNames, _ := flags.GetStringArray("through")
	toNames, _ := flags.GetStringSlice("to")
	if len(fromNames) == 0 && len(thruNames) == 0 && len(toNames) == 0 {
		return nil
	}

	args := sdc.ExceptionArgs{Type: sdc.Filter, MinMax: corner.MinMaxAllBoth}
	var err error
	if args.From, err = ss.point(fromNames); err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	for _, thru := range thruNames {
		pt, err := ss.point(strings.Split(thru, ","))
		if err != nil {
			return fmt.Errorf("-through: %w", err)
		}
		if pt != nil {
			args.Thrus = append(args.Thrus, pt)
		}
	}
	if args.To, err = ss.point(toNames); err != nil {
		return fmt.Errorf("-to: %w", err)
	}
	if _, err := ss.design.Sdc.MakeException(args); err != nil {
		return fmt.Errorf("creating report filter: %w", err)
	}
	ss.log.Debug("report filter set", "from", fromNames, "through", thruNames, "to", toNames)
	return nil
}

func parseMinMax(s string) (corner.MinMaxAll, error) {
	mm, err := corner.ParseMinMaxAll(s)
	if err != nil {
		return corner.MinMaxAllBoth, fmt.Errorf("invalid path delay %q (use min, max or both)", s)
	}
	return mm, nil
}
