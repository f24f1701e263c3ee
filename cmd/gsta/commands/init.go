package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gsta configuration interactively",
	Long: `Guides you through setting up gsta configuration step by step.
Creates a config file with search, report and telemetry settings.`,
	// An existing config is replaced, so it is not loaded.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func validateInt(lo, hi int) func(string) error {
	return func(s string) error {
		i, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if i < lo || i > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func runInit() error {
	c := config.DefaultConfig()

	// === SECTION 1: Search ===
	threads := strconv.Itoa(c.Search.Threads)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Search threads").
				Description("Parallel vertex visits, 0 uses one per CPU").
				Value(&threads).
				Validate(validateInt(0, 1024)),
			huh.NewConfirm().
				Title("Remove clock reconvergence pessimism?").
				Value(&c.Search.CrprEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	c.Search.Threads, _ = strconv.Atoi(threads)

	if c.Search.CrprEnabled {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("CRPR mode").
					Options(
						huh.NewOption("Same pin", "same_pin"),
						huh.NewOption("Same pin and transition", "same_transition"),
					).
					Value(&c.Search.CrprMode),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Use statistical (POCV) delays?").
				Value(&c.Search.PocvEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	if c.Search.PocvEnabled {
		sigma := strconv.FormatFloat(float64(c.Search.SigmaFactor), 'g', -1, 32)
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Sigma factor").
					Placeholder("3").
					Value(&sigma).
					Validate(func(s string) error {
						f, err := strconv.ParseFloat(s, 32)
						if err != nil || f <= 0 {
							return fmt.Errorf("must be a positive number")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		f, _ := strconv.ParseFloat(sigma, 32)
		c.Search.SigmaFactor = float32(f)
	}

	// === SECTION 2: Report ===
	digits := strconv.Itoa(c.Report.Digits)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Report format").
				Options(
					huh.NewOption("Text", "text"),
					huh.NewOption("JSON", "json"),
					huh.NewOption("MessagePack", "msgpack"),
				).
				Value(&c.Report.Format),
			huh.NewInput().
				Title("Fraction digits of times").
				Value(&digits).
				Validate(validateInt(0, 9)),
			huh.NewConfirm().
				Title("Sort paths by slack across groups?").
				Value(&c.Report.SortBySlack),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	c.Report.Digits, _ = strconv.Atoi(digits)

	// === SECTION 3: Telemetry ===
	exporters := []huh.Option[config.ExporterType]{
		huh.NewOption("None", config.ExporterNone),
		huh.NewOption("Stdout (stderr)", config.ExporterStdout),
	}
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[config.ExporterType]().
				Title("Trace exporter").
				Options(exporters...).
				Value(&c.Telemetry.TraceExporter),
			huh.NewSelect[config.ExporterType]().
				Title("Metric exporter").
				Options(exporters...).
				Value(&c.Telemetry.MetricExporter),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 4: Location ===
	var location string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the config be saved?").
				Options(
					huh.NewOption("Project (./.gsta/config.yaml)", "project"),
					huh.NewOption("Global (~/.gsta/config.yaml)", "global"),
				).
				Value(&location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	path := config.ProjectConfigFilePath()
	if location == "global" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		path = filepath.Join(home, ".gsta", "config.yaml")
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Save(path); err != nil {
		return err
	}
	fmt.Printf("Configuration saved to %s\n", path)
	return nil
}
