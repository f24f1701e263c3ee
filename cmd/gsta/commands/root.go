package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/internal/config"
	"github.com/l3aro/go-sta/internal/log"
	"github.com/l3aro/go-sta/internal/telemetry"
)

// Version is set by main.
var Version = "dev"

var (
	cfgFile string
	verbose bool
	logJSON bool

	cfg               *config.Config
	logger            *log.DefaultLogger
	shutdownTelemetry func(context.Context) error
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gsta",
	Short: "gsta - Static timing analysis of gate level designs",
	Long: `gsta propagates clock and data arrival times through a timing graph
and reports setup and hold slack at every timing check.

Commands:
  report      Report the worst paths of each path group
  paths       Enumerate the worst paths to one endpoint
  slack       Summarize worst and total negative slack
  tags        Show tag, clock info and tag group statistics
  check       Validate a design file
  init        Create a configuration file interactively

Use "gsta [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTelemetry == nil {
			return nil
		}
		return shutdownTelemetry(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./.gsta/config.yaml then ~/.gsta/config.yaml)")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging")
	RootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log JSON lines")

	RootCmd.AddCommand(reportCmd)
	RootCmd.AddCommand(pathsCmd)
	RootCmd.AddCommand(slackCmd)
	RootCmd.AddCommand(tagsCmd)
	RootCmd.AddCommand(checkCmd)
	RootCmd.AddCommand(initCmd)
}

// setup loads the configuration and installs the logger and telemetry.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = logJSON
	}

	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	logger = log.New(log.LoggerConfig{Level: level, JSONOutput: cfg.LogJSON})
	cmd.SetContext(log.WithLogger(cmd.Context(), logger))

	shutdownTelemetry, err = telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceName:    "gsta",
		ServiceVersion: Version,
		TraceExporter:  string(cfg.Telemetry.TraceExporter),
		MetricExporter: string(cfg.Telemetry.MetricExporter),
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	logger.Debug("config loaded", "threads", cfg.Search.Threads, "crpr", cfg.Search.CrprEnabled, "pocv", cfg.Search.PocvEnabled)
	return nil
}
