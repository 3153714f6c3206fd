package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/freshservice"
	"github.com/KnightedIT/freshservice-dashboard/internal/notify"
	"github.com/KnightedIT/freshservice-dashboard/internal/ops"
	"github.com/KnightedIT/freshservice-dashboard/internal/pipeline"
	"github.com/KnightedIT/freshservice-dashboard/internal/runlock"
	"github.com/KnightedIT/freshservice-dashboard/internal/runner"
	"github.com/KnightedIT/freshservice-dashboard/internal/runner/tasks"
	"github.com/KnightedIT/freshservice-dashboard/internal/secrets"
	"github.com/KnightedIT/freshservice-dashboard/internal/version"
	"github.com/KnightedIT/freshservice-dashboard/internal/warehouse"
)

var (
	goodColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	badColor   = color.New(color.FgRed)
	labelColor = color.New(color.Bold)
)

var (
	configFlag  string
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "fsdash",
	Short: "Freshservice time entry exporter",
	Long: `fsdash feeds the service desk reporting dashboard.

Each run discovers the tickets carrying the dashboard tag, collects their
time entries in rate-limited batches, and replaces the warehouse table with
the result.`,
	Version: version.Full(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colorized output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if err := config.Load(configFlag); err != nil {
		return nil, err
	}
	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildPipeline assembles the export stages from the configuration. The
// returned cleanup closes the warehouse and secret manager connections.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	provider, err := secrets.FromConfig(ctx, &cfg.Freshservice)
	if err != nil {
		return nil, nil, err
	}
	wh, err := warehouse.New(ctx, &cfg.Warehouse)
	if err != nil {
		return nil, nil, err
	}

	newSource := func(apiKey string) pipeline.Source {
		return freshservice.NewClient(&cfg.Freshservice, apiKey)
	}
	cleanup := func() {
		if err := wh.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warehouse close: %v\n", err)
		}
		if closer, ok := provider.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	return pipeline.New(provider, newSource, wh, cfg), cleanup, nil
}

var (
	strictInsertFlag    bool
	strictDiscoveryFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one export immediately",
	Long: `Run executes a single export outside the schedule: discover tagged
tickets, collect their time entries, and replace the warehouse table.

The command exits non-zero when the run fails outright. A partial run (some
tickets or rows lost) exits zero; the printed summary carries the details.`,
	RunE: runExport,
}

func init() {
	runCmd.Flags().BoolVar(&strictInsertFlag, "strict-insert", false, "Fail the run when the bulk insert fails or rejects rows")
	runCmd.Flags().BoolVar(&strictDiscoveryFlag, "strict-discovery", false, "Fail the run when ticket discovery stops early")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("strict-insert") {
		cfg.Pipeline.StrictInsert = strictInsertFlag
	}
	if cmd.Flags().Changed("strict-discovery") {
		cfg.Pipeline.StrictDiscovery = strictDiscoveryFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Schedule.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Schedule.Timeout)
		defer cancel()
	}

	pipe, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, runErr := pipe.Run(ctx)
	if report != nil {
		printReport(report)
	}
	if runErr != nil {
		return fmt.Errorf("export failed: %w", runErr)
	}
	return nil
}

func printReport(report *pipeline.RunReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Export run %s\n", report.RunID)
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Status"), colorizeStatus(report.Status))
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Tickets"), humanize.Comma(int64(report.TicketsDiscovered)))
	fmt.Fprintf(w, "  %s:\t%d (%d pauses)\n", labelColor.Sprint("Batches"), report.Collection.Batches, report.Collection.Pauses)

	entries := humanize.Comma(int64(report.Collection.Records))
	if report.Collection.Failed > 0 {
		entries += badColor.Sprintf(" (%d tickets failed)", report.Collection.Failed)
	}
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Entries"), entries)

	loaded := humanize.Comma(int64(report.RowsLoaded))
	if report.RowsRejected > 0 {
		loaded += warnColor.Sprintf(" (%d rejected)", report.RowsRejected)
	}
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Rows loaded"), loaded)
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Duration"), report.Duration().Round(time.Second))

	for _, msg := range report.Errors {
		fmt.Fprintf(w, "  %s:\t%s\n", warnColor.Sprint("Warning"), msg)
	}
}

func colorizeStatus(status string) string {
	switch status {
	case pipeline.StatusOK:
		return goodColor.Sprint(status)
	case pipeline.StatusPartial:
		return warnColor.Sprint(status)
	default:
		return badColor.Sprint(status)
	}
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the export on its cron schedule",
	Long: `Schedule starts the task runner and keeps exporting until terminated.
While the scheduler runs, the ops endpoints serve liveness, Prometheus
metrics, and the report of the most recent run.`,
	RunE: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipe, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	locker, err := runlock.FromConfig(&cfg.Lock)
	if err != nil {
		return fmt.Errorf("run lock: %w", err)
	}
	defer locker.Close()

	// The cron spec runs in the configured timezone, not server-local time
	if cfg.App.Timezone != "" && !strings.HasPrefix(cfg.Schedule.Cron, "CRON_TZ=") {
		if _, err := time.LoadLocation(cfg.App.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.App.Timezone, err)
		}
		cfg.Schedule.Cron = "CRON_TZ=" + cfg.App.Timezone + " " + cfg.Schedule.Cron
	}

	task := tasks.NewExportTask(pipe, &cfg.Schedule, locker, notify.New(&cfg.Notify))

	if cfg.Ops.Enabled {
		opsServer := ops.NewServer(cfg.Ops.GetOpsAddr(), cfg.App.IsProduction())
		task.SetReportSink(opsServer.SetLastReport)
		opsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = opsServer.Shutdown(shutdownCtx)
		}()
	}

	registry := runner.NewTaskRegistry()
	registry.Register(task)
	return runner.NewRunner(registry).Start(ctx)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity to the helpdesk API and the warehouse",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	failed := false
	result := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("%s  %s: %v\n", badColor.Sprint("FAIL"), name, err)
			return
		}
		fmt.Printf("%s  %s\n", goodColor.Sprint("OK"), name)
	}

	provider, err := secrets.FromConfig(ctx, &cfg.Freshservice)
	if err != nil {
		result("credential provider", err)
		return errors.New("one or more checks failed")
	}
	apiKey, err := provider.Fetch(ctx)
	result("credential", err)

	if err == nil {
		client := freshservice.NewClient(&cfg.Freshservice, apiKey)
		result("helpdesk API "+cfg.Freshservice.Domain, client.Ping(ctx))
	}

	wh, err := warehouse.New(ctx, &cfg.Warehouse)
	if err != nil {
		result("warehouse", err)
	} else {
		defer wh.Close()
		result("warehouse "+wh.Name(), wh.HealthCheck(ctx))
	}

	if failed {
		return errors.New("one or more checks failed")
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(configFlag); err != nil {
			return err
		}

		// Copy so redaction never touches the live configuration
		shown := *config.Get()
		if shown.Freshservice.APIKey != "" {
			shown.Freshservice.APIKey = "********"
		}

		out, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fsdash %s\n", version.Full())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
