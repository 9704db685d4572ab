// Package main provides the weekusage command-line tool, which prints this
// week's (or one day's) campus electricity usage from the energy archive.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/i474232898/campus-energy-week/internal/config"
	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/energy/archive"
	"github.com/i474232898/campus-energy-week/internal/report"
)

var (
	flagLocation string
	flagFormat   string
	flagDate     string
	flagVerbose  bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "weekusage",
		Short:        "Campus electricity usage since the most recent Sunday",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log archive requests to stderr")

	rootCmd.AddCommand(newWeekCmd(), newDayCmd(), newURLCmd())
	return rootCmd
}

func newWeekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print readings from Sunday through today",
		Args:  cobra.NoArgs,
		RunE:  runWeekCmd,
	}
	cmd.Flags().StringVarP(&flagLocation, "location", "l", "", "location tag (default: campus)")
	cmd.Flags().StringVarP(&flagFormat, "format", "f", string(report.FormatTable), "output format: table, csv or json")
	return cmd
}

func newDayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Print one day's readings",
		Args:  cobra.NoArgs,
		RunE:  runDayCmd,
	}
	cmd.Flags().StringVarP(&flagDate, "date", "d", "", "day to load (YYYY-MM-DD, default: today)")
	cmd.Flags().StringVarP(&flagLocation, "location", "l", "", "location tag (default: campus)")
	cmd.Flags().StringVarP(&flagFormat, "format", "f", string(report.FormatTable), "output format: table, csv or json")
	return cmd
}

func newURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the archive address for a day",
		Args:  cobra.NoArgs,
		RunE:  runURLCmd,
	}
	cmd.Flags().StringVarP(&flagDate, "date", "d", "", "day (YYYY-MM-DD, default: today)")
	return cmd
}

func runWeekCmd(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	service, _, err := newService()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	series, err := service.WeekData(ctx, flagLocation)
	if err != nil {
		return err
	}
	return report.Write(cmd.OutOrStdout(), format, series, series.Readings)
}

func runDayCmd(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	service, _, err := newService()
	if err != nil {
		return err
	}
	day, err := resolveDate(service.Today())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	series, err := service.DayData(ctx, day, flagLocation)
	if err != nil {
		return err
	}
	return report.Write(cmd.OutOrStdout(), format, series, series.Readings)
}

func runURLCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	day, err := resolveDate(energy.DateOf(energy.SystemClock(cfg.ArchiveLocation).Now()))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write([]byte(archive.Locator{BaseURL: cfg.ArchiveBaseURL}.Address(day) + "\n"))
	return err
}

// resolveDate returns the --date flag, or today when it is unset.
func resolveDate(today energy.Date) (energy.Date, error) {
	if flagDate == "" {
		return today, nil
	}
	return energy.ParseDate(flagDate)
}

func newService() (*energy.Service, *config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := archive.NewClient(archive.ClientConfig{
		HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff:      cfg.BackoffConfig(),
		MaxBodyBytes: cfg.FetchMaxBodyBytes,
	})
	loader := archive.NewLoader(
		archive.Locator{BaseURL: cfg.ArchiveBaseURL},
		client,
		archive.WithTimeLocation(cfg.ArchiveLocation),
		archive.WithLoaderLogger(log),
	)
	return energy.NewService(loader, energy.SystemClock(cfg.ArchiveLocation), energy.WithLogger(log)), cfg, nil
}
