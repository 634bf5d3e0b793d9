package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/analogrec/internal/config"
	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/logger"
	"github.com/verte-zerg/analogrec/internal/monitor"
	"github.com/verte-zerg/analogrec/internal/poller"
	"github.com/verte-zerg/analogrec/internal/stats"
	"github.com/verte-zerg/analogrec/internal/store"
)

const (
	defaultProbeCount = 10
	defaultProbeEvery = 100 * time.Millisecond
	defaultInspectTop = 20
)

func newCheckCmd(settings *recordSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the SDK loads and a device is connected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckCmd(cmd, settings)
		},
	}
}

func runCheckCmd(cmd *cobra.Command, settings *recordSettings) error {
	if err := loadSettings(cmd, settings); err != nil {
		return err
	}
	cfg, err := buildRecordConfig(*settings)
	if err != nil {
		return err
	}
	log := logger.New(settings.logLevel)
	defer syncLogger(log)

	sdk, err := openDevice(cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice(sdk, log)
	if err := requireDevice(sdk); err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), doneStyle, fmt.Sprintf("Device connected (library %s)", sdk.Path()))
	return nil
}

func newProbeCmd(settings *recordSettings) *cobra.Command {
	var count int
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "probe <key>",
		Short: "Read the analog value of a single key repeatedly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbeCmd(cmd, settings, args[0], count, every)
		},
	}
	cmd.Flags().IntVar(&count, "count", defaultProbeCount, "number of reads")
	cmd.Flags().DurationVar(&every, "every", defaultProbeEvery, "time between reads")
	return cmd
}

func runProbeCmd(cmd *cobra.Command, settings *recordSettings, key string, count int, every time.Duration) error {
	if count <= 0 {
		return fmt.Errorf("--count must be > 0")
	}
	if err := loadSettings(cmd, settings); err != nil {
		return err
	}
	cfg, err := buildRecordConfig(*settings)
	if err != nil {
		return err
	}
	mode, err := device.ParseKeycodeMode(cfg.KeycodeMode)
	if err != nil {
		return err
	}
	code, err := parseKey(key, mode)
	if err != nil {
		return err
	}
	log := logger.New(settings.logLevel)
	defer syncLogger(log)

	sdk, err := openDevice(cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice(sdk, log)

	out := cmd.OutOrStdout()
	for i := 0; i < count; i++ {
		if i > 0 {
			time.Sleep(every)
		}
		value := sdk.ReadSingle(code)
		line := fmt.Sprintf("%s %.4f", device.KeyName(code), value)
		if value < 0 {
			line = fmt.Sprintf("%s error: %s", device.KeyName(code), device.ResultName(int(value)))
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newMonitorCmd(settings *recordSettings) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show live key intensities without recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitorCmd(cmd, settings, refresh)
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", monitor.DefaultRefresh, "screen refresh period")
	return cmd
}

func runMonitorCmd(cmd *cobra.Command, settings *recordSettings, refresh time.Duration) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("monitor requires an interactive terminal")
	}
	if err := loadSettings(cmd, settings); err != nil {
		return err
	}
	cfg, err := buildRecordConfig(*settings)
	if err != nil {
		return err
	}
	log := logger.New(settings.logLevel)
	defer syncLogger(log)

	sdk, err := openDevice(cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice(sdk, log)

	// The alternate screen owns the terminal, so the poller stays quiet.
	p := poller.New(sdk, pollerConfig(cfg), logger.Nop())
	return monitor.Run(p, monitor.Options{
		Refresh:  refresh,
		StopCode: cfg.StopCode,
		Library:  sdk.Path(),
	})
}

func newSessionsCmd() *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsCmd(cmd, last)
		},
	}
	cmd.Flags().IntVar(&last, "last", 0, "limit to last N sessions")
	return cmd
}

func runSessionsCmd(cmd *cobra.Command, last int) error {
	if last < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	sessions, err := st.ListSessions(cmd.Context(), last)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	return stats.RenderSessions(cmd.OutOrStdout(), sessions)
}

func newInspectCmd() *cobra.Command {
	var top int
	var plot []string
	cmd := &cobra.Command{
		Use:   "inspect <log-file|session-id>",
		Short: "Summarize a recorded log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectCmd(cmd, args[0], top, plot)
		},
	}
	cmd.Flags().IntVar(&top, "top", defaultInspectTop, "number of keys in the table (0 for all)")
	cmd.Flags().StringSliceVar(&plot, "plot", nil, "keys to plot over time (names or numbers)")
	return cmd
}

func runInspectCmd(cmd *cobra.Command, target string, top int, plot []string) error {
	plotCodes, err := device.ParseKeyCodes(plot)
	if err != nil {
		return fmt.Errorf("invalid --plot: %w", err)
	}
	path, err := resolveLogPath(cmd.Context(), target)
	if err != nil {
		return err
	}
	report, err := stats.AnalyzeLog(path, plotCodes)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderKeyTable(out, report.Keys, top); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(plotCodes) == 0 {
		return nil
	}
	series := make([]stats.Series, 0, len(plotCodes))
	for _, code := range plotCodes {
		series = append(series, stats.Series{Name: device.KeyName(code), Values: report.Series[code]})
	}
	return stats.PlotIntensity(out, "Intensity over time", series, stats.TerminalPlotWidth(), 0, stats.UseColor(out))
}

// resolveLogPath accepts a log file path or an indexed session ID.
func resolveLogPath(ctx context.Context, target string) (string, error) {
	if _, err := os.Stat(target); err == nil {
		return target, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat log: %w", err)
	}
	dbPath := config.DefaultDBPath()
	if _, err := os.Stat(dbPath); err != nil {
		return "", fmt.Errorf("log file not found: %s", target)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	session, err := st.GetSession(ctx, target)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no log file or session named %q", target)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	return session.LogPath, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}
