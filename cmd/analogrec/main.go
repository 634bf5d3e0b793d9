// Package main provides the CLI entrypoint for analogrec.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/analogrec/internal/config"
	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/logger"
	"github.com/verte-zerg/analogrec/internal/model"
	"github.com/verte-zerg/analogrec/internal/poller"
	"github.com/verte-zerg/analogrec/internal/recorder"
	"github.com/verte-zerg/analogrec/internal/stats"
	"github.com/verte-zerg/analogrec/internal/store"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#81C784"))
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	settings := defaultSettings()
	rootCmd := &cobra.Command{
		Use:           "analogrec",
		Short:         "Record analog keyboard input to CSV",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecordCmd(cmd, &settings)
		},
	}
	bindDeviceFlags(rootCmd, &settings)
	bindRecordFlags(rootCmd, &settings)

	rootCmd.AddCommand(newCheckCmd(&settings))
	rootCmd.AddCommand(newProbeCmd(&settings))
	rootCmd.AddCommand(newMonitorCmd(&settings))
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runRecordCmd(cmd *cobra.Command, settings *recordSettings) error {
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

	if cfg.CheckDevice {
		if err := requireDevice(sdk); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	p := poller.New(sdk, pollerConfig(cfg), log)
	if p.BufferSize() != settings.bufferSize {
		log.Debugw("buffer size clamped", "requested", settings.bufferSize, "used", p.BufferSize())
	}
	printStatus(out, promptStyle, fmt.Sprintf("Press %s to start recording, %s to stop",
		device.KeyName(cfg.StartCode), device.KeyName(cfg.StopCode)))
	p.WaitForStart()

	recLog, err := recorder.Create(cfg.OutputDir, cfg.Prefix, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create log: %w", err)
	}
	printStatus(out, promptStyle, "Recording to "+recLog.Path())

	summary, recErr := p.Record(recLog)
	closeErr := recLog.Close()
	if recErr != nil {
		return fmt.Errorf("failed to write log %s after %d records: %w", recLog.Path(), summary.Records, recErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log: %w", closeErr)
	}
	if summary.ReadErrors > 0 {
		log.Warnw("session finished with read errors", "read_errors", summary.ReadErrors)
	}

	if !cfg.SkipIndexing {
		indexSession(cmd.Context(), log, sessionFor(cfg, recLog.Path(), p.BufferSize(), summary))
	}
	printStatus(out, doneStyle, fmt.Sprintf("Recorded %d data points", summary.Records))
	return nil
}

// openDevice loads and initialises the SDK and applies the keycode mode.
func openDevice(cfg model.RecordConfig, log *logger.Logger) (*device.SDK, error) {
	sdk, err := device.Open(cfg.Library)
	if err != nil {
		return nil, err
	}
	devices, err := sdk.Initialise()
	if err != nil {
		closeDevice(sdk, log)
		return nil, fmt.Errorf("failed to initialise SDK: %w", err)
	}
	log.Debugw("SDK initialised", "library", sdk.Path(), "devices", devices)
	mode, err := device.ParseKeycodeMode(cfg.KeycodeMode)
	if err != nil {
		closeDevice(sdk, log)
		return nil, err
	}
	if err := sdk.SetKeycodeMode(mode); err != nil {
		closeDevice(sdk, log)
		return nil, fmt.Errorf("failed to set keycode mode: %w", err)
	}
	return sdk, nil
}

func requireDevice(sdk *device.SDK) error {
	connected, err := sdk.IsConnected()
	if err != nil {
		return fmt.Errorf("failed to query devices: %w", err)
	}
	if !connected {
		return device.ErrNoDevice
	}
	return nil
}

func closeDevice(sdk *device.SDK, log *logger.Logger) {
	if err := sdk.Close(); err != nil {
		log.Warnw("failed to release SDK", "error", err)
	}
}

func sessionFor(cfg model.RecordConfig, logPath string, bufferSize int, summary poller.Summary) model.Session {
	if abs, err := filepath.Abs(logPath); err == nil {
		logPath = abs
	}
	return model.Session{
		StartedAt:  summary.StartedAt,
		EndedAt:    summary.EndedAt,
		LogPath:    logPath,
		Records:    summary.Records,
		ReadErrors: summary.ReadErrors,
		BufferSize: bufferSize,
		StartCode:  cfg.StartCode,
		StopCode:   cfg.StopCode,
	}
}

// indexSession records a finished session. The log file is the primary
// artifact, so failures are only logged.
func indexSession(ctx context.Context, log *logger.Logger, session model.Session) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		log.Warnw("failed to open session index", "error", err)
		return
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warnw("failed to close session index", "error", cerr)
		}
	}()
	id, err := st.InsertSession(ctx, session)
	if err != nil {
		log.Warnw("failed to index session", "error", err)
		return
	}
	log.Debugw("session indexed", "id", id)
}

func printStatus(w io.Writer, style lipgloss.Style, msg string) {
	if stats.UseColor(w) {
		msg = style.Render(msg)
	}
	if _, err := fmt.Fprintln(w, msg); err != nil {
		// Best-effort status output.
		_ = err
	}
}

func syncLogger(log *logger.Logger) {
	if err := log.Sync(); err != nil {
		// Syncing stderr fails on some terminals.
		_ = err
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
