package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/analogrec/internal/config"
	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/logger"
	"github.com/verte-zerg/analogrec/internal/model"
	"github.com/verte-zerg/analogrec/internal/poller"
	"github.com/verte-zerg/analogrec/internal/recorder"
)

const (
	defaultStartKey = "space"
	defaultStopKey  = "esc"
	defaultLogLevel = logger.InfoLevel
)

// recordSettings holds raw flag values before validation.
type recordSettings struct {
	library     string
	bufferSize  int
	exclude     []string
	strip       bool
	interval    string
	startKey    string
	stopKey     string
	keycodeMode string
	outputDir   string
	prefix      string
	checkDevice bool
	logLevel    string
	noIndex     bool
}

func defaultSettings() recordSettings {
	return recordSettings{
		bufferSize:  device.DefaultBufferSize,
		strip:       true,
		interval:    poller.DefaultInterval.String(),
		startKey:    defaultStartKey,
		stopKey:     defaultStopKey,
		keycodeMode: device.ModeHID.String(),
		outputDir:   ".",
		prefix:      recorder.DefaultPrefix,
		logLevel:    defaultLogLevel,
	}
}

// bindDeviceFlags registers flags shared by every command that reads the device.
func bindDeviceFlags(cmd *cobra.Command, s *recordSettings) {
	d := defaultSettings()
	flags := cmd.PersistentFlags()
	flags.StringVar(&s.library, "library", d.library, "path to the analog SDK wrapper library (default: platform name, or $"+config.LibraryEnv+")")
	flags.IntVar(&s.bufferSize, "buffer-size", d.bufferSize, fmt.Sprintf("read buffer capacity, clamped to [%d, %d]", device.MinBufferSize, device.MaxBufferSize))
	flags.StringSliceVar(&s.exclude, "exclude", d.exclude, "keys to drop from every frame (names or numbers)")
	flags.BoolVar(&s.strip, "strip", d.strip, "drop empty slots (code 0 or value 0)")
	flags.StringVar(&s.interval, "interval", d.interval, "sleep between polls")
	flags.StringVar(&s.stopKey, "stop-key", d.stopKey, "key that ends the session")
	flags.StringVar(&s.keycodeMode, "keycode-mode", d.keycodeMode, "key code encoding: hid, scancode1, vk or vk-translate")
	flags.StringVar(&s.logLevel, "log-level", d.logLevel, "log level: debug, info, warn or error (repeated read failures warn once; debug logs each)")
}

// bindRecordFlags registers flags used only by the recording command.
func bindRecordFlags(cmd *cobra.Command, s *recordSettings) {
	d := defaultSettings()
	flags := cmd.Flags()
	flags.StringVar(&s.startKey, "start-key", d.startKey, "key that starts the session")
	flags.StringVar(&s.outputDir, "output-dir", d.outputDir, "directory for log files")
	flags.StringVar(&s.prefix, "prefix", d.prefix, "log file name prefix")
	flags.BoolVar(&s.checkDevice, "check-device", d.checkDevice, "fail if no device is connected before waiting")
	flags.BoolVar(&s.noIndex, "no-index", d.noIndex, "do not add the session to the session index")
}

// loadSettings overlays the config file and environment onto flags that were
// not set explicitly.
func loadSettings(cmd *cobra.Command, s *recordSettings) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applySettings(cmd, s, fileCfg.Recorder)
	return nil
}

func applySettings(cmd *cobra.Command, s *recordSettings, rc config.RecorderConfig) {
	applyStringConfig(cmd, "library", &s.library, rc.Library)
	applyIntConfig(cmd, "buffer-size", &s.bufferSize, rc.BufferSize)
	applyStringSliceConfig(cmd, "exclude", &s.exclude, rc.Exclude)
	applyBoolConfig(cmd, "strip", &s.strip, rc.Strip)
	applyStringConfig(cmd, "interval", &s.interval, rc.Interval)
	applyStringConfig(cmd, "start-key", &s.startKey, rc.StartKey)
	applyStringConfig(cmd, "stop-key", &s.stopKey, rc.StopKey)
	applyStringConfig(cmd, "keycode-mode", &s.keycodeMode, rc.KeycodeMode)
	applyStringConfig(cmd, "output-dir", &s.outputDir, rc.OutputDir)
	applyStringConfig(cmd, "prefix", &s.prefix, rc.Prefix)
	applyBoolConfig(cmd, "check-device", &s.checkDevice, rc.CheckDevice)
	applyStringConfig(cmd, "log-level", &s.logLevel, rc.LogLevel)
	applyBoolConfig(cmd, "no-index", &s.noIndex, rc.NoIndex)

	if env := strings.TrimSpace(os.Getenv(config.LibraryEnv)); env != "" && !cmd.Flags().Changed("library") {
		s.library = env
	}
}

// buildRecordConfig validates settings. Buffer sizes out of range are clamped.
func buildRecordConfig(s recordSettings) (model.RecordConfig, error) {
	mode, err := device.ParseKeycodeMode(s.keycodeMode)
	if err != nil {
		return model.RecordConfig{}, err
	}
	interval, err := time.ParseDuration(strings.TrimSpace(s.interval))
	if err != nil {
		return model.RecordConfig{}, fmt.Errorf("invalid --interval value: %w", err)
	}
	if interval <= 0 {
		return model.RecordConfig{}, fmt.Errorf("--interval must be > 0")
	}
	startCode, err := parseKey(s.startKey, mode)
	if err != nil {
		return model.RecordConfig{}, fmt.Errorf("invalid --start-key: %w", err)
	}
	stopCode, err := parseKey(s.stopKey, mode)
	if err != nil {
		return model.RecordConfig{}, fmt.Errorf("invalid --stop-key: %w", err)
	}
	exclude := make([]uint16, 0, len(s.exclude))
	for _, key := range s.exclude {
		code, err := parseKey(key, mode)
		if err != nil {
			return model.RecordConfig{}, fmt.Errorf("invalid --exclude: %w", err)
		}
		if code == startCode || code == stopCode {
			return model.RecordConfig{}, fmt.Errorf("--exclude must not contain the start or stop key (%s)", device.KeyName(code))
		}
		exclude = append(exclude, code)
	}
	if s.prefix == "" || strings.ContainsAny(s.prefix, `/\`) {
		return model.RecordConfig{}, fmt.Errorf("--prefix must be a non-empty file name prefix")
	}
	if !logger.ValidLevel(s.logLevel) {
		return model.RecordConfig{}, fmt.Errorf("--log-level must be one of debug, info, warn, error")
	}
	outputDir := s.outputDir
	if outputDir == "" {
		outputDir = "."
	}
	return model.RecordConfig{
		Library:      s.library,
		BufferSize:   device.ClampBufferSize(s.bufferSize),
		Exclude:      exclude,
		StripZero:    s.strip,
		Interval:     interval,
		StartCode:    startCode,
		StopCode:     stopCode,
		KeycodeMode:  mode.String(),
		OutputDir:    outputDir,
		Prefix:       s.prefix,
		CheckDevice:  s.checkDevice,
		SkipIndexing: s.noIndex,
	}, nil
}

// parseKey accepts key names only in HID mode; other modes take numbers.
func parseKey(key string, mode device.KeycodeMode) (uint16, error) {
	key = strings.TrimSpace(key)
	if mode != device.ModeHID && !strings.HasPrefix(key, "#") {
		key = "#" + key
	}
	return device.ParseKeyCode(key)
}

func pollerConfig(cfg model.RecordConfig) poller.Config {
	return poller.Config{
		BufferSize: cfg.BufferSize,
		Exclude:    cfg.Exclude,
		StripZero:  cfg.StripZero,
		Interval:   cfg.Interval,
		StartCode:  cfg.StartCode,
		StopCode:   cfg.StopCode,
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func defaultConfigTemplate() string {
	d := defaultSettings()
	return fmt.Sprintf(`# analogrec configuration
# Uncomment a value to enable it. CLI flags override config values.

[recorder]
# library = ""              # SDK wrapper library path (default %q)
# buffer-size = %d          # Read buffer capacity, clamped to [%d, %d]
# exclude = []              # Keys dropped from every frame, e.g. ["lshift", "#227"]
# strip = %t              # Drop empty slots (code 0 or value 0)
# interval = %q           # Sleep between polls
# start-key = %q       # Key that starts recording
# stop-key = %q          # Key that ends recording (the stopping frame is recorded)
# keycode-mode = %q      # hid, scancode1, vk or vk-translate
# output-dir = %q          # Directory for log files
# prefix = %q   # Log file name prefix
# check-device = %t      # Fail fast when no device is connected
# log-level = %q        # debug, info, warn or error
# no-index = %t          # Skip the session index
`,
		device.DefaultLibraryName(),
		d.bufferSize,
		device.MinBufferSize,
		device.MaxBufferSize,
		d.strip,
		d.interval,
		d.startKey,
		d.stopKey,
		d.keycodeMode,
		d.outputDir,
		d.prefix,
		d.checkDevice,
		d.logLevel,
		d.noIndex,
	)
}
