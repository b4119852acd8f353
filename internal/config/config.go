// Package config resolves engine settings from flags, OMR_* environment
// variables and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
)

// EnvPrefix is the prefix of environment variables, e.g. OMR_WORKERS.
const EnvPrefix = "OMR"

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// Config holds the resolved settings.
type Config struct {
	TemplateDir       string
	DBPath            string
	SnapshotDir       string
	DiagnosticsDir    string
	SaveIntermediates bool
	Workers           int
	// Thorough is on unless --quick is given.
	Thorough          bool
	OCRFallback       bool
	OCRLanguage       string
	LogLevel          string
}

// Flags binds Config settings to an ff flag set.
type Flags struct {
	fs *ff.FlagSet

	templateDir       *string
	dbPath            *string
	snapshotDir       *string
	diagnosticsDir    *string
	saveIntermediates *bool
	workers           *int
	quick             *bool
	ocrFallback       *bool
	ocrLanguage       *string
	logLevel          *string
}

// NewFlags creates a flag set called name holding every setting.
func NewFlags(name string) *Flags {
	set := ff.NewFlagSet(name)
	return &Flags{
		fs:                set,
		templateDir:       set.StringLong("template-dir", "templates", "directory of .mxml templates"),
		dbPath:            set.StringLong("db", "omr-pages.db", "page database file"),
		snapshotDir:       set.StringLong("snapshot-dir", "snapshots", "directory for analyzed-image snapshots"),
		diagnosticsDir:    set.StringLong("diagnostics-dir", "imgproc", "directory for intermediate images"),
		saveIntermediates: set.BoolLong("save-intermediates", "write intermediate images to the diagnostics directory"),
		workers:           set.IntLong("workers", runtime.NumCPU(), "concurrent bubble workers per page"),
		quick:             set.BoolLong("quick", "only look for marker barcodes around the middle of the page"),
		ocrFallback:       set.BoolLong("ocr-fallback", "read the printed line of undecodable barcodes with tesseract"),
		ocrLanguage:       set.StringLong("ocr-language", "eng", "tesseract language for the OCR fallback"),
		logLevel:          set.StringLong("log-level", "info", "log level: debug, info, warn or error"),
	}
}

// FlagSet returns the underlying flag set, for use as a command's flags or
// as the parent of subcommand flags.
func (f *Flags) FlagSet() *ff.FlagSet { return f.fs }

// Config returns the parsed settings after validating them.
func (f *Flags) Config() (*Config, error) {
	c := &Config{
		TemplateDir:       *f.templateDir,
		DBPath:            *f.dbPath,
		SnapshotDir:       *f.snapshotDir,
		DiagnosticsDir:    *f.diagnosticsDir,
		SaveIntermediates: *f.saveIntermediates,
		Workers:           *f.workers,
		Thorough:          !*f.quick,
		OCRFallback:       *f.ocrFallback,
		OCRLanguage:       *f.ocrLanguage,
		LogLevel:          strings.ToLower(strings.TrimSpace(*f.logLevel)),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseOptions are the ff options every command parses with.
func ParseOptions() []ff.Option {
	return []ff.Option{ff.WithEnvVarPrefix(EnvPrefix)}
}

// LoadEnv loads .env files into the environment without overriding variables
// that are already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads envFile, parses args and returns the validated settings.
func Load(args []string, envFile string) (*Config, error) {
	if err := LoadEnv(envFile); err != nil {
		return nil, err
	}
	f := NewFlags("omr-engine")
	if err := ff.Parse(f.FlagSet(), args, ParseOptions()...); err != nil {
		return nil, err
	}
	return f.Config()
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, ok := levels[c.LogLevel]; !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.OCRFallback && c.OCRLanguage == "" {
		return errors.New("ocr-fallback needs an ocr-language")
	}
	if c.SaveIntermediates && c.DiagnosticsDir == "" {
		return errors.New("save-intermediates needs a diagnostics-dir")
	}
	return nil
}

// Level returns the slog level of LogLevel.
func (c *Config) Level() slog.Level {
	return levels[c.LogLevel]
}

// Logger builds a text logger on w at the configured level. Commands log
// to stderr so stdout stays free for results and protocol frames.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}
