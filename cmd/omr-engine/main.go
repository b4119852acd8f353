package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ironsheep/omr-engine/internal/config"
	"github.com/ironsheep/omr-engine/internal/engine"
	"github.com/ironsheep/omr-engine/internal/ocr"
	"github.com/ironsheep/omr-engine/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run parses args and executes the selected command. Results go to stdout;
// logs and help go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if err := config.LoadEnv(config.DefaultEnvFile); err != nil {
		return err
	}

	flags := config.NewFlags("omr-engine")
	cli := &app{flags: flags, stdout: stdout, stderr: stderr}

	root := &ff.Command{
		Name:      "omr-engine",
		Usage:     "omr-engine [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "read optical marks and barcodes from scanned forms",
		Flags:     flags.FlagSet(),
		Subcommands: []*ff.Command{
			cli.scanCommand(),
			cli.serveCommand(),
			cli.templateCommand(),
			cli.versionCommand(),
		},
	}

	err := root.ParseAndRun(ctx, args, config.ParseOptions()...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		return ff.ErrHelp
	default:
		return err
	}
}

// app carries what every subcommand shares.
type app struct {
	flags  *config.Flags
	stdout io.Writer
	stderr io.Writer
}

// setup resolves the configuration and builds the logger.
func (a *app) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := a.flags.Config()
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(a.stderr), nil
}

// newEngine builds an engine from the configuration. Snapshots are kept in
// the snapshot directory.
func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithWorkers(cfg.Workers),
		engine.WithThorough(cfg.Thorough),
		engine.WithDiagnostics(cfg.DiagnosticsDir, cfg.SaveIntermediates),
	}

	if cfg.SnapshotDir != "" {
		snapshots, err := store.NewLocalStorage(cfg.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("snapshot storage: %w", err)
		}
		opts = append(opts, engine.WithSnapshotStore(snapshots))
	}

	if cfg.OCRFallback {
		opts = append(opts, engine.WithTextReader(ocr.NewInterpretationReader(cfg.OCRLanguage)))
	}

	return engine.New(opts...), nil
}

func (a *app) versionCommand() *ff.Command {
	return &ff.Command{
		Name:      "version",
		Usage:     "omr-engine version",
		ShortHelp: "print version information",
		Exec: func(context.Context, []string) error {
			fmt.Fprintf(a.stdout, "omr-engine %s\n", Version)
			fmt.Fprintf(a.stdout, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			return nil
		},
	}
}
