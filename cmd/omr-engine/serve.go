package main

import (
	"context"
	"os"

	"github.com/peterbourgon/ff/v4"

	"github.com/ironsheep/omr-engine/internal/ocr"
	"github.com/ironsheep/omr-engine/internal/server"
	"github.com/ironsheep/omr-engine/internal/store"
)

func (a *app) serveCommand() *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(a.flags.FlagSet())
	noStore := fs.BoolLong("no-store", "run without the page database")

	return &ff.Command{
		Name:      "serve",
		Usage:     "omr-engine serve [FLAGS]",
		ShortHelp: "serve the OMR tools over MCP on stdin/stdout",
		LongHelp: "The server speaks JSON-RPC 2.0, one message per line. Configure it in an " +
			"MCP client; logs are written to stderr.",
		Flags: fs,
		Exec: func(ctx context.Context, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			logger.Debug("starting MCP server", "version", Version, "commit", GitCommit, "built", BuildTime)

			eng, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			opts := []server.Option{
				server.WithLogger(logger),
				server.WithEngine(eng),
				server.WithTemplateDir(cfg.TemplateDir),
				server.WithThorough(cfg.Thorough),
			}
			if !*noStore {
				pages, err := store.OpenBolt(cfg.DBPath)
				if err != nil {
					return err
				}
				defer pages.Close()
				opts = append(opts, server.WithPageStore(pages))
			}
			if cfg.OCRFallback {
				opts = append(opts, server.WithOCR(ocr.NewReader(cfg.OCRLanguage)))
			}

			errc := make(chan error, 1)
			go func() { errc <- server.New(opts...).Run() }()
			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				// Run blocks on stdin; closing it ends the read loop.
				os.Stdin.Close()
				return nil
			}
		},
	}
}
