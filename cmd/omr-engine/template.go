package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v4"

	"github.com/ironsheep/omr-engine/internal/barcode"
	"github.com/ironsheep/omr-engine/internal/processor"
	"github.com/ironsheep/omr-engine/internal/template"
)

func (a *app) templateCommand() *ff.Command {
	fs := ff.NewFlagSet("template").SetParent(a.flags.FlagSet())
	id := fs.StringLong("id", "", "template id when the form carries no marker barcode (default: MyForm)")
	out := fs.StringLong("out", "", "file to write (default: <template-dir>/<id>.mxml)")
	marker := fs.BoolLong("marker", "print the marker barcode text for the template")

	return &ff.Command{
		Name:      "template",
		Usage:     "omr-engine template [FLAGS] <reference-scan>",
		ShortHelp: "start a template from a scan of a blank form",
		LongHelp: "The template gets the form's page size and registration corners. Fields " +
			"are added afterwards with a designer or by editing the document.",
		Flags: fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("template: exactly one reference scan is required")
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}

			scan, err := processor.Open(args[0], processor.WithLogger(logger))
			if err != nil {
				return err
			}
			defer scan.Close()

			t, err := processor.TemplateFromScan(scan, *id, args[0])
			if err != nil {
				return err
			}
			path := *out
			if path == "" {
				if err := os.MkdirAll(cfg.TemplateDir, 0o755); err != nil {
					return err
				}
				path = template.Resolver{Dir: cfg.TemplateDir}.Path(t.ID)
			}
			if err := t.SaveAs(path); err != nil {
				return err
			}
			logger.Info("template created", "id", t.ID, "path", path, "marks", scan.MarksFound())

			fmt.Fprintln(a.stdout, path)
			if *marker {
				fmt.Fprintln(a.stdout, barcode.MarkerText(t.ID))
			}
			return nil
		},
	}
}
