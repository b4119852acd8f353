package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterbourgon/ff/v4"

	"github.com/ironsheep/omr-engine/internal/config"
	"github.com/ironsheep/omr-engine/internal/engine"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/processor"
	"github.com/ironsheep/omr-engine/internal/store"
	"github.com/ironsheep/omr-engine/internal/template"
)

// resultsName is the base name of the document written with --output.
const resultsName = "results"

func (a *app) scanCommand() *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(a.flags.FlagSet())
	templatePath := fs.StringLong("template", "", "template file to apply to every scan (default: resolve each form's marker barcode)")
	outDir := fs.StringLong("output", "", "directory for the results document (default: stdout)")
	format := fs.StringLong("format", "xml", "results format: "+strings.Join(transformNames(), ", "))
	noStore := fs.BoolLong("no-store", "do not save pages in the page database")

	return &ff.Command{
		Name:      "scan",
		Usage:     "omr-engine scan [FLAGS] <scan> ...",
		ShortHelp: "read the marks on one or more scanned pages",
		LongHelp: "Each scan is matched to a template, read, validated and saved. A page that " +
			"cannot be read is reported and the batch carries on.",
		Flags: fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("scan: no files given")
			}
			transform, ok := output.Transforms()[*format]
			if !ok {
				return fmt.Errorf("scan: unknown format %q", *format)
			}

			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			b := &batch{
				cfg:       cfg,
				logger:    logger,
				engine:    eng,
				resolver:  template.Resolver{Dir: cfg.TemplateDir},
				templates: make(map[string]*template.Template),
			}
			if *templatePath != "" {
				t, err := template.Load(*templatePath)
				if err != nil {
					return err
				}
				b.fixed = t
			}
			if !*noStore {
				pages, err := store.OpenBolt(cfg.DBPath)
				if err != nil {
					return err
				}
				defer pages.Close()
				b.pages = pages
			}

			pages := b.run(ctx, args)

			data, err := transform.Transform(b.common(), pages)
			if err != nil {
				return err
			}
			if *outDir == "" {
				_, err = a.stdout.Write(data)
				return err
			}
			if err := os.MkdirAll(*outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(*outDir, resultsName+transform.Extension())
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			logger.Info("results written", "path", path, "pages", len(pages.Pages))
			return nil
		},
	}
}

func transformNames() []string {
	var names []string
	for name := range output.Transforms() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// batch processes scans one at a time, remembering templates by name.
type batch struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *engine.Engine
	resolver template.Resolver
	pages    store.PageStore

	fixed     *template.Template
	templates map[string]*template.Template
	used      []*template.Template
}

// run reads every scan in paths and returns the pages that were produced.
// Scans without usable registration marks or a known template are skipped.
func (b *batch) run(ctx context.Context, paths []string) *output.PageCollection {
	pages := &output.PageCollection{}
	for i, path := range paths {
		if ctx.Err() != nil {
			b.logger.Warn("scan interrupted", "remaining", len(paths)-i)
			break
		}
		page, t := b.process(path)
		if page == nil {
			continue
		}
		b.record(page, t)
		pages.Pages = append(pages.Pages, page)
	}
	return pages
}

func (b *batch) process(path string) (*output.PageOutput, *template.Template) {
	log := b.logger.With("path", path)

	if b.fixed != nil {
		return b.engine.ApplyTemplateFile(b.fixed, path), b.fixed
	}

	scan, err := processor.Open(path, processor.WithLogger(b.logger))
	if err != nil {
		log.Error("scan could not be opened", "error", err)
		return nil, nil
	}
	defer scan.Close()

	if err := scan.Analyze(b.cfg.Thorough); err != nil {
		log.Error("scan could not be analyzed", "error", err)
		return nil, nil
	}
	if !scan.IsScannable() {
		log.Warn("scan skipped: registration marks not found", "marks", scan.MarksFound())
		return nil, nil
	}

	t, err := b.template(scan.TemplateName())
	if err != nil {
		log.Warn("scan skipped: no template", "error", err)
		return nil, nil
	}
	return b.engine.ApplyTemplate(t, scan), t
}

func (b *batch) template(name string) (*template.Template, error) {
	if t, ok := b.templates[name]; ok {
		return t, nil
	}
	t, err := b.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	b.templates[name] = t
	return t, nil
}

// record validates and stores one page.
func (b *batch) record(page *output.PageOutput, t *template.Template) {
	log := b.logger.With("page", page.ID)

	b.use(t)
	if res := page.Validate(t); !res.IsValid {
		for _, issue := range res.Issues {
			log.Warn("page failed validation", "issue", issue.String())
		}
	}

	if b.pages == nil {
		return
	}
	if err := b.pages.SavePage(page); err != nil {
		log.Error("page could not be stored", "error", err)
	}
}

func (b *batch) use(t *template.Template) {
	for _, u := range b.used {
		if u == t {
			return
		}
	}
	b.used = append(b.used, t)
}

// common returns the template every page was read with, or nil for a
// mixed batch.
func (b *batch) common() *template.Template {
	if len(b.used) == 1 {
		return b.used[0]
	}
	return nil
}
