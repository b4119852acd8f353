package engine

import (
	"image"
	"log/slog"
	"strings"

	"github.com/ironsheep/omr-engine/internal/imaging"
	"github.com/ironsheep/omr-engine/internal/output"
)

// diagnostics writes the intermediate images of one page. A nil
// *diagnostics discards everything.
type diagnostics struct {
	dir    string
	prefix string
	logger *slog.Logger
	names  []string
}

func (e *Engine) diagnostics(page *output.PageOutput) *diagnostics {
	if !e.saveIntermediates {
		return nil
	}
	prefix := page.ID
	if len(page.Parameters) > 0 {
		prefix += "-" + strings.Join(page.Parameters, ".")
	}
	return &diagnostics{dir: e.diagnosticsDir, prefix: prefix, logger: e.logger}
}

func (d *diagnostics) enabled() bool { return d != nil }

// save writes img as <prefix>-<stage>.bmp. Failures are logged and skipped.
func (d *diagnostics) save(stage string, img image.Image) {
	if d == nil || img == nil {
		return
	}
	name, err := imaging.SaveBMP(d.dir, d.prefix+"-"+stage, img)
	if err != nil {
		d.logger.Warn("intermediate image not saved", "stage", stage, "error", err)
		return
	}
	d.names = append(d.names, name)
}

// files returns the names written so far.
func (d *diagnostics) files() []string {
	if d == nil {
		return nil
	}
	return d.names
}
