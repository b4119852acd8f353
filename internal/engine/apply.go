package engine

import (
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/imaging"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/processor"
	"github.com/ironsheep/omr-engine/internal/template"
)

// pageIDLayout is yyyyMMddHHmmss.
const pageIDLayout = "20060102150405"

// ApplyTemplate reads the answers on img using t.
//
// An image that is not ready is analyzed and prepared first. ApplyTemplate
// never returns an error or panics: any failure produces a page with
// Outcome Failure, an error message and no results. StopTime is always set.
// The caller keeps ownership of img.
//
// # Pipeline
//
//  1. Register: resample the normalized page to the template's corner
//     spacing and paste it on a white canvas the size of the template page
//  2. Convert to grayscale
//  3. Decode every barcode field on this goroutine
//  4. Binarize at the template's scan threshold and snapshot the result
//  5. Invert, so marks become white blobs
//  6. Scan every bubble field on the worker pool and wait for all of them
//  7. Place hits into the page in template order
func (e *Engine) ApplyTemplate(t *template.Template, img *processor.ScannedImage) (page *output.PageOutput) {
	start := e.now()
	page = output.NewPage("", "", start)

	defer func() {
		if r := recover(); r != nil {
			err := omrerrors.NewPageProcessingError(page.ID, fmt.Errorf("panic: %v", r))
			e.logger.Error("page processing panicked", "page", page.ID, "error", err)
			page.Fail(err)
		}
		page.StopTime = e.now()
	}()

	if err := e.apply(t, img, page); err != nil {
		e.logger.Error("page processing failed", "page", page.ID, "error", err)
		page.Fail(err)
		return page
	}
	page.Outcome = output.Success

	e.logger.Info("page processed",
		"page", page.ID,
		"template", page.TemplateID,
		"answers", len(page.Bubbles()),
		"barcodes", len(page.Barcodes()))
	return page
}

// ApplyTemplateFile decodes the scan at path and applies t to it. Unreadable
// or corrupt files produce a failed page.
func (e *Engine) ApplyTemplateFile(t *template.Template, path string) *output.PageOutput {
	img, err := processor.Open(path, processor.WithLogger(e.logger), processor.WithDecoder(e.decoder))
	if err != nil {
		page := output.NewPage("", "", e.now())
		if t != nil {
			page.TemplateID = t.ID
		}
		e.logger.Error("scan could not be opened", "path", path, "error", err)
		page.Fail(omrerrors.NewPageProcessingError(path, err))
		page.StopTime = e.now()
		return page
	}
	defer img.Close()

	return e.ApplyTemplate(t, img)
}

func (e *Engine) apply(t *template.Template, img *processor.ScannedImage, page *output.PageOutput) error {
	if t == nil {
		return errors.New("no template")
	}
	if img == nil {
		return errors.New("no image")
	}
	page.ID = t.ID + page.StartTime.Format(pageIDLayout)
	page.TemplateID = t.ID

	if !img.IsReadyForScan() {
		if !img.IsScannable() {
			if err := img.Analyze(e.thorough); err != nil {
				return err
			}
		}
		if err := img.PrepareProcessing(); err != nil {
			return err
		}
	}

	name := img.TemplateName()
	if name == "" {
		name = t.ID
	}
	page.ID = name + page.StartTime.Format(pageIDLayout)
	page.TemplateID = name
	page.Parameters = img.Parameters()

	diag := e.diagnostics(page)
	diag.save("init", img.Image())

	canvas, err := register(t, img.Image())
	if err != nil {
		return omrerrors.NewPageProcessingError(page.ID, err)
	}
	diag.save("tx", canvas)
	if diag.enabled() {
		diag.save("fields", imaging.Overlay(canvas, fieldBoxes(t)))
	}

	gray := imaging.Grayscale(canvas)
	diag.save("gs", gray)

	hits := newHitMap()
	for _, f := range t.BarcodeFields() {
		if d, ok := e.readBarcode(gray, f); ok {
			hits.put(f, d)
		}
	}

	bw := imaging.Threshold(gray, scanLevel(t.ScanThreshold))
	diag.save("bw", bw)
	page.AnalyzedImage = e.snapshot(page.ID, bw)
	page.BottomRight = geometry.Pt(float64(bw.Bounds().Dx()), float64(bw.Bounds().Dy()))

	inv := imaging.Invert(bw)
	diag.save("inv", inv)

	bubbles := t.BubbleFields()
	e.scanBubbles(inv, bubbles, hits)
	e.logger.Debug("fields scanned", "page", page.ID, "bubbles", len(bubbles), "hits", hits.len())

	for _, f := range t.FlatFields() {
		if d, ok := hits.get(f); ok {
			page.Place(f, d)
		}
	}
	page.RefImages = diag.files()
	return nil
}

// register maps the normalized page into template space. The page is scaled
// so its corners land on the template's corners, on a canvas whose size is
// the template's bottom-right corner.
func register(t *template.Template, img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, omrerrors.NewImageDisposedError()
	}
	canvas := image.Pt(int(t.BottomRight.X), int(t.BottomRight.Y))
	if canvas.X <= 0 || canvas.Y <= 0 {
		return nil, fmt.Errorf("template %s has no page size", t.ID)
	}
	size := image.Pt(int(t.Width()), int(t.Height()))
	offset := t.TopLeft.Image()
	return imaging.Register(img, canvas, offset, size), nil
}

func scanLevel(threshold int) uint8 {
	switch {
	case threshold < 0:
		return 0
	case threshold > 255:
		return 255
	default:
		return uint8(threshold)
	}
}

// snapshot saves the binarized page and returns its stored location, or ""
// when there is no store or the save fails.
func (e *Engine) snapshot(pageID string, img image.Image) string {
	if e.snapshots == nil {
		return ""
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		e.logger.Warn("snapshot encode failed", "page", pageID, "error", err)
		return ""
	}
	loc, err := e.snapshots.Save(uuid.NewString()+".jpg", data)
	if err != nil {
		e.logger.Warn("snapshot save failed", "page", pageID, "error", err)
		return ""
	}
	return loc
}

func fieldBoxes(t *template.Template) []imaging.Box {
	var boxes []imaging.Box
	for _, f := range t.FlatFields() {
		group := f.RowGroup()
		if b, ok := f.(*template.BubbleField); ok && group == "" {
			group = b.Question
		}
		boxes = append(boxes, imaging.Box{Rect: f.Bounds().Rect(), Label: f.FieldID(), Group: group})
	}
	return boxes
}
