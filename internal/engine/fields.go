package engine

import (
	"image"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/omr-engine/internal/barcode"
	"github.com/ironsheep/omr-engine/internal/detection"
	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/imaging"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/template"
)

// TextFormat is the format of barcode results read by the text fallback.
const TextFormat = "TEXT"

// barcodeMarkHeight is the height given to barcode results, whose points
// only describe the scanned row.
const barcodeMarkHeight = 10

// hitMap collects field results from concurrent workers.
type hitMap struct {
	mu   sync.Mutex
	hits map[template.Field]output.Data
}

func newHitMap() *hitMap {
	return &hitMap{hits: make(map[template.Field]output.Data)}
}

func (h *hitMap) put(f template.Field, d output.Data) {
	h.mu.Lock()
	h.hits[f] = d
	h.mu.Unlock()
}

func (h *hitMap) get(f template.Field) (output.Data, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.hits[f]
	return d, ok
}

func (h *hitMap) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hits)
}

// readBarcode decodes the barcode inside f. Result points are moved from
// region coordinates into page coordinates.
func (e *Engine) readBarcode(gray *image.Gray, f *template.BarcodeField) (output.Data, bool) {
	rect := f.Rect().Intersect(gray.Bounds())
	if rect.Empty() {
		e.logger.Debug("barcode field outside page", "field", f.ID)
		return nil, false
	}
	region := imaging.Region(gray, rect)
	origin := geometry.Pt(float64(rect.Min.X), float64(rect.Min.Y))

	res, err := e.decoder.Decode(region, barcode.Options{
		TryHarder:    true,
		AutoRotate:   true,
		TryInverted:  true,
		ExtendedMode: true,
	})
	if err != nil {
		e.logger.Debug("barcode field not decoded", "error", omrerrors.NewFieldDecodeError(f.ID, err))
		return e.readText(region, f, rect)
	}

	tl, br := origin, origin.Add(geometry.Pt(0, barcodeMarkHeight))
	if len(res.Points) > 0 {
		tl = res.Points[0].Add(origin)
		br = geometry.Pt(tl.X, tl.Y+barcodeMarkHeight)
	}
	if len(res.Points) > 1 {
		br.X = res.Points[1].X + origin.X
	}

	return &output.BarcodeData{
		Bound:  output.Bound{ID: f.ID, TopLeft: tl, BottomRight: br},
		Format: res.Format,
		Text:   res.Text,
	}, true
}

// readText is the fallback for a barcode field whose symbol did not decode.
func (e *Engine) readText(region image.Image, f *template.BarcodeField, rect image.Rectangle) (output.Data, bool) {
	if e.text == nil {
		return nil, false
	}
	text, err := e.text.ReadText(region)
	if err != nil {
		e.logger.Debug("text fallback failed", "field", f.ID, "error", err)
		return nil, false
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil, false
	}
	return &output.BarcodeData{
		Bound: output.Bound{
			ID:          f.ID,
			TopLeft:     geometry.Pt(float64(rect.Min.X), float64(rect.Min.Y)),
			BottomRight: geometry.Pt(float64(rect.Max.X), float64(rect.Max.Y)),
		},
		Format: TextFormat,
		Text:   text,
	}, true
}

// scanBubbles runs one job per bubble field on a bounded pool and returns
// once every job has finished. A failing job is logged and records nothing.
func (e *Engine) scanBubbles(inv *image.Gray, fields []*template.BubbleField, hits *hitMap) {
	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, f := range fields {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("bubble worker panicked", "job", i, "panic", r)
				}
			}()
			if d, ok := scanBubble(inv, f); ok {
				hits.put(f, d)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// scanBubble finds the largest blob inside f on an inverted binary page.
// The field is marked when that blob covers at least MinBlobArea pixels.
func scanBubble(inv *image.Gray, f *template.BubbleField) (*output.BubbleData, bool) {
	rect := f.Rect().Intersect(inv.Bounds())
	if rect.Empty() {
		return nil, false
	}

	// A sub-image shares the page buffer read-only, and blob rectangles stay
	// in page coordinates.
	region := inv.SubImage(rect).(*image.Gray)
	blob, ok := detection.Largest(detection.FindBlobs(region, detection.BlobOptions{SkipEdges: true}))
	if !ok || blob.Area < MinBlobArea {
		return nil, false
	}

	return &output.BubbleData{
		Bound: output.Bound{
			ID:          f.ID,
			TopLeft:     geometry.Pt(float64(blob.Rect.Min.X), float64(blob.Rect.Min.Y)),
			BottomRight: geometry.Pt(float64(blob.Rect.Max.X), float64(blob.Rect.Max.Y)),
		},
		Key:      f.Question,
		Value:    f.Value,
		BlobArea: blob.Area,
	}, true
}
