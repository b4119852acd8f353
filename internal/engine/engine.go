package engine

import (
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/ironsheep/omr-engine/internal/barcode"
)

// MinBlobArea is the smallest blob, in pixels, that counts as a marked bubble.
// Anything smaller is scan noise.
const MinBlobArea = 30

// SnapshotStore persists the analyzed-image snapshot of each page.
type SnapshotStore interface {
	// Save writes data under filename and returns the stored location.
	Save(filename string, data []byte) (string, error)
}

// TextReader recognizes printed text. It backs up barcode fields whose
// symbol cannot be decoded but whose human-readable line can.
type TextReader interface {
	ReadText(img image.Image) (string, error)
}

// Engine applies templates to scanned pages. It holds no per-page state and
// may be shared, but each page is processed on the calling goroutine apart
// from the bubble workers.
type Engine struct {
	logger    *slog.Logger
	workers   int
	decoder   barcode.Decoder
	text      TextReader
	snapshots SnapshotStore
	thorough  bool

	diagnosticsDir    string
	saveIntermediates bool

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds the number of concurrent bubble workers. Values below
// one are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// WithDecoder replaces the barcode decoder.
func WithDecoder(d barcode.Decoder) Option {
	return func(e *Engine) {
		if d != nil {
			e.decoder = d
		}
	}
}

// WithTextReader enables the text fallback for unreadable barcode fields.
func WithTextReader(r TextReader) Option {
	return func(e *Engine) { e.text = r }
}

// WithSnapshotStore sets where analyzed-image snapshots are saved. Without
// one no snapshot is kept.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithThorough sets whether lazy registration scans the whole page for marker
// barcodes. It is on by default; turning it off misses markers printed away
// from the vertical middle of the form.
func WithThorough(thorough bool) Option {
	return func(e *Engine) { e.thorough = thorough }
}

// WithDiagnostics saves the intermediate images of every page as BMP files
// in dir.
func WithDiagnostics(dir string, enabled bool) Option {
	return func(e *Engine) {
		e.diagnosticsDir = dir
		e.saveIntermediates = enabled && dir != ""
	}
}

// WithClock replaces time.Now, for page ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine. By default it uses one worker per CPU, the gozxing
// barcode reader and a thorough marker search.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		workers:  runtime.NumCPU(),
		decoder:  barcode.NewReader(),
		thorough: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the worker pool bound.
func (e *Engine) Workers() int { return e.workers }
