// Package barcode decodes and encodes the barcodes printed on scannable forms.
//
// Two kinds of barcode matter to the engine: marker barcodes (Code 128,
// prefixed "OMR:") that name the template a page was printed from, and
// barcode fields whose content becomes part of the page output. Both go
// through Reader, a thin layer over the gozxing port of ZXing that adds
// rotation and inversion retries and multi-barcode search.
package barcode

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/ironsheep/omr-engine/internal/geometry"
)

// Supported symbologies, named as ZXing names them.
const (
	Code128 = "CODE_128"
	Code39  = "CODE_39"
	Code93  = "CODE_93"
	EAN13   = "EAN_13"
	EAN8    = "EAN_8"
	UPCA    = "UPC_A"
	ITF     = "ITF"
	QRCode  = "QR_CODE"
)

// ErrNotFound is returned when no barcode could be decoded.
var ErrNotFound = errors.New("no barcode found")

var formats = map[string]gozxing.BarcodeFormat{
	Code128: gozxing.BarcodeFormat_CODE_128,
	Code39:  gozxing.BarcodeFormat_CODE_39,
	Code93:  gozxing.BarcodeFormat_CODE_93,
	EAN13:   gozxing.BarcodeFormat_EAN_13,
	EAN8:    gozxing.BarcodeFormat_EAN_8,
	UPCA:    gozxing.BarcodeFormat_UPC_A,
	ITF:     gozxing.BarcodeFormat_ITF,
	QRCode:  gozxing.BarcodeFormat_QR_CODE,
}

// AllFormats lists every supported symbology in the order readers are tried.
var AllFormats = []string{Code128, Code39, Code93, EAN13, EAN8, UPCA, ITF, QRCode}

// Options tune a decode attempt.
type Options struct {
	// TryHarder scans more rows and spends more time per image.
	TryHarder bool

	// AutoRotate retries with the image turned by 90 degrees.
	AutoRotate bool

	// TryInverted retries with light bars on a dark background.
	TryInverted bool

	// ExtendedMode decodes full-ASCII Code 39.
	ExtendedMode bool

	// Formats restricts decoding to these symbologies. Empty means AllFormats.
	Formats []string
}

// Result is a decoded barcode.
type Result struct {
	Text   string `json:"text"`
	Format string `json:"format"`

	// Points are ZXing's result points in the coordinates of the decoded
	// image. For linear barcodes these are the left and right ends of the
	// scanned row.
	Points []geometry.Point `json:"points"`
}

// Bounds returns the bounding rectangle of the result points.
func (r Result) Bounds() image.Rectangle {
	if len(r.Points) == 0 {
		return image.Rectangle{}
	}
	var rect image.Rectangle
	for i, p := range r.Points {
		pt := p.Image()
		cell := image.Rectangle{Min: pt, Max: pt.Add(image.Pt(1, 1))}
		if i == 0 {
			rect = cell
			continue
		}
		rect = rect.Union(cell)
	}
	return rect
}

// Decoder is the capability the analyzer and engine depend on.
type Decoder interface {
	Decode(img image.Image, opts Options) (*Result, error)
	DecodeMultiple(img image.Image, opts Options) ([]Result, error)
}

// ParseFormats validates symbology names, accepting any case.
func ParseFormats(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := formats[n]; !ok {
			return nil, fmt.Errorf("unsupported barcode format %q", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func newReaders(opts Options) []gozxing.Reader {
	names := opts.Formats
	if len(names) == 0 {
		names = AllFormats
	}

	readers := make([]gozxing.Reader, 0, len(names))
	for _, n := range names {
		switch n {
		case Code128:
			readers = append(readers, oned.NewCode128Reader())
		case Code39:
			readers = append(readers, oned.NewCode39ReaderWithFlags(false, opts.ExtendedMode))
		case Code93:
			readers = append(readers, oned.NewCode93Reader())
		case EAN13:
			readers = append(readers, oned.NewEAN13Reader())
		case EAN8:
			readers = append(readers, oned.NewEAN8Reader())
		case UPCA:
			readers = append(readers, oned.NewUPCAReader())
		case ITF:
			readers = append(readers, oned.NewITFReader())
		case QRCode:
			readers = append(readers, qrcode.NewQRCodeReader())
		}
	}
	return readers
}

func newResult(r *gozxing.Result) *Result {
	pts := r.GetResultPoints()
	out := &Result{
		Text:   r.GetText(),
		Format: r.GetBarcodeFormat().String(),
		Points: make([]geometry.Point, 0, len(pts)),
	}
	for _, p := range pts {
		if p == nil {
			continue
		}
		out.Points = append(out.Points, geometry.Pt(p.GetX(), p.GetY()))
	}
	return out
}
