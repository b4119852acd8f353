package barcode

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Encode renders text as a barcode of the given symbology. Linear formats
// grow beyond width when the content needs more modules.
//
// Used to print marker barcodes onto blank forms and by tests to build
// synthetic scans.
func Encode(text, format string, width, height int) (image.Image, error) {
	var w gozxing.Writer
	switch format {
	case Code128:
		w = oned.NewCode128Writer()
	case Code39:
		w = oned.NewCode39Writer()
	case QRCode:
		w = qrcode.NewQRCodeWriter()
	default:
		return nil, fmt.Errorf("encoding %s is not supported", format)
	}

	m, err := w.Encode(text, formats[format], width, height, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s barcode: %w", format, err)
	}
	return m, nil
}

// MarkerText builds the text of a marker barcode naming a template and its
// parameters, e.g. "OMR:TL:Survey:site-4".
func MarkerText(templateName string, params ...string) string {
	s := MarkerPrefix + "TL:" + templateName
	for _, p := range params {
		s += ":" + p
	}
	return s
}
