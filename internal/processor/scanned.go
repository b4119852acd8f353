package processor

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/ironsheep/omr-engine/internal/barcode"
	"github.com/ironsheep/omr-engine/internal/detection"
	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/imaging"
)

const (
	// MinMarkSize is the smallest bounding box side of a registration mark.
	MinMarkSize = 30

	// MaxMarkRadius and MinMarkRadius bound the radius gate of Analyze: a mark
	// must be larger than MinMarkRadius.
	MaxMarkRadius = 45
	MinMarkRadius = 20
)

// ScannedImage is a raw scan and what has been learned about it.
//
// A ScannedImage is owned by a single caller and is not safe for concurrent
// use. Close releases the pixel buffer; every later call fails with an
// IMAGE_DISPOSED error.
type ScannedImage struct {
	img     *image.NRGBA
	logger  *slog.Logger
	decoder barcode.Decoder

	scannable bool
	ready     bool
	closed    bool

	corners    geometry.Quad
	marksFound int

	templateName string
	parameters   []string
	markers      []barcode.Result
}

// Option configures a ScannedImage.
type Option func(*ScannedImage)

// WithLogger sets the logger used for analysis diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *ScannedImage) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDecoder replaces the barcode decoder used for marker barcodes.
func WithDecoder(d barcode.Decoder) Option {
	return func(s *ScannedImage) {
		if d != nil {
			s.decoder = d
		}
	}
}

// NewScannedImage copies img into an owned buffer.
func NewScannedImage(img image.Image, opts ...Option) *ScannedImage {
	s := &ScannedImage{
		img:     imaging.ToNRGBA(img),
		logger:  slog.Default(),
		decoder: barcode.NewReader(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open decodes an image file into a ScannedImage.
func Open(path string, opts ...Option) (*ScannedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan: %w", err)
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scan %s: %w", path, err)
	}
	return NewScannedImage(img, opts...), nil
}

// Analyze locates the four registration marks and reads marker barcodes.
//
// It is a no-op once the image is scannable. When the marks cannot be
// resolved to exactly four corners the image is left non-scannable with no
// corners; that is not an error. The only error is a closed image.
//
// # Algorithm
//
//  1. Binarize at a fixed level of 127 and invert, so printed marks are
//     white blobs
//  2. Find blobs of at least 30×30 pixels and keep those that fit a circle
//  3. Radius gate: for thresholds 44 down to 20, accept circles whose radius
//     exceeds the threshold and stop at the first threshold giving exactly
//     four
//  4. Split the four centres into left and right halves around the midpoint
//     of their x range, then top and bottom by y within each half
//  5. Only when the page is scannable, decode Code 128 barcodes over the
//     whole page; "OMR:" texts are marker codes and the first
//     "OMR:TL"/"OMR:ID" one names the template
//
// thorough scans every row of the page for barcodes. Without it only the rows
// around the vertical middle are tried, so markers printed near the top or
// bottom of a form are missed.
func (s *ScannedImage) Analyze(thorough bool) error {
	if s.closed {
		return omrerrors.NewImageDisposedError()
	}
	if s.scannable {
		return nil
	}

	bin := imaging.Binarize(s.img, imaging.MarkThreshold)
	blobs := detection.FindBlobs(bin, detection.BlobOptions{MinWidth: MinMarkSize, MinHeight: MinMarkSize})

	var circles []detection.Circle
	for _, b := range blobs {
		if c, ok := detection.IsCircle(b.Edge); ok {
			circles = append(circles, c)
		}
	}

	var centers []geometry.Point
	for threshold := MaxMarkRadius - 1; threshold >= MinMarkRadius; threshold-- {
		centers = centers[:0]
		for _, c := range circles {
			if c.Radius > float64(threshold) {
				centers = append(centers, c.Center)
			}
		}
		if len(centers) == 4 {
			break
		}
	}
	s.marksFound = len(centers)

	if corners, ok := assignCorners(centers); ok {
		s.corners = corners
		s.scannable = true
	} else {
		s.corners = geometry.Quad{}
		s.scannable = false
	}

	s.logger.Debug("registration marks analyzed",
		"blobs", len(blobs),
		"circles", len(circles),
		"marks", s.marksFound,
		"scannable", s.scannable)

	if s.scannable && len(s.markers) == 0 {
		s.readMarkers(thorough)
	}
	return nil
}

// assignCorners orders four centres into corner slots without relying on
// their input order.
func assignCorners(centers []geometry.Point) (geometry.Quad, bool) {
	if len(centers) != 4 {
		return geometry.Quad{}, false
	}

	minX, maxX := centers[0].X, centers[0].X
	for _, c := range centers[1:] {
		minX = math.Min(minX, c.X)
		maxX = math.Max(maxX, c.X)
	}
	mid := (minX + maxX) / 2

	var left, right []geometry.Point
	for _, c := range centers {
		if c.X < mid {
			left = append(left, c)
		} else {
			right = append(right, c)
		}
	}
	if len(left) != 2 || len(right) != 2 {
		return geometry.Quad{}, false
	}

	byY := func(pts []geometry.Point) {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Y < pts[j].Y })
	}
	byY(left)
	byY(right)

	return geometry.Quad{
		TopLeft:     left[0],
		BottomLeft:  left[1],
		TopRight:    right[0],
		BottomRight: right[1],
	}, true
}

func (s *ScannedImage) readMarkers(thorough bool) {
	results, err := s.decoder.DecodeMultiple(s.img, barcode.Options{
		TryHarder:  thorough,
		AutoRotate: true,
		Formats:    []string{barcode.Code128},
	})
	if err != nil {
		s.logger.Debug("marker barcode decode failed", "error", err)
		return
	}

	for _, r := range results {
		if !barcode.IsMarker(r.Text) {
			continue
		}
		s.markers = append(s.markers, r)
		if s.templateName != "" {
			continue
		}
		if m, ok := barcode.ParseMarker(r.Text); ok {
			s.templateName = m.TemplateName
			s.parameters = m.Parameters
			s.logger.Debug("marker barcode read", "template", m.TemplateName, "parameters", m.Parameters)
		}
	}
}

// PrepareProcessing deskews and crops a scannable image so the registration
// marks sit at its corners.
//
// The skew angle is taken from the top edge (TL to TR). The whole image is
// rotated by that angle around its centre, re-analyzed, and cropped to the
// rectangle from the new top-left mark to (top-right X, bottom-left Y).
// Uncovered area is white. A non-scannable image is analyzed first; if the
// marks cannot be found, before or after rotation, a REGISTRATION_FAILED
// error is returned and the image is not ready. Calling it again on a ready
// image does nothing.
func (s *ScannedImage) PrepareProcessing() error {
	if s.closed {
		return omrerrors.NewImageDisposedError()
	}
	if s.ready {
		return nil
	}
	if !s.scannable {
		if err := s.Analyze(false); err != nil {
			return err
		}
		if !s.scannable {
			return omrerrors.NewRegistrationError(s.marksFound)
		}
	}

	tl, tr := s.corners.TopLeft, s.corners.TopRight
	angle := math.Atan((tr.Y-tl.Y)/(tr.X-tl.X)) * 180 / math.Pi

	s.img = imaging.Rotate(s.img, angle)
	s.scannable = false
	s.ready = false
	s.corners = geometry.Quad{}

	if err := s.Analyze(false); err != nil {
		return err
	}
	if !s.scannable {
		return omrerrors.NewRegistrationError(s.marksFound)
	}

	c := s.corners
	crop := image.Rect(int(c.TopLeft.X), int(c.TopLeft.Y), int(c.TopRight.X), int(c.BottomLeft.Y))
	s.img = imaging.CropOnWhite(s.img, crop)
	s.ready = true

	s.logger.Debug("scan prepared",
		"angle", angle,
		"width", crop.Dx(),
		"height", crop.Dy())
	return nil
}

// Close releases the pixel buffer. It is safe to call more than once.
func (s *ScannedImage) Close() error {
	s.img = nil
	s.closed = true
	return nil
}

// IsScannable reports whether four registration marks were found.
func (s *ScannedImage) IsScannable() bool { return s.scannable }

// IsReadyForScan reports whether the image has been deskewed and cropped.
func (s *ScannedImage) IsReadyForScan() bool { return s.ready }

// IsClosed reports whether Close has been called.
func (s *ScannedImage) IsClosed() bool { return s.closed }

// Corners returns the registration mark centres. After PrepareProcessing they
// are in the coordinates of the rotated, uncropped image.
func (s *ScannedImage) Corners() geometry.Quad { return s.corners }

// MarksFound is the number of marks the last radius gate settled on.
func (s *ScannedImage) MarksFound() int { return s.marksFound }

// TemplateName is the template named by a marker barcode, or "". Markers are
// only read from scannable pages.
func (s *ScannedImage) TemplateName() string { return s.templateName }

// Parameters are the marker barcode's trailing segments.
func (s *ScannedImage) Parameters() []string { return s.parameters }

// MarkerCodes returns every "OMR:" barcode read from the page. It is empty
// until the page is scannable.
func (s *ScannedImage) MarkerCodes() []barcode.Result { return s.markers }

// Image returns the current pixel buffer: the raw scan, or the normalized
// page once ready. It is nil after Close.
func (s *ScannedImage) Image() image.Image {
	if s.img == nil {
		return nil
	}
	return s.img
}

// Bounds returns the bounds of the current pixel buffer.
func (s *ScannedImage) Bounds() image.Rectangle {
	if s.img == nil {
		return image.Rectangle{}
	}
	return s.img.Bounds()
}
