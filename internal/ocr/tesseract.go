package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/omr-engine/internal/imaging"
)

// DefaultLanguage is used when a Reader is created without a language.
const DefaultLanguage = "eng"

// InterpretationChars is the character set of the human-readable line printed
// under Code 39 and Code 128 symbols.
const InterpretationChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-.$/+% "

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Rect returns b as an image rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func boundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Word is one recognized word with its location and confidence.
type Word struct {
	Text string `json:"text"`

	// Confidence is the recognition confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// Result is the text recognized in an image.
type Result struct {
	// FullText keeps Tesseract's spacing and newlines.
	FullText string `json:"full_text"`

	// Words may be empty when word boxes are unavailable; FullText is still set.
	Words []Word `json:"words"`
}

// Text returns FullText with whitespace runs collapsed to single spaces.
func (r *Result) Text() string {
	return Clean(r.FullText)
}

// Region is the location of a block of text, without its content.
type Region struct {
	Bounds     Bounds  `json:"bounds"`
	Confidence float64 `json:"confidence"`
}

// Reader recognizes text with Tesseract. A Reader holds configuration only;
// each call uses its own Tesseract client, so a Reader may be shared between
// goroutines.
type Reader struct {
	language  string
	whitelist string
	mode      gosseract.PageSegMode
}

// Option configures a Reader.
type Option func(*Reader)

// WithWhitelist restricts recognition to chars.
func WithWhitelist(chars string) Option {
	return func(r *Reader) { r.whitelist = chars }
}

// WithSparseText makes Tesseract look for scattered text instead of one
// uniform block.
func WithSparseText() Option {
	return func(r *Reader) { r.mode = gosseract.PSM_SPARSE_TEXT }
}

// NewReader creates a Reader for the given Tesseract language code. The
// language data must be installed.
func NewReader(language string, opts ...Option) *Reader {
	if language == "" {
		language = DefaultLanguage
	}
	r := &Reader{
		language: language,
		mode:     gosseract.PSM_SINGLE_BLOCK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewInterpretationReader creates a Reader tuned for the text line printed
// under a barcode.
func NewInterpretationReader(language string) *Reader {
	return NewReader(language, WithWhitelist(InterpretationChars))
}

// Language returns the Tesseract language code.
func (r *Reader) Language() string { return r.language }

// ReadText returns the cleaned text recognized in img.
func (r *Reader) ReadText(img image.Image) (string, error) {
	res, err := r.Extract(img)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// Extract performs OCR on the whole of img. Word bounds are relative to the
// top-left corner of img's bounds.
func (r *Reader) Extract(img image.Image) (*Result, error) {
	client, err := r.client(img)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &Result{FullText: text, Words: []Word{}}, nil
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     boundsOf(box.Box),
		})
	}
	return &Result{FullText: text, Words: words}, nil
}

// ExtractRegion performs OCR on rect of img. Word bounds are returned in the
// coordinates of img, not of the cropped region.
func (r *Reader) ExtractRegion(img image.Image, rect image.Rectangle) (*Result, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region %v outside image bounds %v", rect, img.Bounds())
	}

	res, err := r.Extract(imaging.Region(img, rect))
	if err != nil {
		return nil, err
	}
	res.Words = offsetWords(res.Words, rect.Min)
	return res, nil
}

// DetectRegions finds text blocks in img without reading them. Blocks below
// minConfidence (0.0 to 1.0) are dropped.
func (r *Reader) DetectRegions(img image.Image, minConfidence float64) ([]Region, error) {
	client, err := r.client(img)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	regions := make([]Region, 0, len(boxes))
	for _, box := range boxes {
		confidence := float64(box.Confidence) / 100.0
		if confidence < minConfidence {
			continue
		}
		regions = append(regions, Region{Bounds: boundsOf(box.Box), Confidence: confidence})
	}
	return regions, nil
}

// client returns a configured Tesseract client holding img. The caller closes it.
func (r *Reader) client(img image.Image) (*gosseract.Client, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("no image to read")
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(r.language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(r.mode); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if r.whitelist != "" {
		if err := client.SetWhitelist(r.whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return client, nil
}

// Clean collapses whitespace runs in text to single spaces.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// offsetWords moves word bounds by d.
func offsetWords(words []Word, d image.Point) []Word {
	for i := range words {
		words[i].Bounds = boundsOf(words[i].Bounds.Rect().Add(d))
	}
	return words
}
