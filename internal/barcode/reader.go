package barcode

import (
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"

	"github.com/ironsheep/omr-engine/internal/geometry"
)

const (
	// maxMultiDepth bounds the recursive sub-region search of DecodeMultiple.
	maxMultiDepth = 4

	// minMultiRegion is the smallest sub-region worth searching, in pixels.
	minMultiRegion = 20
)

// Reader decodes barcodes from raster images. It holds no state and is safe
// for concurrent use.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() *Reader {
	return &Reader{}
}

type variant struct {
	img image.Image
	// unmap converts a point in img back to the caller's image.
	unmap func(geometry.Point) geometry.Point
}

func identity(p geometry.Point) geometry.Point { return p }

// variants lists the images to try in order: as given, turned, inverted.
func variants(img image.Image, opts Options) []variant {
	out := []variant{{img: img, unmap: identity}}

	if opts.AutoRotate {
		b := img.Bounds()
		w := float64(b.Dx())
		out = append(out, variant{
			img: imaging.Rotate90(img),
			// Rotate90 maps (x, y) to (y, w-1-x).
			unmap: func(p geometry.Point) geometry.Point {
				return geometry.Pt(w-1-p.Y+float64(b.Min.X), p.X+float64(b.Min.Y))
			},
		})
	}

	if opts.TryInverted {
		out = append(out, variant{img: effect.Invert(img), unmap: identity})
	}
	return out
}

// Decode finds one barcode in img. It returns ErrNotFound when no enabled
// symbology could be read from any of the tried variants.
//
// Result points are in img's coordinate space even when the match came from a
// rotated attempt.
func (r *Reader) Decode(img image.Image, opts Options) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNotFound
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	readers := newReaders(opts)
	if len(readers) == 0 {
		return nil, fmt.Errorf("no barcode formats enabled")
	}

	for _, v := range variants(img, opts) {
		bmp, err := gozxing.NewBinaryBitmapFromImage(v.img)
		if err != nil {
			return nil, fmt.Errorf("failed to binarize barcode image: %w", err)
		}

		for _, reader := range readers {
			res, err := reader.Decode(bmp, hints)
			reader.Reset()
			if err != nil || res == nil {
				continue
			}
			out := newResult(res)
			for i, p := range out.Points {
				out.Points[i] = v.unmap(p)
			}
			return out, nil
		}
	}

	return nil, ErrNotFound
}

// DecodeMultiple finds every distinct barcode in img.
//
// After each hit the regions left of, right of, above and below the hit are
// searched again, recursively up to a fixed depth. Results are deduplicated
// by text and format and returned in discovery order. An image with no
// barcodes yields an empty slice, not an error.
func (r *Reader) DecodeMultiple(img image.Image, opts Options) ([]Result, error) {
	var results []Result
	seen := make(map[string]bool)

	if err := r.decodeRegion(img, img.Bounds(), opts, 0, seen, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Reader) decodeRegion(img image.Image, region image.Rectangle, opts Options, depth int, seen map[string]bool, results *[]Result) error {
	if depth > maxMultiDepth || region.Dx() < minMultiRegion || region.Dy() < minMultiRegion {
		return nil
	}

	sub := imaging.Crop(img, region)
	res, err := r.Decode(sub, opts)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for i, p := range res.Points {
		res.Points[i] = p.Add(geometry.Pt(float64(region.Min.X), float64(region.Min.Y)))
	}

	key := res.Format + "\x00" + res.Text
	if !seen[key] {
		seen[key] = true
		*results = append(*results, *res)
	}

	hit := res.Bounds()
	if hit.Empty() {
		return nil
	}

	parts := []image.Rectangle{
		image.Rect(region.Min.X, region.Min.Y, hit.Min.X, region.Max.Y),
		image.Rect(hit.Max.X, region.Min.Y, region.Max.X, region.Max.Y),
		image.Rect(region.Min.X, region.Min.Y, region.Max.X, hit.Min.Y),
		image.Rect(region.Min.X, hit.Max.Y, region.Max.X, region.Max.Y),
	}
	for _, part := range parts {
		part = part.Intersect(region)
		if part == region {
			continue
		}
		if err := r.decodeRegion(img, part, opts, depth+1, seen, results); err != nil {
			return err
		}
	}
	return nil
}
