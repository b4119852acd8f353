package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// MarkThreshold is the fixed binarization level used when locating
// registration marks.
const MarkThreshold = 127

// ToNRGBA copies img into an owned 8-bit-per-channel buffer with a zero origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Grayscale converts img to single-channel luminance.
func Grayscale(img image.Image) *image.Gray {
	return toGray(effect.Grayscale(img))
}

// toGray copies the luminance of an RGBA result from bild into a Gray image.
func toGray(img image.Image) *image.Gray {
	out := image.NewGray(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// Threshold binarizes img. Pixels with luminance at or above level become
// white, everything else black.
func Threshold(img image.Image, level uint8) *image.Gray {
	return segment.Threshold(img, level)
}

// Invert swaps foreground and background so dark marks become white blobs.
// The result stays single-channel.
func Invert(img image.Image) *image.Gray {
	return toGray(effect.Invert(img))
}

// Binarize is the registration-mark preparation chain: grayscale, threshold at
// level, invert.
func Binarize(img image.Image, level uint8) *image.Gray {
	return Invert(Threshold(Grayscale(img), level))
}

// Rotate turns img counter-clockwise by degrees around its centre using
// bilinear resampling. The canvas grows to hold the whole result and the
// uncovered corners are white.
func Rotate(img image.Image, degrees float64) *image.NRGBA {
	return imaging.Rotate(img, degrees, color.White)
}

// CropOnWhite copies rect out of img onto a white canvas of the same size.
// Parts of rect that fall outside img stay white.
func CropOnWhite(img image.Image, rect image.Rectangle) *image.NRGBA {
	canvas := imaging.New(rect.Dx(), rect.Dy(), color.White)
	src := rect.Intersect(img.Bounds())
	if src.Empty() {
		return canvas
	}
	return imaging.Paste(canvas, imaging.Crop(img, src), src.Min.Sub(rect.Min))
}

// Region copies rect out of img. The rectangle is clipped to the image; a
// region entirely outside the image yields an empty buffer.
func Region(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect)
}

// Register resamples img to size with Catmull-Rom filtering and pastes it at
// offset on a white canvas of canvasSize.
func Register(img image.Image, canvasSize image.Point, offset image.Point, size image.Point) *image.NRGBA {
	canvas := imaging.New(canvasSize.X, canvasSize.Y, color.White)
	if size.X <= 0 || size.Y <= 0 {
		return canvas
	}
	resized := imaging.Resize(img, size.X, size.Y, imaging.CatmullRom)
	return imaging.Paste(canvas, resized, offset)
}
