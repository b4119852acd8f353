package imaging

import (
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropResult contains a cropped region encoded for transport in a tool response.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts rect from img, optionally rescales it and returns it as a
// base64 PNG.
func Crop(img image.Image, rect image.Rectangle, scale float64) (*CropResult, error) {
	bounds := img.Bounds()

	if rect.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: empty", rect)
	}
	if !rect.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", rect, bounds)
	}

	cropped := imaging.Crop(img, rect)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	return Encode64(cropped)
}

// Encode64 encodes img as a base64 PNG tool payload.
func Encode64(img image.Image) (*CropResult, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &CropResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}
