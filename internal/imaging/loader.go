package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
)

// Decode turns raw file contents into a raster image.
//
// The format is sniffed from the content, not the file name. PNG, JPEG, GIF,
// BMP and TIFF go through the standard image registry, HEIC/HEIF phone photos
// through a pure-Go decoder and PDF scans are rendered from their first page.
//
// Returns:
//   - image.Image: The decoded raster.
//   - string: The detected MIME type.
//   - error: An UNSUPPORTED_FORMAT error when the content is not an image this
//     engine can read, or a wrapped decode error when the content is corrupt.
func Decode(data []byte) (image.Image, string, error) {
	mime := mimetype.Detect(data)
	mimeType := mime.String()

	switch {
	case mime.Is("image/heic"), mime.Is("image/heif"):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, mimeType, fmt.Errorf("failed to decode HEIC image: %w", err)
		}
		return img, mimeType, nil

	case mime.Is("application/pdf"):
		img, err := renderPDF(data)
		if err != nil {
			return nil, mimeType, err
		}
		return img, mimeType, nil

	case mime.Is("image/png"), mime.Is("image/jpeg"), mime.Is("image/gif"),
		mime.Is("image/bmp"), mime.Is("image/tiff"):
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, mimeType, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, mimeType, nil
	}

	return nil, mimeType, omrerrors.NewUnsupportedFormatError(mimeType, nil)
}

func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page: %w", err)
	}
	return img, nil
}

// DecodeFile reads and decodes an image file.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ImageCache provides thread-safe caching of decoded images keyed by path.
//
// The MCP server keeps one cache so repeated tool calls against the same scan
// do not decode it again. Cached images remain in memory until Evict or Clear.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// The image is cached under the exact path string provided. Different
// spellings of the same file get separate entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a single path from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo contains metadata about an input scan.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// MimeType is the content-sniffed format, e.g. "image/png" or "application/pdf".
	MimeType string `json:"mime_type"`

	// FileSizeBytes is the size of the file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo reports the dimensions and detected format of an input scan.
// The decoded image is left in the cache for the follow-up analysis.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect format: %w", err)
	}

	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()

	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		MimeType:      mime.String(),
		FileSizeBytes: stat.Size(),
	}, nil
}
