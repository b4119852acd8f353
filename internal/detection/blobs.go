package detection

import (
	"image"
	"sync"
)

// foregroundLevel is the luminance at or above which a pixel belongs to a blob.
const foregroundLevel = 128

// Blob is a connected component of foreground pixels.
type Blob struct {
	// Rect is the bounding box in the coordinates of the scanned image.
	Rect image.Rectangle `json:"rect"`

	// Area is the number of foreground pixels in the component.
	Area int `json:"area"`

	// Edge holds the outermost pixel of every row (left and right) and every
	// column (top and bottom) of the component.
	Edge []image.Point `json:"-"`
}

// BlobOptions filters connected components by size.
type BlobOptions struct {
	// MinWidth and MinHeight drop components whose bounding box is smaller.
	MinWidth  int
	MinHeight int

	// SkipEdges leaves Blob.Edge nil. Bubble scanning only needs areas.
	SkipEdges bool
}

var visitedPool = sync.Pool{
	New: func() any { return new([]bool) },
}

// FindBlobs labels the 8-connected foreground components of a binary image.
//
// Parameters:
//   - img: Binary image with foreground at or above 128 (white marks on black).
//   - opts: Size filter. Zero values keep every component.
//
// Returns the components in raster order of their first pixel.
//
// # Algorithm
//
//  1. Raster scan for an unvisited foreground pixel
//  2. Stack-based flood fill over its 8-connected neighbourhood, tracking the
//     bounding box and pixel count
//  3. Size filter on the bounding box
//  4. Edge extraction from per-row and per-column extremes of the component
//
// The visited buffer is pooled, since the engine calls this once per bubble
// region from many workers.
func FindBlobs(img *image.Gray, opts BlobOptions) []Blob {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	buf := visitedPool.Get().(*[]bool)
	defer visitedPool.Put(buf)
	visited := resize(*buf, width*height)
	*buf = visited

	isFg := func(x, y int) bool {
		return img.Pix[img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)] >= foregroundLevel
	}

	var blobs []Blob
	var stack, pixels []image.Point

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if visited[y*width+x] || !isFg(x, y) {
				continue
			}

			pixels = pixels[:0]
			stack = append(stack[:0], image.Point{X: x, Y: y})
			visited[y*width+x] = true
			minX, minY, maxX, maxY := x, y, x, y

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pixels = append(pixels, p)

				if p.X < minX {
					minX = p.X
				}
				if p.X > maxX {
					maxX = p.X
				}
				if p.Y < minY {
					minY = p.Y
				}
				if p.Y > maxY {
					maxY = p.Y
				}

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || nx >= width || ny < 0 || ny >= height {
							continue
						}
						if visited[ny*width+nx] || !isFg(nx, ny) {
							continue
						}
						visited[ny*width+nx] = true
						stack = append(stack, image.Point{X: nx, Y: ny})
					}
				}
			}

			w, h := maxX-minX+1, maxY-minY+1
			if w < opts.MinWidth || h < opts.MinHeight {
				continue
			}

			blob := Blob{
				Rect: image.Rect(minX, minY, maxX+1, maxY+1).Add(bounds.Min),
				Area: len(pixels),
			}
			if !opts.SkipEdges {
				blob.Edge = edgePoints(pixels, minX, minY, w, h, bounds.Min)
			}
			blobs = append(blobs, blob)
		}
	}

	return blobs
}

func resize(buf []bool, n int) []bool {
	if cap(buf) < n {
		return make([]bool, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// edgePoints returns the leftmost and rightmost pixel of every row and the
// topmost and bottommost pixel of every column, without duplicates.
func edgePoints(pixels []image.Point, minX, minY, w, h int, origin image.Point) []image.Point {
	const unset = -1

	left := filled(h, unset)
	right := filled(h, unset)
	top := filled(w, unset)
	bottom := filled(w, unset)

	for _, p := range pixels {
		row, col := p.Y-minY, p.X-minX
		if left[row] == unset || p.X < left[row] {
			left[row] = p.X
		}
		if p.X > right[row] {
			right[row] = p.X
		}
		if top[col] == unset || p.Y < top[col] {
			top[col] = p.Y
		}
		if p.Y > bottom[col] {
			bottom[col] = p.Y
		}
	}

	seen := make(map[image.Point]struct{}, 2*(w+h))
	edge := make([]image.Point, 0, 2*(w+h))
	add := func(x, y int) {
		p := image.Point{X: x, Y: y}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		edge = append(edge, p.Add(origin))
	}

	for row := 0; row < h; row++ {
		if left[row] != unset {
			add(left[row], row+minY)
			add(right[row], row+minY)
		}
	}
	for col := 0; col < w; col++ {
		if top[col] != unset {
			add(col+minX, top[col])
			add(col+minX, bottom[col])
		}
	}
	return edge
}

func filled(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Largest returns the blob with the greatest area. The first one wins a tie.
func Largest(blobs []Blob) (Blob, bool) {
	if len(blobs) == 0 {
		return Blob{}, false
	}
	best := blobs[0]
	for _, b := range blobs[1:] {
		if b.Area > best.Area {
			best = b
		}
	}
	return best, true
}
