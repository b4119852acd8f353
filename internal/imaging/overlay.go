package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box is a labelled rectangle drawn by Overlay. Boxes that share a Group share
// a colour.
type Box struct {
	Rect  image.Rectangle
	Label string
	Group string
}

// Overlay draws each box as a two-pixel outline on a copy of img, with its
// label in the top-left corner.
//
// Groups get evenly spaced hues in the order they first appear, so the same
// template always renders with the same colours.
func Overlay(img image.Image, boxes []Box) *image.NRGBA {
	out := ToNRGBA(img)

	groups := make(map[string]int)
	for _, b := range boxes {
		if _, ok := groups[b.Group]; !ok {
			groups[b.Group] = len(groups)
		}
	}
	palette := groupPalette(len(groups))

	for _, b := range boxes {
		c := palette[groups[b.Group]]
		drawOutline(out, b.Rect, c, 2)
		if b.Label != "" {
			drawLabel(out, b.Rect.Min.X+3, b.Rect.Min.Y+3, b.Label, c)
		}
	}
	return out
}

func groupPalette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		hue := float64(i) * 360 / float64(n)
		out[i] = colorful.Hcl(hue, 0.7, 0.55).Clamped()
	}
	return out
}

// ParseColor parses a "#RRGGBB" colour.
func ParseColor(hex string) (color.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return c, nil
}

// Highlight fills each rectangle with a translucent wash of c on a copy of img.
func Highlight(img image.Image, rects []image.Rectangle, c color.Color) *image.NRGBA {
	out := ToNRGBA(img)
	r, g, b, _ := c.RGBA()
	wash := image.NewUniform(color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 96})
	for _, rect := range rects {
		draw.Draw(out, rect.Intersect(out.Bounds()), wash, image.Point{}, draw.Over)
	}
	return out
}

func drawOutline(img *image.NRGBA, r image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	bounds := img.Bounds()
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(bounds), src, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.NRGBA, x, y int, text string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}
