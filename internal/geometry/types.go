// Package geometry provides the point and quadrilateral types shared by templates,
// scanned images and recognition output.
package geometry

import (
	"encoding/xml"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// Point is a 2D coordinate in pixel space. (0,0) is the top-left of the image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Image truncates the point to integer pixel coordinates.
func (p Point) Image() image.Point {
	return image.Point{X: int(p.X), Y: int(p.Y)}
}

// String formats the point as "x,y", the form used in template and output documents.
func (p Point) String() string {
	return formatCoord(p.X) + "," + formatCoord(p.Y)
}

// ParsePoint parses a point from its "x,y" form. Surrounding whitespace is ignored.
func ParsePoint(s string) (Point, error) {
	comps := strings.Split(strings.TrimSpace(s), ",")
	if len(comps) != 2 {
		return Point{}, fmt.Errorf("invalid point %q: expected \"x,y\"", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(comps[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(comps[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// MarshalXMLAttr encodes the point as an "x,y" attribute.
func (p Point) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: p.String()}, nil
}

// UnmarshalXMLAttr decodes an "x,y" attribute.
func (p *Point) UnmarshalXMLAttr(attr xml.Attr) error {
	parsed, err := ParsePoint(attr.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Quad is a four-corner region. Template fields, template pages and detected
// registration marks are all described this way.
type Quad struct {
	TopLeft     Point `json:"top_left" xml:"topLeft,attr"`
	TopRight    Point `json:"top_right" xml:"topRight,attr"`
	BottomLeft  Point `json:"bottom_left" xml:"bottomLeft,attr"`
	BottomRight Point `json:"bottom_right" xml:"bottomRight,attr"`
}

// RectQuad builds an axis-aligned quad from its top-left corner and size.
func RectQuad(x, y, width, height float64) Quad {
	return Quad{
		TopLeft:     Point{X: x, Y: y},
		TopRight:    Point{X: x + width, Y: y},
		BottomLeft:  Point{X: x, Y: y + height},
		BottomRight: Point{X: x + width, Y: y + height},
	}
}

// Width is the horizontal extent measured along the top edge.
func (q Quad) Width() float64 {
	return q.TopRight.X - q.TopLeft.X
}

// Height is the vertical extent measured along the left edge.
func (q Quad) Height() float64 {
	return q.BottomLeft.Y - q.TopLeft.Y
}

// Rect returns the integer rectangle spanned by the top-left corner, Width and Height.
func (q Quad) Rect() image.Rectangle {
	x, y := int(q.TopLeft.X), int(q.TopLeft.Y)
	return image.Rect(x, y, x+int(q.Width()), y+int(q.Height()))
}

// Corners returns the corners in TL, TR, BR, BL order.
func (q Quad) Corners() []Point {
	return []Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// IsZero reports whether no corner has been set.
func (q Quad) IsZero() bool {
	return q == Quad{}
}
