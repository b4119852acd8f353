package detection

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/omr-engine/internal/geometry"
)

const (
	// minCirclePoints is the smallest edge set worth fitting.
	minCirclePoints = 8

	// minAcceptableDistortion and relativeDistortionLimit bound the mean
	// deviation of edge points from the fitted circle.
	minAcceptableDistortion = 0.5
	relativeDistortionLimit = 0.03
)

// Circle is a fitted circle in image coordinates.
type Circle struct {
	Center geometry.Point `json:"center"`
	Radius float64        `json:"radius"`
}

// FitCircle fits a circle to points by linear least squares (Kasa method).
//
// Each point contributes the row [x y 1] and target -(x²+y²) to the system
// A·[D E F] = b, solved with a QR decomposition. The circle is then
// x²+y²+Dx+Ey+F = 0. Fails when the points are collinear or too few.
func FitCircle(points []image.Point) (Circle, bool) {
	n := len(points)
	if n < 3 {
		return Circle{}, false
	}

	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range points {
		x, y := float64(p.X), float64(p.Y)
		a.Set(i, 0, x)
		a.Set(i, 1, y)
		a.Set(i, 2, 1)
		b.SetVec(i, -(x*x + y*y))
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return Circle{}, false
	}

	cx := -params.AtVec(0) / 2
	cy := -params.AtVec(1) / 2
	r2 := cx*cx + cy*cy - params.AtVec(2)
	if r2 <= 0 || math.IsNaN(r2) {
		return Circle{}, false
	}

	return Circle{Center: geometry.Pt(cx, cy), Radius: math.Sqrt(r2)}, true
}

// IsCircle checks whether a blob's edge points describe a circle.
//
// The mean distance of the edge points from the fitted circle must stay within
// max(0.5, 0.03 × mean bounding box side). Edge points sit on pixel centres,
// so the returned radius is extended by half a pixel to the outer boundary of
// the shape.
func IsCircle(edge []image.Point) (Circle, bool) {
	if len(edge) < minCirclePoints {
		return Circle{}, false
	}

	c, ok := FitCircle(edge)
	if !ok {
		return Circle{}, false
	}

	minX, minY := edge[0].X, edge[0].Y
	maxX, maxY := minX, minY
	var dev float64
	for _, p := range edge {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		d := c.Center.Distance(geometry.Pt(float64(p.X), float64(p.Y)))
		dev += math.Abs(d - c.Radius)
	}
	dev /= float64(len(edge))

	size := float64((maxX-minX)+(maxY-minY)) / 2
	if dev > max(minAcceptableDistortion, relativeDistortionLimit*size) {
		return Circle{}, false
	}

	c.Radius += 0.5
	return c, true
}
