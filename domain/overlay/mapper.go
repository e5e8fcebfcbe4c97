// Package overlay maps crop rectangles into the normalized coordinate frame
// a preview renders in, under arbitrary sensor rotation.
package overlay

import (
	"fmt"
	"image"
	"math"
)

// Epsilon bounds both the full-frame test and the debounce comparison.
const Epsilon = 1e-3

// RectF is a rectangle normalized to [0,1] x [0,1] of the preview viewport.
type RectF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r RectF) String() string {
	return fmt.Sprintf("(%.3f,%.3f %.3fx%.3f)", r.X, r.Y, r.W, r.H)
}

// nearlyEqual reports whether every edge of r is within Epsilon of o.
func (r RectF) nearlyEqual(o RectF) bool {
	return math.Abs(r.X-o.X) <= Epsilon &&
		math.Abs(r.Y-o.Y) <= Epsilon &&
		math.Abs(r.X+r.W-(o.X+o.W)) <= Epsilon &&
		math.Abs(r.Y+r.H-(o.Y+o.H)) <= Epsilon
}

// Mapper translates crop rectangles into preview coordinates. It remembers
// the last emitted rectangle to debounce sub-pixel overlay flicker.
// Not concurrency-safe; call from a single goroutine.
type Mapper struct {
	last        RectF
	lastVisible bool
	hasLast     bool
}

// Reset clears the debounce memory, e.g. on stream restart.
func (m *Mapper) Reset() {
	m.last = RectF{}
	m.lastVisible = false
	m.hasLast = false
}

// Map converts a crop rectangle (pixels of the original frame) into the
// coordinate frame implied by rotationDegrees.
//
// visible is false when the mapped rectangle covers the whole frame within
// Epsilon: there is no region worth overlaying. changed is false when the
// outcome is within Epsilon of the previously returned one on all four
// edges; consumers can skip the redraw.
func (m *Mapper) Map(crop image.Rectangle, original image.Point, rotationDegrees float64) (rect RectF, visible, changed bool) {
	l, t, r, b := normalizeCrop(crop, original)

	deg := math.Mod(rotationDegrees, 360)
	if deg < 0 {
		deg += 360
	}
	switch deg {
	case 0:
		// identity
	case 90:
		// (x,y) -> (y, 1-x)
		l, t, r, b = t, 1-r, b, 1-l
	case 180:
		l, t, r, b = 1-r, 1-b, 1-l, 1-t
	case 270:
		l, t, r, b = 1-b, l, 1-t, r
	default:
		l, t, r, b = rotateBounds(l, t, r, b, deg*math.Pi/180)
	}

	l, r = orderedClamp(l, r)
	t, b = orderedClamp(t, b)

	if r-l >= 1-Epsilon && b-t >= 1-Epsilon {
		changed = m.lastVisible || !m.hasLast
		m.lastVisible = false
		m.hasLast = true
		return RectF{}, false, changed
	}
	rect = RectF{X: l, Y: t, W: r - l, H: b - t}
	if m.hasLast && m.lastVisible && rect.nearlyEqual(m.last) {
		return rect, true, false
	}
	m.last = rect
	m.lastVisible = true
	m.hasLast = true
	return rect, true, true
}

// normalizeCrop scales crop edges by the original frame size, clamped to [0,1].
func normalizeCrop(crop image.Rectangle, original image.Point) (l, t, r, b float64) {
	w, h := float64(original.X), float64(original.Y)
	if w <= 0 || h <= 0 {
		return 0, 0, 1, 1
	}
	l = clamp01(float64(crop.Min.X) / w)
	t = clamp01(float64(crop.Min.Y) / h)
	r = clamp01(float64(crop.Max.X) / w)
	b = clamp01(float64(crop.Max.Y) / h)
	return l, t, r, b
}

// rotateBounds rotates the rectangle's four corners about (0.5, 0.5) by rad
// and returns the axis-aligned bounding box of the result.
func rotateBounds(l, t, r, b, rad float64) (nl, nt, nr, nb float64) {
	sin, cos := math.Sincos(rad)
	nl, nt = math.Inf(1), math.Inf(1)
	nr, nb = math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{{l, t}, {r, t}, {r, b}, {l, b}} {
		dx, dy := c[0]-0.5, c[1]-0.5
		x := 0.5 + dx*cos - dy*sin
		y := 0.5 + dx*sin + dy*cos
		nl = math.Min(nl, x)
		nt = math.Min(nt, y)
		nr = math.Max(nr, x)
		nb = math.Max(nb, y)
	}
	return nl, nt, nr, nb
}

// orderedClamp clamps both edges to [0,1] and swaps them if clamping
// inverted their ordering.
func orderedClamp(lo, hi float64) (float64, float64) {
	lo, hi = clamp01(lo), clamp01(hi)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
