package model

import "math"

// Point represents a 2D point in relative page coordinates
type Point struct {
	X, Y float64
}

// Distance calculates the Euclidean distance to another point
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// BBox represents an axis-aligned bounding box given by its top-left (Min)
// and bottom-right (Max) corners. Coordinates are relative to the page, so a
// box covering the whole page is ((0, 0), (1, 1)).
type BBox struct {
	Min Point
	Max Point
}

// NewBBox creates a bounding box from its corner coordinates
func NewBBox(xmin, ymin, xmax, ymax float64) BBox {
	return BBox{Min: Point{xmin, ymin}, Max: Point{xmax, ymax}}
}

// NewBBoxFromPoints creates the smallest bounding box containing two points
func NewBBoxFromPoints(p1, p2 Point) BBox {
	return BBox{
		Min: Point{math.Min(p1.X, p2.X), math.Min(p1.Y, p2.Y)},
		Max: Point{math.Max(p1.X, p2.X), math.Max(p1.Y, p2.Y)},
	}
}

// EnclosingBBox returns the smallest box containing every given box.
// It returns the zero box when called without arguments.
func EnclosingBBox(boxes ...BBox) BBox {
	if len(boxes) == 0 {
		return BBox{}
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out
}

// PolygonBBox returns the axis-aligned box enclosing a polygon
func PolygonBBox(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	out := BBox{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		out.Min.X = math.Min(out.Min.X, p.X)
		out.Min.Y = math.Min(out.Min.Y, p.Y)
		out.Max.X = math.Max(out.Max.X, p.X)
		out.Max.Y = math.Max(out.Max.Y, p.Y)
	}
	return out
}

// Width returns the horizontal extent of the box
func (b BBox) Width() float64 {
	return b.Max.X - b.Min.X
}

// Height returns the vertical extent of the box
func (b BBox) Height() float64 {
	return b.Max.Y - b.Min.Y
}

// Center returns the center point
func (b BBox) Center() Point {
	return Point{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
	}
}

// ContainsPoint checks if a point is inside the bounding box
func (b BBox) ContainsPoint(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Contains checks if another box lies entirely inside this one
func (b BBox) Contains(other BBox) bool {
	return b.ContainsPoint(other.Min) && b.ContainsPoint(other.Max)
}

// Intersects checks if two bounding boxes intersect
func (b BBox) Intersects(other BBox) bool {
	return !(b.Max.X < other.Min.X ||
		b.Min.X > other.Max.X ||
		b.Max.Y < other.Min.Y ||
		b.Min.Y > other.Max.Y)
}

// Intersection returns the intersection of two bounding boxes
func (b BBox) Intersection(other BBox) BBox {
	if !b.Intersects(other) {
		return BBox{}
	}
	return BBox{
		Min: Point{math.Max(b.Min.X, other.Min.X), math.Max(b.Min.Y, other.Min.Y)},
		Max: Point{math.Min(b.Max.X, other.Max.X), math.Min(b.Max.Y, other.Max.Y)},
	}
}

// Union returns the union of two bounding boxes
func (b BBox) Union(other BBox) BBox {
	return BBox{
		Min: Point{math.Min(b.Min.X, other.Min.X), math.Min(b.Min.Y, other.Min.Y)},
		Max: Point{math.Max(b.Max.X, other.Max.X), math.Max(b.Max.Y, other.Max.Y)},
	}
}

// Area returns the area of the bounding box
func (b BBox) Area() float64 {
	return b.Width() * b.Height()
}

// OverlapRatio calculates the overlap ratio with another box
// Returns value between 0 and 1
func (b BBox) OverlapRatio(other BBox) float64 {
	if !b.Intersects(other) {
		return 0
	}

	minArea := math.Min(b.Area(), other.Area())
	if minArea == 0 {
		return 0
	}

	return b.Intersection(other).Area() / minArea
}

// Clip restricts the box to the unit square
func (b BBox) Clip() BBox {
	return BBox{
		Min: Point{clamp01(b.Min.X), clamp01(b.Min.Y)},
		Max: Point{clamp01(b.Max.X), clamp01(b.Max.Y)},
	}
}

// Scale converts a relative box to absolute coordinates for a page of the
// given pixel size.
func (b BBox) Scale(width, height float64) BBox {
	return BBox{
		Min: Point{b.Min.X * width, b.Min.Y * height},
		Max: Point{b.Max.X * width, b.Max.Y * height},
	}
}

// IsEmpty returns true if the bounding box has zero area
func (b BBox) IsEmpty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// export returns the geometry as ((xmin, ymin), (xmax, ymax))
func (b BBox) export() [][2]float64 {
	return [][2]float64{{b.Min.X, b.Min.Y}, {b.Max.X, b.Max.Y}}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
