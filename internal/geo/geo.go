// Package geo holds the planar geometry primitives shared by the task store,
// the spatial index and the scorer. Coordinates are metres, headings radians.
package geo

import "math"

type Point struct {
	X float64
	Y float64
}

func (p Point) DistanceTo(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

type Pose struct {
	Position Point
	Heading  float64
}

// BoundingBox is axis-aligned.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func BoxFromPoint(p Point, padding float64) BoundingBox {
	return BoundingBox{
		MinX: p.X - padding,
		MinY: p.Y - padding,
		MaxX: p.X + padding,
		MaxY: p.Y + padding,
	}
}

func BoxFromPoints(p, q Point, padding float64) BoundingBox {
	return BoundingBox{
		MinX: math.Min(p.X, q.X) - padding,
		MinY: math.Min(p.Y, q.Y) - padding,
		MaxX: math.Max(p.X, q.X) + padding,
		MaxY: math.Max(p.Y, q.Y) + padding,
	}
}

func (b BoundingBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b BoundingBox) Intersects(o BoundingBox) bool {
	return !(o.MinX > b.MaxX || o.MaxX < b.MinX || o.MinY > b.MaxY || o.MaxY < b.MinY)
}

func (b BoundingBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

func (b BoundingBox) Width() float64  { return b.MaxX - b.MinX }
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Area is used by the index to pick cheap enlargements.
func (b BoundingBox) Area() float64 { return b.Width() * b.Height() }

// Extend grows b to cover o.
func (b BoundingBox) Extend(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// DistanceToPoint is the minimum distance from p to the box, zero when inside.
func (b BoundingBox) DistanceToPoint(p Point) float64 {
	dx := math.Max(math.Max(b.MinX-p.X, 0), p.X-b.MaxX)
	dy := math.Max(math.Max(b.MinY-p.Y, 0), p.Y-b.MaxY)
	return math.Sqrt(dx*dx + dy*dy)
}
