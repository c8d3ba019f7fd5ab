package label

import (
	"errors"
	"fmt"
	"math"
)

// BBox is a closed axis-aligned rectangle [MinX,MaxX] x [MinY,MaxY].
//
// A point on the border is contained. A box with MinX > MaxX or
// MinY > MaxY is degenerate: it contains nothing.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBBox creates a bounding box with the given bounds.
func NewBBox(minX, minY, maxX, maxY float64) BBox {
	return BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// EmptyBBox returns the identity element for Extend: a box that contains
// nothing and adopts the first point or box merged into it.
func EmptyBBox() BBox {
	return BBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// Degenerate reports whether the box contains no point at all.
func (b BBox) Degenerate() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Contains reports whether the position of l lies within the closed box.
func (b BBox) Contains(l Label) bool {
	return b.ContainsPoint(l.X, l.Y)
}

// ContainsPoint reports whether (x, y) lies within the closed box.
func (b BBox) ContainsPoint(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Extend grows the box to also contain (x, y).
func (b *BBox) Extend(x, y float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
}

// ExtendBBox grows the box to also span other.
func (b *BBox) ExtendBBox(other BBox) {
	b.MinX = math.Min(b.MinX, other.MinX)
	b.MinY = math.Min(b.MinY, other.MinY)
	b.MaxX = math.Max(b.MaxX, other.MaxX)
	b.MaxY = math.Max(b.MaxY, other.MaxY)
}

// String returns a human readable representation.
func (b BBox) String() string {
	return fmt.Sprintf("[x: %g - %g, y: %g - %g]", b.MinX, b.MaxX, b.MinY, b.MaxY)
}

var (
	// ErrLatitudeRange is returned when a y value leaves [-90, 90].
	ErrLatitudeRange = errors.New("y values must be in the range [-90, 90]")

	// ErrLongitudeRange is returned when an x value leaves [-180, 180].
	ErrLongitudeRange = errors.New("x values must be in the range [-180, 180]")
)

// geographic coordinate limits, padded against float imprecision
const (
	maxLat = 90.1
	maxLon = 180.1
)

// ValidateGeo checks that the box holds plausible geographic coordinates:
// latitude (y) within [-90, 90] and longitude (x) within [-180, 180].
// MinX > MaxX is allowed here because geographic queries may wrap the
// antimeridian.
func (b BBox) ValidateGeo() error {
	if b.MinY < -maxLat || b.MaxY > maxLat {
		return ErrLatitudeRange
	}
	if b.MinX < -maxLon || b.MinX > maxLon || b.MaxX < -maxLon || b.MaxX > maxLon {
		return ErrLongitudeRange
	}
	return nil
}
