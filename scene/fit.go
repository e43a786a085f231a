package scene

import (
	"fmt"
	"math"
)

// DefaultPhotoRatio is the share of the canvas a freshly placed photo is fitted into.
const DefaultPhotoRatio = 0.7

type (
	// Point is a position in canvas pixels.
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Size is a width/height pair in pixels.
	Size struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// Rect is an axis-aligned rectangle given by its top-left corner and size.
	Rect struct {
		Min  Point `json:"min"`
		Size Size  `json:"size"`
	}

	// Fitting is the result of a containment fit: the uniform scale to apply to the
	// source and the point its center must be placed at.
	Fitting struct {
		Scale  float64
		Center Point
	}
)

// Center returns the center of r.
func (r Rect) Center() Point {
	return Point{X: r.Min.X + r.Size.Width/2, Y: r.Min.Y + r.Size.Height/2}
}

// Max returns the bottom-right corner of r.
func (r Rect) Max() Point {
	return Point{X: r.Min.X + r.Size.Width, Y: r.Min.Y + r.Size.Height}
}

// Scaled returns s with both dimensions multiplied by f.
func (s Size) Scaled(f float64) Size {
	return Size{Width: s.Width * f, Height: s.Height * f}
}

func (s Size) valid() bool {
	return validLength(s.Width) && validLength(s.Height)
}

func validLength(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Fit computes the containment ("letterbox") fit of src inside target:
// the largest uniform scale that keeps src entirely within target, and the
// target's center as placement point.
func Fit(src Size, target Rect) (Fitting, error) {
	if !src.valid() {
		return Fitting{}, fmt.Errorf("%w: source %gx%g", ErrInvalidDimension, src.Width, src.Height)
	}
	if !target.Size.valid() {
		return Fitting{}, fmt.Errorf("%w: target %gx%g", ErrInvalidDimension, target.Size.Width, target.Size.Height)
	}

	scale := math.Min(target.Size.Width/src.Width, target.Size.Height/src.Height)
	return Fitting{Scale: scale, Center: target.Center()}, nil
}

// InsetRect returns a rectangle with the same center as r whose sides are ratio
// times r's sides.
func InsetRect(r Rect, ratio float64) Rect {
	size := r.Size.Scaled(ratio)
	c := r.Center()
	return Rect{
		Min:  Point{X: c.X - size.Width/2, Y: c.Y - size.Height/2},
		Size: size,
	}
}
