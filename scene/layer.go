package scene

import (
	"fmt"
	"image"
	"math"
)

// LayerKind identifies one of the two layers a scene can hold.
type LayerKind int

const (
	LayerNone LayerKind = iota
	LayerFrame
	LayerPhoto
)

func (k LayerKind) String() string {
	switch k {
	case LayerFrame:
		return "frame"
	case LayerPhoto:
		return "photo"
	default:
		return "none"
	}
}

// MarshalText encodes the kind by name so snapshots read "frame"/"photo".
func (k LayerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Source is an opaque handle to decoded raster data together with the asset name it
// was loaded from.
type Source struct {
	Name  string
	Image image.Image
}

// NewSource wraps img. It fails with ErrInvalidDimension when the image is empty.
func NewSource(name string, img image.Image) (*Source, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidDimension)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image %dx%d", ErrInvalidDimension, b.Dx(), b.Dy())
	}
	return &Source{Name: name, Image: img}, nil
}

// Size returns the natural size of the source image.
func (s *Source) Size() Size {
	b := s.Image.Bounds()
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Transform places a layer on the canvas. Position is the layer's center.
type Transform struct {
	Position Point   `json:"position"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	FlipH    bool    `json:"flipH"`
	FlipV    bool    `json:"flipV"`
}

// ToggleFlipH inverts the horizontal flip flag.
func (t *Transform) ToggleFlipH() {
	t.FlipH = !t.FlipH
}

// ToggleFlipV inverts the vertical flip flag.
func (t *Transform) ToggleFlipV() {
	t.FlipV = !t.FlipV
}

// DisplayRotation returns the rotation normalized to [0, 360).
func (t Transform) DisplayRotation() float64 {
	r := math.Mod(t.Rotation, 360)
	if r < 0 {
		r += 360
	}
	return r
}

// TransformPatch is a partial transform update; nil fields are left unchanged.
type TransformPatch struct {
	Position *Point
	Scale    *float64
	Rotation *float64
	FlipH    *bool
	FlipV    *bool
}

func (p TransformPatch) validate() error {
	if p.Scale != nil && !validLength(*p.Scale) {
		return fmt.Errorf("%w: %g", ErrInvalidScale, *p.Scale)
	}
	if p.Rotation != nil && (math.IsNaN(*p.Rotation) || math.IsInf(*p.Rotation, 0)) {
		return fmt.Errorf("invalid rotation %g", *p.Rotation)
	}
	if p.Position != nil && (math.IsNaN(p.Position.X) || math.IsNaN(p.Position.Y)) {
		return fmt.Errorf("invalid position (%g, %g)", p.Position.X, p.Position.Y)
	}
	return nil
}

func (p TransformPatch) apply(t *Transform) {
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.Scale != nil {
		t.Scale = *p.Scale
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
	if p.FlipH != nil {
		t.FlipH = *p.FlipH
	}
	if p.FlipV != nil {
		t.FlipV = *p.FlipV
	}
}

// Empty reports whether the patch changes nothing.
func (p TransformPatch) Empty() bool {
	return p.Position == nil && p.Scale == nil && p.Rotation == nil && p.FlipH == nil && p.FlipV == nil
}

// Layer is a transformable visual element of a scene.
type Layer struct {
	Kind        LayerKind
	Source      *Source
	Transform   Transform
	Z           int
	Interactive bool
}

// ScaledSize returns the layer's size after applying its scale.
func (l *Layer) ScaledSize() Size {
	return l.Source.Size().Scaled(l.Transform.Scale)
}

// Bounds returns the axis-aligned bounding box of the scaled, unrotated layer.
func (l *Layer) Bounds() Rect {
	size := l.ScaledSize()
	return Rect{
		Min:  Point{X: l.Transform.Position.X - size.Width/2, Y: l.Transform.Position.Y - size.Height/2},
		Size: size,
	}
}

// Corners returns the four corners of the layer on the canvas, after scale,
// flips and rotation, in the order top-left, top-right, bottom-right, bottom-left of
// the source image.
func (l *Layer) Corners() [4]Point {
	size := l.ScaledSize()
	hw, hh := size.Width/2, size.Height/2
	local := [4]Point{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}

	sin, cos := math.Sincos(l.Transform.Rotation * math.Pi / 180)
	var out [4]Point
	for i, p := range local {
		if l.Transform.FlipH {
			p.X = -p.X
		}
		if l.Transform.FlipV {
			p.Y = -p.Y
		}
		out[i] = Point{
			X: l.Transform.Position.X + p.X*cos - p.Y*sin,
			Y: l.Transform.Position.Y + p.X*sin + p.Y*cos,
		}
	}
	return out
}

func (l *Layer) clone() *Layer {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
