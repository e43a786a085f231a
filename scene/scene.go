package scene

import (
	"fmt"
	"sort"
)

// Stacking decides which layer renders on top when both are present.
type Stacking int

const (
	// FrameOnTop renders the decorative frame above the photo.
	FrameOnTop Stacking = iota
	// PhotoOnTop renders the photo as an overlay above a frame background.
	PhotoOnTop
)

func (s Stacking) top() LayerKind {
	if s == PhotoOnTop {
		return LayerPhoto
	}
	return LayerFrame
}

// ParseStacking maps "frame" / "photo" to a Stacking.
func ParseStacking(v string) (Stacking, error) {
	switch v {
	case "", "frame":
		return FrameOnTop, nil
	case "photo":
		return PhotoOnTop, nil
	}
	return FrameOnTop, fmt.Errorf("unknown stacking %q", v)
}

// Scene holds at most one frame and one photo layer over a fixed-size canvas.
//
// Scene is not safe for concurrent use; the controller serializes access.
type Scene struct {
	canvas   Size
	stacking Stacking
	layers   []*Layer
	selected LayerKind
}

// MaxCanvasSide is the largest canvas width or height a scene accepts.
const MaxCanvasSide = 16384

// New returns an empty scene for a canvas of the given size.
func New(width, height float64, stacking Stacking) (*Scene, error) {
	canvas := Size{Width: width, Height: height}
	if !canvas.valid() {
		return nil, fmt.Errorf("%w: canvas %gx%g", ErrInvalidDimension, width, height)
	}
	if width > MaxCanvasSide || height > MaxCanvasSide {
		return nil, fmt.Errorf("%w: canvas %gx%g exceeds %d", ErrInvalidDimension, width, height, MaxCanvasSide)
	}
	return &Scene{canvas: canvas, stacking: stacking}, nil
}

// Canvas returns the canvas bounds.
func (s *Scene) Canvas() Rect {
	return Rect{Size: s.canvas}
}

// CanvasCenter returns the center of the canvas.
func (s *Scene) CanvasCenter() Point {
	return s.Canvas().Center()
}

// Stacking returns the configured stacking order.
func (s *Scene) Stacking() Stacking {
	return s.stacking
}

// Frame returns the frame layer, or nil.
func (s *Scene) Frame() *Layer {
	return s.layer(LayerFrame)
}

// Photo returns the photo layer, or nil.
func (s *Scene) Photo() *Layer {
	return s.layer(LayerPhoto)
}

func (s *Scene) layer(kind LayerKind) *Layer {
	for _, l := range s.layers {
		if l.Kind == kind {
			return l
		}
	}
	return nil
}

// Layers returns the layers in render order (ascending z).
func (s *Scene) Layers() []*Layer {
	out := make([]*Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// SetFrame replaces the frame layer with src, fitted to the canvas. The photo
// layer's transform is left untouched.
func (s *Scene) SetFrame(src *Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil frame source", ErrInvalidDimension)
	}
	fit, err := Fit(src.Size(), s.Canvas())
	if err != nil {
		return fmt.Errorf("fit frame: %w", err)
	}

	s.remove(LayerFrame)
	s.layers = append(s.layers, &Layer{
		Kind:   LayerFrame,
		Source: src,
		Transform: Transform{
			Position: fit.Center,
			Scale:    fit.Scale,
		},
	})
	s.restack()
	return nil
}

// SetPhoto replaces the photo layer with src, centered on the canvas and fitted to
// DefaultPhotoRatio of it. The new photo becomes the active selection.
func (s *Scene) SetPhoto(src *Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil photo source", ErrInvalidDimension)
	}
	fit, err := Fit(src.Size(), InsetRect(s.Canvas(), DefaultPhotoRatio))
	if err != nil {
		return fmt.Errorf("fit photo: %w", err)
	}

	s.remove(LayerPhoto)
	s.layers = append(s.layers, &Layer{
		Kind:        LayerPhoto,
		Source:      src,
		Interactive: true,
		Transform: Transform{
			Position: s.CanvasCenter(),
			Scale:    fit.Scale,
		},
	})
	s.selected = LayerPhoto
	s.restack()
	return nil
}

// ClearPhoto removes the photo layer. It is a no-op when there is none.
func (s *Scene) ClearPhoto() {
	s.remove(LayerPhoto)
	s.restack()
}

// ClearFrame removes the frame layer. The photo layer is unaffected.
func (s *Scene) ClearFrame() {
	s.remove(LayerFrame)
	s.restack()
}

// UpdatePhotoTransform merges patch into the photo layer's transform.
func (s *Scene) UpdatePhotoTransform(patch TransformPatch) error {
	photo := s.Photo()
	if photo == nil {
		return ErrNoPhotoLayer
	}
	if err := patch.validate(); err != nil {
		return err
	}
	patch.apply(&photo.Transform)
	return nil
}

// FitPhotoToFrame scales and centers the photo inside the frame's scaled bounding
// box, or inside the canvas when there is no frame.
func (s *Scene) FitPhotoToFrame() error {
	photo := s.Photo()
	if photo == nil {
		return ErrNoPhotoLayer
	}

	target := s.Canvas()
	if frame := s.Frame(); frame != nil {
		target = frame.Bounds()
	}
	fit, err := Fit(photo.Source.Size(), target)
	if err != nil {
		return fmt.Errorf("fit photo: %w", err)
	}
	photo.Transform.Position = fit.Center
	photo.Transform.Scale = fit.Scale
	return nil
}

// FrameBounds returns the frame's scaled bounding box.
func (s *Scene) FrameBounds() (Rect, error) {
	frame := s.Frame()
	if frame == nil {
		return Rect{}, ErrNoFrameLayer
	}
	return frame.Bounds(), nil
}

// BringToFront moves kind to the top of the layer sequence, then re-asserts the
// configured stacking. With both layers present the stacking always wins.
func (s *Scene) BringToFront(kind LayerKind) {
	for i, l := range s.layers {
		if l.Kind == kind {
			s.layers = append(append(s.layers[:i:i], s.layers[i+1:]...), l)
			break
		}
	}
	s.restack()
}

// Selection returns the active layer kind, or LayerNone.
func (s *Scene) Selection() LayerKind {
	return s.selected
}

// Select makes kind the active selection. Only existing interactive layers can be
// selected; selecting LayerNone clears the selection.
func (s *Scene) Select(kind LayerKind) error {
	if kind == LayerNone {
		s.selected = LayerNone
		return nil
	}
	l := s.layer(kind)
	if l == nil {
		if kind == LayerFrame {
			return ErrNoFrameLayer
		}
		return ErrNoPhotoLayer
	}
	if !l.Interactive {
		return fmt.Errorf("%s layer is not selectable", kind)
	}
	s.selected = kind
	return nil
}

// Deselect clears the active selection.
func (s *Scene) Deselect() {
	s.selected = LayerNone
}

// Clone returns a copy of the scene that shares image data but not layer state.
func (s *Scene) Clone() *Scene {
	c := &Scene{canvas: s.canvas, stacking: s.stacking, selected: s.selected}
	for _, l := range s.layers {
		c.layers = append(c.layers, l.clone())
	}
	return c
}

func (s *Scene) remove(kind LayerKind) {
	kept := s.layers[:0]
	for _, l := range s.layers {
		if l.Kind != kind {
			kept = append(kept, l)
		}
	}
	for i := len(kept); i < len(s.layers); i++ {
		s.layers[i] = nil
	}
	s.layers = kept
	if s.selected == kind {
		s.selected = LayerNone
	}
}

// restack puts the configured top layer last and renumbers z to match the
// sequence, so the top layer's z is strictly greater whenever both exist.
func (s *Scene) restack() {
	top := s.stacking.top()
	sort.SliceStable(s.layers, func(i, j int) bool {
		return s.layers[i].Kind != top && s.layers[j].Kind == top
	})
	for i, l := range s.layers {
		l.Z = i
	}
}
