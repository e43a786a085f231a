package controller

import (
	"errors"
	"fmt"

	"github.com/PhuocnhQn/photo-frame-editor/scene"
)

// ErrUnknownGesture is returned by Apply for an unrecognized gesture type.
var ErrUnknownGesture = errors.New("unknown gesture")

// GestureType names a photo manipulation.
type GestureType string

const (
	GestureDrag   GestureType = "drag"
	GestureScale  GestureType = "scale"
	GestureRotate GestureType = "rotate"
	GestureFlipH  GestureType = "flipH"
	GestureFlipV  GestureType = "flipV"
	GestureCenter GestureType = "center"
	GestureFit    GestureType = "fit"
	GestureClear  GestureType = "clear"
)

// Gesture is a single user action on the photo. X and Y are used by drag, Value
// by scale and rotate.
type Gesture struct {
	Type  GestureType `json:"type"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Value float64     `json:"value"`
}

// Apply dispatches g to the matching controller method.
func (c *Controller) Apply(g Gesture) (State, error) {
	switch g.Type {
	case GestureDrag:
		return c.Drag(scene.Point{X: g.X, Y: g.Y})
	case GestureScale:
		return c.SetScale(g.Value)
	case GestureRotate:
		return c.SetRotation(g.Value)
	case GestureFlipH:
		return c.FlipHorizontal()
	case GestureFlipV:
		return c.FlipVertical()
	case GestureCenter:
		return c.Center()
	case GestureFit:
		return c.Fit()
	case GestureClear:
		return c.Clear()
	}
	return c.update(string(g.Type), func() error {
		return fmt.Errorf("%w: %q", ErrUnknownGesture, g.Type)
	})
}
