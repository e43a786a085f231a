// Package controller turns user gestures into scene mutations for one editing
// session.
//
// Every mutation runs under a single dispatcher lock, so handlers never overlap.
// Frame and photo loads fetch and decode outside the lock and are applied only if
// no newer load for the same layer was requested in the meantime.
package controller

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/export"
	"github.com/PhuocnhQn/photo-frame-editor/scene"

	"github.com/sirupsen/logrus"
)

// FrameSource is the part of the frame catalog the controller needs.
type FrameSource interface {
	OpenFrame(ctx context.Context, name string) (*core.Asset, error)
	DeleteFrame(ctx context.Context, name string) error
}

// Readout mirrors the photo transform into display values. It is only ever
// written from the model.
type Readout struct {
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

// State is what a client needs to redraw its controls.
type State struct {
	Scene     scene.Snapshot `json:"scene"`
	Frame     string         `json:"frame,omitempty"`
	Readout   *Readout       `json:"readout,omitempty"`
	FollowFit bool           `json:"followFit"`
	Prompt    string         `json:"prompt,omitempty"`
}

// Options configures a Controller.
type Options struct {
	Frames   FrameSource
	Exporter *export.Exporter
	// OnChange is called with the new state after every successful mutation,
	// while the dispatcher lock is held. It must not call back into the
	// controller.
	OnChange func(State)
	// MaxImagePixels bounds decoded frames and photos. Zero means
	// scene.DefaultMaxPixels.
	MaxImagePixels int64
}

// decodeImage is replaced in tests to interleave concurrent loads.
var decodeImage = scene.DecodeLimited

// Controller owns one scene and serializes every change to it.
type Controller struct {
	mu        sync.Mutex
	sc        *scene.Scene
	frames    FrameSource
	exporter  *export.Exporter
	loader    *scene.Loader
	onChange  func(State)
	maxPixels int64

	frameName string
	followFit bool
	pristine  bool
	readout   *Readout
	prompt    string
}

// New returns a controller that owns sc.
func New(sc *scene.Scene, opts Options) *Controller {
	exp := opts.Exporter
	if exp == nil {
		exp = export.New(export.Options{})
	}
	return &Controller{
		sc:        sc,
		frames:    opts.Frames,
		exporter:  exp,
		loader:    scene.NewLoader(),
		onChange:  opts.OnChange,
		maxPixels: opts.MaxImagePixels,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	st := State{
		Scene:     c.sc.Snapshot(),
		Frame:     c.frameName,
		FollowFit: c.followFit,
		Prompt:    c.prompt,
	}
	if c.readout != nil {
		r := *c.readout
		st.Readout = &r
	}
	return st
}

// update runs fn under the dispatcher lock, then re-reads the photo transform
// into the readout and records the user prompt of a failure.
func (c *Controller) update(op string, fn func() error) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := fn()
	c.syncReadout()
	if err != nil {
		// A discarded stale load says nothing about the current scene.
		if !errors.Is(err, scene.ErrSuperseded) {
			c.prompt = Prompt(err)
		}
		logrus.WithFields(logrus.Fields{"op": op, "prompt": Prompt(err)}).WithError(err).Debug("Gesture rejected")
		return c.stateLocked(), err
	}
	c.prompt = ""
	st := c.stateLocked()
	if c.onChange != nil {
		c.onChange(st)
	}
	return st, nil
}

func (c *Controller) syncReadout() {
	photo := c.sc.Photo()
	if photo == nil {
		c.readout = nil
		return
	}
	c.readout = &Readout{
		Scale:    photo.Transform.Scale,
		Rotation: photo.Transform.DisplayRotation(),
	}
}

// manual applies a user transform to the photo. Any manual transform ends
// follow-fit mode.
func (c *Controller) manual(op string, patch scene.TransformPatch) (State, error) {
	return c.update(op, func() error {
		if err := c.sc.UpdatePhotoTransform(patch); err != nil {
			return err
		}
		c.followFit = false
		c.pristine = false
		return nil
	})
}

// Drag moves the photo center to pos. Positions are not clamped to the canvas.
func (c *Controller) Drag(pos scene.Point) (State, error) {
	return c.manual("drag", scene.TransformPatch{Position: &pos})
}

// SetScale sets the photo's uniform scale.
func (c *Controller) SetScale(v float64) (State, error) {
	return c.manual("scale", scene.TransformPatch{Scale: &v})
}

// SetRotation sets the photo's rotation in degrees.
func (c *Controller) SetRotation(v float64) (State, error) {
	return c.manual("rotate", scene.TransformPatch{Rotation: &v})
}

// Center moves the photo to the canvas center.
func (c *Controller) Center() (State, error) {
	center := c.sc.CanvasCenter()
	return c.manual("center", scene.TransformPatch{Position: &center})
}

// FlipHorizontal toggles the photo's horizontal flip.
func (c *Controller) FlipHorizontal() (State, error) {
	return c.flip("flipH", (*scene.Transform).ToggleFlipH)
}

// FlipVertical toggles the photo's vertical flip.
func (c *Controller) FlipVertical() (State, error) {
	return c.flip("flipV", (*scene.Transform).ToggleFlipV)
}

func (c *Controller) flip(op string, toggle func(*scene.Transform)) (State, error) {
	return c.update(op, func() error {
		photo := c.sc.Photo()
		if photo == nil {
			return scene.ErrNoPhotoLayer
		}
		toggle(&photo.Transform)
		c.pristine = false
		return nil
	})
}

// Fit fits the photo into the frame (or the canvas) and keeps it fitted when the
// frame changes, until the next manual transform.
func (c *Controller) Fit() (State, error) {
	return c.update("fit", func() error {
		if err := c.sc.FitPhotoToFrame(); err != nil {
			return err
		}
		c.followFit = true
		return nil
	})
}

// Clear removes the photo layer. A photo load still in flight is discarded.
func (c *Controller) Clear() (State, error) {
	return c.update("clear", func() error {
		c.loader.Invalidate(scene.LayerPhoto)
		c.sc.ClearPhoto()
		c.followFit = false
		c.pristine = false
		return nil
	})
}

// ClearFrame removes the frame layer. A frame load still in flight is discarded.
func (c *Controller) ClearFrame() (State, error) {
	return c.update("clearFrame", func() error {
		c.clearFrameLocked()
		return nil
	})
}

func (c *Controller) clearFrameLocked() {
	c.loader.Invalidate(scene.LayerFrame)
	c.sc.ClearFrame()
	c.frameName = ""
	if c.followFit && c.sc.Photo() != nil {
		// Falls back to the canvas.
		if err := c.sc.FitPhotoToFrame(); err != nil {
			logrus.WithError(err).Warn("Failed to refit photo after clearing frame")
		}
	}
}

// SelectFrame loads the named frame from the catalog and makes it the frame
// layer. If another frame was requested while this one was loading, the result
// is discarded and ErrSuperseded is returned.
func (c *Controller) SelectFrame(ctx context.Context, name string) (State, error) {
	if c.frames == nil {
		return c.State(), errors.New("no frame catalog configured")
	}
	ticket := c.loader.Begin(scene.LayerFrame)

	src, err := c.fetchFrame(ctx, name)

	return c.update("selectFrame", func() error {
		if !c.loader.Current(ticket) {
			return fmt.Errorf("frame %s: %w", name, scene.ErrSuperseded)
		}
		if err != nil {
			return err
		}
		if err := c.sc.SetFrame(src); err != nil {
			return err
		}
		c.frameName = name
		if c.sc.Photo() != nil && (c.followFit || c.pristine) {
			return c.sc.FitPhotoToFrame()
		}
		return nil
	})
}

func (c *Controller) fetchFrame(ctx context.Context, name string) (*scene.Source, error) {
	asset, err := c.frames.OpenFrame(ctx, name)
	if err != nil {
		return nil, err
	}
	return decodeImage(name, asset.Data, c.maxPixels)
}

// PlacePhoto decodes data and makes it the photo layer, centered and fitted to
// part of the canvas. A later PlacePhoto call wins over an earlier one still
// decoding.
func (c *Controller) PlacePhoto(ctx context.Context, name string, data []byte) (State, error) {
	ticket := c.loader.Begin(scene.LayerPhoto)

	src, err := decodeImage(name, data, c.maxPixels)
	if err == nil {
		err = ctx.Err()
	}

	return c.update("placePhoto", func() error {
		if !c.loader.Current(ticket) {
			return fmt.Errorf("photo %s: %w", name, scene.ErrSuperseded)
		}
		if err != nil {
			return err
		}
		if err := c.sc.SetPhoto(src); err != nil {
			return err
		}
		c.followFit = false
		c.pristine = true
		return nil
	})
}

// DeleteFrame removes a frame from the catalog. When it is the current frame the
// frame layer is cleared as well. A missing frame leaves the scene untouched.
func (c *Controller) DeleteFrame(ctx context.Context, name string) (State, error) {
	if c.frames == nil {
		return c.State(), errors.New("no frame catalog configured")
	}
	err := c.frames.DeleteFrame(ctx, name)

	return c.update("deleteFrame", func() error {
		if err != nil {
			return err
		}
		c.forgetLocked(name)
		return nil
	})
}

// ForgetFrame clears the frame layer if it shows name, which has been removed
// from the catalog elsewhere. It reports whether the scene changed.
func (c *Controller) ForgetFrame(name string) bool {
	c.mu.Lock()
	shown := name != "" && c.frameName == name
	c.mu.Unlock()
	if !shown {
		return false
	}

	changed := false
	c.update("forgetFrame", func() error {
		changed = c.forgetLocked(name)
		return nil
	})
	return changed
}

func (c *Controller) forgetLocked(name string) bool {
	if name == "" || c.frameName != name {
		return false
	}
	c.clearFrameLocked()
	return true
}

// Export writes the composite without selection decoration.
func (c *Controller) Export(ctx context.Context, w io.Writer, format export.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exporter.Export(ctx, c.sc, w, format)
}

// Preview writes the canvas as displayed, selection decoration included, as PNG.
func (c *Controller) Preview(w io.Writer) error {
	img := func() image.Image {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.exporter.Renderer().Render(c.sc, export.RenderOptions{Decorate: true})
	}()

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

// Prompt returns the user-visible message for a gesture failure.
func Prompt(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, scene.ErrNoPhotoLayer):
		return "no photo selected"
	case errors.Is(err, scene.ErrNoFrameLayer):
		return "no frame selected"
	case errors.Is(err, scene.ErrInvalidDimension), errors.Is(err, scene.ErrDecode):
		return "cannot process image"
	case errors.Is(err, scene.ErrInvalidScale):
		return "scale must be greater than zero"
	case errors.Is(err, scene.ErrSuperseded):
		return "a newer selection replaced this one"
	case errors.Is(err, core.ErrNotFound):
		return "image not found"
	case errors.Is(err, ErrUnknownGesture):
		return "unknown action"
	}
	return "something went wrong"
}
