package controller

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/export"
	"github.com/PhuocnhQn/photo-frame-editor/scene"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrames struct {
	mu      sync.Mutex
	data    map[string][]byte
	gates   map[string]chan struct{}
	entered chan string
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{data: map[string][]byte{}, gates: map[string]chan struct{}{}}
}

func (f *fakeFrames) OpenFrame(ctx context.Context, name string) (*core.Asset, error) {
	f.mu.Lock()
	data, ok := f.data[name]
	gate := f.gates[name]
	f.mu.Unlock()

	if gate != nil {
		f.entered <- name
		<-gate
	}
	if !ok {
		return nil, fmt.Errorf("frames/%s: %w", name, core.ErrNotFound)
	}
	return &core.Asset{Kind: core.KindFrame, Name: name, Data: data}, nil
}

func (f *fakeFrames) DeleteFrame(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[name]; !ok {
		return fmt.Errorf("frames/%s: %w", name, core.ErrNotFound)
	}
	delete(f.data, name)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{200, 10, 10, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestController(t *testing.T, frames *fakeFrames) *Controller {
	t.Helper()
	sc, err := scene.New(800, 600, scene.FrameOnTop)
	require.NoError(t, err)
	return New(sc, Options{Frames: frames})
}

func photoTransform(t *testing.T, st State) scene.Transform {
	t.Helper()
	for _, l := range st.Scene.Layers {
		if l.Kind == scene.LayerPhoto {
			return l.Transform
		}
	}
	t.Fatal("no photo layer in state")
	return scene.Transform{}
}

func TestSelectFrame_FitsToCanvas(t *testing.T) {
	frames := newFakeFrames()
	frames.data["big.png"] = pngBytes(t, 1000, 750)
	c := newTestController(t, frames)

	st, err := c.SelectFrame(context.Background(), "big.png")
	require.NoError(t, err)

	require.Len(t, st.Scene.Layers, 1)
	frame := st.Scene.Layers[0]
	assert.InDelta(t, 0.8, frame.Transform.Scale, 1e-9)
	assert.InDelta(t, 400, frame.Transform.Position.X, 1e-9)
	assert.InDelta(t, 300, frame.Transform.Position.Y, 1e-9)
	assert.False(t, frame.Interactive)
	assert.Equal(t, "big.png", st.Frame)
	assert.Nil(t, st.Readout)
}

func TestPlacePhoto_DefaultPlacement(t *testing.T) {
	c := newTestController(t, newFakeFrames())

	st, err := c.PlacePhoto(context.Background(), "me.png", pngBytes(t, 400, 300))
	require.NoError(t, err)

	tr := photoTransform(t, st)
	assert.InDelta(t, 1.4, tr.Scale, 1e-9)
	assert.Equal(t, scene.Point{X: 400, Y: 300}, tr.Position)
	assert.Equal(t, scene.LayerPhoto, st.Scene.Selection)
	require.NotNil(t, st.Readout)
	assert.InDelta(t, 1.4, st.Readout.Scale, 1e-9)
}

func TestSelectFrame_RefitsPristinePhoto(t *testing.T) {
	frames := newFakeFrames()
	frames.data["big.png"] = pngBytes(t, 1000, 750)
	c := newTestController(t, frames)
	ctx := context.Background()

	_, err := c.PlacePhoto(ctx, "me.png", pngBytes(t, 200, 100))
	require.NoError(t, err)
	st, err := c.SelectFrame(ctx, "big.png")
	require.NoError(t, err)

	tr := photoTransform(t, st)
	assert.InDelta(t, 4.0, tr.Scale, 1e-9)
	assert.InDelta(t, 400, tr.Position.X, 1e-9)
	assert.InDelta(t, 300, tr.Position.Y, 1e-9)
}

func TestSelectFrame_KeepsManualTransform(t *testing.T) {
	frames := newFakeFrames()
	frames.data["big.png"] = pngBytes(t, 1000, 750)
	c := newTestController(t, frames)
	ctx := context.Background()

	_, err := c.PlacePhoto(ctx, "me.png", pngBytes(t, 200, 100))
	require.NoError(t, err)
	_, err = c.SetScale(2)
	require.NoError(t, err)
	_, err = c.Drag(scene.Point{X: 10, Y: 20})
	require.NoError(t, err)

	st, err := c.SelectFrame(ctx, "big.png")
	require.NoError(t, err)

	tr := photoTransform(t, st)
	assert.Equal(t, 2.0, tr.Scale)
	assert.Equal(t, scene.Point{X: 10, Y: 20}, tr.Position)
}

func TestFit_FollowsFrameChanges(t *testing.T) {
	frames := newFakeFrames()
	frames.data["wide.png"] = pngBytes(t, 1000, 750)
	frames.data["tall.png"] = pngBytes(t, 300, 600)
	c := newTestController(t, frames)
	ctx := context.Background()

	_, err := c.PlacePhoto(ctx, "me.png", pngBytes(t, 200, 100))
	require.NoError(t, err)
	_, err = c.SetRotation(30)
	require.NoError(t, err)
	st, err := c.Fit()
	require.NoError(t, err)
	assert.True(t, st.FollowFit)

	st, err = c.SelectFrame(ctx, "tall.png")
	require.NoError(t, err)
	// tall.png fits at scale 1: 300x600 box centered at (400,300).
	assert.InDelta(t, 1.5, photoTransform(t, st).Scale, 1e-9)

	st, err = c.Drag(scene.Point{X: 1, Y: 1})
	require.NoError(t, err)
	assert.False(t, st.FollowFit)

	st, err = c.SelectFrame(ctx, "wide.png")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, photoTransform(t, st).Scale, 1e-9, "photo must not refit after a manual drag")
}

func TestClearFrame_FollowFitFallsBackToCanvas(t *testing.T) {
	frames := newFakeFrames()
	frames.data["tall.png"] = pngBytes(t, 300, 600)
	c := newTestController(t, frames)
	ctx := context.Background()

	_, err := c.SelectFrame(ctx, "tall.png")
	require.NoError(t, err)
	_, err = c.PlacePhoto(ctx, "me.png", pngBytes(t, 200, 100))
	require.NoError(t, err)
	st, err := c.Fit()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, photoTransform(t, st).Scale, 1e-9)

	st, err = c.ClearFrame()
	require.NoError(t, err)
	assert.Empty(t, st.Frame)
	assert.InDelta(t, 4.0, photoTransform(t, st).Scale, 1e-9)
}

func TestReadoutFollowsModel(t *testing.T) {
	c := newTestController(t, newFakeFrames())
	_, err := c.PlacePhoto(context.Background(), "me.png", pngBytes(t, 40, 30))
	require.NoError(t, err)

	st, err := c.SetRotation(-90)
	require.NoError(t, err)
	assert.Equal(t, 270.0, st.Readout.Rotation)
	assert.Equal(t, -90.0, photoTransform(t, st).Rotation)

	st, err = c.SetScale(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, st.Readout.Scale)

	st, err = c.SetScale(0)
	require.ErrorIs(t, err, scene.ErrInvalidScale)
	assert.Equal(t, 0.5, st.Readout.Scale, "rejected input must not leak into the readout")

	st, err = c.Clear()
	require.NoError(t, err)
	assert.Nil(t, st.Readout)
}

func TestGestures_WithoutPhoto(t *testing.T) {
	c := newTestController(t, newFakeFrames())
	before := c.State().Scene

	for _, g := range []GestureType{GestureDrag, GestureScale, GestureRotate, GestureFlipH, GestureFlipV, GestureCenter, GestureFit} {
		st, err := c.Apply(Gesture{Type: g, Value: 1})
		require.ErrorIs(t, err, scene.ErrNoPhotoLayer, "gesture %s", g)
		assert.Equal(t, "no photo selected", st.Prompt)
		assert.Equal(t, before, st.Scene)
	}

	st, err := c.Apply(Gesture{Type: GestureClear})
	require.NoError(t, err, "clearing an empty photo layer is a no-op")
	assert.Empty(t, st.Prompt)
}

func TestFlipTwiceRestores(t *testing.T) {
	c := newTestController(t, newFakeFrames())
	st, err := c.PlacePhoto(context.Background(), "me.png", pngBytes(t, 40, 30))
	require.NoError(t, err)
	before := photoTransform(t, st)

	for _, g := range []GestureType{GestureFlipH, GestureFlipH, GestureFlipV, GestureFlipV} {
		st, err = c.Apply(Gesture{Type: g})
		require.NoError(t, err)
	}
	assert.Equal(t, before, photoTransform(t, st))
}

func TestApply_UnknownGesture(t *testing.T) {
	c := newTestController(t, newFakeFrames())

	st, err := c.Apply(Gesture{Type: "spin"})
	require.ErrorIs(t, err, ErrUnknownGesture)
	assert.Equal(t, "unknown action", st.Prompt)
}

func TestSelectFrame_StaleLoadDiscarded(t *testing.T) {
	frames := newFakeFrames()
	frames.data["slow.png"] = pngBytes(t, 100, 100)
	frames.data["fast.png"] = pngBytes(t, 400, 300)
	gate := make(chan struct{})
	frames.gates["slow.png"] = gate
	frames.entered = make(chan string, 1)
	c := newTestController(t, frames)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.SelectFrame(ctx, "slow.png")
		done <- err
	}()
	<-frames.entered

	_, err := c.SelectFrame(ctx, "fast.png")
	require.NoError(t, err)
	close(gate)

	require.ErrorIs(t, <-done, scene.ErrSuperseded)
	st := c.State()
	assert.Equal(t, "fast.png", st.Frame)
	require.Len(t, st.Scene.Layers, 1)
	assert.Equal(t, "fast.png", st.Scene.Layers[0].Source)
	assert.Empty(t, st.Prompt)
}

func TestSelectFrame_ClearDuringLoadDiscardsResult(t *testing.T) {
	frames := newFakeFrames()
	frames.data["slow.png"] = pngBytes(t, 100, 100)
	gate := make(chan struct{})
	frames.gates["slow.png"] = gate
	frames.entered = make(chan string, 1)
	c := newTestController(t, frames)

	done := make(chan error, 1)
	go func() {
		_, err := c.SelectFrame(context.Background(), "slow.png")
		done <- err
	}()
	<-frames.entered
	_, err := c.ClearFrame()
	require.NoError(t, err)
	close(gate)

	require.ErrorIs(t, <-done, scene.ErrSuperseded)
	assert.Nil(t, c.sc.Frame())
}

func TestPlacePhoto_StaleLoadDiscarded(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	decodeImage = func(name string, data []byte, maxPixels int64) (*scene.Source, error) {
		if name == "old.png" {
			close(entered)
			<-gate
		}
		return scene.DecodeLimited(name, data, maxPixels)
	}
	t.Cleanup(func() { decodeImage = scene.DecodeLimited })

	c := newTestController(t, newFakeFrames())
	ctx := context.Background()
	oldData, newData := pngBytes(t, 100, 100), pngBytes(t, 400, 300)

	done := make(chan error, 1)
	go func() {
		_, err := c.PlacePhoto(ctx, "old.png", oldData)
		done <- err
	}()
	<-entered

	_, err := c.PlacePhoto(ctx, "new.png", newData)
	require.NoError(t, err)
	close(gate)

	require.ErrorIs(t, <-done, scene.ErrSuperseded)
	st := c.State()
	require.Len(t, st.Scene.Layers, 1)
	assert.Equal(t, "new.png", st.Scene.Layers[0].Source)
	assert.InDelta(t, 1.4, photoTransform(t, st).Scale, 1e-9)
	assert.Empty(t, st.Prompt)
}

func TestPlacePhoto_PixelLimit(t *testing.T) {
	sc, err := scene.New(800, 600, scene.FrameOnTop)
	require.NoError(t, err)
	c := New(sc, Options{MaxImagePixels: 100})

	st, err := c.PlacePhoto(context.Background(), "big.png", pngBytes(t, 20, 20))
	require.ErrorIs(t, err, scene.ErrDecode)
	assert.Equal(t, "cannot process image", st.Prompt)
	assert.Empty(t, st.Scene.Layers)

	_, err = c.PlacePhoto(context.Background(), "small.png", pngBytes(t, 10, 10))
	require.NoError(t, err)
}

func TestSelectFrame_MissingFrame(t *testing.T) {
	c := newTestController(t, newFakeFrames())

	st, err := c.SelectFrame(context.Background(), "gone.png")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "image not found", st.Prompt)
	assert.Empty(t, st.Scene.Layers)
}

func TestPlacePhoto_DecodeFailureKeepsScene(t *testing.T) {
	c := newTestController(t, newFakeFrames())
	ctx := context.Background()
	_, err := c.PlacePhoto(ctx, "ok.png", pngBytes(t, 40, 30))
	require.NoError(t, err)
	before := c.State().Scene

	st, err := c.PlacePhoto(ctx, "broken.png", []byte("not an image"))
	require.ErrorIs(t, err, scene.ErrDecode)
	assert.Equal(t, "cannot process image", st.Prompt)
	assert.Equal(t, before, st.Scene)
}

func TestDeleteFrame_NotFoundLeavesStateUnchanged(t *testing.T) {
	frames := newFakeFrames()
	frames.data["big.png"] = pngBytes(t, 1000, 750)
	c := newTestController(t, frames)
	ctx := context.Background()
	_, err := c.SelectFrame(ctx, "big.png")
	require.NoError(t, err)
	_, err = c.PlacePhoto(ctx, "me.png", pngBytes(t, 40, 30))
	require.NoError(t, err)
	before := c.State()

	st, err := c.DeleteFrame(ctx, "nonexistent.png")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, before.Scene, st.Scene)
	assert.Equal(t, before.Frame, st.Frame)
}

func TestDeleteFrame_ClearsCurrentFrame(t *testing.T) {
	frames := newFakeFrames()
	frames.data["a.png"] = pngBytes(t, 100, 100)
	frames.data["b.png"] = pngBytes(t, 100, 100)
	c := newTestController(t, frames)
	ctx := context.Background()
	_, err := c.SelectFrame(ctx, "a.png")
	require.NoError(t, err)

	st, err := c.DeleteFrame(ctx, "b.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", st.Frame, "deleting another frame keeps the current one")

	st, err = c.DeleteFrame(ctx, "a.png")
	require.NoError(t, err)
	assert.Empty(t, st.Frame)
	assert.Empty(t, st.Scene.Layers)
}

func TestOnChange(t *testing.T) {
	sc, err := scene.New(800, 600, scene.FrameOnTop)
	require.NoError(t, err)
	var got []State
	c := New(sc, Options{OnChange: func(st State) { got = append(got, st) }})

	_, err = c.PlacePhoto(context.Background(), "me.png", pngBytes(t, 40, 30))
	require.NoError(t, err)
	_, err = c.SetScale(2)
	require.NoError(t, err)
	_, err = c.SetScale(-1)
	require.Error(t, err)

	require.Len(t, got, 2, "failed gestures do not notify")
	assert.Equal(t, 2.0, got[1].Readout.Scale)
}

func TestExport_RestoresSelection(t *testing.T) {
	frames := newFakeFrames()
	frames.data["big.png"] = pngBytes(t, 1000, 750)
	c := newTestController(t, frames)
	ctx := context.Background()
	_, err := c.SelectFrame(ctx, "big.png")
	require.NoError(t, err)
	_, err = c.PlacePhoto(ctx, "me.png", pngBytes(t, 40, 30))
	require.NoError(t, err)
	before := c.State()

	var buf bytes.Buffer
	require.NoError(t, c.Export(ctx, &buf, export.FormatPNG))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())
	assert.Equal(t, before, c.State())
}

func TestPreview(t *testing.T) {
	c := newTestController(t, newFakeFrames())
	_, err := c.PlacePhoto(context.Background(), "me.png", pngBytes(t, 40, 30))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Preview(&buf))
	_, err = png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, scene.LayerPhoto, c.State().Scene.Selection)
}

func TestPreview_ReleasesLockAfterPanic(t *testing.T) {
	c := newTestController(t, newFakeFrames())
	c.exporter = nil

	panicked := func() (p bool) {
		defer func() { p = recover() != nil }()
		c.Preview(io.Discard)
		return false
	}()
	require.True(t, panicked)

	got := make(chan State, 1)
	go func() { got <- c.State() }()
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("controller still locked after a failed preview")
	}
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "", Prompt(nil))
	assert.Equal(t, "no frame selected", Prompt(fmt.Errorf("x: %w", scene.ErrNoFrameLayer)))
	assert.Equal(t, "cannot process image", Prompt(scene.ErrInvalidDimension))
}

func TestForgetFrame(t *testing.T) {
	frames := newFakeFrames()
	frames.data["a.png"] = pngBytes(t, 100, 100)
	sc, err := scene.New(800, 600, scene.FrameOnTop)
	require.NoError(t, err)
	notified := 0
	c := New(sc, Options{Frames: frames, OnChange: func(State) { notified++ }})
	_, err = c.SelectFrame(context.Background(), "a.png")
	require.NoError(t, err)
	notified = 0

	assert.False(t, c.ForgetFrame("other.png"))
	assert.Equal(t, 0, notified, "unrelated frames do not notify")

	assert.True(t, c.ForgetFrame("a.png"))
	assert.Equal(t, 1, notified)
	assert.Empty(t, c.State().Frame)
	assert.Nil(t, c.sc.Frame())
}
