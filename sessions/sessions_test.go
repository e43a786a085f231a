package sessions

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/controller"
	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/scene"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCreate_Defaults(t *testing.T) {
	m := NewManager(Options{})

	s, err := m.Create(0, 0)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	info := s.Info()
	if info.Width != 800 || info.Height != 600 {
		t.Errorf("canvas = %dx%d, want 800x600", info.Width, info.Height)
	}
	if len(info.ID) != 26 {
		t.Errorf("ID = %q, want a ULID", info.ID)
	}
	if c := s.State().Scene.Canvas; c.Width != 800 || c.Height != 600 {
		t.Errorf("scene canvas = %+v", c)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestCreate_InvalidSize(t *testing.T) {
	m := NewManager(Options{})

	_, err := m.Create(-1, 100)
	if !errors.Is(err, scene.ErrInvalidDimension) {
		t.Errorf("Create() error = %v, want ErrInvalidDimension", err)
	}
}

func TestCreate_RejectsOversizedCanvas(t *testing.T) {
	m := NewManager(Options{MaxCanvasSide: 2000})

	tests := []struct{ w, h int }{
		{2001, 100},
		{100, 2001},
		{2147483647, 2147483647},
	}
	for _, tt := range tests {
		if _, err := m.Create(tt.w, tt.h); !errors.Is(err, scene.ErrInvalidDimension) {
			t.Errorf("Create(%d, %d) error = %v, want ErrInvalidDimension", tt.w, tt.h, err)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if _, err := m.Create(2000, 2000); err != nil {
		t.Errorf("Create(2000, 2000) failed: %v", err)
	}
}

func TestCreate_PixelLimitReachesController(t *testing.T) {
	m := NewManager(Options{MaxImagePixels: 100})
	s, err := m.Create(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.PlacePhoto(context.Background(), "big.png", pngBytes(t, 20, 20)); !errors.Is(err, scene.ErrDecode) {
		t.Errorf("PlacePhoto() error = %v, want ErrDecode", err)
	}
}

func TestGetDelete(t *testing.T) {
	m := NewManager(Options{})
	s, err := m.Create(100, 100)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if err := m.Delete(s.ID()); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(Options{})
	a, _ := m.Create(0, 0)
	b, _ := m.Create(0, 0)

	if _, err := a.PlacePhoto(context.Background(), "p.png", pngBytes(t, 40, 30)); err != nil {
		t.Fatalf("PlacePhoto() failed: %v", err)
	}
	if n := len(b.State().Scene.Layers); n != 0 {
		t.Errorf("session b has %d layers, want 0", n)
	}
}

func TestListenerReceivesChanges(t *testing.T) {
	m := NewManager(Options{})
	var (
		mu  sync.Mutex
		ids []string
	)
	m.SetListener(func(id string, st controller.State) {
		mu.Lock()
		ids = append(ids, id)
		mu.Unlock()
	})

	s, _ := m.Create(0, 0)
	if _, err := s.PlacePhoto(context.Background(), "p.png", pngBytes(t, 40, 30)); err != nil {
		t.Fatalf("PlacePhoto() failed: %v", err)
	}
	if _, err := s.Center(); err != nil {
		t.Fatalf("Center() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 2 || ids[0] != s.ID() {
		t.Errorf("listener got %v, want two notifications for %s", ids, s.ID())
	}
}

func TestSweep(t *testing.T) {
	m := NewManager(Options{})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old, _ := m.Create(0, 0)
	now = now.Add(20 * time.Minute)
	fresh, _ := m.Create(0, 0)
	now = now.Add(15 * time.Minute)

	if n := m.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("Sweep() removed %d sessions, want 1", n)
	}
	if _, err := m.Get(old.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("idle session survived the sweep")
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Errorf("active session was swept: %v", err)
	}
}

func TestGetKeepsSessionAlive(t *testing.T) {
	m := NewManager(Options{})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s, _ := m.Create(0, 0)
	now = now.Add(25 * time.Minute)
	if _, err := m.Get(s.ID()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(25 * time.Minute)

	if n := m.Sweep(30 * time.Minute); n != 0 {
		t.Errorf("Sweep() removed %d sessions, want 0", n)
	}
}

func TestStartSweeper(t *testing.T) {
	m := NewManager(Options{})
	if err := m.StartSweeper("not a schedule"); err == nil {
		t.Error("StartSweeper() accepted an invalid schedule")
	}
	if err := m.StartSweeper("@every 1h"); err != nil {
		t.Fatalf("StartSweeper() failed: %v", err)
	}
	m.Stop()
}

type fakeFrames struct {
	data map[string][]byte
}

func (f *fakeFrames) OpenFrame(ctx context.Context, name string) (*core.Asset, error) {
	data, ok := f.data[name]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &core.Asset{Kind: core.KindFrame, Name: name, Data: data}, nil
}

func (f *fakeFrames) DeleteFrame(ctx context.Context, name string) error {
	if _, ok := f.data[name]; !ok {
		return core.ErrNotFound
	}
	delete(f.data, name)
	return nil
}

func TestDeleteFrame_ClearsSessionsShowingIt(t *testing.T) {
	frames := &fakeFrames{data: map[string][]byte{
		"a.png": pngBytes(t, 100, 100),
		"b.png": pngBytes(t, 100, 100),
	}}
	m := NewManager(Options{Frames: frames})
	ctx := context.Background()
	withA, _ := m.Create(0, 0)
	withB, _ := m.Create(0, 0)

	if err := m.SelectFrame(ctx, withA.ID(), "a.png"); err != nil {
		t.Fatalf("SelectFrame() failed: %v", err)
	}
	if err := m.SelectFrame(ctx, withB.ID(), "b.png"); err != nil {
		t.Fatalf("SelectFrame() failed: %v", err)
	}

	if err := m.DeleteFrame(ctx, "a.png"); err != nil {
		t.Fatalf("DeleteFrame() failed: %v", err)
	}
	if f := withA.State().Frame; f != "" {
		t.Errorf("session showing the deleted frame still has %q", f)
	}
	if f := withB.State().Frame; f != "b.png" {
		t.Errorf("other session frame = %q, want b.png", f)
	}

	if err := m.DeleteFrame(ctx, "a.png"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteFrame() error = %v, want ErrNotFound", err)
	}
	if err := m.SelectFrame(ctx, "missing", "b.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SelectFrame() for unknown session error = %v, want ErrNotFound", err)
	}
}
