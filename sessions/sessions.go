// Package sessions keeps the editing sessions of connected users. Each session
// owns its own scene and controller; idle sessions are removed by a cron job.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/controller"
	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/export"
	"github.com/PhuocnhQn/photo-frame-editor/metrics"
	"github.com/PhuocnhQn/photo-frame-editor/scene"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Session is one user's editing session.
type Session struct {
	*controller.Controller

	id        string
	width     int
	height    int
	createdAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Info describes the session.
func (s *Session) Info() core.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.SessionInfo{
		ID:        s.id,
		Width:     s.width,
		Height:    s.height,
		CreatedAt: s.createdAt,
		LastSeen:  s.lastSeen,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Listener receives the new state of a session after every change.
type Listener func(id string, st controller.State)

// Options configures a Manager.
type Options struct {
	Frames        controller.FrameSource
	Exporter      *export.Exporter
	DefaultWidth  int
	DefaultHeight int
	Stacking      scene.Stacking
	IdleTimeout   time.Duration
	// MaxCanvasSide caps the width and height of new sessions. Zero or values
	// above scene.MaxCanvasSide mean scene.MaxCanvasSide.
	MaxCanvasSide  int
	MaxImagePixels int64
}

// Manager is the session registry.
type Manager struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	listenerMu sync.RWMutex
	listener   Listener

	cron *cron.Cron
}

// NewManager returns an empty registry.
func NewManager(opts Options) *Manager {
	if opts.DefaultWidth <= 0 {
		opts.DefaultWidth = 800
	}
	if opts.DefaultHeight <= 0 {
		opts.DefaultHeight = 600
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.MaxCanvasSide <= 0 || opts.MaxCanvasSide > scene.MaxCanvasSide {
		opts.MaxCanvasSide = scene.MaxCanvasSide
	}
	if opts.Exporter == nil {
		opts.Exporter = export.New(export.Options{})
	}
	return &Manager{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetListener registers the function called after every session change.
func (m *Manager) SetListener(l Listener) {
	m.listenerMu.Lock()
	m.listener = l
	m.listenerMu.Unlock()
}

func (m *Manager) notify(id string, st controller.State) {
	m.listenerMu.RLock()
	l := m.listener
	m.listenerMu.RUnlock()
	if l != nil {
		l(id, st)
	}
}

// Create starts a new session with a canvas of width x height. Zero values use
// the configured defaults.
func (m *Manager) Create(width, height int) (*Session, error) {
	if width == 0 {
		width = m.opts.DefaultWidth
	}
	if height == 0 {
		height = m.opts.DefaultHeight
	}
	if width > m.opts.MaxCanvasSide || height > m.opts.MaxCanvasSide {
		return nil, fmt.Errorf("%w: canvas %dx%d exceeds %d", scene.ErrInvalidDimension, width, height, m.opts.MaxCanvasSide)
	}
	sc, err := scene.New(float64(width), float64(height), m.opts.Stacking)
	if err != nil {
		return nil, err
	}

	now := m.now()
	id := strings.ToLower(ulid.Make().String())
	s := &Session{
		id:        id,
		width:     width,
		height:    height,
		createdAt: now,
		lastSeen:  now,
	}
	s.Controller = controller.New(sc, controller.Options{
		Frames:         m.opts.Frames,
		Exporter:       m.opts.Exporter,
		OnChange:       func(st controller.State) { m.notify(id, st) },
		MaxImagePixels: m.opts.MaxImagePixels,
	})

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(n)
	logrus.WithFields(logrus.Fields{"session": id, "width": width, "height": height}).Info("Session created")
	return s, nil
}

// Get returns the session and marks it as active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.touch(m.now())
	return s, nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	metrics.SetActiveSessions(n)
	logrus.WithField("session", id).Info("Session deleted")
	return nil
}

// Each calls fn for every session. fn must not create or delete sessions.
func (m *Manager) Each(fn func(*Session)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		fn(s)
	}
}

// DeleteFrame removes a frame from the catalog and clears it from every
// session that currently shows it.
func (m *Manager) DeleteFrame(ctx context.Context, name string) error {
	if m.opts.Frames == nil {
		return errors.New("no frame catalog configured")
	}
	if err := m.opts.Frames.DeleteFrame(ctx, name); err != nil {
		return err
	}
	cleared := 0
	m.Each(func(s *Session) {
		if s.ForgetFrame(name) {
			cleared++
		}
	})
	if cleared > 0 {
		logrus.WithFields(logrus.Fields{"frame": name, "sessions": cleared}).Info("Deleted frame cleared from sessions")
	}
	return nil
}

// SelectFrame makes name the current frame of session id.
func (m *Manager) SelectFrame(ctx context.Context, id, name string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	_, err = s.SelectFrame(ctx, name)
	return err
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than maxIdle and returns how many were
// removed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	now := m.now()

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if s.idleSince(now) > maxIdle {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if len(expired) > 0 {
		metrics.SetActiveSessions(n)
		metrics.RecordExpiredSessions(len(expired))
		logrus.WithFields(logrus.Fields{"expired": len(expired), "active": n}).Info("Idle sessions swept")
	}
	return len(expired)
}

// StartSweeper runs Sweep with the configured idle timeout on the cron schedule
// (for example "@every 5m").
func (m *Manager) StartSweeper(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.Sweep(m.opts.IdleTimeout) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	m.cron = c
	logrus.WithFields(logrus.Fields{"schedule": schedule, "idle_timeout": m.opts.IdleTimeout}).Info("Session sweeper started")
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (m *Manager) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}
