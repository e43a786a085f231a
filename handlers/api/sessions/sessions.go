// Package sessions exposes the editing sessions over HTTP. Every mutating call
// answers with the session's new state so the client can redraw its controls.
package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/controller"
	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/export"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/api/httputil"
	"github.com/PhuocnhQn/photo-frame-editor/metrics"
	"github.com/PhuocnhQn/photo-frame-editor/scene"
	domain "github.com/PhuocnhQn/photo-frame-editor/sessions"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

var errBadRequest = errors.New("invalid request body")

type (
	CreateRequest struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}

	SessionResponse struct {
		Session core.SessionInfo `json:"session"`
		State   controller.State `json:"state"`
	}

	FrameRequest struct {
		Name string `json:"name"`
	}

	PhotoRequest struct {
		Name string `json:"name"`
	}

	// PhotoSource stores uploaded photos and opens existing ones by name.
	PhotoSource interface {
		UploadPhoto(ctx context.Context, filename string, data []byte) (string, error)
		OpenPhoto(ctx context.Context, name string) (*core.Asset, error)
	}
)

// Routes mounts the session API on r.
func Routes(r chi.Router, m *domain.Manager, photos PhotoSource, maxBytes int64) {
	r.Post("/", HandleCreate(m))
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", HandleGet(m))
		r.Delete("/", HandleDelete(m))
		r.Put("/frame", HandleSelectFrame(m))
		r.Delete("/frame", HandleClearFrame(m))
		r.Post("/photo", HandlePlacePhoto(m, photos, maxBytes))
		r.Post("/gestures", HandleGesture(m))
		r.Get("/preview", HandlePreview(m))
		r.Get("/export", HandleExport(m))
	})
}

// session resolves the {id} URL parameter and writes a 404 when it is unknown.
func session(m *domain.Manager, w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := m.Get(id)
	if err != nil {
		logrus.WithField("session", id).Debug("Session not found")
		httputil.Error(w, r, err, nil)
		return nil, false
	}
	return s, true
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// respond writes st, or the error with st attached so the client keeps a
// consistent view after a rejected gesture.
func respond(w http.ResponseWriter, r *http.Request, st controller.State, err error) {
	if err != nil {
		if errors.Is(err, errBadRequest) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, httputil.ErrorResponse{Error: err.Error(), State: &st})
			return
		}
		httputil.Error(w, r, err, &st)
		return
	}
	render.JSON(w, r, st)
}

func HandleCreate(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}

		s, err := m.Create(req.Width, req.Height)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"width": req.Width, "height": req.Height}).Warn("Failed to create session")
			httputil.Error(w, r, err, nil)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, SessionResponse{Session: s.Info(), State: s.State()})
	}
}

func HandleGet(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, SessionResponse{Session: s.Info(), State: s.State()})
	}
}

func HandleDelete(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Delete(chi.URLParam(r, "id")); err != nil {
			httputil.Error(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSelectFrame loads a catalog frame into the session. A request
// overtaken by a newer one answers 409.
func HandleSelectFrame(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var req FrameRequest
		if err := decodeJSON(r, &req); err != nil {
			respond(w, r, s.State(), err)
			return
		}

		st, err := s.SelectFrame(r.Context(), req.Name)
		metrics.RecordLoad(scene.LayerFrame.String(), loadOutcome(err))
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"session": s.ID(), "frame": req.Name}).Info("Frame not applied")
		}
		respond(w, r, st, err)
	}
}

func HandleClearFrame(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		st, err := s.ClearFrame()
		respond(w, r, st, err)
	}
}

// HandlePlacePhoto accepts either a multipart "image" upload, which is stored
// in the upload area first, or a JSON body naming an existing upload.
func HandlePlacePhoto(m *domain.Manager, photos PhotoSource, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}

		var (
			name string
			data []byte
			err  error
		)
		if isMultipart(r) {
			var filename string
			filename, data, err = httputil.ReadFormFile(w, r, "image", maxBytes)
			if err == nil {
				name, err = photos.UploadPhoto(r.Context(), filename, data)
			}
			if err == nil {
				metrics.RecordUpload(string(core.KindPhoto))
			}
		} else {
			var req PhotoRequest
			err = decodeJSON(r, &req)
			if err == nil {
				var asset *core.Asset
				asset, err = photos.OpenPhoto(r.Context(), req.Name)
				if err == nil {
					name, data = asset.Name, asset.Data
				}
			}
		}
		if err != nil {
			logrus.WithError(err).WithField("session", s.ID()).Warn("Failed to read photo")
			respond(w, r, s.State(), err)
			return
		}

		st, err := s.PlacePhoto(r.Context(), name, data)
		metrics.RecordLoad(scene.LayerPhoto.String(), loadOutcome(err))
		respond(w, r, st, err)
	}
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func loadOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, scene.ErrSuperseded):
		return "superseded"
	}
	return "failed"
}

func HandleGesture(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var g controller.Gesture
		if err := decodeJSON(r, &g); err != nil {
			respond(w, r, s.State(), err)
			return
		}
		st, err := s.Apply(g)
		respond(w, r, st, err)
	}
}

// HandlePreview renders the canvas as the editor shows it, selection included.
func HandlePreview(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := s.Preview(&buf); err != nil {
			logrus.WithError(err).WithField("session", s.ID()).Error("Failed to render preview")
			http.Error(w, "Failed to render preview", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}
}

// HandleExport streams the composite as a download. The image is encoded in
// full before any header is written, so a failed export still gets a JSON error.
func HandleExport(m *domain.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(m, w, r)
		if !ok {
			return
		}
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httputil.Error(w, r, err, nil)
			return
		}

		start := time.Now()
		var buf bytes.Buffer
		err = s.Export(r.Context(), &buf, format)
		metrics.RecordExport(string(format), time.Since(start), err == nil)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"session": s.ID(), "format": format}).Error("Export failed")
			httputil.Error(w, r, err, nil)
			return
		}

		logrus.WithFields(logrus.Fields{"session": s.ID(), "format": format, "bytes": buf.Len()}).Info("Scene exported")
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", format.FileName()))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Write(buf.Bytes())
	}
}
