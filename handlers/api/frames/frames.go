package frames

import (
	"context"
	"net/http"

	"github.com/PhuocnhQn/photo-frame-editor/catalog"
	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/handlers/api/httputil"
	"github.com/PhuocnhQn/photo-frame-editor/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	UploadResponse struct {
		FrameURL string `json:"frameUrl"`
		Name     string `json:"name"`
	}

	DeleteResponse struct {
		Success bool `json:"success"`
	}

	FrameCatalog interface {
		ListFrames(ctx context.Context) ([]string, error)
		UploadFrame(ctx context.Context, filename string, data []byte) (string, error)
		OpenFrame(ctx context.Context, name string) (*core.Asset, error)
	}

	// FrameDeleter removes a frame from the catalog and from every session
	// that currently shows it.
	FrameDeleter interface {
		DeleteFrame(ctx context.Context, name string) error
	}

	// FrameSelector makes a frame the current frame of an editing session.
	FrameSelector func(ctx context.Context, sessionID, name string) error
)

// HandleList returns the frame identifiers in upload order.
func HandleList(cat FrameCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frames, err := cat.ListFrames(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list frames")
			http.Error(w, "Failed to list frames", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, frames)
	}
}

// HandleGet serves the raw bytes of a frame.
func HandleGet(cat FrameCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		asset, err := cat.OpenFrame(r.Context(), name)
		if err != nil {
			logrus.WithError(err).WithField("frame", name).Warn("Failed to open frame")
			http.Error(w, "Frame not found", httputil.StatusFor(err))
			return
		}
		httputil.WriteAsset(w, asset)
	}
}

// HandleUpload stores the multipart "frame" file. With ?select={sessionId} the
// new frame also becomes that session's current frame.
func HandleUpload(cat FrameCatalog, maxBytes int64, selectFrame FrameSelector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, data, err := httputil.ReadFormFile(w, r, "frame", maxBytes)
		if err != nil {
			logrus.WithError(err).Warn("Invalid frame upload")
			httputil.Error(w, r, err, nil)
			return
		}

		name, err := cat.UploadFrame(r.Context(), filename, data)
		if err != nil {
			logrus.WithError(err).WithField("filename", filename).Error("Failed to upload frame")
			httputil.Error(w, r, err, nil)
			return
		}
		metrics.RecordUpload(string(core.KindFrame))

		if sessionID := r.URL.Query().Get("select"); sessionID != "" && selectFrame != nil {
			if err := selectFrame(r.Context(), sessionID, name); err != nil {
				// The upload itself succeeded; the client can still pick the frame.
				logrus.WithError(err).WithFields(logrus.Fields{
					"session": sessionID,
					"frame":   name,
				}).Warn("Failed to select uploaded frame")
			}
		}

		render.JSON(w, r, UploadResponse{FrameURL: catalog.FrameURL(name), Name: name})
	}
}

// HandleDelete removes a frame from the catalog.
func HandleDelete(deleter FrameDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		if err := deleter.DeleteFrame(r.Context(), name); err != nil {
			logrus.WithError(err).WithField("frame", name).Warn("Failed to delete frame")
			httputil.Error(w, r, err, nil)
			return
		}
		render.JSON(w, r, DeleteResponse{Success: true})
	}
}
