package photos

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
		ImageURL string `json:"imageUrl"`
		Name     string `json:"name"`
	}

	PhotoStore interface {
		UploadPhoto(ctx context.Context, filename string, data []byte) (string, error)
		OpenPhoto(ctx context.Context, name string) (*core.Asset, error)
	}
)

// HandleUpload stores the multipart "image" file in the upload area.
func HandleUpload(store PhotoStore, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, data, err := httputil.ReadFormFile(w, r, "image", maxBytes)
		if err != nil {
			logrus.WithError(err).Warn("Invalid photo upload")
			httputil.Error(w, r, err, nil)
			return
		}

		name, err := store.UploadPhoto(r.Context(), filename, data)
		if err != nil {
			logrus.WithError(err).WithField("filename", filename).Error("Failed to upload photo")
			httputil.Error(w, r, err, nil)
			return
		}
		metrics.RecordUpload(string(core.KindPhoto))

		render.JSON(w, r, UploadResponse{ImageURL: catalog.PhotoURL(name), Name: name})
	}
}

func HandleGet(store PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		asset, err := store.OpenPhoto(r.Context(), name)
		if err != nil {
			logrus.WithError(err).WithField("photo", name).Warn("Failed to open photo")
			http.Error(w, "Photo not found", httputil.StatusFor(err))
			return
		}
		httputil.WriteAsset(w, asset)
	}
}
