// Package httputil holds the request and response helpers shared by the API
// handlers.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/PhuocnhQn/photo-frame-editor/catalog"
	"github.com/PhuocnhQn/photo-frame-editor/controller"
	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/export"
	"github.com/PhuocnhQn/photo-frame-editor/scene"
	"github.com/PhuocnhQn/photo-frame-editor/sessions"

	"github.com/go-chi/render"
)

// ErrNoFile is returned when a multipart request lacks the expected file field.
var ErrNoFile = errors.New("no file uploaded")

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Prompt string            `json:"prompt,omitempty"`
	State  *controller.State `json:"state,omitempty"`
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scene.ErrSuperseded), errors.Is(err, scene.ErrNoPhotoLayer), errors.Is(err, scene.ErrNoFrameLayer):
		return http.StatusConflict
	case errors.Is(err, scene.ErrDecode), errors.Is(err, scene.ErrInvalidDimension):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoFile),
		errors.Is(err, scene.ErrInvalidScale),
		errors.Is(err, controller.ErrUnknownGesture),
		errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrUnsupportedFormat),
		errors.Is(err, catalog.ErrEmptyUpload),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// Error writes err as a JSON error body with the mapped status code. Internal
// errors are not echoed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error, st *controller.State) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Prompt: controller.Prompt(err), State: st}
	if status == http.StatusInternalServerError {
		resp.Error = http.StatusText(status)
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// ReadFormFile reads the named multipart file field, limiting the request body
// to maxBytes.
func ReadFormFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %v", ErrNoFile, err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: field %q", ErrNoFile, field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

// WriteAsset writes raw asset bytes with a sniffed content type.
func WriteAsset(w http.ResponseWriter, asset *core.Asset) {
	w.Header().Set("Content-Type", http.DetectContentType(asset.Data))
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(asset.Data)
}
