// Package catalog manages the selectable frame assets and uploaded photos.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/PhuocnhQn/photo-frame-editor/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a frame or photo does not exist.
	ErrNotFound = core.ErrNotFound

	// ErrInvalidName is returned for identifiers that are not plain file names.
	ErrInvalidName = errors.New("invalid asset name")

	// ErrUnsupportedFormat is returned when an upload's extension is not an
	// allowed raster type.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrEmptyUpload is returned when an upload carries no bytes.
	ErrEmptyUpload = errors.New("empty upload")
)

// DefaultExt is used when an uploaded file name has no extension.
const DefaultExt = ".png"

var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// IsAllowed reports whether name carries an allowed raster extension
// (case-insensitive).
func IsAllowed(name string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(name))]
}

// ValidateName rejects empty, dot and path-like identifiers.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if path.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q must not be a path", ErrInvalidName, name)
	}
	return nil
}

// Catalog is the frame asset catalog and photo upload area backed by a store.
type Catalog struct {
	store core.AssetStore
}

// New returns a Catalog over store.
func New(store core.AssetStore) *Catalog {
	return &Catalog{store: store}
}

// ListFrames returns the frame identifiers in ascending order, limited to allowed
// raster extensions. Names are ULID based, so the order is upload order.
func (c *Catalog) ListFrames(ctx context.Context) ([]string, error) {
	names, err := c.store.List(ctx, core.KindFrame)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	frames := make([]string, 0, len(names))
	for _, n := range names {
		if IsAllowed(n) {
			frames = append(frames, n)
		}
	}
	return frames, nil
}

// UploadFrame stores a new frame and returns its identifier.
func (c *Catalog) UploadFrame(ctx context.Context, filename string, data []byte) (string, error) {
	return c.upload(ctx, core.KindFrame, filename, data)
}

// UploadPhoto stores a personal photo and returns its identifier.
func (c *Catalog) UploadPhoto(ctx context.Context, filename string, data []byte) (string, error) {
	return c.upload(ctx, core.KindPhoto, filename, data)
}

// DeleteFrame removes a frame. It fails with ErrNotFound when the frame does not
// exist.
func (c *Catalog) DeleteFrame(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, core.KindFrame, name); err != nil {
		return fmt.Errorf("delete frame %s: %w", name, err)
	}
	logrus.WithField("frame", name).Info("Frame deleted")
	return nil
}

// OpenFrame returns the stored frame.
func (c *Catalog) OpenFrame(ctx context.Context, name string) (*core.Asset, error) {
	return c.open(ctx, core.KindFrame, name)
}

// OpenPhoto returns the stored photo.
func (c *Catalog) OpenPhoto(ctx context.Context, name string) (*core.Asset, error) {
	return c.open(ctx, core.KindPhoto, name)
}

func (c *Catalog) open(ctx context.Context, kind core.AssetKind, name string) (*core.Asset, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	asset, err := c.store.Get(ctx, kind, name)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", kind, name, err)
	}
	return asset, nil
}

func (c *Catalog) upload(ctx context.Context, kind core.AssetKind, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	name, err := NewName(filename)
	if err != nil {
		return "", err
	}

	log := logrus.WithFields(logrus.Fields{
		"kind":        string(kind),
		"name":        name,
		"source_name": filename,
		"data_length": len(data),
	})
	if err := c.store.Put(ctx, kind, name, data); err != nil {
		log.WithError(err).Error("Failed to store upload")
		return "", fmt.Errorf("store %s: %w", kind, err)
	}
	log.Info("Upload stored")
	return name, nil
}

// NewName derives a collision-resistant identifier for an uploaded file: a
// lower-case ULID (millisecond timestamp plus monotonic entropy) followed by the
// original extension, or DefaultExt when there is none.
func NewName(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = DefaultExt
	}
	if !allowedExts[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return strings.ToLower(ulid.Make().String()) + ext, nil
}

// FrameURL is the retrieval path of a frame.
func FrameURL(name string) string {
	return "/frames/" + name
}

// PhotoURL is the retrieval path of an uploaded photo.
func PhotoURL(name string) string {
	return "/uploads/" + name
}
