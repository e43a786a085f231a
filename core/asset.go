package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by asset stores when the requested asset does not exist.
var ErrNotFound = errors.New("asset not found")

type (
	// AssetKind separates the two buckets the editor stores: decorative frames and
	// personal photos.
	AssetKind string

	// Asset is a stored raster file.
	Asset struct {
		Kind      AssetKind `json:"kind"`
		Name      string    `json:"name"`
		Data      []byte    `json:"-"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// AssetStore persists raw asset bytes. Names are opaque base names chosen by the
	// catalog; stores must not interpret them beyond using them as keys.
	AssetStore interface {
		// Put stores data under kind/name, replacing any existing asset.
		Put(ctx context.Context, kind AssetKind, name string, data []byte) error

		// Get returns the asset, or an error wrapping ErrNotFound.
		Get(ctx context.Context, kind AssetKind, name string) (*Asset, error)

		// List returns the names of every asset of kind, sorted ascending.
		List(ctx context.Context, kind AssetKind) ([]string, error)

		// Delete removes the asset, or returns an error wrapping ErrNotFound.
		Delete(ctx context.Context, kind AssetKind, name string) error
	}
)

const (
	KindFrame AssetKind = "frames"
	KindPhoto AssetKind = "uploads"
)

// Valid reports whether k is one of the known kinds.
func (k AssetKind) Valid() bool {
	return k == KindFrame || k == KindPhoto
}
