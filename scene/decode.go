package scene

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the pixel count Decode accepts.
const DefaultMaxPixels = 50_000_000

// Decode decodes PNG, JPEG or WebP bytes into a Source named name, refusing
// images above DefaultMaxPixels.
func Decode(name string, data []byte) (*Source, error) {
	return DecodeLimited(name, data, DefaultMaxPixels)
}

// DecodeLimited is Decode with an explicit pixel limit. The header is checked
// before any pixel buffer is allocated. A limit <= 0 means DefaultMaxPixels.
func DecodeLimited(name string, data []byte, maxPixels int64) (*Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrDecode, name)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d, limit is %d pixels", ErrDecode, name, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return NewSource(name, img)
}
