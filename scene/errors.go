package scene

import "errors"

var (
	// ErrInvalidDimension is returned when a width or height is zero, negative or
	// not finite. Fit never divides by such a value.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrNoPhotoLayer is returned by operations that need a photo layer.
	ErrNoPhotoLayer = errors.New("no photo layer")

	// ErrNoFrameLayer is returned by operations that need a frame layer.
	ErrNoFrameLayer = errors.New("no frame layer")

	// ErrInvalidScale is returned when a transform update carries a scale that is
	// not a positive finite number.
	ErrInvalidScale = errors.New("scale must be a positive number")

	// ErrDecode is returned when raster bytes cannot be decoded.
	ErrDecode = errors.New("cannot decode image")

	// ErrSuperseded is returned when a load completed after a newer load for the
	// same layer was requested. The result has been discarded.
	ErrSuperseded = errors.New("load superseded by a newer request")
)
