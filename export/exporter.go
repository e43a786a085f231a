package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/PhuocnhQn/photo-frame-editor/scene"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// ErrUnknownFormat is returned for export formats other than PNG and JPEG.
var ErrUnknownFormat = errors.New("unsupported export format")

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultFileName is the download name of an exported PNG.
const DefaultFileName = "framed-photo.png"

// ParseFormat accepts png, jpeg and jpg (case-insensitive). Empty means PNG.
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, v)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// FileName returns the attachment name for f.
func (f Format) FileName() string {
	if f == FormatJPEG {
		return "framed-photo.jpg"
	}
	return DefaultFileName
}

// Options configures an Exporter.
type Options struct {
	JPEGQuality  int
	Interpolator draw.Interpolator
}

// Exporter produces the downloadable image of a scene.
type Exporter struct {
	renderer    *Renderer
	jpegQuality int
}

// New returns an Exporter. Zero options give bilinear sampling and JPEG quality 92.
func New(opts Options) *Exporter {
	q := opts.JPEGQuality
	if q <= 0 || q > 100 {
		q = 92
	}
	return &Exporter{renderer: NewRenderer(opts.Interpolator), jpegQuality: q}
}

// Renderer returns the renderer used for exports, for decorated previews.
func (e *Exporter) Renderer() *Renderer {
	return e.renderer
}

// Capture renders sc exactly as displayed but without selection decoration. The
// active selection is suppressed for the duration of the capture and restored
// afterwards, whatever the outcome.
func (e *Exporter) Capture(sc *scene.Scene, background color.Color) *image.RGBA {
	active := sc.Selection()
	sc.Deselect()
	defer func() {
		if active != scene.LayerNone {
			if err := sc.Select(active); err != nil {
				logrus.WithError(err).WithField("layer", active.String()).Warn("Failed to restore selection after export")
			}
		}
	}()

	return e.renderer.Render(sc, RenderOptions{Decorate: true, Background: background})
}

// Export encodes the captured scene to w.
func (e *Exporter) Export(ctx context.Context, sc *scene.Scene, w io.Writer, format Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var bg color.Color
	if format == FormatJPEG {
		bg = color.White
	}
	img := e.Capture(sc, bg)

	log := logrus.WithFields(logrus.Fields{
		"format": string(format),
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"layers": len(sc.Layers()),
	})

	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: e.jpegQuality})
	case FormatPNG:
		err = png.Encode(w, img)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	if err != nil {
		log.WithError(err).Error("Failed to encode export")
		return fmt.Errorf("encode %s: %w", format, err)
	}

	log.Debug("Scene exported")
	return nil
}
