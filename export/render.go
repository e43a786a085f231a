// Package export flattens a scene into a raster image.
package export

import (
	"image"
	"image/color"
	"math"

	"github.com/PhuocnhQn/photo-frame-editor/scene"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
)

// Selection decoration, matching the editor's look.
var (
	selectionColor = color.RGBA{0x6e, 0xa8, 0xfe, 0xff}
	handleFill     = color.RGBA{0x6e, 0xa8, 0xfe, 0xff}
)

const (
	borderWidth      = 2.0
	handleRadius     = 6.0
	rotateHandleDist = 24.0
)

// RenderOptions controls a single render pass.
type RenderOptions struct {
	// Decorate draws the selection border and handles around the active layer.
	Decorate bool
	// Background fills the canvas before layers are drawn. Nil leaves it
	// transparent.
	Background color.Color
}

// Renderer draws scenes with a fixed interpolator.
type Renderer struct {
	interp draw.Interpolator
}

// NewRenderer returns a Renderer. A nil interpolator defaults to bilinear.
func NewRenderer(interp draw.Interpolator) *Renderer {
	if interp == nil {
		interp = draw.BiLinear
	}
	return &Renderer{interp: interp}
}

// Render draws every layer of sc in ascending z order onto a new canvas-sized
// image.
func (r *Renderer) Render(sc *scene.Scene, opts RenderOptions) *image.RGBA {
	canvas := sc.Canvas().Size
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(canvas.Width)), int(math.Ceil(canvas.Height))))
	if opts.Background != nil {
		draw.Draw(dst, dst.Bounds(), &image.Uniform{C: opts.Background}, image.Point{}, draw.Src)
	}

	for _, l := range sc.Layers() {
		if l.Source == nil || l.Source.Image == nil {
			continue
		}
		src := l.Source.Image
		r.interp.Transform(dst, layerMatrix(l), src, src.Bounds(), draw.Over, nil)
	}

	if opts.Decorate {
		if kind := sc.Selection(); kind != scene.LayerNone {
			for _, l := range sc.Layers() {
				if l.Kind == kind {
					drawSelection(dst, l)
				}
			}
		}
	}
	return dst
}

// layerMatrix maps source pixel coordinates to canvas coordinates: the source is
// centered on its origin, flipped, scaled, rotated clockwise by the layer rotation
// and moved to the layer position.
func layerMatrix(l *scene.Layer) f64.Aff3 {
	b := l.Source.Image.Bounds()
	t := l.Transform

	sx, sy := t.Scale, t.Scale
	if t.FlipH {
		sx = -sx
	}
	if t.FlipV {
		sy = -sy
	}
	sin, cos := math.Sincos(t.Rotation * math.Pi / 180)

	a, bb := cos*sx, -sin*sy
	d, e := sin*sx, cos*sy

	ox := float64(b.Min.X) + float64(b.Dx())/2
	oy := float64(b.Min.Y) + float64(b.Dy())/2

	return f64.Aff3{
		a, bb, t.Position.X - (a*ox + bb*oy),
		d, e, t.Position.Y - (d*ox + e*oy),
	}
}

func drawSelection(dst *image.RGBA, l *scene.Layer) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	corners := l.Corners()
	for i := range corners {
		strokeSegment(z, corners[i], corners[(i+1)%len(corners)], borderWidth)
	}
	z.Draw(dst, b, image.NewUniform(selectionColor), image.Point{})

	z.Reset(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	for _, p := range handlePoints(corners) {
		circle(z, p, handleRadius)
	}
	z.Draw(dst, b, image.NewUniform(handleFill), image.Point{})
}

// handlePoints returns the four corners, the four edge midpoints and the rotation
// handle above the top edge.
func handlePoints(c [4]scene.Point) []scene.Point {
	mid := func(p, q scene.Point) scene.Point {
		return scene.Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
	}
	top := mid(c[0], c[1])
	bottom := mid(c[3], c[2])

	pts := []scene.Point{c[0], c[1], c[2], c[3], top, mid(c[1], c[2]), bottom, mid(c[3], c[0])}

	dx, dy := top.X-bottom.X, top.Y-bottom.Y
	if n := math.Hypot(dx, dy); n > 0 {
		pts = append(pts, scene.Point{X: top.X + dx/n*rotateHandleDist, Y: top.Y + dy/n*rotateHandleDist})
	}
	return pts
}

func strokeSegment(z *vector.Rasterizer, p, q scene.Point, width float64) {
	dx, dy := q.X-p.X, q.Y-p.Y
	n := math.Hypot(dx, dy)
	if n == 0 {
		return
	}
	nx, ny := -dy/n*width/2, dx/n*width/2

	z.MoveTo(float32(p.X+nx), float32(p.Y+ny))
	z.LineTo(float32(q.X+nx), float32(q.Y+ny))
	z.LineTo(float32(q.X-nx), float32(q.Y-ny))
	z.LineTo(float32(p.X-nx), float32(p.Y-ny))
	z.ClosePath()
}

// circle approximates a circle with four cubic Béziers.
func circle(z *vector.Rasterizer, c scene.Point, r float64) {
	const k = 0.5522847498
	x, y := float32(c.X), float32(c.Y)
	rr, kr := float32(r), float32(r*k)

	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+kr, x+kr, y+rr, x, y+rr)
	z.CubeTo(x-kr, y+rr, x-rr, y+kr, x-rr, y)
	z.CubeTo(x-rr, y-kr, x-kr, y-rr, x, y-rr)
	z.CubeTo(x+kr, y-rr, x+rr, y-kr, x+rr, y)
	z.ClosePath()
}
