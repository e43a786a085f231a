package scene

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_ContainsSourceTightly(t *testing.T) {
	const eps = 1e-9
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		src := Size{Width: 1 + rng.Float64()*4000, Height: 1 + rng.Float64()*4000}
		target := Rect{
			Min:  Point{X: rng.Float64() * 100, Y: rng.Float64() * 100},
			Size: Size{Width: 1 + rng.Float64()*2000, Height: 1 + rng.Float64()*2000},
		}

		fit, err := Fit(src, target)
		require.NoError(t, err)

		w, h := fit.Scale*src.Width, fit.Scale*src.Height
		assert.LessOrEqual(t, w, target.Size.Width*(1+eps))
		assert.LessOrEqual(t, h, target.Size.Height*(1+eps))

		tightW := math.Abs(w-target.Size.Width) <= target.Size.Width*eps
		tightH := math.Abs(h-target.Size.Height) <= target.Size.Height*eps
		assert.True(t, tightW || tightH, "fit of %v in %v is not tight", src, target.Size)
	}
}

func TestFit_CanvasScenario(t *testing.T) {
	fit, err := Fit(Size{Width: 1000, Height: 750}, Rect{Size: Size{Width: 800, Height: 600}})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, fit.Scale, 1e-12)
	assert.Equal(t, Point{X: 400, Y: 300}, fit.Center)
}

func TestFit_OffsetTarget(t *testing.T) {
	target := Rect{Min: Point{X: 80, Y: 60}, Size: Size{Width: 640, Height: 480}}

	fit, err := Fit(Size{Width: 200, Height: 100}, target)
	require.NoError(t, err)

	assert.InDelta(t, 3.2, fit.Scale, 1e-12)
	assert.Equal(t, Point{X: 400, Y: 300}, fit.Center)
}

func TestFit_InvalidDimensions(t *testing.T) {
	canvas := Rect{Size: Size{Width: 800, Height: 600}}
	cases := []struct {
		name   string
		src    Size
		target Rect
	}{
		{"zero width", Size{Width: 0, Height: 10}, canvas},
		{"zero height", Size{Width: 10, Height: 0}, canvas},
		{"negative", Size{Width: -5, Height: 10}, canvas},
		{"nan", Size{Width: math.NaN(), Height: 10}, canvas},
		{"inf", Size{Width: math.Inf(1), Height: 10}, canvas},
		{"empty target", Size{Width: 10, Height: 10}, Rect{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fit, err := Fit(tc.src, tc.target)
			require.ErrorIs(t, err, ErrInvalidDimension)
			assert.Zero(t, fit)
		})
	}
}

func TestInsetRect(t *testing.T) {
	r := InsetRect(Rect{Size: Size{Width: 800, Height: 600}}, DefaultPhotoRatio)

	assert.InDelta(t, 560, r.Size.Width, 1e-9)
	assert.InDelta(t, 420, r.Size.Height, 1e-9)
	assert.InDelta(t, 120, r.Min.X, 1e-9)
	assert.InDelta(t, 90, r.Min.Y, 1e-9)
	assert.InDelta(t, 400, r.Center().X, 1e-9)
	assert.InDelta(t, 300, r.Center().Y, 1e-9)
}
