package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestGrayscale_Weights(t *testing.T) {
	tests := []struct {
		name string
		in   color.RGBA
		want uint8
	}{
		{"white", color.RGBA{255, 255, 255, 255}, 255},
		{"black", color.RGBA{0, 0, 0, 255}, 0},
		{"pure red", color.RGBA{255, 0, 0, 255}, 76},
		{"pure green", color.RGBA{0, 255, 0, 255}, 150},
		{"pure blue", color.RGBA{0, 0, 255, 255}, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grayscale(uniformRGBA(2, 2, tt.in))
			assert.Equal(t, tt.want, g.GrayAt(1, 1).Y)
		})
	}
}

func TestGaussianBlur_PreservesUniformImage(t *testing.T) {
	g := Grayscale(uniformRGBA(8, 6, color.RGBA{120, 120, 120, 255}))
	out := GaussianBlur(g, 3, 1)
	for _, v := range out.Pix {
		require.Equal(t, uint8(120), v)
	}
}

func TestAdaptiveThresholdInv(t *testing.T) {
	// A dark dot on a bright background is foreground, the flat
	// background is not.
	g := Grayscale(uniformRGBA(40, 40, color.RGBA{200, 200, 200, 255}))
	g.SetGray(20, 20, color.Gray{Y: 10})

	out := AdaptiveThresholdInv(g, 25, 16)

	assert.Equal(t, uint8(255), out.GrayAt(20, 20).Y)
	assert.Equal(t, uint8(0), out.GrayAt(5, 5).Y)
	assert.Equal(t, 1, CountNonZero(out, out.Rect))
}

func TestMedianBinary_RemovesSpeckle(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 20, 20))
	src.SetGray(10, 10, color.Gray{Y: 255})
	// Solid 7x7 block survives the 5x5 majority vote in its interior.
	for y := 2; y < 9; y++ {
		for x := 2; x < 9; x++ {
			src.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := MedianBinary(src, 5)

	assert.Equal(t, uint8(0), out.GrayAt(10, 10).Y, "isolated pixel is noise")
	assert.Equal(t, uint8(255), out.GrayAt(5, 5).Y, "block centre stays")
}

func TestDilate_GrowsByOnePixel(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 5))
	src.SetGray(2, 2, color.Gray{Y: 255})

	out := Dilate(src, 3)

	assert.Equal(t, 9, CountNonZero(out, out.Rect))
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
}

func TestDilate_Corner(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 5))
	src.SetGray(0, 0, color.Gray{Y: 255})

	out := Dilate(src, 3)

	assert.Equal(t, 4, CountNonZero(out, out.Rect))
}

func TestCountNonZero_ClipsToMask(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	assert.Equal(t, 4, CountNonZero(src, image.Rect(2, 2, 10, 10)))
	assert.Equal(t, 0, CountNonZero(src, image.Rect(5, 5, 10, 10)))
}

func TestPipeline_UniformFrameHasNoForeground(t *testing.T) {
	p := NewPipeline(DefaultParams())
	mask, err := p.Binarize(uniformRGBA(60, 40, color.RGBA{90, 140, 60, 255}))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 40), mask.Rect)
	assert.Equal(t, 0, CountNonZero(mask, mask.Rect))
}

func TestPipeline_DarkBlockIsForeground(t *testing.T) {
	img := uniformRGBA(80, 80, color.RGBA{220, 220, 220, 255})
	for y := 30; y < 50; y++ {
		for x := 30; x < 50; x++ {
			img.SetRGBA(x, y, color.RGBA{20, 20, 20, 255})
		}
	}
	p := NewPipeline(DefaultParams())
	mask, err := p.Binarize(img)
	require.NoError(t, err)

	inside := CountNonZero(mask, image.Rect(28, 28, 52, 52))
	outside := CountNonZero(mask, image.Rect(0, 0, 20, 20))
	assert.Greater(t, inside, 0)
	assert.Equal(t, 0, outside)
}

func TestNewBinarizer(t *testing.T) {
	b := NewBinarizer(DefaultParams())
	require.NotNil(t, b)
	mask, err := b.Binarize(uniformRGBA(40, 30, color.RGBA{R: 90, G: 90, B: 90, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 40, mask.Rect.Dx())
	assert.Equal(t, 30, mask.Rect.Dy())
}
