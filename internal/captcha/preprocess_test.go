package captcha

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCapture builds a small synthetic capture: dark glyph strokes on a light
// background with a noisy mid-gray band.
func testCapture(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 235, G: 235, B: 240, A: 255}
			if x%7 < 2 && y > h/4 && y < 3*h/4 {
				c = color.NRGBA{R: 30, G: 30, B: 40, A: 255}
			} else if (x+y)%11 == 0 {
				c = color.NRGBA{R: 128, G: 130, B: 125, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestPreprocessProducesAllVariantsInOrder(t *testing.T) {
	variants := Preprocess(testCapture(90, 32), DefaultStrategies())
	require.Len(t, variants, len(DefaultStrategies()))
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		names = append(names, v.Strategy)
	}
	assert.Equal(t, []string{"gray-otsu", "gray-adaptive", "upscale-sharpen", "contrast-otsu", "inverted", "best-channel"}, names)
}

func TestBestChannelPrefersHighContrastChannel(t *testing.T) {
	// strokes live in the red channel only; green and blue are flat
	img := image.NewNRGBA(image.Rect(0, 0, 60, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 60; x++ {
			r := uint8(240)
			if x%5 < 2 {
				r = 20
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: 200, B: 200, A: 255})
		}
	}

	chans := splitChannels(img)
	assert.Greater(t, grayVariance(chans[0]), grayVariance(chans[1]))
	assert.Zero(t, grayVariance(chans[1]))
	assert.Zero(t, grayVariance(chans[2]))

	out, err := bestChannelOtsu(img)
	require.NoError(t, err)
	g := out.(*image.Gray)
	assert.Contains(t, g.Pix, uint8(0), "strokes must survive binarization")
	assert.Contains(t, g.Pix, uint8(255))
}

func TestPreprocessSkipsTooSmallImage(t *testing.T) {
	variants := Preprocess(testCapture(4, 4), DefaultStrategies())
	assert.Empty(t, variants)
}

func TestStrategiesAreDeterministic(t *testing.T) {
	in := testCapture(90, 32)
	for _, s := range DefaultStrategies() {
		a, err := s.Apply(in)
		require.NoError(t, err, s.Name)
		b, err := s.Apply(in)
		require.NoError(t, err, s.Name)

		ga, ok := a.(*image.Gray)
		require.True(t, ok, "%s must produce a binarized gray image", s.Name)
		gb := b.(*image.Gray)
		assert.Equal(t, ga.Pix, gb.Pix, "%s must be pure", s.Name)
	}
}

func TestStrategiesDoNotMutateInput(t *testing.T) {
	in := testCapture(90, 32)
	orig := make([]uint8, len(in.Pix))
	copy(orig, in.Pix)

	for _, s := range DefaultStrategies() {
		_, err := s.Apply(in)
		require.NoError(t, err, s.Name)
		assert.Equal(t, orig, in.Pix, "%s mutated the capture buffer", s.Name)
	}
}

func TestThresholdOutputIsBinary(t *testing.T) {
	out, err := grayOtsu(testCapture(90, 32))
	require.NoError(t, err)
	g := out.(*image.Gray)
	for _, p := range g.Pix {
		assert.True(t, p == 0 || p == 255, "otsu output must be strictly black or white, got %d", p)
	}
}
