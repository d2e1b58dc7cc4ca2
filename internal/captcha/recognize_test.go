package captcha

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizeAllKeepsIndicesStableAcrossFailures(t *testing.T) {
	variants := []Variant{
		{Strategy: "s1", Img: image.NewGray(image.Rect(0, 0, 8, 8))},
		{Strategy: "s2", Img: image.NewGray(image.Rect(0, 0, 8, 8))},
	}
	configs := []EngineConfig{{Label: "a"}, {Label: "b"}}
	eng := &fakeEngine{answers: map[string]string{"b": "1234"}}

	got := RecognizeAll(context.Background(), eng, variants, configs, nil)

	// config "a" fails on both variants but its slots still count, so the
	// "b" results keep the indices they would have with no failures at all
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, "s1", got[0].Strategy)
	assert.Equal(t, 3, got[1].Index)
	assert.Equal(t, "s2", got[1].Strategy)
	assert.Equal(t, 4, eng.calls)
}

func TestDefaultEngineConfigsMatrix(t *testing.T) {
	configs := DefaultEngineConfigs("0123456789")
	require.Len(t, configs, 9)
	for _, cfg := range configs[:5] {
		assert.Equal(t, "0123456789", cfg.Whitelist, cfg.Label)
	}
	for _, cfg := range configs[5:] {
		assert.Empty(t, cfg.Whitelist, "fallback %s must run unrestricted", cfg.Label)
	}
}
