package browser

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDebugAddr(t *testing.T) {
	host, port := splitDebugAddr(":9222")
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, "9222", port)

	host, port = splitDebugAddr("0.0.0.0:9222")
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, "9222", port)

	host, port = splitDebugAddr("9222")
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, "9222", port)
}

func TestPlausibleCaptchaSize(t *testing.T) {
	assert.True(t, plausibleCaptchaSize(image.Rect(0, 0, 100, 40)))
	assert.True(t, plausibleCaptchaSize(image.Rect(0, 0, 200, 80)), "2x device pixel ratio capture")
	assert.False(t, plausibleCaptchaSize(image.Rect(0, 0, 16, 16)), "icon-sized element")
	assert.False(t, plausibleCaptchaSize(image.Rect(0, 0, 1920, 1080)), "full-page canvas")
}
