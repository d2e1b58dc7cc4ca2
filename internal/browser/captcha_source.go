package browser

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrCaptchaNotFound means no element on the page looked like the
// verification-code canvas.
var ErrCaptchaNotFound = errors.New("browser: captcha element not found")

// The code is drawn on a bare canvas; img elements are the fallback for the
// occasional deploy that serves it as an image.
var captchaSelectors = []string{
	"canvas",
	"img[src*='captcha']",
	"img[src*='verification']",
	"img[alt*='captcha']",
	"img[alt*='verification']",
}

var refreshSelectors = []string{
	"button[title*='refresh']",
	"button[title*='Refresh']",
	"button[class*='refresh']",
	"button[class*='reload']",
	"img[alt*='refresh']",
	"img[alt*='Refresh']",
}

// plausibleCaptchaSize filters out page-sized canvases and icons. The bounds
// are twice the original on-screen limits because the screenshot can come
// back at 2x device pixel ratio.
func plausibleCaptchaSize(b image.Rectangle) bool {
	w, h := b.Dx(), b.Dy()
	return w > 20 && w < 400 && h > 10 && h < 200
}

// CaptureCaptcha implements captcha.Source: it screenshots the first element
// matching the selector list whose size is plausible for a code image.
func (s *Session) CaptureCaptcha(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return nil, err
	}
	defer cancel()

	for _, sel := range captchaSelectors {
		var buf []byte
		err := chromedp.Run(tctx,
			chromedp.ScrollIntoView(sel, chromedp.NodeVisible),
			chromedp.Screenshot(sel, &buf, chromedp.NodeVisible),
		)
		if err != nil {
			continue
		}
		img, err := png.Decode(bytes.NewReader(buf))
		if err != nil {
			continue
		}
		if !plausibleCaptchaSize(img.Bounds()) {
			continue
		}
		return img, nil
	}
	return nil, ErrCaptchaNotFound
}

// RefreshCaptcha implements captcha.Source: it clicks the refresh control if
// one exists, otherwise reloads the page, then waits for the new code to
// render.
func (s *Session) RefreshCaptcha(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return err
	}
	defer cancel()

	for _, sel := range refreshSelectors {
		cctx, ccancel := context.WithTimeout(tctx, 2*time.Second)
		err := chromedp.Run(cctx, chromedp.Click(sel, chromedp.NodeVisible))
		ccancel()
		if err == nil {
			return chromedp.Run(tctx, chromedp.Sleep(2*time.Second))
		}
	}

	// no refresh control on this deploy: reload the whole page
	return chromedp.Run(tctx,
		chromedp.Reload(),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
	)
}
