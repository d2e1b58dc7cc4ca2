// Package ocr binds the captcha pipeline to tesseract via gosseract.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/chelton/forumbot/internal/captcha"
)

// Tesseract implements captcha.Engine on top of a local tesseract install.
// A fresh client per call keeps the whitelist and page segmentation mode of
// one combination from leaking into the next.
type Tesseract struct {
	// Languages passed to the engine; empty means gosseract's default (eng).
	Languages []string
	// Timeout bounds a single recognition pass; zero means no bound beyond
	// the caller's context.
	Timeout time.Duration
}

// Recognize encodes the variant to PNG and runs one tesseract pass with the
// given configuration. The engine itself has no cancellation support, so the
// blocking call runs in a goroutine and the caller's deadline wins the race.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, cfg captcha.EngineConfig) (string, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("ocr: encode variant: %w", err)
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if len(t.Languages) > 0 {
			if err := client.SetLanguage(t.Languages...); err != nil {
				ch <- result{err: fmt.Errorf("ocr: set language: %w", err)}
				return
			}
		}
		if cfg.Whitelist != "" {
			if err := client.SetWhitelist(cfg.Whitelist); err != nil {
				ch <- result{err: fmt.Errorf("ocr: set whitelist: %w", err)}
				return
			}
		}
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
			ch <- result{err: fmt.Errorf("ocr: set page seg mode: %w", err)}
			return
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			ch <- result{err: fmt.Errorf("ocr: set image: %w", err)}
			return
		}

		text, err := client.Text()
		if err != nil {
			ch <- result{err: fmt.Errorf("ocr: %w", err)}
			return
		}
		ch <- result{text: text}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.text, r.err
	}
}
