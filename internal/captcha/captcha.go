// Package captcha resolves canvas-rendered verification codes by running a
// captured image through several preprocessing strategies and OCR
// configurations, then picking the most plausible candidate. The browser and
// the OCR engine are injected as capabilities so the pipeline itself stays
// free of chromedp and cgo.
package captcha

import (
	"context"
	"image"
)

// Source captures the current verification-code image from the page and can
// request a fresh one. Both calls go to the browser session.
type Source interface {
	CaptureCaptcha(ctx context.Context) (image.Image, error)
	RefreshCaptcha(ctx context.Context) error
}

// Engine runs OCR over a single processed image with one configuration.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, cfg EngineConfig) (string, error)
}

// EngineConfig is one OCR engine configuration: a tesseract page segmentation
// mode plus an optional character whitelist.
type EngineConfig struct {
	Label       string
	PageSegMode int
	Whitelist   string
}

// Variant is one preprocessed rendition of a captured image, tagged with the
// strategy that produced it. Variants only live within a single attempt.
type Variant struct {
	Strategy string
	Img      image.Image
}

// Candidate is one raw OCR result. Index is the position of its
// (strategy, config) pair in evaluation order and is what makes the
// tie-break in Select deterministic.
type Candidate struct {
	Text     string
	Strategy string
	Config   string
	Index    int
}

// Format describes the expected shape of a valid code.
type Format struct {
	Length   int
	Alphabet string
}

// Outcome is the terminal result of a resolution run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeExhausted Outcome = "exhausted"
)

// AttemptOutcome classifies a single acquire/process/select cycle.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptNoAnswer  AttemptOutcome = "no-confident-answer"
	AttemptError     AttemptOutcome = "error"
)

// Attempt records one resolution attempt for the retry history.
type Attempt struct {
	Index   int
	Outcome AttemptOutcome
	Text    string
	Reason  string
}

// Result is what Resolve hands back to the caller. Text is only set when
// Outcome is OutcomeSucceeded.
type Result struct {
	Outcome  Outcome
	Text     string
	Attempts []Attempt
}
