package captcha

import (
	"context"
	"image"
	"log/slog"

	"github.com/looplab/fsm"
)

// Resolution loop states. One machine instance lives per Resolve call.
const (
	StateIdle       = "idle"
	StateAcquiring  = "acquiring"
	StateProcessing = "processing"
	StateSelecting  = "selecting"
	StateSucceeded  = "succeeded"
	StateRetrying   = "retrying"
	StateExhausted  = "exhausted"
	StateCancelled  = "cancelled"
)

const (
	evAcquire = "acquire"
	evProcess = "process"
	evSelect  = "select"
	evSucceed = "succeed"
	evRetry   = "retry"
	evExhaust = "exhaust"
	evCancel  = "cancel"
)

// DefaultMaxAttempts bounds the refresh-and-retry loop.
const DefaultMaxAttempts = 5

// Resolver orchestrates acquisition, preprocessing, recognition and
// selection for one verification code. Each Resolve call owns its image,
// variants and candidates exclusively; nothing is shared across attempts.
type Resolver struct {
	Source      Source
	Engine      Engine
	Strategies  []Strategy
	Configs     []EngineConfig
	Format      Format
	MaxAttempts int
	Logger      *slog.Logger
}

func newResolutionFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evAcquire, Src: []string{StateIdle, StateRetrying}, Dst: StateAcquiring},
			{Name: evProcess, Src: []string{StateAcquiring}, Dst: StateProcessing},
			{Name: evSelect, Src: []string{StateProcessing}, Dst: StateSelecting},
			{Name: evSucceed, Src: []string{StateSelecting}, Dst: StateSucceeded},
			{Name: evRetry, Src: []string{StateAcquiring, StateSelecting}, Dst: StateRetrying},
			{Name: evExhaust, Src: []string{StateRetrying}, Dst: StateExhausted},
			{Name: evCancel, Src: []string{StateIdle, StateRetrying}, Dst: StateCancelled},
		},
		fsm.Callbacks{},
	)
}

func terminalState(s string) bool {
	return s == StateSucceeded || s == StateCancelled || s == StateExhausted
}

// Resolve runs acquire -> preprocess -> recognize -> select until a code is
// found, the attempt budget runs out, or ctx is cancelled. Acquisition
// failures and no-confident-answer attempts both consume one budget unit and
// trigger a refresh before the next attempt. The machine's current state
// drives each step and its terminal state is the outcome, so no error
// escapes: every path maps to Succeeded, Cancelled or Exhausted, with the
// attempt history attached.
func (r *Resolver) Resolve(ctx context.Context) Result {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	m := newResolutionFSM()
	attempts := make([]Attempt, 0, maxAttempts)

	// step applies one transition; a refused event means the loop and the
	// machine disagree on what is legal, so resolution stops.
	broken := false
	step := func(event string) {
		if err := m.Event(ctx, event); err != nil {
			logger.Error("illegal resolution transition",
				slog.String("event", event),
				slog.String("state", m.Current()),
				slog.Any("error", err))
			broken = true
		}
	}

	var (
		attempt    int
		img        image.Image
		candidates []Candidate
		text       string
	)

	for !broken && !terminalState(m.Current()) {
		switch m.Current() {
		case StateIdle, StateRetrying:
			// stop signal is honored between attempts, before any new capture
			if ctx.Err() != nil {
				step(evCancel)
				continue
			}
			if attempt >= maxAttempts {
				step(evExhaust)
				continue
			}
			attempt++
			step(evAcquire)

		case StateAcquiring:
			var err error
			img, err = r.Source.CaptureCaptcha(ctx)
			if err != nil {
				logger.Warn("captcha capture failed",
					slog.Int("attempt", attempt),
					slog.Any("error", err))
				attempts = append(attempts, Attempt{Index: attempt, Outcome: AttemptError, Reason: err.Error()})
				step(evRetry)
				r.refresh(ctx, attempt, maxAttempts, logger)
				continue
			}
			step(evProcess)

		case StateProcessing:
			variants := Preprocess(img, r.Strategies)
			candidates = RecognizeAll(ctx, r.Engine, variants, r.Configs, logger)
			step(evSelect)

		case StateSelecting:
			if best, ok := Select(candidates, r.Format); ok {
				text = best
				attempts = append(attempts, Attempt{Index: attempt, Outcome: AttemptSucceeded, Text: best})
				logger.Info("captcha resolved",
					slog.Int("attempt", attempt),
					slog.Int("candidates", len(candidates)))
				step(evSucceed)
				continue
			}
			logger.Info("no confident captcha answer",
				slog.Int("attempt", attempt),
				slog.Int("candidates", len(candidates)))
			attempts = append(attempts, Attempt{Index: attempt, Outcome: AttemptNoAnswer})
			step(evRetry)
			r.refresh(ctx, attempt, maxAttempts, logger)
		}
	}

	switch m.Current() {
	case StateSucceeded:
		return Result{Outcome: OutcomeSucceeded, Text: text, Attempts: attempts}
	case StateCancelled:
		logger.Info("captcha resolution cancelled", slog.Int("attempts", len(attempts)))
		return Result{Outcome: OutcomeCancelled, Attempts: attempts}
	default:
		// exhausted, or a broken machine; both mean no code was produced
		logger.Warn("captcha retry budget exhausted", slog.Int("attempts", len(attempts)))
		return Result{Outcome: OutcomeExhausted, Attempts: attempts}
	}
}

// refresh asks the page for a new code before the next attempt. Skipped
// after the final attempt; a refresh failure is not itself an attempt.
func (r *Resolver) refresh(ctx context.Context, attempt, maxAttempts int, logger *slog.Logger) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return
	}
	if err := r.Source.RefreshCaptcha(ctx); err != nil {
		logger.Warn("captcha refresh failed", slog.Any("error", err))
	}
}
