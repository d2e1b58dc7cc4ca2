package captcha

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	captures  int
	refreshes int
	captureFn func(n int) (image.Image, error)

	// cancel is invoked after each capture, to simulate a stop signal
	// arriving mid-run.
	cancelAfter int
	cancel      context.CancelFunc
}

func (s *fakeSource) CaptureCaptcha(context.Context) (image.Image, error) {
	s.captures++
	if s.cancel != nil && s.captures == s.cancelAfter {
		s.cancel()
	}
	if s.captureFn != nil {
		return s.captureFn(s.captures)
	}
	return image.NewNRGBA(image.Rect(0, 0, 90, 32)), nil
}

func (s *fakeSource) RefreshCaptcha(context.Context) error {
	s.refreshes++
	return nil
}

// fakeEngine answers per (strategy, config) from a script; unlisted
// combinations report an engine error.
type fakeEngine struct {
	calls   int
	answers map[string]string
}

func (e *fakeEngine) Recognize(_ context.Context, _ image.Image, cfg EngineConfig) (string, error) {
	e.calls++
	if text, ok := e.answers[cfg.Label]; ok {
		return text, nil
	}
	return "", errors.New("engine: no text found")
}

func digitFormat() Format { return Format{Length: 4, Alphabet: "0123456789"} }

// one strategy keeps the combination count predictable in tests
func singleStrategy() []Strategy {
	return []Strategy{{
		Name: "identity",
		Apply: func(img image.Image) (image.Image, error) {
			return img, nil
		},
	}}
}

func TestResolveSucceedsOnFirstAttempt(t *testing.T) {
	src := &fakeSource{}
	eng := &fakeEngine{answers: map[string]string{
		"a": "73 12",
		"b": "7312",
		"c": "9999",
	}}
	r := &Resolver{
		Source:     src,
		Engine:     eng,
		Strategies: singleStrategy(),
		Configs:    []EngineConfig{{Label: "a"}, {Label: "b"}, {Label: "c"}},
		Format:     digitFormat(),
	}

	res := r.Resolve(context.Background())
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "7312", res.Text)
	assert.Equal(t, 1, src.captures)
	assert.Zero(t, src.refreshes, "no refresh after a success")
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, AttemptSucceeded, res.Attempts[0].Outcome)
}

func TestResolveExhaustsBudget(t *testing.T) {
	src := &fakeSource{}
	eng := &fakeEngine{answers: map[string]string{"a": "too-long-result"}}
	r := &Resolver{
		Source:      src,
		Engine:      eng,
		Strategies:  singleStrategy(),
		Configs:     []EngineConfig{{Label: "a"}},
		Format:      digitFormat(),
		MaxAttempts: 5,
	}

	res := r.Resolve(context.Background())
	require.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Empty(t, res.Text)
	assert.Equal(t, 5, src.captures)
	assert.Equal(t, 4, src.refreshes, "refresh between attempts, none after the last")
	require.Len(t, res.Attempts, 5)
	for _, a := range res.Attempts {
		assert.Equal(t, AttemptNoAnswer, a.Outcome)
	}
}

func TestResolveCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{cancelAfter: 2, cancel: cancel}
	eng := &fakeEngine{} // every combination errors, so no attempt succeeds
	r := &Resolver{
		Source:      src,
		Engine:      eng,
		Strategies:  singleStrategy(),
		Configs:     []EngineConfig{{Label: "a"}},
		Format:      digitFormat(),
		MaxAttempts: 5,
	}

	res := r.Resolve(ctx)
	require.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 2, src.captures, "no further acquiring after the stop signal")
	assert.Len(t, res.Attempts, 2)
}

func TestResolveAcquisitionErrorConsumesBudget(t *testing.T) {
	src := &fakeSource{captureFn: func(n int) (image.Image, error) {
		if n == 1 {
			return nil, errors.New("canvas element not found")
		}
		return image.NewNRGBA(image.Rect(0, 0, 90, 32)), nil
	}}
	eng := &fakeEngine{answers: map[string]string{"a": "4471"}}
	r := &Resolver{
		Source:      src,
		Engine:      eng,
		Strategies:  singleStrategy(),
		Configs:     []EngineConfig{{Label: "a"}},
		Format:      digitFormat(),
		MaxAttempts: 2,
	}

	res := r.Resolve(context.Background())
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "4471", res.Text)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, AttemptError, res.Attempts[0].Outcome)
	assert.Contains(t, res.Attempts[0].Reason, "canvas element")
	assert.Equal(t, 1, src.refreshes, "acquisition failure triggers a refresh")
}

func TestResolveEngineErrorsAreNonFatal(t *testing.T) {
	src := &fakeSource{}
	eng := &fakeEngine{answers: map[string]string{"c": "0042"}}
	r := &Resolver{
		Source:     src,
		Engine:     eng,
		Strategies: singleStrategy(),
		// a and b error, c answers; the pipeline must reach c
		Configs: []EngineConfig{{Label: "a"}, {Label: "b"}, {Label: "c"}},
		Format:  digitFormat(),
	}

	res := r.Resolve(context.Background())
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "0042", res.Text)
	assert.Equal(t, 3, eng.calls, "every combination must run despite errors")
}

func TestResolutionFSMRejectsIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	m := newResolutionFSM()

	// success is only reachable through selecting
	require.Error(t, m.Event(ctx, evSucceed))
	assert.Equal(t, StateIdle, m.Current())

	require.NoError(t, m.Event(ctx, evAcquire))
	assert.Equal(t, StateAcquiring, m.Current())

	// exhaustion and cancellation only happen between attempts
	assert.Error(t, m.Event(ctx, evExhaust))
	assert.Error(t, m.Event(ctx, evCancel))
	assert.Equal(t, StateAcquiring, m.Current())
}

func TestResolveWalksMachineToTerminalState(t *testing.T) {
	ctx := context.Background()
	m := newResolutionFSM()

	// the happy path of one attempt
	for _, ev := range []string{evAcquire, evProcess, evSelect, evSucceed} {
		require.NoError(t, m.Event(ctx, ev), ev)
	}
	assert.True(t, terminalState(m.Current()))
	assert.Equal(t, StateSucceeded, m.Current())

	// the retry path ends in exhaustion
	m = newResolutionFSM()
	for _, ev := range []string{evAcquire, evProcess, evSelect, evRetry, evExhaust} {
		require.NoError(t, m.Event(ctx, ev), ev)
	}
	assert.Equal(t, StateExhausted, m.Current())
}

func TestResolveWrongLengthIsNoConfidentAnswer(t *testing.T) {
	src := &fakeSource{}
	eng := &fakeEngine{answers: map[string]string{"a": "123"}}
	r := &Resolver{
		Source:      src,
		Engine:      eng,
		Strategies:  singleStrategy(),
		Configs:     []EngineConfig{{Label: "a"}},
		Format:      digitFormat(),
		MaxAttempts: 2,
	}

	res := r.Resolve(context.Background())
	require.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, 1, src.refreshes)
	require.NotEmpty(t, res.Attempts)
	assert.Equal(t, AttemptNoAnswer, res.Attempts[0].Outcome)
}
