// Package bot hosts the background automation loop and owns all mutable bot
// state. The control surface talks to the loop through messages (start,
// stop, run-once, manual code) instead of sharing flags with it.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chelton/forumbot/internal/browser"
)

var (
	ErrAlreadyRunning = errors.New("bot: already running")
	ErrNotRunning     = errors.New("bot: not running")
	ErrNoManualCode   = errors.New("bot: no manual code arrived before the deadline")
)

// Forum is the browser-facing surface the host loop drives. Implemented by
// browser.Automation; faked in tests.
type Forum interface {
	Start(ctx context.Context) error
	Close() error
	Login(ctx context.Context, username, password string) error
	ProcessCases(ctx context.Context) (browser.CycleReport, error)
	TargetID() string
}

// Status is a point-in-time snapshot for the dashboard. Field names follow
// the dashboard's JSON contract.
type Status struct {
	Running        bool      `json:"running"`
	LoggedIn       bool      `json:"login_status"`
	LastCheck      time.Time `json:"last_check"`
	TotalCases     int       `json:"total_cases"`
	ProcessedCases int       `json:"processed_cases"`
	LastError      string    `json:"error_message,omitempty"`
	TargetID       string    `json:"target_id,omitempty"`
}

// Bot runs the monitor loop on a background goroutine.
type Bot struct {
	forum      Forum
	interval   time.Duration
	manualWait time.Duration
	logger     *slog.Logger

	// opMu serializes Start, Stop and CheckLogin end to end; the browser
	// launch and login inside them are slow, and two interleaved sequences
	// would orphan a running loop.
	opMu sync.Mutex

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}

	runNow chan chan error
	manual chan string
}

// New wires a bot around a forum surface. interval is the monitor period;
// manualWait bounds how long the captcha fallback waits for the operator.
func New(forum Forum, interval, manualWait time.Duration, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		forum:      forum,
		interval:   interval,
		manualWait: manualWait,
		logger:     logger,
		runNow:     make(chan chan error),
		manual:     make(chan string, 1),
	}
}

// Start launches the browser, logs in, and starts the monitor loop. The
// login happens synchronously so the caller learns about bad credentials
// immediately.
func (b *Bot) Start(ctx context.Context, username, password string) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.mu.Unlock()

	if err := b.forum.Start(ctx); err != nil {
		b.recordError(err)
		return err
	}
	if err := b.forum.Login(ctx, username, password); err != nil {
		b.recordError(err)
		_ = b.forum.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	b.cancel = cancel
	b.done = done
	b.status.Running = true
	b.status.LoggedIn = true
	b.status.LastError = ""
	b.status.ProcessedCases = 0
	b.status.TargetID = b.forum.TargetID()
	b.mu.Unlock()

	go b.loop(loopCtx, done, username, password)
	b.logger.Info("bot started", slog.Duration("interval", b.interval))
	return nil
}

// Stop signals the loop, waits for it to drain, and closes the browser.
func (b *Bot) Stop() error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	<-done
	err := b.forum.Close()

	b.mu.Lock()
	b.cancel = nil
	b.done = nil
	b.status.Running = false
	b.status.LoggedIn = false
	b.status.TargetID = ""
	b.mu.Unlock()
	b.logger.Info("bot stopped")
	return err
}

// RunOnce asks the running loop to execute one cycle now and waits for its
// result.
func (b *Bot) RunOnce(ctx context.Context) error {
	b.mu.Lock()
	running := b.cancel != nil
	b.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case b.runNow <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckLogin validates credentials with a throwaway session, mirroring the
// dashboard's login test. Refused while the bot is running.
func (b *Bot) CheckLogin(ctx context.Context, username, password string) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	running := b.cancel != nil
	b.mu.Unlock()
	if running {
		return ErrAlreadyRunning
	}
	if err := b.forum.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = b.forum.Close() }()
	return b.forum.Login(ctx, username, password)
}

// Status returns a snapshot of the loop state.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// SubmitCode hands a manually entered verification code to whichever login
// attempt is waiting on the fallback. A stale unclaimed code is replaced.
// Both the drain and the send are non-blocking; concurrent submissions race
// for the slot but never hold up the caller.
func (b *Bot) SubmitCode(code string) {
	select {
	case <-b.manual:
	default:
	}
	select {
	case b.manual <- code:
	default:
	}
}

// ManualCode blocks until the operator submits a code on the dashboard or
// the deadline passes. Wired into the automation as the exhausted-OCR
// fallback.
func (b *Bot) ManualCode(ctx context.Context) (string, error) {
	b.logger.Info("waiting for manual captcha entry", slog.Duration("deadline", b.manualWait))
	timer := time.NewTimer(b.manualWait)
	defer timer.Stop()
	select {
	case code := <-b.manual:
		return code, nil
	case <-timer.C:
		return "", ErrNoManualCode
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Bot) loop(ctx context.Context, done chan struct{}, username, password string) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	// first cycle right away, then on the interval
	_ = b.cycle(ctx, username, password)
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-b.runNow:
			reply <- b.cycle(ctx, username, password)
		case <-ticker.C:
			_ = b.cycle(ctx, username, password)
		}
	}
}

// cycle runs one pass over the case table, re-logging-in once if the session
// expired underneath us.
func (b *Bot) cycle(ctx context.Context, username, password string) error {
	report, err := b.forum.ProcessCases(ctx)
	if errors.Is(err, browser.ErrLoggedOut) {
		b.logger.Warn("session expired, logging in again")
		b.setLoggedIn(false)
		if err = b.forum.Login(ctx, username, password); err != nil {
			b.recordError(err)
			return err
		}
		b.setLoggedIn(true)
		report, err = b.forum.ProcessCases(ctx)
	}

	b.mu.Lock()
	b.status.LastCheck = time.Now()
	b.status.TotalCases = report.Total
	b.status.ProcessedCases += report.Processed
	if err != nil && !errors.Is(err, context.Canceled) {
		b.status.LastError = err.Error()
	} else if err == nil {
		b.status.LastError = ""
	}
	b.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("cycle failed", slog.Any("error", err))
	} else if report.Processed > 0 {
		b.logger.Info("case confirmed", slog.Int("total", report.Total))
	}
	return err
}

func (b *Bot) setLoggedIn(v bool) {
	b.mu.Lock()
	b.status.LoggedIn = v
	b.mu.Unlock()
}

func (b *Bot) recordError(err error) {
	b.mu.Lock()
	b.status.LastError = err.Error()
	b.mu.Unlock()
}
