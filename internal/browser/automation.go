package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chelton/forumbot/internal/captcha"
)

// ErrLoggedOut tells the caller the session bounced back to the login page
// mid-cycle; a re-login is the expected recovery.
var ErrLoggedOut = errors.New("browser: session is logged out")

// ErrCodeUnresolved means OCR exhausted its budget and no manual fallback
// was available.
var ErrCodeUnresolved = errors.New("browser: verification code could not be resolved")

// ManualFunc asks a human for the verification code once OCR gives up.
type ManualFunc func(ctx context.Context) (string, error)

// CycleReport summarizes one automation cycle over the case table.
type CycleReport struct {
	Total     int
	Processed int
}

// Automation bundles the browser session with the captcha pipeline and the
// manual fallback. This is the surface the bot host drives.
type Automation struct {
	Session  *Session
	Resolver *captcha.Resolver
	Manual   ManualFunc
	Logger   *slog.Logger
}

func (a *Automation) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Start launches the underlying browser.
func (a *Automation) Start(ctx context.Context) error {
	return a.Session.Start(ctx)
}

// Close shuts the browser down.
func (a *Automation) Close() error {
	return a.Session.Close()
}

// TargetID exposes the tab's DevTools target for the dashboard screencast.
func (a *Automation) TargetID() string {
	return a.Session.TargetID()
}

// Login performs the full login flow, resolving the verification code by OCR
// and deferring to the operator when the retry budget runs out.
func (a *Automation) Login(ctx context.Context, username, password string) error {
	return a.Session.Login(ctx, Credentials{Username: username, Password: password}, a.resolveCode)
}

func (a *Automation) resolveCode(ctx context.Context) (string, error) {
	res := a.Resolver.Resolve(ctx)
	switch res.Outcome {
	case captcha.OutcomeSucceeded:
		return res.Text, nil
	case captcha.OutcomeCancelled:
		return "", context.Canceled
	default:
		if a.Manual == nil {
			return "", ErrCodeUnresolved
		}
		a.logger().Info("ocr exhausted, waiting for manual captcha entry",
			slog.Int("attempts", len(res.Attempts)))
		return a.Manual(ctx)
	}
}

// ProcessCases runs one cycle: open the table, bail out with ErrLoggedOut if
// the session expired, enable the intake switch, select the first pending
// case and confirm it.
func (a *Automation) ProcessCases(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	if err := a.Session.OpenForum(ctx); err != nil {
		return report, fmt.Errorf("browser: open forum: %w", err)
	}

	out, err := a.Session.LoggedOut(ctx)
	if err != nil {
		return report, err
	}
	if out {
		return report, ErrLoggedOut
	}

	total, err := a.Session.CountCases(ctx)
	if err != nil {
		return report, fmt.Errorf("browser: count cases: %w", err)
	}
	report.Total = total
	if total == 0 {
		return report, nil
	}

	if err := a.Session.EnableIntakeSwitch(ctx); err != nil {
		a.logger().Warn("intake switch could not be enabled", slog.Any("error", err))
	}

	selected, err := a.Session.SelectFirstCase(ctx)
	if err != nil {
		return report, fmt.Errorf("browser: select case: %w", err)
	}
	if !selected {
		return report, nil
	}

	if err := a.Session.ClickConfirm(ctx); err != nil {
		return report, fmt.Errorf("browser: confirm: %w", err)
	}
	report.Processed = 1
	return report, nil
}
