package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ErrLoginFailed means the form was submitted but the page never left the
// login URL, usually wrong credentials or a wrong verification code.
var ErrLoginFailed = errors.New("browser: login failed, still on login page")

// The forum's markup drifts between deploys, so every form element is
// located by a list of selectors tried in order.
var (
	usernameSelectors = []string{
		"input[placeholder*='account']",
		"input[placeholder*='Account']",
		"input[name='username']",
		"input[name='account']",
		"input[type='text']",
	}
	passwordSelectors = []string{
		"input[placeholder*='password']",
		"input[placeholder*='Password']",
		"input[name='password']",
		"input[type='password']",
	}
	verificationSelectors = []string{
		"input[placeholder*='verification']",
		"input[placeholder*='Verification']",
		"input[name='verification']",
		"input[name='captcha']",
	}
	signInSelectors = []string{
		"button[type='submit']",
		"input[type='submit']",
		"button.ant-btn-primary",
	}
)

// Credentials for the forum login form.
type Credentials struct {
	Username string
	Password string
}

// CodeFunc produces the verification code for the login form. It is wired to
// the captcha resolver, with the operator's manual entry as last resort.
type CodeFunc func(ctx context.Context) (string, error)

// Login navigates to the login page, fills the form, obtains the
// verification code through code, submits, and verifies the page moved off
// the login URL.
func (s *Session) Login(ctx context.Context, creds Credentials, code CodeFunc) error {
	if err := s.navigate(ctx, s.cfg.LoginURL); err != nil {
		return fmt.Errorf("browser: open login page: %w", err)
	}

	userSel, err := s.firstMatch(usernameSelectors)
	if err != nil {
		return fmt.Errorf("browser: username field: %w", err)
	}
	passSel, err := s.firstMatch(passwordSelectors)
	if err != nil {
		return fmt.Errorf("browser: password field: %w", err)
	}
	codeSel, err := s.firstMatch(verificationSelectors)
	if err != nil {
		return fmt.Errorf("browser: verification field: %w", err)
	}

	if err := s.fill(userSel, creds.Username); err != nil {
		return fmt.Errorf("browser: fill username: %w", err)
	}
	if err := s.fill(passSel, creds.Password); err != nil {
		return fmt.Errorf("browser: fill password: %w", err)
	}

	text, err := code(ctx)
	if err != nil {
		return fmt.Errorf("browser: verification code: %w", err)
	}
	if err := s.fill(codeSel, text); err != nil {
		return fmt.Errorf("browser: fill verification code: %w", err)
	}

	signSel, err := s.firstMatch(signInSelectors)
	if err != nil {
		return fmt.Errorf("browser: sign-in button: %w", err)
	}
	if err := s.click(signSel); err != nil {
		return fmt.Errorf("browser: click sign-in: %w", err)
	}

	return s.awaitRedirect(ctx)
}

// awaitRedirect polls the location until it leaves the login page or the
// deadline passes.
func (s *Session) awaitRedirect(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := s.LoggedOut(ctx)
		if err != nil {
			return err
		}
		if !out {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return ErrLoginFailed
}

// firstMatch returns the first selector from the list that currently matches
// at least one node.
func (s *Session) firstMatch(selectors []string) (string, error) {
	tctx, cancel, err := s.op()
	if err != nil {
		return "", err
	}
	defer cancel()
	for _, sel := range selectors {
		var nodes []*cdp.Node
		if err := chromedp.Run(tctx, chromedp.Nodes(sel, &nodes, chromedp.AtLeast(0))); err != nil {
			continue
		}
		if len(nodes) > 0 {
			return sel, nil
		}
	}
	return "", fmt.Errorf("none of %d selectors matched", len(selectors))
}

func (s *Session) fill(sel, value string) error {
	tctx, cancel, err := s.op()
	if err != nil {
		return err
	}
	defer cancel()
	return chromedp.Run(tctx,
		chromedp.Clear(sel),
		chromedp.SendKeys(sel, value),
	)
}

// LoggedOut reports whether the current location is the login page.
func (s *Session) LoggedOut(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return false, err
	}
	defer cancel()
	var loc string
	if err := chromedp.Run(tctx, chromedp.Location(&loc)); err != nil {
		return false, err
	}
	return strings.Contains(loc, "login"), nil
}
