// Package browser drives the forum page through a headless Chrome via
// chromedp. The remote debugging port stays open so the dashboard can mirror
// the tab over the DevTools websocket and the operator can step in by hand.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const defaultOpTimeout = 15 * time.Second

// userAgent matches a desktop browser so the forum serves its regular page.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Config carries the session-level settings.
type Config struct {
	BaseURL   string
	LoginURL  string
	DebugAddr string // Chrome remote debugging listen address, host:port
	Headless  bool
	OpTimeout time.Duration
}

// Session owns one Chrome process and the single tab the bot works in. All
// mutable state lives here rather than in package globals so the control
// surface and the automation loop never share implicit state.
type Session struct {
	cfg Config

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	targetID    target.ID
	debugPort   string
}

// NewSession configures a session without starting Chrome.
func NewSession(cfg Config) *Session {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	return &Session{cfg: cfg}
}

// splitDebugAddr splits a listen address into host and port, defaulting the
// host to 127.0.0.1 if not specified.
func splitDebugAddr(addr string) (string, string) {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) == 1 {
		return "127.0.0.1", parts[0]
	}
	host := parts[0]
	if host == "" {
		host = "127.0.0.1"
	}
	return host, parts[1]
}

// Start launches Chrome with the remote-debugging flags and opens the bot's
// tab. Calling Start on a running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	// ensure only exactly one browser is prepared
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tab != nil {
		return nil
	}

	host, port := splitDebugAddr(s.cfg.DebugAddr)
	s.debugPort = port

	// insert remote-debugging flags and the options the forum page needs
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("remote-debugging-address", host),
		chromedp.Flag("remote-debugging-port", port),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	}
	if s.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// an empty run starts the browser and attaches the tab target
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return err
	}

	s.allocCancel = allocCancel
	s.tab = tab
	s.tabCancel = tabCancel
	s.targetID = chromedp.FromContext(tab).Target.TargetID
	return nil
}

// TargetID returns the DevTools target of the bot's tab, used by the
// dashboard to attach its screencast.
func (s *Session) TargetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.targetID)
}

// DebugPort returns the Chrome remote debugging port the session listens on.
func (s *Session) DebugPort() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugPort
}

// Close shuts down the tab and the browser process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tab == nil {
		return errors.New("browser: session not started or already closed")
	}
	s.tabCancel()
	s.allocCancel()
	s.tab = nil
	s.tabCancel = nil
	s.allocCancel = nil
	s.targetID = ""
	return nil
}

// op returns the tab context bounded by the operation timeout. The caller's
// context is checked between operations; chromedp actions themselves run on
// the tab's context chain.
func (s *Session) op() (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tab == nil {
		return nil, nil, errors.New("browser: session not started")
	}
	ctx, cancel := context.WithTimeout(s.tab, s.cfg.OpTimeout)
	return ctx, cancel, nil
}

func (s *Session) navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel, err := s.op()
	if err != nil {
		return err
	}
	defer cancel()
	return chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
}
