// internal/browser/cdp/session.go

package cdp

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actiongate/internal/config"
)

const launchTimeout = 30 * time.Second

// Session owns one Chrome process and the tabs opened in it.
type Session struct {
	id              string
	logger          *zap.Logger
	browserCfg      config.BrowserConfig
	inputCfg        config.InputConfig
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	// browserCtx owns the browser process; canceling it shuts Chrome down.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	tabs   []context.CancelFunc
	closed bool
}

// Launch starts Chrome and confirms it responds before returning.
func Launch(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:         uuid.NewString(),
		browserCfg: cfg.Browser(),
		inputCfg:   cfg.Input(),
	}
	s.logger = logger.Named("session").With(zap.String("session_id", s.id))
	s.logger.Info("Initializing browser allocator...")

	s.allocatorCtx, s.allocatorCancel = chromedp.NewExecAllocator(ctx, buildAllocatorOptions(s.browserCfg, runtime.GOOS)...)

	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocatorCtx, chromedp.WithLogf(s.logger.Sugar().Debugf))

	// The first run starts the browser; it must succeed within launchTimeout.
	timer := time.AfterFunc(launchTimeout, s.browserCancel)
	err := chromedp.Run(s.browserCtx, chromedp.Navigate("about:blank"))
	timer.Stop()
	if err != nil {
		s.browserCancel()
		s.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s.logger.Info("Browser launched successfully and is responsive.")
	return s, nil
}

// ID returns the session's correlation id.
func (s *Session) ID() string { return s.id }

// NewPage opens a tab sized to the configured viewport.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s is closed", s.id)
	}
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	s.tabs = append(s.tabs, cancel)
	s.mu.Unlock()

	p, err := NewPage(tabCtx, s.inputCfg, s.logger)
	if err != nil {
		cancel()
		return nil, err
	}
	if w, h := viewport(s.browserCfg); w > 0 && h > 0 {
		if err := p.RunActions(ctx, chromedp.EmulateViewport(int64(w), int64(h))); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	return p, nil
}

// Close closes every tab and terminates the browser.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, cancel := range s.tabs {
		cancel()
	}
	s.browserCancel()
	s.allocatorCancel()
	s.logger.Info("Browser session closed.")
}

func viewport(cfg config.BrowserConfig) (int, int) {
	return cfg.Viewport["width"], cfg.Viewport["height"]
}

// launchFlags computes the Chrome command-line flags layered over chromedp's defaults.
func launchFlags(cfg config.BrowserConfig, goos string) map[string]interface{} {
	flags := map[string]interface{}{
		// Drop the flag that marks the browser as automated.
		"enable-automation":         false,
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-blink-features":    "AutomationControlled",
		"disable-extensions":        true,
		"disable-gpu":               cfg.Headless,
	}

	// Custom arguments from config.yaml, as "--name" or "--name=value".
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Containers on Linux need these.
	if goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}

func buildAllocatorOptions(cfg config.BrowserConfig, goos string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	flags := launchFlags(cfg, goos)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if w, h := viewport(cfg); w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	return opts
}
