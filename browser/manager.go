// Package browser owns the Chrome connection and the driver primitives the
// recording pipeline dispatches to: navigate, click, fill, select, evaluate.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls local launches. Manual recording wants a visible
	// window; agent-only sessions run headless.
	Headless bool

	// Stealth applies the stealth evasions to every created page.
	Stealth bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process (or remote connection) for one session.
// A recording session lives and dies with its browser: there is no recycle
// path, because every open page and element snapshot would dangle across a
// browser swap.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return fmt.Errorf("browser: already started")
	}

	log := m.cfg.Logger
	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headless", m.cfg.Headless)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	m.browser = b
	return nil
}

// Browser returns the Rod browser handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// NewPage creates a blank page, with stealth evasions when configured.
func (m *Manager) NewPage() (*rod.Page, error) {
	m.mu.Lock()
	b := m.browser
	stealthy := m.cfg.Stealth
	m.mu.Unlock()

	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}
	if stealthy {
		p, err := stealth.Page(b)
		if err != nil {
			return nil, fmt.Errorf("browser: stealth page: %w", err)
		}
		return p, nil
	}
	p, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	return p, nil
}

// WatchTargets reports page targets Chrome opens and closes outside our
// control: popups, window.open, user-opened tabs. Handlers run on the event
// goroutine until ctx is cancelled.
func (m *Manager) WatchTargets(ctx context.Context, onOpen func(*rod.Page), onClose func(targetID string)) error {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return fmt.Errorf("browser: not started")
	}

	log := m.cfg.Logger
	go b.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo.Type != "page" {
				return
			}
			p, err := b.PageFromTarget(e.TargetInfo.TargetID)
			if err != nil {
				log.Warn("browser: attach to new target failed", "error", err)
				return
			}
			onOpen(p)
		},
		func(e *proto.TargetTargetDestroyed) {
			onClose(string(e.TargetID))
		},
	)()
	return nil
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
