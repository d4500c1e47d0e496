// Package session wires one recording session together: the page registry,
// the action recorder, the secret vault, the navigation guard, and the
// per-page drivers. Every action flows through Dispatch, which applies the
// checks in a fixed order: guard, element resolution, secret substitution,
// then the driver call. Only a successful driver call produces a log record.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/talk2silicon/talk2browser/idgen"
	"github.com/talk2silicon/talk2browser/internal/store"
	"github.com/talk2silicon/talk2browser/kit"
	"github.com/talk2silicon/talk2browser/navguard"
	"github.com/talk2silicon/talk2browser/pages"
	"github.com/talk2silicon/talk2browser/recorder"
	"github.com/talk2silicon/talk2browser/script"
	"github.com/talk2silicon/talk2browser/vault"
)

// PageDriver is the per-page execution surface the session dispatches to.
// *browser.Driver implements it against a live Chrome page; tests implement
// it in memory.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Select(ctx context.Context, selector, option string) error
	EvalJSON(ctx context.Context, js string) (string, error)
	InstallInit(ctx context.Context, js string) error
	HTML(ctx context.Context) (string, error)
	Info(ctx context.Context) (url, title string, err error)
}

// Action is one proposed browser interaction. An element is addressed
// either by Hash+Version (planner path, resolved through the page's address
// book) or by a raw Selector (manual and replay paths); Hash wins when both
// are set.
type Action struct {
	Type     recorder.ActionType `json:"type"`
	URL      string              `json:"url,omitempty"`
	Hash     string              `json:"hash,omitempty"`
	Version  uint64              `json:"version,omitempty"`
	Selector string              `json:"selector,omitempty"`
	Value    string              `json:"value,omitempty"`
	PageID   string              `json:"page_id,omitempty"` // empty = active page
}

// newRequestID mints ids for individual planner and operator requests.
var newRequestID = idgen.Prefixed("req_", idgen.NanoID(10))

// Options configures a new session.
type Options struct {
	ID        string // empty = generated
	Task      string
	Allowlist []string
	Logger    *slog.Logger
}

// Session owns all per-session state. One instance per recording run,
// passed explicitly; sessions never share state through globals.
type Session struct {
	ID        string
	Task      string
	StartedAt time.Time

	Registry *pages.Registry
	Recorder *recorder.Recorder
	Vault    *vault.Vault
	Guard    *navguard.Guard

	log       *slog.Logger
	newPageID idgen.Generator

	mu      sync.Mutex
	drivers map[string]PageDriver
}

func New(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = idgen.Prefixed("sess_", idgen.Default)()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		ID:        opts.ID,
		Task:      opts.Task,
		StartedAt: time.Now(),
		Registry:  pages.NewRegistry(),
		Recorder:  recorder.New(),
		Vault:     vault.New(),
		Guard:     navguard.New(opts.Allowlist),
		log:       opts.Logger.With("session", opts.ID),
		newPageID: idgen.Prefixed("page_", idgen.Default),
		drivers:   make(map[string]PageDriver),
	}
}

// AttachPage registers a new page and its driver; the page becomes active.
func (s *Session) AttachPage(drv PageDriver, url, title, opener string) *pages.Entry {
	return s.attachPageID(s.newPageID(), drv, url, title, opener)
}

func (s *Session) attachPageID(id string, drv PageDriver, url, title, opener string) *pages.Entry {
	s.mu.Lock()
	s.drivers[id] = drv
	s.mu.Unlock()
	// Every page carries the manual-action collector from its first
	// document; a page attached mid-manual-mode starts recording at once.
	if err := drv.InstallInit(context.Background(), manualCollectorJS); err != nil {
		s.log.Warn("manual collector install failed", "page", id, "error", err)
	} else if s.Recorder.Mode() == recorder.ModeManual {
		if _, err := drv.EvalJSON(context.Background(), "(() => { window.setManualMode && window.setManualMode(); })()"); err != nil {
			s.log.Warn("collector mode flip failed", "page", id, "error", err)
		}
	}
	e := s.Registry.Add(id, url, title, opener)
	s.log.Info("page attached", "page", id, "url", url, "opener", opener)
	return e
}

// DetachPage drops a closed page and its driver.
func (s *Session) DetachPage(id string) error {
	s.mu.Lock()
	delete(s.drivers, id)
	s.mu.Unlock()
	if err := s.Registry.Remove(id); err != nil {
		return err
	}
	s.log.Info("page detached", "page", id)
	return nil
}

// target picks the page an action addresses: an explicit page id, or the
// active page.
func (s *Session) target(pageID string) (*pages.Entry, PageDriver, error) {
	var entry *pages.Entry
	var err error
	if pageID == "" {
		entry, err = s.Registry.Active()
	} else {
		entry, err = s.Registry.Get(pageID)
	}
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	drv, ok := s.drivers[entry.ID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("session: page %s has no driver", entry.ID)
	}
	return entry, drv, nil
}

// Dispatch runs one action through the full pipeline. The returned record
// carries the placeholder form of any value; a failure at any checkpoint
// (guard, resolution, binding, driver) returns the error and records
// nothing.
func (s *Session) Dispatch(ctx context.Context, a Action) (recorder.Record, error) {
	var zero recorder.Record
	switch a.Type {
	case recorder.ActionNavigate:
		return s.dispatchNavigate(ctx, a)
	case recorder.ActionClick, recorder.ActionFill, recorder.ActionSelect:
		return s.dispatchElement(ctx, a)
	default:
		return zero, fmt.Errorf("session: unknown action type %q", a.Type)
	}
}

func (s *Session) dispatchNavigate(ctx context.Context, a Action) (recorder.Record, error) {
	var zero recorder.Record
	if err := s.Guard.Check(a.URL); err != nil {
		s.log.Warn("navigation blocked", "url", a.URL, "error", err)
		return zero, err
	}
	entry, drv, err := s.target(a.PageID)
	if err != nil {
		return zero, err
	}
	if err := drv.Navigate(ctx, a.URL); err != nil {
		s.log.Warn("navigate failed", "page", entry.ID, "url", a.URL, "error", err)
		return zero, err
	}

	url, title, infoErr := drv.Info(ctx)
	if infoErr != nil {
		url, title = a.URL, ""
	}
	// Update invalidates the page's address book on URL change.
	if err := s.Registry.Update(entry.ID, url, title); err != nil {
		return zero, err
	}

	rec := s.Recorder.Record(recorder.ActionNavigate, entry.ID, a.URL, "")
	s.log.Info("navigated", "page", entry.ID, "url", a.URL, "seq", rec.Seq, "transport", kit.GetTransport(ctx), "request", kit.GetRequestID(ctx))
	return rec, nil
}

func (s *Session) dispatchElement(ctx context.Context, a Action) (recorder.Record, error) {
	var zero recorder.Record
	entry, drv, err := s.target(a.PageID)
	if err != nil {
		return zero, err
	}

	// A click can navigate the page without passing through
	// dispatchNavigate. Sync with the live page before resolving or
	// substituting: references minted before such a navigation must fail
	// stale, and secrets must be scoped to the origin the page is on now.
	if url, title, infoErr := drv.Info(ctx); infoErr == nil {
		if err := s.Registry.Update(entry.ID, url, title); err != nil {
			return zero, err
		}
	}

	selector := a.Selector
	if a.Hash != "" {
		selector, err = entry.Book.Resolve(a.Hash, a.Version)
		if err != nil {
			s.log.Warn("resolution failed", "page", entry.ID, "hash", a.Hash, "error", err)
			return zero, err
		}
	}
	if selector == "" {
		return zero, fmt.Errorf("session: %s action without a target", a.Type)
	}

	// The record keeps a.Value as captured; only the driver sees the
	// substituted value, and only if the page's domain is bound.
	sent := a.Value
	if a.Type == recorder.ActionFill || a.Type == recorder.ActionSelect {
		sent, err = s.Vault.Resolve(a.Value, entry.URL)
		if err != nil {
			s.log.Warn("substitution refused", "page", entry.ID, "target", selector, "error", err)
			return zero, err
		}
	}

	switch a.Type {
	case recorder.ActionClick:
		err = drv.Click(ctx, selector)
	case recorder.ActionFill:
		err = drv.Fill(ctx, selector, sent)
	case recorder.ActionSelect:
		err = drv.Select(ctx, selector, sent)
	}
	if err != nil {
		s.log.Warn("driver failed", "page", entry.ID, "action", a.Type, "target", selector, "error", err)
		return zero, err
	}

	rec := s.Recorder.Record(a.Type, entry.ID, selector, a.Value)
	s.log.Info("action recorded", "page", entry.ID, "action", a.Type, "target", selector, "seq", rec.Seq, "transport", kit.GetTransport(ctx), "request", kit.GetRequestID(ctx))
	return rec, nil
}

// ReplayLog re-dispatches a previously persisted log through this session.
// Guard and vault rules apply on replay exactly as on live recording; the
// replayed actions are recorded again by the same pipeline.
func (s *Session) ReplayLog(ctx context.Context, records []recorder.Record) error {
	for i, rec := range records {
		a := Action{Type: rec.Type, Value: rec.Value}
		if rec.Type == recorder.ActionNavigate {
			a.URL = rec.Target
		} else {
			a.Selector = rec.Target
		}
		if _, err := s.Dispatch(ctx, a); err != nil {
			return fmt.Errorf("session: replay action %d (%s): %w", i, rec.Type, err)
		}
	}
	return nil
}

// Finalize writes the session artifacts: the raw JSON action log, one
// script per requested dialect, and, when an archive store is given, the
// archived log. It returns the paths written.
func (s *Session) Finalize(ctx context.Context, dir string, dialects []string, archive *store.Store) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: output dir: %w", err)
	}
	records := s.Recorder.Snapshot()
	var paths []string

	logPath := filepath.Join(dir, fmt.Sprintf("actions_%s.json", idgen.Stamp()))
	if err := recorder.SaveFile(logPath, records); err != nil {
		return paths, err
	}
	paths = append(paths, logPath)

	for _, name := range dialects {
		d, err := script.Lookup(name)
		if err != nil {
			return paths, err
		}
		src, err := script.Emit(records, name, s.Task)
		if err != nil {
			return paths, err
		}
		p := script.OutputPath(dir, s.Task, d)
		if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
			return paths, fmt.Errorf("session: write script: %w", err)
		}
		paths = append(paths, p)
	}

	if archive != nil {
		endedAt := time.Now().UnixMilli()
		if err := archive.SaveSession(ctx, s.ID, s.Task, s.StartedAt.UnixMilli(), endedAt, records); err != nil {
			return paths, err
		}
	}

	s.log.Info("session finalized", "actions", len(records), "artifacts", len(paths))
	return paths, nil
}
