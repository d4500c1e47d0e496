package session

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/talk2silicon/talk2browser/browser"
)

// BindBrowser connects a session to a live browser: it opens the initial
// page and tracks targets Chrome opens or closes on its own (popups,
// window.open), registering each as a session page. Page ids are prefixed
// Chrome target ids so close events map back without bookkeeping.
func (s *Session) BindBrowser(ctx context.Context, m *browser.Manager, actionTimeout time.Duration) error {
	attach := func(p *rod.Page, opener string) {
		drv := browser.NewDriver(p, actionTimeout)
		url, title := "", ""
		if u, t, err := drv.Info(ctx); err == nil {
			url, title = u, t
		}
		id := "page_" + drv.TargetID()
		s.attachPageID(id, drv, url, title, opener)
		// In-page navigations (link clicks, redirects, history pushes that
		// load a new document) never pass through Dispatch; track them so
		// the page's URL and address book stay honest.
		go p.Context(ctx).EachEvent(func(e *proto.PageFrameNavigated) {
			if e.Frame.ParentID != "" {
				return
			}
			title := ""
			if _, t, err := drv.Info(ctx); err == nil {
				title = t
			}
			if err := s.Registry.Update(id, e.Frame.URL, title); err != nil {
				s.log.Warn("navigation sync failed", "page", id, "error", err)
			}
		})()
	}

	p, err := m.NewPage()
	if err != nil {
		return err
	}
	attach(p, "")

	return m.WatchTargets(ctx,
		func(popup *rod.Page) {
			// The initial page fires a created event too; skip anything
			// already tracked.
			if _, err := s.Registry.Get("page_" + string(popup.TargetID)); err == nil {
				return
			}
			opener := ""
			if active, err := s.Registry.Active(); err == nil {
				opener = active.ID
			}
			attach(popup, opener)
		},
		func(targetID string) {
			id := "page_" + targetID
			if _, err := s.Registry.Get(id); err != nil {
				return
			}
			if err := s.DetachPage(id); err != nil {
				s.log.Warn("detach on target close failed", "page", id, "error", err)
			}
		},
	)
}
