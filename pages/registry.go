// Package pages tracks every page a session has open and which one actions
// target. Pages register on creation (including popups announced by the
// browser), carry their own element address book, and deregister on close;
// the registry repoints the active page when the active one closes.
package pages

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/talk2silicon/talk2browser/addrbook"
)

var (
	// ErrNoActivePage is returned when an action targets a page but the
	// session has none open.
	ErrNoActivePage = errors.New("pages: no active page")

	// ErrUnknownPage is returned for operations naming a page id the
	// registry has never seen or has already dropped.
	ErrUnknownPage = errors.New("pages: unknown page")
)

// Entry is one tracked page. URL and Title follow the page as it navigates;
// the registry is told via Update rather than polling.
type Entry struct {
	ID     string
	URL    string
	Title  string
	Opener string // page id that spawned this one, "" for directly opened pages
	Book   *addrbook.Book
	seq    uint64 // registration order, drives ordering in List
}

// Registry is the session's page table. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	nextSeq uint64
	active  string
	byID    map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Entry)}
}

// Add registers a page and makes it active. New pages always take focus:
// a popup the site opens is where the next action is headed.
func (r *Registry) Add(id, url, title, opener string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	e := &Entry{
		ID:     id,
		URL:    url,
		Title:  title,
		Opener: opener,
		Book:   addrbook.New(),
		seq:    r.nextSeq,
	}
	r.byID[id] = e
	r.active = id
	return e
}

// Update records a navigation observed on a tracked page and invalidates its
// address book: element references minted before a navigation are dead.
func (r *Registry) Update(id, url, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	if e.URL != url {
		e.Book.Invalidate()
	}
	e.URL = url
	e.Title = title
	return nil
}

// Remove drops a closed page. When the active page closes, the most recently
// registered survivor becomes active; closing the last page leaves the
// registry with no active page.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	delete(r.byID, id)
	if r.active != id {
		return nil
	}
	r.active = ""
	var latest *Entry
	for _, e := range r.byID {
		if latest == nil || e.seq > latest.seq {
			latest = e
		}
	}
	if latest != nil {
		r.active = latest.ID
	}
	return nil
}

// Activate switches the action target to a tracked page.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	r.active = id
	return nil
}

// Active returns the page actions currently target.
func (r *Registry) Active() (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return nil, ErrNoActivePage
	}
	return r.byID[r.active], nil
}

// Get returns a tracked page by id.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	return e, nil
}

// List returns tracked pages in registration order.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len reports how many pages are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
