package addrbook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// PageEvaluator runs a JavaScript function in a page and returns its string
// result. Satisfied by the browser layer; narrow on purpose so the book can
// be exercised against canned JSON in tests.
type PageEvaluator interface {
	EvalJSON(ctx context.Context, js string) (string, error)
}

// ResolutionError reports why a reference could not be turned into a live
// selector. Stale carries the version the caller presented when it lost a
// race with a rebuild.
type ResolutionError struct {
	Hash    string
	Stale   bool
	Version uint64 // book version at the time of the failed lookup
}

func (e *ResolutionError) Error() string {
	if e.Stale {
		return fmt.Sprintf("addrbook: reference %s is from a stale snapshot (current version %d)", e.Hash, e.Version)
	}
	return fmt.Sprintf("addrbook: unknown reference %s", e.Hash)
}

// Book is the per-page element address book. All methods are safe for
// concurrent use; Build replaces the whole descriptor set atomically.
type Book struct {
	mu      sync.Mutex
	version uint64
	byHash  map[string]Descriptor
}

func New() *Book {
	return &Book{byHash: make(map[string]Descriptor)}
}

// Build scans the page and replaces the current snapshot. The returned
// descriptors are ordered as the collector found them in document order.
func (b *Book) Build(ctx context.Context, page PageEvaluator) ([]Descriptor, error) {
	raw, err := page.EvalJSON(ctx, collectScript)
	if err != nil {
		return nil, fmt.Errorf("addrbook: collect elements: %w", err)
	}
	var elems []rawElement
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("addrbook: decode collector output: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
	descs := b.buildFromRaw(elems)
	return descs, nil
}

// buildFromRaw installs the snapshot for the already-incremented version.
// Caller holds b.mu.
func (b *Book) buildFromRaw(elems []rawElement) []Descriptor {
	byHash := make(map[string]Descriptor, len(elems))
	descs := make([]Descriptor, 0, len(elems))
	for _, r := range elems {
		d := Descriptor{
			Hash:        hashElement(r),
			Tag:         r.Tag,
			ID:          r.ID,
			Name:        r.Name,
			Role:        r.Role,
			AriaLabel:   r.AriaLabel,
			Placeholder: r.Placeholder,
			InputType:   r.Type,
			Text:        normalizeText(r.Text),
			XPath:       r.XPath,
			Version:     b.version,
		}
		// Duplicate hashes (identical twins in the DOM) keep the first
		// occurrence; document order makes the winner deterministic.
		if _, dup := byHash[d.Hash]; dup {
			continue
		}
		byHash[d.Hash] = d
		descs = append(descs, d)
	}
	b.byHash = byHash
	return descs
}

// Resolve maps a reference from the current snapshot to a live selector.
// References minted by an earlier Build fail with a stale ResolutionError
// even when an element with the same hash still exists.
func (b *Book) Resolve(hash string, version uint64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if version != b.version {
		return "", &ResolutionError{Hash: hash, Stale: true, Version: b.version}
	}
	d, ok := b.byHash[hash]
	if !ok {
		return "", &ResolutionError{Hash: hash, Version: b.version}
	}
	return d.Selector(), nil
}

// Lookup returns the full descriptor for a current-snapshot reference.
func (b *Book) Lookup(hash string) (Descriptor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.byHash[hash]
	return d, ok
}

// Version reports the current snapshot version. Zero means never built.
func (b *Book) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Descriptors returns a copy of the current snapshot.
func (b *Book) Descriptors() []Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Descriptor, 0, len(b.byHash))
	for _, d := range b.byHash {
		out = append(out, d)
	}
	return out
}

// Invalidate discards the current snapshot without scanning. Subsequent
// Resolve calls fail until the next Build; used when the page navigates.
func (b *Book) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
	b.byHash = make(map[string]Descriptor)
}
