// Package addrbook assigns snapshot-scoped stable references to interactive
// DOM elements and resolves them back to live selectors at dispatch time.
//
// A Book belongs to exactly one page. Build scans the page for interactive
// elements and produces a new snapshot version; every element gets a hash
// computed from render-independent attributes, so an unchanged element keeps
// its hash across rebuilds of an unchanged DOM. Resolve maps a hash back to
// a selector and fails on references from a stale snapshot; a hash is never
// silently honoured after the DOM it was issued against has changed.
package addrbook

// Descriptor is one interactive DOM element as seen by a snapshot build.
// The whole descriptor set is invalidated wholesale on the next rebuild.
type Descriptor struct {
	Hash        string `json:"hash"`
	Tag         string `json:"tag"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	InputType   string `json:"input_type,omitempty"`
	Text        string `json:"text,omitempty"` // normalised, truncated
	XPath       string `json:"xpath"`
	Version     uint64 `json:"version"`
}

// Selector returns the preferred live selector for the element: the id
// selector when the element carries a document id, otherwise the structural
// XPath. XPath selectors start with "/" which is how the driver tells the
// two apart.
func (d Descriptor) Selector() string {
	if d.ID != "" {
		return "#" + d.ID
	}
	return d.XPath
}

// rawElement mirrors the JSON objects emitted by the collector script.
type rawElement struct {
	Tag         string `json:"tag"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	AriaLabel   string `json:"ariaLabel"`
	Placeholder string `json:"placeholder"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	XPath       string `json:"xpath"`
}
