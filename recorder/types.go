// Package recorder keeps the canonical, replayable log of executed browser
// actions. The log is one strictly ordered sequence across every page of
// the session; redundant field edits merge in place instead of piling up.
// Values are stored exactly as captured upstream of secret substitution,
// so placeholder tokens, never real secrets, are what the log contains.
package recorder

// ActionType tags one kind of recorded browser action.
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionClick    ActionType = "click"
	ActionFill     ActionType = "fill"
	ActionSelect   ActionType = "select"
)

// mergeEligible reports whether a later action on the same target replaces
// the earlier record instead of appending. Only final-value edits merge;
// navigations and clicks are events and always append.
func (t ActionType) mergeEligible() bool {
	return t == ActionFill || t == ActionSelect
}

// Mode says who is driving the browser.
type Mode string

const (
	ModeAgent  Mode = "agent"
	ModeManual Mode = "manual"
)

// Record is one entry of the canonical log.
type Record struct {
	Seq       uint64     `json:"seq"`
	Type      ActionType `json:"type"`
	PageID    string     `json:"page_id"`
	Target    string     `json:"target,omitempty"` // resolved selector, or url for navigate
	Value     string     `json:"value,omitempty"`  // fill value or select option, placeholder form
	Mode      Mode       `json:"mode"`
	Timestamp int64      `json:"timestamp"` // unix milliseconds
}
