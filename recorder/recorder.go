package recorder

import (
	"sync"
	"time"
)

// ModeListener is called synchronously on every mode transition, inside the
// recorder's critical section, so listeners and the dispatch path can never
// observe different modes for the same action.
type ModeListener func(Mode)

// Recorder is the session action log plus the Agent/Manual mode machine.
// All methods are safe for concurrent use; record calls from all pages
// serialize here, which is what makes Seq a session-wide total order.
type Recorder struct {
	mu        sync.Mutex
	nextSeq   uint64
	log       []Record
	mode      Mode
	listeners []ModeListener
	now       func() time.Time
}

func New() *Recorder {
	return &Recorder{mode: ModeAgent, now: time.Now}
}

// Mode returns the current driving mode.
func (r *Recorder) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode transitions the mode machine and notifies listeners. A no-op
// transition notifies nobody.
func (r *Recorder) SetMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == r.mode {
		return
	}
	r.mode = m
	for _, fn := range r.listeners {
		fn(m)
	}
}

// OnModeChange registers a transition listener. Listeners run synchronously
// under the recorder lock and must not call back into the recorder.
func (r *Recorder) OnModeChange(fn ModeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Record appends an executed action, or merges it into an earlier record.
// For fill and select, an existing record with the same (page, target,
// type) is overwritten in place: value and timestamp update, sequence
// number and log position stay those of the first occurrence. Everything
// else appends with the next session-wide sequence number.
func (r *Recorder) Record(typ ActionType, pageID, target, value string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UnixMilli()
	if typ.mergeEligible() {
		for i := range r.log {
			prev := &r.log[i]
			if prev.Type == typ && prev.PageID == pageID && prev.Target == target {
				prev.Value = value
				prev.Timestamp = ts
				return *prev
			}
		}
	}

	r.nextSeq++
	rec := Record{
		Seq:       r.nextSeq,
		Type:      typ,
		PageID:    pageID,
		Target:    target,
		Value:     value,
		Mode:      r.mode,
		Timestamp: ts,
	}
	r.log = append(r.log, rec)
	return rec
}

// Snapshot returns an immutable copy of the log in order.
func (r *Recorder) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.log))
	copy(out, r.log)
	return out
}

// ManualActions returns a copy of only the records captured in manual mode,
// in log order.
func (r *Recorder) ManualActions() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.log {
		if rec.Mode == ModeManual {
			out = append(out, rec)
		}
	}
	return out
}

// Len reports the number of retained records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Reset clears the log. Sequence numbers keep counting; a reset does not
// recycle identities of records that may already have been exported.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
