package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformedLog wraps every decode failure of a persisted action log so
// callers can distinguish "bad file content" from plain read errors.
var ErrMalformedLog = errors.New("recorder: malformed action log")

// persisted wire form. Target and value live under type-specific arg keys
// so logs read naturally and stay stable as record internals evolve.
type logFile struct {
	Actions []logAction `json:"actions"`
}

type logAction struct {
	Type      ActionType `json:"type"`
	Args      logArgs    `json:"args"`
	Timestamp int64      `json:"timestamp"`
}

type logArgs struct {
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	Option   string `json:"option,omitempty"`
}

// WriteLog serializes records in log order to their persisted form.
func WriteLog(w io.Writer, records []Record) error {
	out := logFile{Actions: make([]logAction, 0, len(records))}
	for _, rec := range records {
		a := logAction{Type: rec.Type, Timestamp: rec.Timestamp}
		switch rec.Type {
		case ActionNavigate:
			a.Args.URL = rec.Target
		case ActionClick:
			a.Args.Selector = rec.Target
		case ActionFill:
			a.Args.Selector = rec.Target
			a.Args.Value = rec.Value
		case ActionSelect:
			a.Args.Selector = rec.Target
			a.Args.Option = rec.Value
		default:
			return fmt.Errorf("recorder: cannot persist action type %q", rec.Type)
		}
		out.Actions = append(out.Actions, a)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadLog parses a persisted action log back into records. Sequence numbers
// are reassigned from file order; page identity and mode are not part of
// the persisted form.
func ReadLog(r io.Reader) ([]Record, error) {
	var in logFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	records := make([]Record, 0, len(in.Actions))
	for i, a := range in.Actions {
		rec := Record{
			Seq:       uint64(i + 1),
			Type:      a.Type,
			Timestamp: a.Timestamp,
		}
		switch a.Type {
		case ActionNavigate:
			if a.Args.URL == "" {
				return nil, fmt.Errorf("%w: action %d: navigate without url", ErrMalformedLog, i)
			}
			rec.Target = a.Args.URL
		case ActionClick:
			if a.Args.Selector == "" {
				return nil, fmt.Errorf("%w: action %d: click without selector", ErrMalformedLog, i)
			}
			rec.Target = a.Args.Selector
		case ActionFill:
			if a.Args.Selector == "" {
				return nil, fmt.Errorf("%w: action %d: fill without selector", ErrMalformedLog, i)
			}
			rec.Target = a.Args.Selector
			rec.Value = a.Args.Value
		case ActionSelect:
			if a.Args.Selector == "" || a.Args.Option == "" {
				return nil, fmt.Errorf("%w: action %d: select needs selector and option", ErrMalformedLog, i)
			}
			rec.Target = a.Args.Selector
			rec.Value = a.Args.Option
		default:
			return nil, fmt.Errorf("%w: action %d: unknown type %q", ErrMalformedLog, i, a.Type)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveFile writes the log to path, creating or truncating it.
func SaveFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recorder: save log: %w", err)
	}
	defer f.Close()
	if err := WriteLog(f, records); err != nil {
		return err
	}
	return f.Close()
}

// LoadFile reads a persisted log from path.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: load log: %w", err)
	}
	defer f.Close()
	return ReadLog(f)
}
