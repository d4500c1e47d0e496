package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/talk2silicon/talk2browser/recorder"
)

// manualCollectorJS is installed on every page the session attaches. It
// queues operator-driven clicks, fills and selections in
// window.__t2bManualActions, which CollectManualActions drains. Selector
// preference matches the element snapshot: #id when unique, structural
// XPath otherwise.
const manualCollectorJS = `(() => {
	if (window.__t2bManualActions) return;
	window.__t2bManualActions = [];

	// Recording is off in agent mode. The flag survives same-tab
	// navigations through sessionStorage; new documents restore it before
	// any listener fires.
	let manual = false;
	try { manual = sessionStorage.getItem('__t2bManualMode') === '1'; } catch (e) {}
	window.setManualMode = () => {
		manual = true;
		try { sessionStorage.setItem('__t2bManualMode', '1'); } catch (e) {}
	};
	window.setAgentMode = () => {
		manual = false;
		try { sessionStorage.setItem('__t2bManualMode', '0'); } catch (e) {}
	};

	const xpathOf = (el) => {
		const steps = [];
		for (let n = el; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentNode) {
			const tag = n.nodeName.toLowerCase();
			let idx = 1;
			for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
				if (s.nodeName.toLowerCase() === tag) idx++;
			}
			steps.unshift(tag + '[' + idx + ']');
		}
		return '/' + steps.join('/');
	};

	const selectorOf = (el) => {
		if (el.id && document.querySelectorAll('#' + CSS.escape(el.id)).length === 1) {
			return '#' + el.id;
		}
		return xpathOf(el);
	};

	const push = (a) => window.__t2bManualActions.push(a);

	document.addEventListener('click', (ev) => {
		if (!manual || !ev.isTrusted) return;
		const el = ev.target.closest('a,button,[role="button"],[role="link"],[onclick]');
		if (!el) return;
		push({ type: 'click', selector: selectorOf(el) });
	}, true);

	document.addEventListener('change', (ev) => {
		if (!manual || !ev.isTrusted) return;
		const el = ev.target;
		const tag = el.tagName;
		if (tag === 'SELECT') {
			const opt = el.selectedOptions && el.selectedOptions[0];
			push({ type: 'select', selector: selectorOf(el), value: opt ? opt.text : '' });
		} else if (tag === 'INPUT' || tag === 'TEXTAREA') {
			push({ type: 'fill', selector: selectorOf(el), value: el.value });
		}
	}, true);
})()`

// manualDrainJS empties the queue the injected page bridge fills while the
// operator drives the browser. Splice keeps events that arrive during the
// drain for the next call.
const manualDrainJS = `(() => {
  const q = window.__t2bManualActions;
  if (!Array.isArray(q)) return "[]";
  return JSON.stringify(q.splice(0, q.length));
})()`

// manualEvent is one entry of the bridge queue.
type manualEvent struct {
	Type     string `json:"type"`
	Selector string `json:"selector"`
	URL      string `json:"url"`
	Value    string `json:"value"`
}

// CollectManualActions drains the manual-action bridge of one page and
// records the drained events through the normal log, merge rule included.
// Call it before leaving manual mode so the records keep the manual mark.
func (s *Session) CollectManualActions(ctx context.Context, pageID string) ([]recorder.Record, error) {
	entry, drv, err := s.target(pageID)
	if err != nil {
		return nil, err
	}
	raw, err := drv.EvalJSON(ctx, manualDrainJS)
	if err != nil {
		return nil, fmt.Errorf("session: drain manual actions: %w", err)
	}
	var events []manualEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("session: manual bridge payload: %w", err)
	}

	var out []recorder.Record
	for i, ev := range events {
		typ := recorder.ActionType(ev.Type)
		var target string
		switch typ {
		case recorder.ActionNavigate:
			target = ev.URL
		case recorder.ActionClick, recorder.ActionFill, recorder.ActionSelect:
			target = ev.Selector
		default:
			return out, fmt.Errorf("session: manual event %d: unknown type %q", i, ev.Type)
		}
		if target == "" {
			return out, fmt.Errorf("session: manual event %d (%s): no target", i, ev.Type)
		}
		rec := s.Recorder.Record(typ, entry.ID, target, ev.Value)
		out = append(out, rec)
	}
	if len(out) > 0 {
		s.log.Info("manual actions collected", "page", entry.ID, "count", len(out))
	}
	return out, nil
}

// drainAllManual drains every attached page. Pages whose bridge fails are
// logged and skipped so one broken page cannot hold the mode toggle.
func (s *Session) drainAllManual(ctx context.Context) {
	for _, e := range s.Registry.List() {
		if _, err := s.CollectManualActions(ctx, e.ID); err != nil {
			s.log.Warn("manual drain failed", "page", e.ID, "error", err)
		}
	}
}

// setCollectorMode flips the collector's recording flag on every page.
func (s *Session) setCollectorMode(ctx context.Context, m recorder.Mode) {
	js := "(() => { window.setAgentMode && window.setAgentMode(); })()"
	if m == recorder.ModeManual {
		js = "(() => { window.setManualMode && window.setManualMode(); })()"
	}
	for _, e := range s.Registry.List() {
		_, drv, err := s.target(e.ID)
		if err != nil {
			continue
		}
		if _, err := drv.EvalJSON(ctx, js); err != nil {
			s.log.Warn("collector mode flip failed", "page", e.ID, "error", err)
		}
	}
}
