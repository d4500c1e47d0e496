package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talk2silicon/talk2browser/addrbook"
	"github.com/talk2silicon/talk2browser/dbopen"
	"github.com/talk2silicon/talk2browser/internal/store"
	"github.com/talk2silicon/talk2browser/navguard"
	"github.com/talk2silicon/talk2browser/pages"
	"github.com/talk2silicon/talk2browser/recorder"

	_ "modernc.org/sqlite"
)

// fakeDriver is an in-memory PageDriver that records what reaches the
// "browser" so tests can assert on the substitution boundary.
type fakeDriver struct {
	url, title string
	elements   string // JSON payload for the element collector
	manual     string // JSON payload for the manual-action bridge drain
	html       string

	// clickNavigatesTo simulates a click that loads a new document.
	clickNavigatesTo string

	failNavigate error
	failClick    error
	failFill     error
	failSelect   error

	navigations []string
	clicks      []string
	fills       []string // "selector=value", value as the browser saw it
	selections  []string
	inits       []string // scripts installed for every new document
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	if f.failNavigate != nil {
		return f.failNavigate
	}
	f.url = url
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeDriver) Click(_ context.Context, selector string) error {
	if f.failClick != nil {
		return f.failClick
	}
	f.clicks = append(f.clicks, selector)
	if f.clickNavigatesTo != "" {
		f.url = f.clickNavigatesTo
	}
	return nil
}

func (f *fakeDriver) Fill(_ context.Context, selector, value string) error {
	if f.failFill != nil {
		return f.failFill
	}
	f.fills = append(f.fills, selector+"="+value)
	return nil
}

func (f *fakeDriver) Select(_ context.Context, selector, option string) error {
	if f.failSelect != nil {
		return f.failSelect
	}
	f.selections = append(f.selections, selector+"="+option)
	return nil
}

func (f *fakeDriver) EvalJSON(_ context.Context, js string) (string, error) {
	if strings.Contains(js, "__t2bManualActions") {
		if f.manual == "" {
			return "[]", nil
		}
		drained := f.manual
		f.manual = ""
		return drained, nil
	}
	if f.elements == "" {
		return "[]", nil
	}
	return f.elements, nil
}

func (f *fakeDriver) InstallInit(_ context.Context, js string) error {
	f.inits = append(f.inits, js)
	return nil
}

func (f *fakeDriver) HTML(context.Context) (string, error) { return f.html, nil }

func (f *fakeDriver) Info(context.Context) (string, string, error) { return f.url, f.title, nil }

func newTestSession(t *testing.T, allow ...string) (*Session, *fakeDriver) {
	t.Helper()
	s := New(Options{Task: "test task", Allowlist: allow})
	drv := &fakeDriver{url: "https://a.test/", title: "A"}
	s.AttachPage(drv, drv.url, drv.title, "")
	return s, drv
}

func mustDispatch(t *testing.T, s *Session, a Action) recorder.Record {
	t.Helper()
	rec, err := s.Dispatch(context.Background(), a)
	if err != nil {
		t.Fatalf("Dispatch(%+v): %v", a, err)
	}
	return rec
}

func TestDispatchMergeScenario(t *testing.T) {
	s, drv := newTestSession(t, "a.test")

	mustDispatch(t, s, Action{Type: recorder.ActionNavigate, URL: "https://a.test"})
	mustDispatch(t, s, Action{Type: recorder.ActionFill, Selector: "#u", Value: "x"})
	mustDispatch(t, s, Action{Type: recorder.ActionFill, Selector: "#u", Value: "y"})
	mustDispatch(t, s, Action{Type: recorder.ActionClick, Selector: "#go"})

	log := s.Recorder.Snapshot()
	if len(log) != 3 {
		t.Fatalf("retained log has %d records, want 3: %+v", len(log), log)
	}
	if log[0].Type != recorder.ActionNavigate || log[1].Value != "y" || log[2].Type != recorder.ActionClick {
		t.Fatalf("log = %+v", log)
	}
	// Both fills reached the browser even though only one record remains.
	if len(drv.fills) != 2 {
		t.Fatalf("fills = %v", drv.fills)
	}
}

func TestBlockedNavigationRecordsNothing(t *testing.T) {
	s, drv := newTestSession(t, "a.test")

	_, err := s.Dispatch(context.Background(), Action{Type: recorder.ActionNavigate, URL: "https://evil.test"})
	if !errors.Is(err, navguard.ErrBlocked) {
		t.Fatalf("got %v, want ErrBlocked", err)
	}
	if s.Recorder.Len() != 0 {
		t.Fatal("blocked navigation was recorded")
	}
	if len(drv.navigations) != 0 {
		t.Fatal("blocked navigation reached the driver")
	}
}

func TestDriverFailureRecordsNothing(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	drv.failFill = errors.New("not interactable")

	_, err := s.Dispatch(context.Background(), Action{Type: recorder.ActionFill, Selector: "#u", Value: "x"})
	if err == nil {
		t.Fatal("expected driver error")
	}
	if s.Recorder.Len() != 0 {
		t.Fatal("failed action was recorded")
	}
}

func TestSecretSubstitutionBoundary(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	if err := s.Vault.Register("PASSWORD", "hunter2", []string{"a.test"}); err != nil {
		t.Fatal(err)
	}

	rec := mustDispatch(t, s, Action{Type: recorder.ActionFill, Selector: "#pw", Value: "${PASSWORD}"})

	// The driver saw the real value; the record kept the placeholder.
	if len(drv.fills) != 1 || drv.fills[0] != "#pw=hunter2" {
		t.Fatalf("fills = %v", drv.fills)
	}
	if rec.Value != "${PASSWORD}" {
		t.Fatalf("record value = %q", rec.Value)
	}
	for _, r := range s.Recorder.Snapshot() {
		if strings.Contains(r.Value, "hunter2") || strings.Contains(r.Target, "hunter2") {
			t.Fatalf("secret leaked into log: %+v", r)
		}
	}
}

func TestOutOfScopeSecretRecordsNothing(t *testing.T) {
	s, drv := newTestSession(t, "a.test", "b.test")
	if err := s.Vault.Register("TOKEN", "t-1", []string{"b.test"}); err != nil {
		t.Fatal(err)
	}

	// Current page is on a.test; the binding is for b.test only.
	_, err := s.Dispatch(context.Background(), Action{Type: recorder.ActionFill, Selector: "#t", Value: "${TOKEN}"})
	if err == nil {
		t.Fatal("expected MissingBinding")
	}
	if s.Recorder.Len() != 0 {
		t.Fatal("refused substitution was recorded")
	}
	if len(drv.fills) != 0 {
		t.Fatal("refused substitution reached the driver")
	}
}

func TestDispatchByHash(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	drv.elements = `[{"tag":"button","id":"go","text":"Go","xpath":"/html[1]/body[1]/button[1]"}]`

	view, err := s.Observe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Elements) != 1 {
		t.Fatalf("elements = %+v", view.Elements)
	}

	rec := mustDispatch(t, s, Action{
		Type:    recorder.ActionClick,
		Hash:    view.Elements[0].Hash,
		Version: view.SnapshotVersion,
	})
	if rec.Target != "#go" {
		t.Fatalf("recorded target = %q, want resolved selector", rec.Target)
	}
	if len(drv.clicks) != 1 || drv.clicks[0] != "#go" {
		t.Fatalf("clicks = %v", drv.clicks)
	}
}

func TestStaleHashRecordsNothing(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	drv.elements = `[{"tag":"button","id":"go","xpath":"/html[1]/body[1]/button[1]"}]`

	view, err := s.Observe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// A second observe mints a new snapshot; the old reference is stale.
	if _, err := s.Observe(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err = s.Dispatch(context.Background(), Action{
		Type:    recorder.ActionClick,
		Hash:    view.Elements[0].Hash,
		Version: view.SnapshotVersion,
	})
	var rerr *addrbook.ResolutionError
	if !errors.As(err, &rerr) || !rerr.Stale {
		t.Fatalf("got %v, want stale ResolutionError", err)
	}
	if s.Recorder.Len() != 0 {
		t.Fatal("stale reference was recorded")
	}
	if len(drv.clicks) != 0 {
		t.Fatal("stale reference reached the driver")
	}
}

func TestNavigationInvalidatesReferences(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	drv.elements = `[{"tag":"a","id":"home","xpath":"/html[1]/body[1]/a[1]"}]`

	view, err := s.Observe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	mustDispatch(t, s, Action{Type: recorder.ActionNavigate, URL: "https://a.test/other"})

	_, err = s.Dispatch(context.Background(), Action{
		Type:    recorder.ActionClick,
		Hash:    view.Elements[0].Hash,
		Version: view.SnapshotVersion,
	})
	var rerr *addrbook.ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("got %v, want ResolutionError after navigation", err)
	}
}

func TestDispatchNoActivePage(t *testing.T) {
	s := New(Options{Allowlist: []string{"a.test"}})
	_, err := s.Dispatch(context.Background(), Action{Type: recorder.ActionClick, Selector: "#go"})
	if !errors.Is(err, pages.ErrNoActivePage) {
		t.Fatalf("got %v, want ErrNoActivePage", err)
	}
}

func TestObserveView(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	drv.title = "Portal"
	drv.elements = `[{"tag":"input","name":"q","placeholder":"Search","xpath":"/html[1]/body[1]/input[1]"}]`
	drv.html = "<p>Hello <b>world</b></p>"

	view, err := s.Observe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if view.Title != "Portal" || view.Pages != 1 {
		t.Fatalf("view = %+v", view)
	}
	if view.Elements[0].Label != "Search" {
		t.Fatalf("label = %q", view.Elements[0].Label)
	}
	if !strings.Contains(view.Markdown, "Hello") {
		t.Fatalf("markdown = %q", view.Markdown)
	}
}

func TestReplayLogAppliesPipeline(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	if err := s.Vault.Register("PW", "real", []string{"a.test"}); err != nil {
		t.Fatal(err)
	}

	records := []recorder.Record{
		{Seq: 1, Type: recorder.ActionNavigate, Target: "https://a.test/login"},
		{Seq: 2, Type: recorder.ActionFill, Target: "#pw", Value: "${PW}"},
		{Seq: 3, Type: recorder.ActionClick, Target: "#go"},
	}
	if err := s.ReplayLog(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	if len(drv.fills) != 1 || drv.fills[0] != "#pw=real" {
		t.Fatalf("fills = %v", drv.fills)
	}
	if s.Recorder.Len() != 3 {
		t.Fatalf("replayed log len = %d", s.Recorder.Len())
	}

	// Replay of a blocked navigation fails and stops.
	bad := []recorder.Record{{Seq: 1, Type: recorder.ActionNavigate, Target: "https://evil.test"}}
	if err := s.ReplayLog(context.Background(), bad); !errors.Is(err, navguard.ErrBlocked) {
		t.Fatalf("got %v, want ErrBlocked", err)
	}
}

func TestFinalizeWritesArtifacts(t *testing.T) {
	s, _ := newTestSession(t, "a.test")
	mustDispatch(t, s, Action{Type: recorder.ActionNavigate, URL: "https://a.test"})
	mustDispatch(t, s, Action{Type: recorder.ActionClick, Selector: "#go"})

	archive := &store.Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))}
	dir := t.TempDir()
	paths, err := s.Finalize(context.Background(), dir, []string{"playwright-python", "cypress"}, archive)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %v", paths)
	}

	// The raw log parses back.
	logRecords, err := recorder.LoadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(logRecords) != 2 {
		t.Fatalf("log records = %d", len(logRecords))
	}

	for _, p := range paths[1:] {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) == 0 {
			t.Fatalf("empty script %s", p)
		}
	}

	archived, err := archive.LoadSession(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 2 {
		t.Fatalf("archived = %d", len(archived))
	}

	if _, err := s.Finalize(context.Background(), filepath.Join(dir, "x"), []string{"qtp"}, nil); err == nil {
		t.Fatal("unknown dialect accepted")
	}
}

func TestActionJSONShape(t *testing.T) {
	// Planner payloads decode into Action directly.
	payload := `{"type":"fill","hash":"abc","version":2,"value":"${USER}"}`
	var a Action
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		t.Fatal(err)
	}
	if a.Type != recorder.ActionFill || a.Version != 2 {
		t.Fatalf("a = %+v", a)
	}
}

func TestPopupBecomesActiveAndCloseFallsBack(t *testing.T) {
	s, _ := newTestSession(t, "a.test")
	popup := &fakeDriver{url: "https://a.test/popup"}
	entry := s.AttachPage(popup, popup.url, "", "")

	active, err := s.Registry.Active()
	if err != nil || active.ID != entry.ID {
		t.Fatalf("active = %v, %v", active, err)
	}

	if err := s.DetachPage(entry.ID); err != nil {
		t.Fatal(err)
	}
	active, err = s.Registry.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active.ID == entry.ID {
		t.Fatal("closed page still active")
	}
	// Actions on the survivor still work.
	mustDispatch(t, s, Action{Type: recorder.ActionClick, Selector: "#go"})
}

func TestDispatchUnknownType(t *testing.T) {
	s, _ := newTestSession(t, "a.test")
	if _, err := s.Dispatch(context.Background(), Action{Type: "scroll"}); err == nil {
		t.Fatal("unknown type accepted")
	}
	if _, err := s.Dispatch(context.Background(), Action{Type: recorder.ActionClick}); err == nil {
		t.Fatal("targetless click accepted")
	}
}

func TestCollectManualActions(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	s.Recorder.SetMode(recorder.ModeManual)
	drv.manual = `[
		{"type":"click","selector":"#menu"},
		{"type":"fill","selector":"#q","value":"first"},
		{"type":"fill","selector":"#q","value":"second"},
		{"type":"navigate","url":"https://a.test/next"}
	]`

	recs, err := s.CollectManualActions(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	// The second fill merged into the first.
	if got := s.Recorder.Len(); got != 3 {
		t.Fatalf("retained records = %d, want 3", got)
	}
	for _, rec := range recs {
		if rec.Mode != recorder.ModeManual {
			t.Fatalf("record %d mode = %q, want manual", rec.Seq, rec.Mode)
		}
	}
	manual := s.Recorder.ManualActions()
	if manual[1].Value != "second" {
		t.Fatalf("merged fill value = %q, want %q", manual[1].Value, "second")
	}
	if manual[2].Target != "https://a.test/next" {
		t.Fatalf("navigate target = %q", manual[2].Target)
	}

	// A second drain finds an empty queue.
	recs, err = s.CollectManualActions(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("second drain returned %d records, want 0", len(recs))
	}
}

func TestCollectManualActionsRejectsUnknownEvent(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	drv.manual = `[{"type":"hover","selector":"#x"}]`
	if _, err := s.CollectManualActions(context.Background(), ""); err == nil {
		t.Fatal("unknown event type accepted")
	}
	drv.manual = `[{"type":"click"}]`
	if _, err := s.CollectManualActions(context.Background(), ""); err == nil {
		t.Fatal("targetless event accepted")
	}
}

func TestClickNavigationStalesReferences(t *testing.T) {
	s, drv := newTestSession(t, "a.test", "b.test")
	if err := s.Vault.Register("PASSWORD", "hunter2", []string{"a.test"}); err != nil {
		t.Fatal(err)
	}
	drv.elements = `[{"tag":"input","id":"pw","type":"password","xpath":"/html[1]/body[1]/input[1]"}]`

	view, err := s.Observe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	hash, version := view.Elements[0].Hash, view.SnapshotVersion

	// The click loads a new document on another origin without ever
	// passing through a navigate dispatch.
	drv.clickNavigatesTo = "https://b.test/login"
	mustDispatch(t, s, Action{Type: recorder.ActionClick, Selector: "#next"})

	// The pre-click reference must fail stale, not resolve.
	_, err = s.Dispatch(context.Background(), Action{
		Type:    recorder.ActionFill,
		Hash:    hash,
		Version: version,
		Value:   "${PASSWORD}",
	})
	var rerr *addrbook.ResolutionError
	if !errors.As(err, &rerr) || !rerr.Stale {
		t.Fatalf("got %v, want stale ResolutionError", err)
	}

	// The secret is bound to a.test; the page is on b.test now.
	_, err = s.Dispatch(context.Background(), Action{
		Type:     recorder.ActionFill,
		Selector: "#pw",
		Value:    "${PASSWORD}",
	})
	if err == nil {
		t.Fatal("expected MissingBinding on the new origin")
	}
	if len(drv.fills) != 0 {
		t.Fatalf("fills = %v, secret crossed origins", drv.fills)
	}
	if got := s.Recorder.Len(); got != 1 {
		t.Fatalf("retained records = %d, want the click only", got)
	}

	entry, err := s.Registry.Active()
	if err != nil {
		t.Fatal(err)
	}
	if entry.URL != "https://b.test/login" {
		t.Fatalf("registry URL = %q, not synced with the live page", entry.URL)
	}
}

func TestAttachInstallsManualCollector(t *testing.T) {
	s, drv := newTestSession(t, "a.test")
	if len(drv.inits) != 1 || !strings.Contains(drv.inits[0], "__t2bManualActions") {
		t.Fatalf("inits = %d, collector not installed on attach", len(drv.inits))
	}

	// Pages attached later get the collector too.
	popup := &fakeDriver{url: "https://a.test/p"}
	s.AttachPage(popup, popup.url, "Popup", "")
	if len(popup.inits) != 1 || !strings.Contains(popup.inits[0], "__t2bManualActions") {
		t.Fatal("collector not installed on popup attach")
	}
}
