package vault

import (
	"errors"
	"testing"
)

func TestResolvePassthrough(t *testing.T) {
	v := New()
	got, err := v.Resolve("plain text, no secrets", "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain text, no secrets" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveSubstitutes(t *testing.T) {
	v := New()
	if err := v.Register("PASSWORD", "hunter2", []string{"example.com"}); err != nil {
		t.Fatal(err)
	}
	got, err := v.Resolve("${PASSWORD}", "https://example.com/login")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hunter2" {
		t.Fatalf("got %q, want hunter2", got)
	}
}

func TestResolveSubdomainOfBinding(t *testing.T) {
	v := New()
	if err := v.Register("TOKEN", "t-123", []string{"example.com"}); err != nil {
		t.Fatal(err)
	}
	got, err := v.Resolve("bearer ${TOKEN}", "https://login.example.com/sso")
	if err != nil {
		t.Fatal(err)
	}
	if got != "bearer t-123" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveOutOfScope(t *testing.T) {
	v := New()
	if err := v.Register("PASSWORD", "hunter2", []string{"example.com"}); err != nil {
		t.Fatal(err)
	}
	_, err := v.Resolve("${PASSWORD}", "https://evil.test/phish")
	if !errors.Is(err, ErrMissingBinding) {
		t.Fatalf("got %v, want ErrMissingBinding", err)
	}
}

func TestResolveUnknownName(t *testing.T) {
	v := New()
	_, err := v.Resolve("${NOPE}", "https://example.com")
	if !errors.Is(err, ErrUnknownSecret) {
		t.Fatalf("got %v, want ErrUnknownSecret", err)
	}
}

func TestResolveAllOrNothing(t *testing.T) {
	v := New()
	if err := v.Register("USER", "alice", []string{"example.com"}); err != nil {
		t.Fatal(err)
	}
	// One resolvable and one unknown placeholder: nothing may leak.
	got, err := v.Resolve("${USER}:${MISSING}", "https://example.com")
	if err == nil {
		t.Fatalf("expected error, got %q", got)
	}
	if got != "" {
		t.Fatalf("partial substitution leaked: %q", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	v := New()
	if err := v.Register("ok_name", "x", nil); err == nil {
		t.Fatal("domainless registration accepted")
	}
	if err := v.Register("bad name", "x", []string{"example.com"}); err == nil {
		t.Fatal("invalid name accepted")
	}
}

func TestNamesNeverListValues(t *testing.T) {
	v := New()
	_ = v.Register("A", "secret-a", []string{"a.test"})
	_ = v.Register("B", "secret-b", []string{"b.test"})
	names := v.Names()
	if len(names) != 2 {
		t.Fatalf("got %d names", len(names))
	}
	for _, n := range names {
		if n == "secret-a" || n == "secret-b" {
			t.Fatal("value leaked through Names")
		}
	}
}

func TestSegments(t *testing.T) {
	got := Segments("user-${NAME}@${DOMAIN}!")
	want := []Segment{
		{Literal: "user-"},
		{Name: "NAME"},
		{Literal: "@"},
		{Name: "DOMAIN"},
		{Literal: "!"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := Segments("plain"); len(got) != 1 || got[0].Literal != "plain" {
		t.Fatalf("plain: %+v", got)
	}
	if got := Segments(""); len(got) != 1 || got[0] != (Segment{}) {
		t.Fatalf("empty: %+v", got)
	}
	if got := Segments("${ONLY}"); len(got) != 1 || got[0].Name != "ONLY" {
		t.Fatalf("only: %+v", got)
	}
}

func TestHasPlaceholder(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"${X}", true},
		{"prefix ${long_NAME2} suffix", true},
		{"$X", false},
		{"${}", false},
		{"${1bad}", false},
		{"plain", false},
	}
	for _, c := range cases {
		if got := HasPlaceholder(c.in); got != c.want {
			t.Errorf("HasPlaceholder(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
