// Package vault holds session secrets behind placeholder names. Callers and
// logs only ever see ${NAME}; the real value is substituted at the last
// moment before it reaches the browser, and only when the page the value is
// going to belongs to a domain the secret was bound to at registration.
package vault

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrUnknownSecret is returned when a placeholder names a secret that
	// was never registered.
	ErrUnknownSecret = errors.New("vault: unknown secret")

	// ErrMissingBinding is returned when a registered secret is asked for
	// on a page outside every domain it is bound to.
	ErrMissingBinding = errors.New("vault: secret not bound to this domain")
)

// placeholderRe matches ${NAME} with the identifier charset secrets are
// registered under.
var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type secret struct {
	value   string
	domains []string // lowercase hostnames; empty never happens, Register rejects it
}

// Vault is the session secret store. Safe for concurrent use.
type Vault struct {
	mu      sync.Mutex
	secrets map[string]secret
}

func New() *Vault {
	return &Vault{secrets: make(map[string]secret)}
}

// Register binds a secret to one or more domains. A secret with no domain
// binding would be usable anywhere, which defeats the scoping, so at
// least one domain is required. Re-registering a name replaces it.
func (v *Vault) Register(name, value string, domains []string) error {
	if !placeholderRe.MatchString("${" + name + "}") {
		return fmt.Errorf("vault: invalid secret name %q", name)
	}
	if len(domains) == 0 {
		return fmt.Errorf("vault: secret %s registered without a domain binding", name)
	}
	normalized := make([]string, len(domains))
	for i, d := range domains {
		normalized[i] = strings.ToLower(strings.TrimSpace(d))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[name] = secret{value: value, domains: normalized}
	return nil
}

// Names returns the registered placeholder names. Values are never listed.
func (v *Vault) Names() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.secrets))
	for name := range v.secrets {
		out = append(out, name)
	}
	return out
}

// HasPlaceholder reports whether s contains at least one ${NAME} reference.
func HasPlaceholder(s string) bool {
	return placeholderRe.MatchString(s)
}

// Segment is one piece of a split value: either literal text or a
// placeholder name, never both.
type Segment struct {
	Literal string
	Name    string
}

// Segments splits s into literal runs and placeholder names in order.
// Script emitters use this to render placeholders as environment lookups
// without ever seeing the bound values.
func Segments(s string) []Segment {
	var out []Segment
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			out = append(out, Segment{Literal: s[last:m[0]]})
		}
		out = append(out, Segment{Name: s[m[2]:m[3]]})
		last = m[1]
	}
	if last < len(s) || len(out) == 0 {
		out = append(out, Segment{Literal: s[last:]})
	}
	return out
}

// Resolve substitutes every ${NAME} in input with the bound secret value,
// for use on the page at pageURL. Text without placeholders passes through
// untouched. Any unknown name or out-of-scope binding fails the whole
// substitution; a partially substituted value must never reach the browser.
func (v *Vault) Resolve(input, pageURL string) (string, error) {
	if !HasPlaceholder(input) {
		return input, nil
	}
	host, err := hostOf(pageURL)
	if err != nil {
		return "", fmt.Errorf("vault: resolve on %q: %w", pageURL, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	var failure error
	out := placeholderRe.ReplaceAllStringFunc(input, func(m string) string {
		if failure != nil {
			return m
		}
		name := placeholderRe.FindStringSubmatch(m)[1]
		s, ok := v.secrets[name]
		if !ok {
			failure = fmt.Errorf("%w: %s", ErrUnknownSecret, name)
			return m
		}
		if !boundTo(s.domains, host) {
			failure = fmt.Errorf("%w: %s on %s", ErrMissingBinding, name, host)
			return m
		}
		return s.value
	})
	if failure != nil {
		return "", failure
	}
	return out, nil
}

// boundTo reports whether host falls inside any bound domain: an exact
// match, or a subdomain of a binding that is itself a registrable domain.
// Binding "example.com" covers "login.example.com"; binding "com" covers
// nothing but "com" itself.
func boundTo(domains []string, host string) bool {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	for _, d := range domains {
		if host == d {
			return true
		}
		if err == nil && etld1 == d {
			return true
		}
	}
	return false
}

func hostOf(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in url")
	}
	return host, nil
}
