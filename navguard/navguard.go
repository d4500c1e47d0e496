// Package navguard validates navigation targets against the session
// allowlist before anything is dispatched to the browser. A blocked
// navigation never reaches the driver and never reaches the action log.
//
// Matching policy: a target passes when its host equals an allowlisted
// entry exactly, or when the entry is the target's registrable domain
// (entry "example.com" admits "login.example.com"; entry "com" admits
// only a literal host "com"). Only http and https targets are considered
// at all.
package navguard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrBlocked is returned for any target outside the allowlist.
var ErrBlocked = errors.New("navguard: navigation blocked")

// Guard holds the session allowlist. An empty allowlist blocks every
// navigation; recording sessions are expected to declare where they go.
// The allowlist is fixed at construction, matching its config lifecycle.
type Guard struct {
	hosts []string
}

// New builds a guard from allowlist entries. Entries are hostnames,
// lowercased and trimmed; empty entries are dropped.
func New(allow []string) *Guard {
	hosts := make([]string, 0, len(allow))
	for _, h := range allow {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return &Guard{hosts: hosts}
}

// Allowlist returns a copy of the configured entries.
func (g *Guard) Allowlist() []string {
	out := make([]string, len(g.hosts))
	copy(out, g.hosts)
	return out
}

// Check validates a navigation target. The returned error wraps ErrBlocked
// for policy rejections and carries parse detail for unusable URLs.
func (g *Guard) Check(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: unparseable target %q: %v", ErrBlocked, target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrBlocked, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: target %q has no host", ErrBlocked, target)
	}

	etld1, etldErr := publicsuffix.EffectiveTLDPlusOne(host)
	for _, allowed := range g.hosts {
		if host == allowed {
			return nil
		}
		if etldErr == nil && etld1 == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: host %s not in allowlist", ErrBlocked, host)
}
