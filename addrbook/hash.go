package addrbook

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// textLimit caps how much visible text takes part in the hash. Long text
// nodes churn (counters, timestamps) far more often than their prefix does.
const textLimit = 64

// hashElement derives the stable reference for an element from attributes
// that survive re-rendering: structure and authored identity, not layout.
// The digest is truncated to 128 bits; the full 256 are overkill for a
// per-page namespace and the shorter hex keeps logs and scripts readable.
func hashElement(r rawElement) string {
	h := sha256.New()
	for _, part := range []string{
		r.Tag,
		r.ID,
		r.Name,
		r.Role,
		r.AriaLabel,
		r.Placeholder,
		r.Type,
		normalizeText(r.Text),
		r.XPath,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0}) // field separator, prevents boundary collisions
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// normalizeText collapses whitespace runs to single spaces, trims, and
// truncates to textLimit runes so cosmetic reflows do not move the hash.
func normalizeText(s string) string {
	out := strings.Join(strings.Fields(s), " ")
	runes := []rune(out)
	if len(runes) > textLimit {
		return string(runes[:textLimit])
	}
	return out
}
