package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/talk2silicon/talk2browser/idgen"
)

const taskSnippetLimit = 40

// OutputPath derives a collision-free file path for an emitted script:
// generated_script_<timestamp>_<task snippet><ext>, with a numeric suffix
// when a file from the same millisecond already exists.
func OutputPath(dir, task string, d *Dialect) string {
	base := fmt.Sprintf("generated_script_%s_%s", idgen.Stamp(), sanitizeTask(task))
	path := filepath.Join(dir, base+d.Ext)
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, d.Ext))
	}
}

// sanitizeTask reduces a free-form task description to a safe filename
// snippet: lowercase, runs of non-alphanumerics collapse to single
// underscores, truncated.
func sanitizeTask(task string) string {
	var b strings.Builder
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(task) {
		if b.Len() >= taskSnippetLimit {
			break
		}
		if unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "session"
	}
	return out
}
