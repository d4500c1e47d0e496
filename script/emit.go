package script

import (
	"fmt"
	"strings"

	"github.com/talk2silicon/talk2browser/recorder"
	"github.com/talk2silicon/talk2browser/vault"
)

// Emit renders the log as source text in the named dialect. Task appears in
// the script boilerplate only; records are rendered in log order, one walk.
func Emit(records []recorder.Record, dialectName, task string) (string, error) {
	d, err := Lookup(dialectName)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := d.Header.Execute(&b, headerData{Task: task, TaskLit: quote(task)}); err != nil {
		return "", fmt.Errorf("script: render %s header: %w", d.Name, err)
	}

	for _, rec := range records {
		tmpl, ok := d.Statements[rec.Type]
		if !ok {
			return "", fmt.Errorf("script: dialect %s cannot render action type %q", d.Name, rec.Type)
		}
		var line strings.Builder
		if err := tmpl.Execute(&line, d.stmtData(rec)); err != nil {
			return "", fmt.Errorf("script: render %s %s statement: %w", d.Name, rec.Type, err)
		}
		// A template may expand to several physical lines; each gets the
		// dialect's body indent.
		for _, l := range strings.Split(line.String(), "\n") {
			b.WriteString(d.Indent)
			b.WriteString(l)
			b.WriteString("\n")
		}
	}

	b.WriteString(d.Footer)
	return b.String(), nil
}

// stmtData pre-renders a record's fields as dialect-syntax expressions so
// the statement templates only place them.
func (d *Dialect) stmtData(rec recorder.Record) stmt {
	s := stmt{XPath: strings.HasPrefix(rec.Target, "/")}
	if s.XPath {
		s.By = "By.XPATH"
	} else {
		s.By = "By.CSS_SELECTOR"
	}
	switch rec.Type {
	case recorder.ActionNavigate:
		s.URL = quote(rec.Target)
	default:
		s.Selector = quote(d.selector(rec.Target, s.XPath))
		s.Value = d.valueExpr(rec.Value)
	}
	return s
}

// selector adapts a recorded selector to the dialect. Playwright needs an
// explicit engine prefix for absolute XPaths; the other dialects carry the
// distinction in the statement instead.
func (d *Dialect) selector(target string, xpath bool) string {
	if xpath && strings.HasPrefix(d.Name, "playwright-") {
		return "xpath=" + target
	}
	return target
}

// valueExpr renders a recorded value as a dialect expression: literal runs
// become quoted strings, placeholders become environment lookups, and mixed
// values concatenate. The bound secret value never appears.
func (d *Dialect) valueExpr(value string) string {
	segs := vault.Segments(value)
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg.Name != "" {
			parts = append(parts, d.envRef(seg.Name))
			continue
		}
		parts = append(parts, quote(seg.Literal))
	}
	return strings.Join(parts, " + ")
}
