// Package script compiles a recorded action log into standalone automation
// scripts. One walk over the log drives every dialect; the dialects differ
// only in their statement templates, boilerplate, and how a placeholder is
// rendered as an environment lookup. Recorded values are emitted verbatim:
// a ${NAME} placeholder becomes the dialect's env-var idiom, never the
// bound value, so generated scripts are safe to persist and share.
package script

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"text/template"

	"github.com/talk2silicon/talk2browser/recorder"
)

// ErrUnknownDialect is returned when a requested dialect is not registered.
var ErrUnknownDialect = errors.New("script: unknown dialect")

// Dialect holds the rendering rules for one target framework. Statement
// templates receive a stmt with pre-rendered expressions; the templates
// only place them.
type Dialect struct {
	Name       string
	Ext        string
	Indent     string
	Header     *template.Template
	Footer     string
	Statements map[recorder.ActionType]*template.Template

	// envRef renders a placeholder name as the dialect's environment
	// variable lookup expression.
	envRef func(name string) string
}

// stmt is the data handed to one statement template.
type stmt struct {
	URL      string // quoted url expression (navigate)
	Selector string // quoted selector expression
	Value    string // value expression, env lookups spliced in
	XPath    bool   // selector is structural rather than css
	By       string // selenium locator strategy constant
}

// headerData is the data handed to a dialect's header template. Task is the
// raw description for comment use; TaskLit is its quoted literal form.
type headerData struct {
	Task    string
	TaskLit string
}

func mustDialect(name, ext, indent, header, footer string, envRef func(string) string, stmts map[recorder.ActionType]string) *Dialect {
	d := &Dialect{
		Name:       name,
		Ext:        ext,
		Indent:     indent,
		Header:     template.Must(template.New(name + ":header").Parse(header)),
		Footer:     footer,
		Statements: make(map[recorder.ActionType]*template.Template, len(stmts)),
		envRef:     envRef,
	}
	for typ, text := range stmts {
		d.Statements[typ] = template.Must(template.New(name + ":" + string(typ)).Parse(text))
	}
	return d
}

var dialects = map[string]*Dialect{}

func register(d *Dialect) { dialects[d.Name] = d }

// Lookup returns a registered dialect by name.
func Lookup(name string) (*Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return d, nil
}

// Names returns the registered dialect names, sorted.
func Names() []string {
	out := make([]string, 0, len(dialects))
	for name := range dialects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// quote renders s as a double-quoted source literal. Go's escaping is a
// subset both Python and JavaScript accept.
func quote(s string) string { return strconv.Quote(s) }

func init() {
	register(mustDialect(
		"playwright-python", ".py", "        ",
		`# Generated browser automation script.
# Task: {{.Task}}
import asyncio
import os

from playwright.async_api import async_playwright


async def run() -> None:
    async with async_playwright() as p:
        browser = await p.chromium.launch(headless=False)
        page = await browser.new_page()
`,
		`        await browser.close()


asyncio.run(run())
`,
		func(name string) string { return `os.environ[` + quote(name) + `]` },
		map[recorder.ActionType]string{
			recorder.ActionNavigate: `await page.goto({{.URL}})`,
			recorder.ActionClick:    `await page.click({{.Selector}})`,
			recorder.ActionFill:     `await page.fill({{.Selector}}, {{.Value}})`,
			recorder.ActionSelect:   `await page.select_option({{.Selector}}, {{.Value}})`,
		},
	))

	register(mustDialect(
		"playwright-node", ".spec.js", "  ",
		`// Generated browser automation script.
// Task: {{.Task}}
const { chromium } = require('playwright');

(async () => {
  const browser = await chromium.launch({ headless: false });
  const page = await browser.newPage();
`,
		`  await browser.close();
})();
`,
		func(name string) string { return "process.env." + name },
		map[recorder.ActionType]string{
			recorder.ActionNavigate: `await page.goto({{.URL}});`,
			recorder.ActionClick:    `await page.click({{.Selector}});`,
			recorder.ActionFill:     `await page.fill({{.Selector}}, {{.Value}});`,
			recorder.ActionSelect:   `await page.selectOption({{.Selector}}, {{.Value}});`,
		},
	))

	register(mustDialect(
		"cypress", ".cy.js", "    ",
		`// Generated browser automation script.
// XPath selectors require the cypress-xpath plugin.
describe('recorded session', () => {
  it({{.TaskLit}}, () => {
`,
		`  });
});
`,
		func(name string) string { return `Cypress.env(` + quote(name) + `)` },
		map[recorder.ActionType]string{
			recorder.ActionNavigate: `cy.visit({{.URL}});`,
			recorder.ActionClick:    `{{if .XPath}}cy.xpath({{.Selector}}){{else}}cy.get({{.Selector}}){{end}}.click();`,
			recorder.ActionFill:     `{{if .XPath}}cy.xpath({{.Selector}}){{else}}cy.get({{.Selector}}){{end}}.clear().type({{.Value}});`,
			recorder.ActionSelect:   `{{if .XPath}}cy.xpath({{.Selector}}){{else}}cy.get({{.Selector}}){{end}}.select({{.Value}});`,
		},
	))

	register(mustDialect(
		"selenium-python", ".py", "        ",
		`# Generated browser automation script.
# Task: {{.Task}}
import os

from selenium import webdriver
from selenium.webdriver.common.by import By
from selenium.webdriver.support.ui import Select


def run() -> None:
    driver = webdriver.Chrome()
    try:
`,
		`    finally:
        driver.quit()


run()
`,
		func(name string) string { return `os.environ[` + quote(name) + `]` },
		map[recorder.ActionType]string{
			recorder.ActionNavigate: `driver.get({{.URL}})`,
			recorder.ActionClick:    `driver.find_element({{.By}}, {{.Selector}}).click()`,
			recorder.ActionFill: `driver.find_element({{.By}}, {{.Selector}}).clear()
driver.find_element({{.By}}, {{.Selector}}).send_keys({{.Value}})`,
			recorder.ActionSelect: `Select(driver.find_element({{.By}}, {{.Selector}})).select_by_visible_text({{.Value}})`,
		},
	))
}
