package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// DriverError reports a failed driver primitive: element not found, not
// interactable, or the operation timed out.
type DriverError struct {
	Op     string
	Target string
	Err    error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("browser: %s %q: %v", e.Op, e.Target, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// Driver exposes the low-level primitives for one page. Selectors starting
// with "/" are treated as XPath, everything else as CSS.
type Driver struct {
	page    *rod.Page
	timeout time.Duration
}

// NewDriver wraps a page. A non-positive timeout defaults to 15s.
func NewDriver(page *rod.Page, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Driver{page: page, timeout: timeout}
}

// Page returns the underlying page handle.
func (d *Driver) Page() *rod.Page { return d.page }

// TargetID identifies the page's Chrome target.
func (d *Driver) TargetID() string { return string(d.page.TargetID) }

func (d *Driver) bounded(ctx context.Context) *rod.Page {
	return d.page.Context(ctx).Timeout(d.timeout)
}

func (d *Driver) element(ctx context.Context, selector string) (*rod.Element, error) {
	p := d.bounded(ctx)
	if strings.HasPrefix(selector, "/") {
		return p.ElementX(selector)
	}
	return p.Element(selector)
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	p := d.bounded(ctx)
	if err := p.Navigate(url); err != nil {
		return &DriverError{Op: "navigate", Target: url, Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return &DriverError{Op: "navigate", Target: url, Err: err}
	}
	return nil
}

// Click left-clicks the element once.
func (d *Driver) Click(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return &DriverError{Op: "click", Target: selector, Err: err}
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &DriverError{Op: "click", Target: selector, Err: err}
	}
	return nil
}

// Fill replaces the element's current content with value.
func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return &DriverError{Op: "fill", Target: selector, Err: err}
	}
	if err := el.SelectAllText(); err != nil {
		return &DriverError{Op: "fill", Target: selector, Err: err}
	}
	if err := el.Input(value); err != nil {
		return &DriverError{Op: "fill", Target: selector, Err: err}
	}
	return nil
}

// Select picks a dropdown option by its visible text.
func (d *Driver) Select(ctx context.Context, selector, option string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return &DriverError{Op: "select", Target: selector, Err: err}
	}
	if err := el.Select([]string{option}, true, rod.SelectorTypeText); err != nil {
		return &DriverError{Op: "select", Target: selector, Err: err}
	}
	return nil
}

// InstallInit installs a script that runs in every new document the page
// loads, and runs it in the current document so an already-loaded page is
// covered too.
func (d *Driver) InstallInit(ctx context.Context, js string) error {
	if _, err := d.page.Context(ctx).EvalOnNewDocument(js); err != nil {
		return &DriverError{Op: "install init script", Target: "", Err: err}
	}
	if _, err := d.bounded(ctx).Eval(js); err != nil {
		return &DriverError{Op: "install init script", Target: "", Err: err}
	}
	return nil
}

// EvalJSON runs a JavaScript function in the page and returns its string
// result. Satisfies the element scanner's evaluator contract.
func (d *Driver) EvalJSON(ctx context.Context, js string) (string, error) {
	res, err := d.bounded(ctx).Eval(js)
	if err != nil {
		return "", &DriverError{Op: "evaluate", Target: "", Err: err}
	}
	return res.Value.Str(), nil
}

// HTML returns the page's current outer HTML.
func (d *Driver) HTML(ctx context.Context) (string, error) {
	html, err := d.bounded(ctx).HTML()
	if err != nil {
		return "", &DriverError{Op: "html", Target: "", Err: err}
	}
	return html, nil
}

// Info returns the page's current URL and title.
func (d *Driver) Info(ctx context.Context) (url, title string, err error) {
	info, err := d.bounded(ctx).Info()
	if err != nil {
		return "", "", &DriverError{Op: "info", Target: "", Err: err}
	}
	return info.URL, info.Title, nil
}
