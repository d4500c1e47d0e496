package session

import (
	"context"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// ElementDigest is the planner-visible summary of one interactive element.
// The hash is the only way to address the element; selectors stay internal.
type ElementDigest struct {
	Hash  string `json:"hash"`
	Tag   string `json:"tag"`
	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"` // aria-label or placeholder, whichever exists
}

// PageView is what the planner sees of the active page: identity, a fresh
// element snapshot, and the page content reduced to markdown.
type PageView struct {
	PageID          string          `json:"page_id"`
	URL             string          `json:"url"`
	Title           string          `json:"title"`
	SnapshotVersion uint64          `json:"snapshot_version"`
	Pages           int             `json:"pages"`
	Elements        []ElementDigest `json:"elements"`
	Markdown        string          `json:"markdown,omitempty"`
}

// Observe rebuilds the active page's element snapshot and summarizes the
// page for the planner. Hashes returned here are valid until the next
// Observe or navigation on that page.
func (s *Session) Observe(ctx context.Context) (PageView, error) {
	var zero PageView
	entry, drv, err := s.target("")
	if err != nil {
		return zero, err
	}

	if url, title, err := drv.Info(ctx); err == nil {
		if err := s.Registry.Update(entry.ID, url, title); err != nil {
			return zero, err
		}
	}

	descs, err := entry.Book.Build(ctx, drv)
	if err != nil {
		return zero, err
	}

	view := PageView{
		PageID:          entry.ID,
		URL:             entry.URL,
		Title:           entry.Title,
		SnapshotVersion: entry.Book.Version(),
		Pages:           s.Registry.Len(),
		Elements:        make([]ElementDigest, 0, len(descs)),
	}
	for _, d := range descs {
		label := d.AriaLabel
		if label == "" {
			label = d.Placeholder
		}
		view.Elements = append(view.Elements, ElementDigest{
			Hash:  d.Hash,
			Tag:   d.Tag,
			Text:  d.Text,
			Label: label,
		})
	}

	// Content summary is best effort; an observe must not fail because a
	// page's markup defeated the converter.
	if html, err := drv.HTML(ctx); err == nil {
		view.Markdown = htmlToMarkdown(html)
	}
	return view, nil
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

var sanitizer = bluemonday.UGCPolicy()

func htmlToMarkdown(html string) string {
	if html == "" {
		return ""
	}
	safe := sanitizer.Sanitize(html)
	md, err := mdConverter.ConvertString(safe)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}
