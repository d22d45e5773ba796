// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the domain types shared by the store, the
// generation gateway, and the editor controller.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultPageRoute is the page route used when none is given.
const DefaultPageRoute = "homepage"

// Version is an immutable snapshot of a generated HTML document. The only
// field that changes after insert is HTMLLive (and PublishedAt), set when
// the version is published.
type Version struct {
	ID           uuid.UUID  `json:"id"`
	Prompt       string     `json:"prompt"`
	PageRoute    string     `json:"page_route"`
	HTMLPreview  string     `json:"html_preview"`
	HTMLLive     *string    `json:"html_live,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// IsPublished reports whether the version has ever been promoted to live.
func (v *Version) IsPublished() bool {
	return v.HTMLLive != nil
}

// Title returns a short display label for version lists: the document
// <title> when present, otherwise the first 60 characters of the prompt.
func (v *Version) Title() string {
	if t := DocumentTitle(v.HTMLPreview); t != "" {
		return t
	}
	p := strings.TrimSpace(v.Prompt)
	if r := []rune(p); len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return p
}

// NewVersion holds the caller-supplied fields of a version to insert.
// The store assigns ID and CreatedAt.
type NewVersion struct {
	Prompt       string
	PageRoute    string
	HTMLPreview  string
	Instructions string
}

// RouteSummary describes one page route known to the store.
type RouteSummary struct {
	PageRoute string    `json:"page_route"`
	Versions  int       `json:"versions"`
	UpdatedAt time.Time `json:"updated_at"`
	Published bool      `json:"published"`
}

// DocumentTitle extracts the text of the first <title> element in an HTML
// document. Returns "" if there is none or the document cannot be parsed.
func DocumentTitle(doc string) string {
	if doc == "" {
		return ""
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	return findTitle(root)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// IsFullDocument reports whether s is a complete HTML document rather than
// a fragment: it must contain an explicit <html> or doctype token.
func IsFullDocument(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.DoctypeToken:
			return true
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Html {
				return true
			}
		}
	}
}
