// Package linkcheck finds the outbound links in the gift guides and reports
// the ones that are likely broken.
package linkcheck

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"mvdan.cc/xurls/v2"
)

// Link is an outbound link found in a guide.
type Link struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url"`
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%d %s", l.File, l.Line, l.URL)
}

var (
	markdown = goldmark.New()
	bareURL  = xurls.Strict()
)

// Scan reads every markdown guide under dir and returns their http(s) links in
// file then line order.
func Scan(fsys fs.FS, dir string) ([]Link, error) {
	var links []Link
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".md" && ext != ".mdx" {
			return nil
		}

		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("error reading guide: %s", err)
		}
		links = append(links, scanFile(d.Name(), src)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", dir, err)
	}

	return links, nil
}

func scanFile(name string, src []byte) []Link {
	type key struct {
		line int
		url  string
	}
	var (
		links []Link
		seen  = map[key]bool{}
	)
	add := func(l Link) {
		k := key{l.Line, l.URL}
		if seen[k] || !isWeb(l.URL) {
			return
		}
		seen[k] = true
		links = append(links, l)
	}

	doc := markdown.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}

		dest := string(link.Destination)
		label, offset := linkText(link, src)
		if offset < 0 {
			offset = bytes.Index(src, link.Destination)
		}
		add(Link{Text: label, URL: dest, File: name, Line: lineAt(src, offset)})
		return ast.WalkSkipChildren, nil
	})

	// Bare URLs outside of markdown link syntax, e.g. in JSX props.
	for i, line := range bytes.Split(src, []byte("\n")) {
		for _, u := range bareURL.FindAll(line, -1) {
			add(Link{URL: strings.TrimRight(string(u), ".,;:"), File: name, Line: i + 1})
		}
	}

	slices.SortStableFunc(links, func(a, b Link) int {
		return a.Line - b.Line
	})
	return links
}

// Returns the link's label and the offset of its first character, or -1 when
// the label is empty.
func linkText(link *ast.Link, src []byte) (string, int) {
	var (
		sb     strings.Builder
		offset = -1
	)
	_ = ast.Walk(link, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			if offset < 0 {
				offset = t.Segment.Start
			}
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String()), offset
}

func lineAt(src []byte, offset int) int {
	if offset < 0 || offset > len(src) {
		return 0
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}

func isWeb(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// Hosts with a history of dropping out, and what goes wrong with them.
var unreliableDomains = []struct {
	domain string
	issue  string
}{
	{"robotime.com", "may be unreliable"},
	{"glocusent.com", "may be unreliable"},
	{"yamazakihome.com", "has SSL/connection issues"},
	{"levoit.com", "returns 404 for this product"},
}

// Products that have been pulled or were never right.
var badASINs = []string{
	"B08N41Y4Q2",
	"B08RJXVTCD",
	"B08943J3QF",
	"B01N7ZNZL5",
	"B086W8DW72",
	"B07L5B5P5D",
}

var asinRe = regexp.MustCompile(`/dp/(B[A-Z0-9]{9})`)

// Analyze reports what is wrong with the link without requesting it.
func Analyze(l Link) []string {
	var issues []string
	for _, d := range unreliableDomains {
		if strings.Contains(l.URL, d.domain) {
			issues = append(issues, fmt.Sprintf("Domain %s %s", d.domain, d.issue))
		}
	}

	if strings.Contains(l.URL, "amazon.com") {
		if m := asinRe.FindStringSubmatch(l.URL); m != nil && slices.Contains(badASINs, m[1]) {
			issues = append(issues, fmt.Sprintf("Amazon ASIN %s appears to be incorrect or product discontinued", m[1]))
		}
	}

	u, err := url.Parse(l.URL)
	switch {
	case err != nil:
		issues = append(issues, fmt.Sprintf("Invalid URL format: %s", err))
	case u.Host == "":
		issues = append(issues, "Invalid URL format: missing host")
	}

	return issues
}
