// Package digest turns a window of subscription events into the summary email
// sent to a list's subscribers.
package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/jdholdren/clearly/internal/clearly"
)

// Entry is one item line in a digest section.
type Entry struct {
	ItemName  string
	ClaimedBy *string // Only ever set on claimed entries
}

// Summary partitions a window of events by type, each in event order.
type Summary struct {
	Added     []Entry
	Claimed   []Entry
	Unclaimed []Entry
	Removed   []Entry
}

func (s Summary) Total() int {
	return len(s.Added) + len(s.Claimed) + len(s.Unclaimed) + len(s.Removed)
}

// Group builds the summary for the given events, expected oldest first.
func Group(events []clearly.SubscriptionEvent) Summary {
	var s Summary
	for _, ev := range events {
		switch ev.EventType {
		case clearly.EventItemAdded:
			s.Added = append(s.Added, Entry{ItemName: ev.ItemName})
		case clearly.EventItemClaimed:
			s.Claimed = append(s.Claimed, Entry{ItemName: ev.ItemName, ClaimedBy: ev.Metadata.ClaimedBy()})
		case clearly.EventItemUnclaimed:
			s.Unclaimed = append(s.Unclaimed, Entry{ItemName: ev.ItemName})
		case clearly.EventItemRemoved:
			s.Removed = append(s.Removed, Entry{ItemName: ev.ItemName})
		}
	}

	return s
}

// Subject is the email subject line for a list's digest.
func Subject(listName string) string {
	return fmt.Sprintf("[%s] Updates on your wishlist", listName)
}

//go:embed templates/digest.html
var digestHTML string

var digestTmpl = template.Must(template.New("digest").Parse(digestHTML))

type section struct {
	Title       string
	Icon        string
	Marker      string
	MarkerStyle template.CSS
	ItemStyle   template.CSS
	Entries     []Entry
}

type page struct {
	ListName       string
	Changes        string
	Since          string
	Sections       []section
	ListURL        string
	UnsubscribeURL string
}

// DefaultWindow is the span Render describes the changes as covering.
const DefaultWindow = 30 * time.Minute

// Render produces the standalone HTML body of the digest email.
//
// All text is escaped by the template, only non-empty partitions get a section.
func Render(listName string, s Summary, listURL, unsubscribeURL string) (string, error) {
	return RenderSince(listName, s, listURL, unsubscribeURL, DefaultWindow)
}

// RenderSince is Render for a digest covering the last window. A zero window
// means the digest picks up where the previous one left off.
func RenderSince(listName string, s Summary, listURL, unsubscribeURL string, window time.Duration) (string, error) {
	candidates := []section{
		{Title: "New items", Icon: "📝", Marker: "→", MarkerStyle: "color:#069668", ItemStyle: "color:#374151", Entries: s.Added},
		{Title: "Items claimed", Icon: "✅", Marker: "✓", MarkerStyle: "color:#7c3aed", ItemStyle: "color:#7c3aed", Entries: s.Claimed},
		{Title: "Items unclaimed", Icon: "↩️", Marker: "→", MarkerStyle: "color:#069668", ItemStyle: "color:#374151", Entries: s.Unclaimed},
		{Title: "Removed items", Icon: "🗑️", Marker: "✕", MarkerStyle: "color:#d1d5db", ItemStyle: "color:#9ca3af;text-decoration:line-through", Entries: s.Removed},
	}

	p := page{
		ListName:       listName,
		Changes:        pluralize(s.Total(), "change"),
		Since:          since(window),
		ListURL:        listURL,
		UnsubscribeURL: unsubscribeURL,
	}
	for _, sec := range candidates {
		if len(sec.Entries) > 0 {
			p.Sections = append(p.Sections, sec)
		}
	}

	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("error rendering digest: %w", err)
	}

	return buf.String(), nil
}

func since(window time.Duration) string {
	switch {
	case window <= 0:
		return "since your last update"
	case window%time.Hour == 0:
		return "in the last " + pluralize(int(window/time.Hour), "hour")
	default:
		return "in the last " + pluralize(int(window.Round(time.Minute)/time.Minute), "minute")
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}

	return fmt.Sprintf("%d %ss", n, noun)
}
