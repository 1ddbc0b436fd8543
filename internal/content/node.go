// Package content defines the typed body content of a record: an ordered
// sequence of nodes, each carrying styled text runs.
package content

import "strings"

// Kind discriminates the node variants
type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindHeading1  Kind = "heading_1"
	KindHeading2  Kind = "heading_2"
	KindHeading3  Kind = "heading_3"
	KindBulleted  Kind = "bulleted_list_item"
	KindNumbered  Kind = "numbered_list_item"
	KindToDo      Kind = "to_do"
	KindQuote     Kind = "quote"
	KindCallout   Kind = "callout"
	KindDivider   Kind = "divider"
	KindImage     Kind = "image"
	KindCode      Kind = "code"
	KindToggle    Kind = "toggle"
	KindBookmark  Kind = "bookmark"
	KindVideo     Kind = "video"
	KindIgnorable Kind = "ignorable"
	KindUnknown   Kind = "unknown"
)

// TextRun is a styled span of plain text
type TextRun struct {
	Text          string
	Bold          bool
	Italic        bool
	Strikethrough bool
	Underline     bool
	Code          bool
	Color         string // empty or "default" means no color
	Href          string
}

// Node is one element of a content tree
type Node struct {
	ID       string
	Kind     Kind
	Text     []TextRun
	Caption  []TextRun
	Icon     string // callout emoji
	Language string // code blocks
	URL      string // image, video, bookmark target
	Hosted   bool   // URL points at store-hosted (expiring) media
	Checked  bool   // to-do items
	Children []Node
}

// PlainText flattens runs without markup
func PlainText(runs []TextRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

func (n Node) PlainText() string {
	return PlainText(n.Text)
}

// TextBearing reports whether the node kind carries text runs
func (n Node) TextBearing() bool {
	switch n.Kind {
	case KindParagraph, KindHeading1, KindHeading2, KindHeading3,
		KindBulleted, KindNumbered, KindToDo, KindQuote, KindCallout, KindCode, KindToggle:
		return true
	}
	return false
}

// IsEmpty reports whether a text-bearing node has no visible text
func (n Node) IsEmpty() bool {
	return n.TextBearing() && strings.TrimSpace(n.PlainText()) == ""
}

// Walk visits every node depth-first
func Walk(nodes []Node, fn func(n *Node)) {
	for i := range nodes {
		fn(&nodes[i])
		Walk(nodes[i].Children, fn)
	}
}
