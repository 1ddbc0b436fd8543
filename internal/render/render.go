// Package render turns content nodes into the HTML fragment published with a session.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/pders01/guide-sync/internal/content"
)

var youtubeID = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]+)`)

// Renderer converts node sequences to HTML. It is stateless and safe for reuse.
type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

// Render emits HTML for nodes in order. Consecutive list items of the same
// kind share one list element; unknown kinds produce nothing.
func (r *Renderer) Render(nodes []content.Node) string {
	var b strings.Builder
	for i := 0; i < len(nodes); {
		kind := nodes[i].Kind
		if open, ok := listOpen[kind]; ok {
			b.WriteString(open)
			for i < len(nodes) && nodes[i].Kind == kind {
				b.WriteString(listItem(nodes[i]))
				i++
			}
			if kind == content.KindNumbered {
				b.WriteString("</ol>")
			} else {
				b.WriteString("</ul>")
			}
			continue
		}
		b.WriteString(r.node(nodes[i]))
		i++
	}
	return b.String()
}

var listOpen = map[content.Kind]string{
	content.KindBulleted: "<ul>",
	content.KindNumbered: "<ol>",
	content.KindToDo:     `<ul class="todo">`,
}

func listItem(n content.Node) string {
	if n.Kind != content.KindToDo {
		return "<li>" + Runs(n.Text) + "</li>"
	}
	box := `<input type="checkbox" disabled>`
	if n.Checked {
		box = `<input type="checkbox" disabled checked>`
	}
	return "<li>" + box + " " + Runs(n.Text) + "</li>"
}

func (r *Renderer) node(n content.Node) string {
	switch n.Kind {
	case content.KindParagraph:
		text := Runs(n.Text)
		if text == "" {
			return ""
		}
		return "<p>" + text + "</p>"
	case content.KindHeading1:
		// h1 is the session title
		return "<h2>" + Runs(n.Text) + "</h2>"
	case content.KindHeading2:
		return "<h3>" + Runs(n.Text) + "</h3>"
	case content.KindHeading3:
		return "<h4>" + Runs(n.Text) + "</h4>"
	case content.KindQuote:
		return "<blockquote>" + Runs(n.Text) + "</blockquote>"
	case content.KindCallout:
		return fmt.Sprintf(`<div class="callout">%s %s</div>`, html.EscapeString(n.Icon), Runs(n.Text))
	case content.KindDivider:
		return "<hr>"
	case content.KindImage:
		if n.URL == "" {
			return ""
		}
		caption := Runs(n.Caption)
		out := fmt.Sprintf(`<figure><img src="%s" alt="%s" loading="lazy">`,
			html.EscapeString(n.URL), html.EscapeString(content.PlainText(n.Caption)))
		if caption != "" {
			out += "<figcaption>" + caption + "</figcaption>"
		}
		return out + "</figure>"
	case content.KindCode:
		return fmt.Sprintf(`<pre><code class="language-%s">%s</code></pre>`, html.EscapeString(n.Language), Runs(n.Text))
	case content.KindToggle:
		return "<details><summary>" + Runs(n.Text) + "</summary>" + r.Render(n.Children) + "</details>"
	case content.KindBookmark:
		href := html.EscapeString(n.URL)
		label := Runs(n.Caption)
		if label == "" {
			label = href
		}
		return fmt.Sprintf(`<p><a href="%s" target="_blank" rel="noopener">%s</a></p>`, href, label)
	case content.KindVideo:
		if n.URL == "" {
			return ""
		}
		if m := youtubeID.FindStringSubmatch(n.URL); m != nil {
			return fmt.Sprintf(`<div class="video-embed"><iframe src="https://www.youtube.com/embed/%s" allowfullscreen loading="lazy"></iframe></div>`, m[1])
		}
		return fmt.Sprintf(`<p><a href="%s" target="_blank" rel="noopener">Video ansehen</a></p>`, html.EscapeString(n.URL))
	default:
		return ""
	}
}

// Runs renders text runs. Each run is escaped, then wrapped innermost-first:
// strong, em, s, u, code, color span, link.
func Runs(runs []content.TextRun) string {
	var b strings.Builder
	for _, run := range runs {
		text := html.EscapeString(run.Text)
		if run.Bold {
			text = "<strong>" + text + "</strong>"
		}
		if run.Italic {
			text = "<em>" + text + "</em>"
		}
		if run.Strikethrough {
			text = "<s>" + text + "</s>"
		}
		if run.Underline {
			text = "<u>" + text + "</u>"
		}
		if run.Code {
			text = "<code>" + text + "</code>"
		}
		if run.Color != "" && run.Color != "default" {
			text = fmt.Sprintf(`<span class="notion-color-%s">%s</span>`, html.EscapeString(run.Color), text)
		}
		if run.Href != "" {
			text = fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener">%s</a>`, html.EscapeString(run.Href), text)
		}
		b.WriteString(text)
	}
	return b.String()
}

// HasText reports whether an HTML fragment contains visible text once tags are stripped
func HasText(fragment string) bool {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) != "" {
				return true
			}
		}
	}
}

// ImageSources lists the src attribute of every img element in fragment
func ImageSources(fragment string) []string {
	var srcs []string
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return srcs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "src" && len(val) > 0 {
					srcs = append(srcs, string(val))
				}
			}
		}
	}
}
