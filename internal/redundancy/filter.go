// Package redundancy strips the boilerplate header authors put at the top of
// session bodies: a title echo and labeled date, location or format lines.
package redundancy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/content"
)

const (
	ActionDrop = "drop"
	ActionKeep = "keep"

	// TitlePlaceholder in a pattern is replaced by the quoted session title
	TitlePlaceholder = "{title}"

	// up to a few non-letter runes (an emoji, a bullet) before the label
	prefix = `(?i)^[^\p{L}\p{N}]{0,6}\s*`
)

// DefaultRules is the label vocabulary used when none is configured
func DefaultRules() []config.Rule {
	return []config.Rule{
		{Name: "title_echo", Pattern: TitlePlaceholder + `\s*[:.!]?\s*$`, Action: ActionDrop},
		{Name: "title_label", Pattern: `titel\s*:`, Action: ActionDrop},
		{Name: "date", Pattern: `(?:datum|tag|wann)\s*:`, Action: ActionDrop},
		{Name: "location", Pattern: `(?:ort|bühne|wo|location)\s*:`, Action: ActionDrop},
		{Name: "format", Pattern: `(?:format|typ)\s*:`, Action: ActionDrop},
		{Name: "time", Pattern: `(?:zeit|uhrzeit|dauer)\s*:`, Action: ActionDrop},
	}
}

type rule struct {
	name    string
	action  string
	pattern string
	re      *regexp.Regexp // nil when the pattern depends on the title
}

// Filter applies an ordered rule list to the leading zone of a node sequence
type Filter struct {
	rules []rule
}

// New compiles rules in order. An empty list selects DefaultRules.
func New(rules []config.Rule) (*Filter, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	f := &Filter{}
	for _, r := range rules {
		action := strings.ToLower(r.Action)
		if action == "" {
			action = ActionDrop
		}
		if action != ActionDrop && action != ActionKeep {
			return nil, fmt.Errorf("rule %q: unknown action %q", r.Name, r.Action)
		}

		compiled := rule{name: r.Name, action: action, pattern: r.Pattern}
		if !strings.Contains(r.Pattern, TitlePlaceholder) {
			re, err := regexp.Compile(prefix + "(?:" + r.Pattern + ")")
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid pattern: %w", r.Name, err)
			}
			compiled.re = re
		} else if _, err := regexp.Compile(prefix + strings.ReplaceAll(r.Pattern, TitlePlaceholder, "x")); err != nil {
			return nil, fmt.Errorf("rule %q: invalid pattern: %w", r.Name, err)
		}
		f.rules = append(f.rules, compiled)
	}
	return f, nil
}

// Apply returns nodes with the leading boilerplate removed. While the leading
// zone is open, dividers, empty paragraphs and text matching a drop rule are
// removed. The first other non-empty node closes the zone for good.
func (f *Filter) Apply(nodes []content.Node, title string) []content.Node {
	rules := f.bind(title)

	out := make([]content.Node, 0, len(nodes))
	leading := true
	for _, n := range nodes {
		if !leading {
			out = append(out, n)
			continue
		}

		switch {
		case n.Kind == content.KindDivider:
			continue
		case n.Kind == content.KindParagraph && n.IsEmpty():
			continue
		case n.Kind == content.KindIgnorable:
			out = append(out, n)
			continue
		case !n.TextBearing():
			leading = false
			out = append(out, n)
			continue
		case n.IsEmpty():
			out = append(out, n)
			continue
		}

		switch match(rules, strings.TrimSpace(n.PlainText())) {
		case ActionDrop:
			continue
		case ActionKeep:
			out = append(out, n)
		default:
			leading = false
			out = append(out, n)
		}
	}
	return out
}

// bind resolves title-dependent patterns for one session
func (f *Filter) bind(title string) []rule {
	bound := make([]rule, len(f.rules))
	copy(bound, f.rules)
	title = strings.TrimSpace(title)
	for i, r := range bound {
		if r.re != nil {
			continue
		}
		if title == "" {
			continue
		}
		pattern := strings.ReplaceAll(r.pattern, TitlePlaceholder, regexp.QuoteMeta(title))
		// validated in New with a stand-in title
		bound[i].re = regexp.MustCompile(prefix + "(?:" + pattern + ")")
	}
	return bound
}

func match(rules []rule, text string) string {
	for _, r := range rules {
		if r.re != nil && r.re.MatchString(text) {
			return r.action
		}
	}
	return ""
}
