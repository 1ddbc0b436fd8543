package notion

import (
	"github.com/pders01/guide-sync/internal/content"
)

// Block is one child block. Only the payload matching Type is populated.
type Block struct {
	Object      string `json:"object,omitempty"`
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children,omitempty"`

	Paragraph        *TextBlock     `json:"paragraph,omitempty"`
	Heading1         *TextBlock     `json:"heading_1,omitempty"`
	Heading2         *TextBlock     `json:"heading_2,omitempty"`
	Heading3         *TextBlock     `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock     `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock     `json:"numbered_list_item,omitempty"`
	Quote            *TextBlock     `json:"quote,omitempty"`
	Toggle           *TextBlock     `json:"toggle,omitempty"`
	ToDo             *ToDoBlock     `json:"to_do,omitempty"`
	Callout          *CalloutBlock  `json:"callout,omitempty"`
	Code             *CodeBlock     `json:"code,omitempty"`
	Image            *MediaBlock    `json:"image,omitempty"`
	Video            *MediaBlock    `json:"video,omitempty"`
	Bookmark         *BookmarkBlock `json:"bookmark,omitempty"`
	Divider          *struct{}      `json:"divider,omitempty"`

	// Children is filled by FetchTree, never by the API
	Children []Block `json:"-"`
}

type TextBlock struct {
	RichText []RichText `json:"rich_text"`
	Color    string     `json:"color,omitempty"`
}

type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

type CalloutBlock struct {
	RichText []RichText `json:"rich_text"`
	Icon     *Icon      `json:"icon,omitempty"`
}

type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
}

type MediaBlock struct {
	Type     string     `json:"type"`
	File     *FileURL   `json:"file,omitempty"`
	External *FileURL   `json:"external,omitempty"`
	Caption  []RichText `json:"caption,omitempty"`
}

type BookmarkBlock struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption,omitempty"`
}

// ignorable block types carry no publishable content
var ignorable = map[string]bool{
	"table_of_contents": true,
	"child_page":        true,
	"child_database":    true,
	"breadcrumb":        true,
}

// Runs converts rich text segments into content runs
func Runs(parts []RichText) []content.TextRun {
	runs := make([]content.TextRun, 0, len(parts))
	for _, p := range parts {
		text := p.PlainText
		if text == "" && p.Text != nil {
			text = p.Text.Content
		}
		run := content.TextRun{Text: text, Href: p.Link()}
		if a := p.Annotations; a != nil {
			run.Bold = a.Bold
			run.Italic = a.Italic
			run.Strikethrough = a.Strikethrough
			run.Underline = a.Underline
			run.Code = a.Code
			if a.Color != "default" {
				run.Color = a.Color
			}
		}
		runs = append(runs, run)
	}
	return runs
}

// Node converts a block and its fetched children into a content node.
// Unsupported types become KindUnknown; payload-less blocks yield empty fields.
func (b Block) Node() content.Node {
	n := content.Node{ID: b.ID, Kind: content.KindUnknown}

	text := func(tb *TextBlock) []content.TextRun {
		if tb == nil {
			return nil
		}
		return Runs(tb.RichText)
	}

	switch b.Type {
	case "paragraph":
		n.Kind, n.Text = content.KindParagraph, text(b.Paragraph)
	case "heading_1":
		n.Kind, n.Text = content.KindHeading1, text(b.Heading1)
	case "heading_2":
		n.Kind, n.Text = content.KindHeading2, text(b.Heading2)
	case "heading_3":
		n.Kind, n.Text = content.KindHeading3, text(b.Heading3)
	case "bulleted_list_item":
		n.Kind, n.Text = content.KindBulleted, text(b.BulletedListItem)
	case "numbered_list_item":
		n.Kind, n.Text = content.KindNumbered, text(b.NumberedListItem)
	case "to_do":
		n.Kind = content.KindToDo
		if b.ToDo != nil {
			n.Text = Runs(b.ToDo.RichText)
			n.Checked = b.ToDo.Checked
		}
	case "quote":
		n.Kind, n.Text = content.KindQuote, text(b.Quote)
	case "toggle":
		n.Kind, n.Text = content.KindToggle, text(b.Toggle)
	case "divider":
		n.Kind = content.KindDivider
	case "callout":
		n.Kind = content.KindCallout
		if b.Callout != nil {
			n.Text = Runs(b.Callout.RichText)
			if b.Callout.Icon != nil {
				n.Icon = b.Callout.Icon.Emoji
			}
		}
	case "code":
		n.Kind = content.KindCode
		if b.Code != nil {
			n.Text = Runs(b.Code.RichText)
			n.Language = b.Code.Language
		}
	case "image":
		n.Kind = content.KindImage
		if b.Image != nil {
			n.URL, n.Hosted = b.Image.url()
			n.Caption = Runs(b.Image.Caption)
		}
	case "video":
		n.Kind = content.KindVideo
		if b.Video != nil {
			n.URL, n.Hosted = b.Video.url()
			n.Caption = Runs(b.Video.Caption)
		}
	case "bookmark":
		n.Kind = content.KindBookmark
		if b.Bookmark != nil {
			n.URL = b.Bookmark.URL
			n.Caption = Runs(b.Bookmark.Caption)
		}
	default:
		if ignorable[b.Type] {
			n.Kind = content.KindIgnorable
		}
	}

	if len(b.Children) > 0 {
		n.Children = Nodes(b.Children)
	}
	return n
}

// Nodes converts a block sequence, preserving order
func Nodes(blocks []Block) []content.Node {
	nodes := make([]content.Node, 0, len(blocks))
	for _, b := range blocks {
		nodes = append(nodes, b.Node())
	}
	return nodes
}

func (m *MediaBlock) url() (string, bool) {
	if m.File != nil && m.File.URL != "" {
		return m.File.URL, true
	}
	if m.External != nil {
		return m.External.URL, false
	}
	return "", false
}

// ParagraphBlock builds a paragraph for page creation
func ParagraphBlock(text string) Block {
	return Block{Object: "block", Type: "paragraph", Paragraph: &TextBlock{RichText: []RichText{{Type: "text", Text: &TextContent{Content: text}}}}}
}

func BulletBlock(text string) Block {
	return Block{Object: "block", Type: "bulleted_list_item", BulletedListItem: &TextBlock{RichText: []RichText{{Type: "text", Text: &TextContent{Content: text}}}}}
}
