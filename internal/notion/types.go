package notion

import (
	"strings"

	"github.com/pders01/guide-sync/internal/models"
)

// RichText is one segment of a rich_text or title array
type RichText struct {
	Type        string       `json:"type,omitempty"`
	PlainText   string       `json:"plain_text"`
	Href        *string      `json:"href,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Text        *TextContent `json:"text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

type Annotations struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color"`
}

// Link target of the segment, either the resolved href or the text link
func (r RichText) Link() string {
	if r.Href != nil && *r.Href != "" {
		return *r.Href
	}
	if r.Text != nil && r.Text.Link != nil {
		return r.Text.Link.URL
	}
	return ""
}

// Plain concatenates the plain text of all segments
func Plain(parts []RichText) string {
	var b strings.Builder
	for _, p := range parts {
		text := p.PlainText
		if text == "" && p.Text != nil {
			text = p.Text.Content
		}
		b.WriteString(text)
	}
	return b.String()
}

type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type Relation struct {
	ID string `json:"id"`
}

type Date struct {
	Start string  `json:"start"`
	End   *string `json:"end"`
}

// FileRef is either a store-hosted (expiring) file or an external link
type FileRef struct {
	Name     string   `json:"name,omitempty"`
	Type     string   `json:"type,omitempty"`
	File     *FileURL `json:"file,omitempty"`
	External *FileURL `json:"external,omitempty"`
}

type FileURL struct {
	URL        string `json:"url"`
	ExpiryTime string `json:"expiry_time,omitempty"`
}

// URL returns the hosted URL, else the external one
func (f FileRef) URL() string {
	if f.File != nil && f.File.URL != "" {
		return f.File.URL
	}
	if f.External != nil {
		return f.External.URL
	}
	return ""
}

// Property is a typed page property value. Only the field matching Type is set.
type Property struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	Title       []RichText `json:"title,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
	Status      *Option    `json:"status,omitempty"`
	Relation    []Relation `json:"relation,omitempty"`
	Date        *Date      `json:"date,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	Files       []FileRef  `json:"files,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Email       *string    `json:"email,omitempty"`
}

// Page is a database row
type Page struct {
	Object         string              `json:"object"`
	ID             string              `json:"id"`
	URL            string              `json:"url,omitempty"`
	Archived       bool                `json:"archived"`
	CreatedTime    string              `json:"created_time,omitempty"`
	LastEditedTime string              `json:"last_edited_time,omitempty"`
	Properties     map[string]Property `json:"properties"`
}

// PlainID is the page id without hyphens
func (p Page) PlainID() string {
	return models.NormalizeID(p.ID)
}

func (p Page) prop(name string) Property {
	return p.Properties[name]
}

// Title returns the flattened title property; missing properties yield ""
func (p Page) Title(name string) string {
	return Plain(p.prop(name).Title)
}

// FirstTitle returns the page's title-typed property regardless of its name
func (p Page) FirstTitle() string {
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return Plain(prop.Title)
		}
	}
	return ""
}

func (p Page) Text(name string) string {
	return Plain(p.prop(name).RichText)
}

// Select returns the option name. A multi_select value yields its first option.
func (p Page) Select(name string) string {
	prop := p.prop(name)
	if prop.Select != nil {
		return prop.Select.Name
	}
	if len(prop.MultiSelect) > 0 {
		return prop.MultiSelect[0].Name
	}
	return ""
}

// MultiSelect returns all option names. A single select value yields one entry.
func (p Page) MultiSelect(name string) []string {
	prop := p.prop(name)
	names := make([]string, 0, len(prop.MultiSelect))
	for _, o := range prop.MultiSelect {
		names = append(names, o.Name)
	}
	if len(names) == 0 && prop.Select != nil && prop.Select.Name != "" {
		names = append(names, prop.Select.Name)
	}
	return names
}

func (p Page) Status(name string) string {
	if s := p.prop(name).Status; s != nil {
		return s.Name
	}
	return ""
}

// Relation returns the linked page ids in stored order
func (p Page) Relation(name string) []string {
	rel := p.prop(name).Relation
	ids := make([]string, 0, len(rel))
	for _, r := range rel {
		ids = append(ids, r.ID)
	}
	return ids
}

// DateRange returns start and end, nil when unset
func (p Page) DateRange(name string) (start, end *string) {
	d := p.prop(name).Date
	if d == nil || d.Start == "" {
		return nil, nil
	}
	s := d.Start
	if d.End != nil && *d.End != "" {
		e := *d.End
		return &s, &e
	}
	return &s, nil
}

func (p Page) Number(name string) *float64 {
	return p.prop(name).Number
}

// FileURL returns the URL of the first file
func (p Page) FileURL(name string) string {
	files := p.prop(name).Files
	if len(files) == 0 {
		return ""
	}
	return files[0].URL()
}

func (p Page) URLValue(name string) string {
	if u := p.prop(name).URL; u != nil {
		return *u
	}
	return ""
}

// Database is the schema of a data source
type Database struct {
	Object     string                    `json:"object"`
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title"`
	Properties map[string]PropertySchema `json:"properties"`
}

type PropertySchema struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Query is the body of a database query
type Query struct {
	Filter      *Filter `json:"filter,omitempty"`
	Sorts       []Sort  `json:"sorts,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

// Filter covers the compound and property conditions used by the generators
type Filter struct {
	Or       []Filter         `json:"or,omitempty"`
	And      []Filter         `json:"and,omitempty"`
	Property string           `json:"property,omitempty"`
	Select   *EqualsCondition `json:"select,omitempty"`
	Status   *EqualsCondition `json:"status,omitempty"`
}

type EqualsCondition struct {
	Equals string `json:"equals"`
}

// SelectAny matches pages whose select property equals any of the values
func SelectAny(property string, values ...string) *Filter {
	if len(values) == 0 {
		return nil
	}
	or := make([]Filter, 0, len(values))
	for _, v := range values {
		or = append(or, Filter{Property: property, Select: &EqualsCondition{Equals: v}})
	}
	return &Filter{Or: or}
}

// QueryResult is one page of query results
type QueryResult struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// ChildrenResult is one page of block children
type ChildrenResult struct {
	Object     string  `json:"object"`
	Results    []Block `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Fields is a property map in the store's write format
type Fields map[string]any

// TitleValue builds a title property for writes
func TitleValue(text string) map[string]any {
	return map[string]any{"title": []RichText{{Text: &TextContent{Content: text}}}}
}

func RelationValue(ids ...string) map[string]any {
	rel := make([]Relation, 0, len(ids))
	for _, id := range ids {
		rel = append(rel, Relation{ID: id})
	}
	return map[string]any{"relation": rel}
}

// NumberValue encodes a number property; a nil value is sent as an explicit null
type NumberValue struct {
	Number *float64 `json:"number"`
}
