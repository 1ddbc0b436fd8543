package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// Props is a page property map in API wire format
type Props map[string]any

// Page builds a database row
func Page(id string, props Props) map[string]any {
	return map[string]any{
		"object":     "page",
		"id":         id,
		"archived":   false,
		"properties": map[string]any(props),
	}
}

func richText(text string) []any {
	if text == "" {
		return []any{}
	}
	return []any{map[string]any{
		"type":       "text",
		"plain_text": text,
		"text":       map[string]any{"content": text},
		"annotations": map[string]any{
			"bold": false, "italic": false, "strikethrough": false,
			"underline": false, "code": false, "color": "default",
		},
	}}
}

func Title(text string) map[string]any {
	return map[string]any{"type": "title", "title": richText(text)}
}

func RichText(text string) map[string]any {
	return map[string]any{"type": "rich_text", "rich_text": richText(text)}
}

func Select(name string) map[string]any {
	if name == "" {
		return map[string]any{"type": "select", "select": nil}
	}
	return map[string]any{"type": "select", "select": map[string]any{"name": name}}
}

func MultiSelect(names ...string) map[string]any {
	opts := make([]any, 0, len(names))
	for _, n := range names {
		opts = append(opts, map[string]any{"name": n})
	}
	return map[string]any{"type": "multi_select", "multi_select": opts}
}

func Status(name string) map[string]any {
	return map[string]any{"type": "status", "status": map[string]any{"name": name}}
}

func Relation(ids ...string) map[string]any {
	rel := make([]any, 0, len(ids))
	for _, id := range ids {
		rel = append(rel, map[string]any{"id": id})
	}
	return map[string]any{"type": "relation", "relation": rel}
}

// Date builds a date property; an empty end is sent as null
func Date(start, end string) map[string]any {
	d := map[string]any{"start": start, "end": nil}
	if end != "" {
		d["end"] = end
	}
	return map[string]any{"type": "date", "date": d}
}

func Number(v float64) map[string]any {
	return map[string]any{"type": "number", "number": v}
}

func URL(u string) map[string]any {
	if u == "" {
		return map[string]any{"type": "url", "url": nil}
	}
	return map[string]any{"type": "url", "url": u}
}

// Files builds a files property with one hosted file
func Files(url string) map[string]any {
	if url == "" {
		return map[string]any{"type": "files", "files": []any{}}
	}
	return map[string]any{"type": "files", "files": []any{
		map[string]any{"name": "file", "type": "file", "file": map[string]any{"url": url}},
	}}
}

// Block builds a text-bearing block of the given type
func Block(id, typ, text string) map[string]any {
	return map[string]any{
		"object":       "block",
		"id":           id,
		"type":         typ,
		"has_children": false,
		typ:            map[string]any{"rich_text": richText(text), "color": "default"},
	}
}

func Paragraph(id, text string) map[string]any {
	return Block(id, "paragraph", text)
}

func Divider(id string) map[string]any {
	return map[string]any{"object": "block", "id": id, "type": "divider", "divider": map[string]any{}}
}

// ImageBlock builds a hosted image block
func ImageBlock(id, url, caption string) map[string]any {
	return map[string]any{
		"object": "block",
		"id":     id,
		"type":   "image",
		"image": map[string]any{
			"type":    "file",
			"file":    map[string]any{"url": url},
			"caption": richText(caption),
		},
	}
}

// ToggleBlock builds a toggle whose children are served separately
func ToggleBlock(id, summary string) map[string]any {
	b := Block(id, "toggle", summary)
	b["has_children"] = true
	return b
}

// PNG encodes a gradient image with an alpha channel
func PNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: uint8(128 + x%128)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}
