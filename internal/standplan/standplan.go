// Package standplan writes booth coordinates from the floor-plan editor back
// to the exhibitor database.
package standplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"

	"github.com/spf13/cast"

	"github.com/pders01/guide-sync/internal/generate"
	"github.com/pders01/guide-sync/internal/logger"
	"github.com/pders01/guide-sync/internal/notion"
)

var (
	ErrNoItems = errors.New("no items")

	pageIDPattern = regexp.MustCompile(`^[a-f0-9\-]{32,36}$`)
)

// Patcher updates page properties
type Patcher interface {
	PatchPage(ctx context.Context, pageID string, fields notion.Fields) (*notion.Page, error)
}

// Item is one marker from the editor. A nil coordinate clears the property.
type Item struct {
	PageID string   `json:"page_id"`
	Stand  string   `json:"stand"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	W      *float64 `json:"w"`
	H      *float64 `json:"h"`
}

// UnmarshalJSON accepts numbers given as strings, which the editor sends for
// values typed into its inputs
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.PageID = cast.ToString(raw["page_id"])
	it.Stand = cast.ToString(raw["stand"])

	var err error
	for key, dst := range map[string]**float64{"x": &it.X, "y": &it.Y, "w": &it.W, "h": &it.H} {
		if *dst, err = number(raw[key]); err != nil {
			return fmt.Errorf("item %s: field %s: %w", it.label(), key, err)
		}
	}
	return nil
}

func number(v any) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (it Item) label() string {
	if it.Stand != "" {
		return it.Stand
	}
	if it.PageID != "" {
		return it.PageID
	}
	return "?"
}

// Request is the editor's save payload
type Request struct {
	Items []Item `json:"items"`
}

// ParseRequest decodes a save payload
func ParseRequest(r io.Reader) ([]Item, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	return req.Items, nil
}

// SaveResult counts patched and rejected items
type SaveResult struct {
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// ValidPageID reports whether id looks like a page id in either form
func ValidPageID(id string) bool {
	return pageIDPattern.MatchString(id)
}

// BuildPatch maps an item to the four coordinate properties. Every property is
// always present; absent coordinates are sent as explicit nulls.
func BuildPatch(it Item) notion.Fields {
	return notion.Fields{
		generate.PropStandX: notion.NumberValue{Number: round1(it.X)},
		generate.PropStandY: notion.NumberValue{Number: round1(it.Y)},
		generate.PropStandW: notion.NumberValue{Number: round1(it.W)},
		generate.PropStandH: notion.NumberValue{Number: round1(it.H)},
	}
}

func round1(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*10) / 10
	return &r
}

// Save patches every item in order. Invalid ids and failed writes are counted
// and do not stop the batch.
func Save(ctx context.Context, store Patcher, items []Item, log *logger.Logger) SaveResult {
	if log == nil {
		log = logger.Nop()
	}
	res := SaveResult{Errors: []string{}}
	for _, it := range items {
		if ctx.Err() != nil {
			res.Failed++
			res.Errors = append(res.Errors, it.label()+" (abgebrochen)")
			continue
		}
		if !ValidPageID(it.PageID) {
			res.Failed++
			res.Errors = append(res.Errors, it.label()+" (ungültige page_id)")
			continue
		}
		if _, err := store.PatchPage(ctx, it.PageID, BuildPatch(it)); err != nil {
			log.Warn("stand update failed", "stand", it.Stand, "page_id", it.PageID, "error", err)
			res.Failed++
			res.Errors = append(res.Errors, it.label())
			continue
		}
		res.Updated++
	}
	log.Info("floor plan saved", "updated", res.Updated, "failed", res.Failed)
	return res
}
