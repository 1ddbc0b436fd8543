package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/pders01/guide-sync/internal/assets"
	"github.com/pders01/guide-sync/internal/content"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/notion"
	"github.com/pders01/guide-sync/internal/render"
	"github.com/pders01/guide-sync/internal/resolve"
	"github.com/pders01/guide-sync/internal/snapshot"
)

// Sessions writes the workshop snapshot with rendered bodies and embedded relations
type Sessions struct {
	Deps
}

func NewSessions(d Deps) *Sessions {
	return &Sessions{Deps: d}
}

func (g *Sessions) Name() string { return "sessions" }

func (g *Sessions) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{Name: g.Name(), Output: g.Config.Output.SessionsPath()}
	log := g.log().With("generator", g.Name())
	fail := func(err error) Result {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	pages, err := g.query(ctx)
	if err != nil {
		return fail(err)
	}
	log.Info("sessions loaded", "count", len(pages))

	index := g.exhibitorIndex(ctx)
	resolver := resolve.New(g.Store, g.photo, log)

	sessions := make([]models.Session, 0, len(pages))
	for _, page := range pages {
		var session models.Session
		var contentErr error
		recovered := panics.Try(func() {
			session, contentErr = g.build(ctx, page, resolver, index)
		})
		if recovered != nil {
			contentErr = recovered.AsError()
			session = g.metadata(page)
		}
		if contentErr != nil {
			res.Failures++
			log.Warn("session without content", "id", page.PlainID(), "error", contentErr)
		}
		if session.HasContent {
			res.WithContent++
		} else {
			res.WithoutContent++
		}
		sessions = append(sessions, session)
	}

	if err := interrupted(ctx); err != nil {
		return fail(err)
	}
	if res.Failures == len(pages) {
		return fail(fmt.Errorf("%d of %d sessions: %w", res.Failures, len(pages), ErrAllFailed))
	}

	n, err := snapshot.Write(g.FS, res.Output, models.NewSessionsDocument(g.generated(), sessions))
	if err != nil {
		return fail(err)
	}

	res.Count = len(sessions)
	res.Bytes = n
	res.Duration = time.Since(start)
	log.Info("sessions written",
		"count", res.Count,
		"with_content", res.WithContent,
		"without_content", res.WithoutContent,
		"failures", res.Failures,
		"bytes", n,
		"duration", res.Duration,
	)
	return res
}

// query loads sessions on the configured days, retrying without the day
// filter when it matches nothing
func (g *Sessions) query(ctx context.Context) ([]notion.Page, error) {
	dbID := g.Config.Notion.WorkshopDB
	if dbID == "" {
		return nil, fmt.Errorf("notion.workshop_db: %w", ErrNotConfigured)
	}

	q := notion.Query{
		Filter: notion.SelectAny(PropTag, g.Config.Sessions.Days...),
		Sorts: []notion.Sort{
			{Property: PropTag, Direction: "ascending"},
			{Property: PropDatum, Direction: "ascending"},
		},
	}
	pages, err := g.Store.QueryDatabase(ctx, dbID, q)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 && q.Filter != nil {
		g.log().Warn("no sessions on configured days, loading all", "days", g.Config.Sessions.Days)
		q.Filter = nil
		if pages, err = g.Store.QueryDatabase(ctx, dbID, q); err != nil {
			return nil, err
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("workshop database %s: %w", dbID, ErrNoRecords)
	}
	return pages, nil
}

// exhibitorIndex prefers the exhibitor snapshot on disk and falls back to a
// live query when none has been written yet
func (g *Sessions) exhibitorIndex(ctx context.Context) resolve.ExhibitorIndex {
	doc, err := snapshot.ReadExhibitors(g.FS, g.Config.Output.ExhibitorsPath())
	if err == nil {
		return resolve.NewExhibitorIndex(doc.Aussteller)
	}
	if !errors.Is(err, snapshot.ErrMissing) {
		g.log().Warn("unreadable exhibitor snapshot, loading live", "error", err)
	}

	exhibitors, err := loadExhibitors(ctx, g.Deps, false)
	if err != nil {
		g.log().Warn("exhibitors unavailable, references dropped", "error", err)
		return resolve.ExhibitorIndex{}
	}
	return resolve.NewExhibitorIndex(exhibitors)
}

func (g *Sessions) photo(ctx context.Context, url, id string) string {
	if g.Assets == nil {
		return ""
	}
	return g.Assets.Materialize(ctx, url, id, assets.KindPerson)
}

// metadata maps the row's own properties
func (g *Sessions) metadata(page notion.Page) models.Session {
	title := strings.TrimSpace(page.Title(PropTitel))
	if title == "" {
		title = strings.TrimSpace(page.FirstTitle())
	}
	start, end := page.DateRange(PropDatum)
	return models.Session{
		ID:           page.PlainID(),
		PageID:       page.ID,
		Title:        title,
		Typ:          page.Select(PropTyp),
		Tag:          page.Select(PropTag),
		Zeit:         FormatTimeSlot(start, end, g.Config.Location()),
		Ort:          page.Select(PropOrt),
		Beschreibung: page.Text(PropBeschreibung),
		DatumStart:   start,
		DatumEnd:     end,
		Kategorien:   models.NonNil(page.MultiSelect(PropKategorien)),
		Status:       page.Status(PropStatus),
		Referenten:   []models.Person{},
		Firmen:       []string{},
		Aussteller:   []models.ExhibitorRef{},
		PersonIDs:    models.UniqueIDs(page.Relation(PropPersonen)),
		CompanyIDs:   models.UniqueIDs(page.Relation(PropFirmen)),
		ExhibitorIDs: models.UniqueIDs(page.Relation(PropAussteller)),
	}
}

// build assembles one session. A body fetch error is returned alongside a
// session that has everything but content.
func (g *Sessions) build(ctx context.Context, page notion.Page, resolver *resolve.Resolver, index resolve.ExhibitorIndex) (models.Session, error) {
	s := g.metadata(page)

	persons := resolver.ResolvePersons(ctx, s.PersonIDs)
	s.Referenten = models.NonNil(persons)
	s.Firmen = models.NonNil(resolver.CompanyNames(ctx, s.CompanyIDs, persons))
	s.Aussteller = models.NonNil(resolver.ResolveExhibitors(s.ExhibitorIDs, index))

	blocks, err := g.Store.FetchTree(ctx, page.ID)
	if err != nil {
		return s, err
	}

	nodes := notion.Nodes(blocks)
	if g.Filter != nil {
		nodes = g.Filter.Apply(nodes, s.Title)
	}
	g.materializeImages(ctx, nodes)

	renderer := g.Renderer
	if renderer == nil {
		renderer = render.New()
	}
	s.ContentHTML = renderer.Render(nodes)
	s.HasContent = render.HasText(s.ContentHTML)
	return s, nil
}

// materializeImages replaces expiring hosted image URLs with stable local paths
func (g *Sessions) materializeImages(ctx context.Context, nodes []content.Node) {
	content.Walk(nodes, func(n *content.Node) {
		if n.Kind != content.KindImage || !n.Hosted || n.URL == "" {
			return
		}
		if g.Assets == nil {
			n.URL = ""
			return
		}
		n.URL = g.Assets.Materialize(ctx, n.URL, models.NormalizeID(n.ID), assets.KindContent)
	})
}
