package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pders01/guide-sync/internal/assets"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/notion"
	"github.com/pders01/guide-sync/internal/snapshot"
)

// Exhibitors writes the exhibitor snapshot and the floor-plan index derived from it
type Exhibitors struct {
	Deps
}

func NewExhibitors(d Deps) *Exhibitors {
	return &Exhibitors{Deps: d}
}

func (g *Exhibitors) Name() string { return "exhibitors" }

func (g *Exhibitors) Run(ctx context.Context) Result {
	start := time.Now()
	out := g.Config.Output
	res := Result{Name: g.Name(), Output: out.ExhibitorsPath()}
	log := g.log().With("generator", g.Name())

	exhibitors, err := loadExhibitors(ctx, g.Deps, true)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	log.Info("exhibitors loaded", "count", len(exhibitors))
	if err := interrupted(ctx); err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	generated := g.generated()
	n, err := snapshot.Write(g.FS, out.ExhibitorsPath(), models.NewExhibitorsDocument(generated, exhibitors))
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	plan := models.BuildStandplan(generated, g.halls(), exhibitors)
	m, err := snapshot.Write(g.FS, out.StandplanPath(), plan)
	if err != nil {
		res.Err = fmt.Errorf("failed to write floor-plan index: %w", err)
		res.Duration = time.Since(start)
		return res
	}

	res.Count = len(exhibitors)
	res.Bytes = n + m
	res.Duration = time.Since(start)
	log.Info("exhibitors written", "count", res.Count, "stands", len(plan.Staende), "bytes", res.Bytes, "duration", res.Duration)
	return res
}

func (g *Exhibitors) halls() map[string]models.HallInfo {
	halls := make(map[string]models.HallInfo, len(g.Config.Standplan.Halls))
	for _, h := range g.Config.Standplan.Halls {
		halls[h.Code] = models.HallInfo{Bild: h.Bild, Label: h.Label}
	}
	return halls
}

// ExhibitorFromPage maps an exhibitor row. Rows without a company name return false.
func ExhibitorFromPage(p notion.Page) (models.Exhibitor, bool) {
	firma := strings.TrimSpace(p.Title(PropFirma))
	if firma == "" {
		firma = strings.TrimSpace(p.FirstTitle())
	}
	if firma == "" {
		return models.Exhibitor{}, false
	}
	return models.Exhibitor{
		ID:           p.PlainID(),
		PageID:       p.ID,
		Firma:        firma,
		Stand:        strings.TrimSpace(p.Text(PropStand)),
		Beschreibung: strings.TrimSpace(p.Text(PropBeschreibung)),
		Kategorie:    p.Select(PropKategorie),
		Kategorien:   models.NonNil(p.MultiSelect(PropKategorie)),
		Website:      p.URLValue(PropWebsite),
		Instagram:    p.URLValue(PropInstagram),
		LogoURL:      p.FileURL(PropLogo),
		StandX:       p.Number(PropStandX),
		StandY:       p.Number(PropStandY),
		StandW:       p.Number(PropStandW),
		StandH:       p.Number(PropStandH),
	}, true
}

// loadExhibitors queries all exhibitors sorted by name. Logos are only
// materialized when withLogos is set.
func loadExhibitors(ctx context.Context, d Deps, withLogos bool) ([]models.Exhibitor, error) {
	dbID := d.Config.Notion.AusstellerDB
	if dbID == "" {
		return nil, fmt.Errorf("notion.aussteller_db: %w", ErrNotConfigured)
	}

	pages, err := d.Store.QueryDatabase(ctx, dbID, notion.Query{
		Sorts: []notion.Sort{{Property: PropFirma, Direction: "ascending"}},
	})
	if err != nil {
		return nil, err
	}

	exhibitors := make([]models.Exhibitor, 0, len(pages))
	for _, p := range pages {
		e, ok := ExhibitorFromPage(p)
		if !ok {
			continue
		}
		if withLogos && e.LogoURL != "" && d.Assets != nil {
			e.Logo = d.Assets.Materialize(ctx, e.LogoURL, e.ID, assets.KindLogo)
		}
		exhibitors = append(exhibitors, e)
	}
	if len(exhibitors) == 0 {
		return nil, fmt.Errorf("exhibitor database %s: %w", dbID, ErrNoRecords)
	}
	return exhibitors, nil
}
