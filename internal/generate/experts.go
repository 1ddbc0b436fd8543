package generate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pders01/guide-sync/internal/assets"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/notion"
	"github.com/pders01/guide-sync/internal/resolve"
	"github.com/pders01/guide-sync/internal/snapshot"
)

// Experts writes the speaker directory. It reads the sessions snapshot, so it
// must run after the sessions generator.
type Experts struct {
	Deps
}

func NewExperts(d Deps) *Experts {
	return &Experts{Deps: d}
}

func (g *Experts) Name() string { return "experts" }

func (g *Experts) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{Name: g.Name(), Output: g.Config.Output.ExpertsPath()}
	log := g.log().With("generator", g.Name())
	fail := func(err error) Result {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	sessions, err := snapshot.ReadSessions(g.FS, g.Config.Output.SessionsPath())
	if err != nil {
		return fail(fmt.Errorf("sessions snapshot required: %w", err))
	}

	dbID := g.Config.Notion.ReferentenDB
	if dbID == "" {
		return fail(fmt.Errorf("notion.referenten_db: %w", ErrNotConfigured))
	}
	pages, err := g.Store.QueryDatabase(ctx, dbID, notion.Query{})
	if err != nil {
		return fail(err)
	}
	if len(pages) == 0 {
		return fail(fmt.Errorf("speaker database %s: %w", dbID, ErrNoRecords))
	}
	log.Info("speakers loaded", "count", len(pages), "sessions", sessions.Count)

	experts, skipped := g.build(ctx, pages, sessions.Workshops)
	if err := interrupted(ctx); err != nil {
		return fail(err)
	}

	n, err := snapshot.Write(g.FS, res.Output, models.NewExpertsDocument(g.generated(), experts))
	if err != nil {
		return fail(err)
	}

	res.Count = len(experts)
	res.Bytes = n
	res.Duration = time.Since(start)
	log.Info("experts written", "count", res.Count, "skipped", skipped, "bytes", n, "duration", res.Duration)
	return res
}

// build keeps speakers with at least one confirmed session. A speaker's
// sessions are those in their own relation plus those that list them.
func (g *Experts) build(ctx context.Context, pages []notion.Page, sessions []models.Session) ([]models.Expert, int) {
	confirmed := g.Config.Experts.ConfirmedStatus

	experts := make([]models.Expert, 0, len(pages))
	skipped := 0
	for _, page := range pages {
		person := resolve.PersonFromPage(page)

		own := make(map[string]bool, len(person.WorkshopIDs))
		for _, id := range person.WorkshopIDs {
			own[id] = true
		}

		var workshops []models.SessionSummary
		kategorien := make(map[string]bool)
		for _, s := range sessions {
			if s.Status != confirmed {
				continue
			}
			if !own[models.NormalizeID(s.ID)] && !listsPerson(s, person.ID) {
				continue
			}
			workshops = append(workshops, s.Summary())
			for _, k := range s.Kategorien {
				kategorien[k] = true
			}
		}
		if len(workshops) == 0 {
			skipped++
			continue
		}

		name := person.Name
		if name == "" {
			name = "N.N."
		}
		foto := ""
		if person.FotoURL != "" && g.Assets != nil {
			foto = g.Assets.Materialize(ctx, person.FotoURL, person.ID, assets.KindPerson)
		}

		experts = append(experts, models.Expert{
			ID:         person.ID,
			Name:       name,
			Vorname:    person.Vorname,
			Nachname:   person.Nachname,
			Foto:       foto,
			Bio:        person.Bio,
			Funktion:   person.Funktion,
			Kategorie:  person.Kategorie,
			Website:    person.Website,
			Firma:      "",
			Kategorien: sortedKeys(kategorien),
			Workshops:  workshops,
		})
	}

	SortExperts(experts)
	return experts, skipped
}

func listsPerson(s models.Session, personID string) bool {
	for _, p := range s.Referenten {
		if models.SameID(p.ID, personID) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortExperts orders by last name using German collation, then first name and id
func SortExperts(experts []models.Expert) {
	c := collate.New(language.German, collate.IgnoreCase)
	sort.SliceStable(experts, func(i, j int) bool {
		a, b := experts[i], experts[j]
		if r := c.CompareString(a.Nachname, b.Nachname); r != 0 {
			return r < 0
		}
		if r := c.CompareString(a.Vorname, b.Vorname); r != 0 {
			return r < 0
		}
		return a.ID < b.ID
	})
}
