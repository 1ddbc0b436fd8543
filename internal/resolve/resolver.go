// Package resolve turns relation ids into embedded persons, company names and
// exhibitors. Remote lookups are memoized for the lifetime of a Resolver.
package resolve

import (
	"context"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/pders01/guide-sync/internal/logger"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/notion"
)

// Person properties in the speaker database
const (
	PropVorname   = "Vorname"
	PropNachname  = "Nachname"
	PropBio       = "Kurz-Bio"
	PropFunktion  = "Funktion"
	PropWebsite   = "Website"
	PropFoto      = "Foto"
	PropKategorie = "Kategorie"
	PropFirma     = "Firma"
	PropWorkshops = "Workshops & Vorträge"
)

// PageFetcher reads single pages from the store
type PageFetcher interface {
	FetchPage(ctx context.Context, pageID string) (*notion.Page, error)
}

// PhotoFunc materializes a person photo and returns its local path
type PhotoFunc func(ctx context.Context, url, stableID string) string

// Resolver memoizes lookups; create one per generator run
type Resolver struct {
	store PageFetcher
	cache *cache.Cache
	photo PhotoFunc
	log   *logger.Logger
}

// New creates a resolver. photo may be nil, in which case photos stay unresolved.
func New(store PageFetcher, photo PhotoFunc, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		store: store,
		cache: cache.New(cache.NoExpiration, 0),
		photo: photo,
		log:   log,
	}
}

// PersonFromPage maps a speaker page to a person. Foto stays empty until materialized.
func PersonFromPage(p notion.Page) models.Person {
	vorname := strings.TrimSpace(p.Text(PropVorname))
	nachname := strings.TrimSpace(p.Text(PropNachname))
	return models.Person{
		ID:          p.PlainID(),
		Name:        strings.TrimSpace(vorname + " " + nachname),
		Vorname:     vorname,
		Nachname:    nachname,
		Funktion:    p.Text(PropFunktion),
		Bio:         p.Text(PropBio),
		Website:     p.URLValue(PropWebsite),
		Kategorie:   p.Select(PropKategorie),
		FotoURL:     p.FileURL(PropFoto),
		FirmaIDs:    models.UniqueIDs(p.Relation(PropFirma)),
		WorkshopIDs: models.UniqueIDs(p.Relation(PropWorkshops)),
	}
}

// lookup returns the cached page for id, fetching it once. Failures are
// cached as misses so a broken id is not retried within the run.
func (r *Resolver) lookup(ctx context.Context, kind, id string) (*notion.Page, bool) {
	key := kind + ":" + id
	if v, ok := r.cache.Get(key); ok {
		page, _ := v.(*notion.Page)
		return page, page != nil
	}

	page, err := r.store.FetchPage(ctx, models.HyphenateID(id))
	if err != nil {
		r.log.Warn("failed to resolve relation", "kind", kind, "id", id, "error", err)
		r.cache.Set(key, (*notion.Page)(nil), cache.NoExpiration)
		return nil, false
	}
	r.cache.Set(key, page, cache.NoExpiration)
	return page, true
}

// ResolvePersons returns the persons for ids in order, skipping duplicates
// and ids that cannot be fetched
func (r *Resolver) ResolvePersons(ctx context.Context, ids []string) []models.Person {
	persons := make([]models.Person, 0, len(ids))
	for _, id := range models.UniqueIDs(ids) {
		key := "person-built:" + id
		if v, ok := r.cache.Get(key); ok {
			persons = append(persons, v.(models.Person))
			continue
		}

		page, ok := r.lookup(ctx, "person", id)
		if !ok {
			continue
		}
		person := PersonFromPage(*page)
		person.ID = id
		if r.photo != nil && person.FotoURL != "" {
			person.Foto = r.photo(ctx, person.FotoURL, id)
		}
		r.cache.Set(key, person, cache.NoExpiration)
		persons = append(persons, person)
	}
	return persons
}

// ResolveCompanies returns the company names for ids, deduplicated, without empties
func (r *Resolver) ResolveCompanies(ctx context.Context, ids []string) []string {
	names := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range models.UniqueIDs(ids) {
		page, ok := r.lookup(ctx, "company", id)
		if !ok {
			continue
		}
		name := strings.TrimSpace(page.FirstTitle())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// CompanyNames prefers the session's direct company relation and falls back
// to the companies of its speakers
func (r *Resolver) CompanyNames(ctx context.Context, companyIDs []string, persons []models.Person) []string {
	if len(companyIDs) > 0 {
		if names := r.ResolveCompanies(ctx, companyIDs); len(names) > 0 {
			return names
		}
	}
	var viaPersons []string
	for _, p := range persons {
		viaPersons = append(viaPersons, p.FirmaIDs...)
	}
	return r.ResolveCompanies(ctx, viaPersons)
}

// ExhibitorIndex looks exhibitors up by either id form
type ExhibitorIndex map[string]models.Exhibitor

func NewExhibitorIndex(exhibitors []models.Exhibitor) ExhibitorIndex {
	idx := make(ExhibitorIndex, len(exhibitors)*2)
	for _, e := range exhibitors {
		for _, id := range []string{e.ID, e.PageID} {
			if id == "" {
				continue
			}
			idx[models.NormalizeID(id)] = e
			idx[models.HyphenateID(models.NormalizeID(id))] = e
		}
	}
	return idx
}

func (idx ExhibitorIndex) Get(id string) (models.Exhibitor, bool) {
	if e, ok := idx[id]; ok {
		return e, true
	}
	e, ok := idx[models.NormalizeID(id)]
	return e, ok
}

// ResolveExhibitors is a local lookup; unknown ids are dropped
func (r *Resolver) ResolveExhibitors(ids []string, index ExhibitorIndex) []models.ExhibitorRef {
	refs := make([]models.ExhibitorRef, 0, len(ids))
	for _, id := range models.UniqueIDs(ids) {
		e, ok := index.Get(id)
		if !ok {
			r.log.Debug("unknown exhibitor reference", "id", id)
			continue
		}
		refs = append(refs, e.Ref())
	}
	return refs
}
