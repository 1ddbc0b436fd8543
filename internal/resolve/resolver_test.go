package resolve

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/notion"
	"github.com/pders01/guide-sync/internal/testutil"
)

const (
	personID  = "aaaaaaaa-0000-0000-0000-000000000001"
	companyID = "cccccccc-0000-0000-0000-000000000001"
	otherCoID = "cccccccc-0000-0000-0000-000000000002"
)

func setup(t *testing.T) (*testutil.FakeNotion, *notion.Client) {
	t.Helper()
	fake := testutil.NewFakeNotion(t)
	fake.AddPage(testutil.Page(personID, testutil.Props{
		"Vorname":  testutil.RichText("Anna"),
		"Nachname": testutil.RichText("Berg"),
		"Funktion": testutil.RichText("Guide"),
		"Kurz-Bio": testutil.RichText("Fährt seit 20 Jahren."),
		"Website":  testutil.URL("https://anna.example"),
		"Foto":     testutil.Files("https://s3.example/anna.png"),
		"Firma":    testutil.Relation(companyID),
	}))
	fake.AddPage(testutil.Page(companyID, testutil.Props{"Name": testutil.Title("Berg Touren")}))
	fake.AddPage(testutil.Page(otherCoID, testutil.Props{"Name": testutil.Title("Zweite GmbH")}))
	client := notion.NewClient(config.Notion{BaseURL: fake.URL(), Timeout: 5 * time.Second}, nil)
	return fake, client
}

func TestResolvePersonsMemoizesAcrossIDForms(t *testing.T) {
	fake, client := setup(t)
	r := New(client, nil, nil)
	ctx := context.Background()

	plain := models.NormalizeID(personID)
	first := r.ResolvePersons(ctx, []string{personID})
	second := r.ResolvePersons(ctx, []string{plain, personID})

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one person per call, got %d and %d", len(first), len(second))
	}
	if first[0].ID != plain || first[0].Name != "Anna Berg" {
		t.Errorf("unexpected person %+v", first[0])
	}
	if got := fake.CountRequests(http.MethodGet, "/pages/"); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestResolvePersonsMaterializesPhotoOnce(t *testing.T) {
	_, client := setup(t)
	calls := 0
	photo := func(ctx context.Context, url, id string) string {
		calls++
		return "/img/referenten/" + id + ".webp"
	}
	r := New(client, photo, nil)

	for i := 0; i < 3; i++ {
		persons := r.ResolvePersons(context.Background(), []string{personID})
		if persons[0].Foto != "/img/referenten/"+models.NormalizeID(personID)+".webp" {
			t.Fatalf("unexpected foto %q", persons[0].Foto)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 photo materialization, got %d", calls)
	}
}

func TestResolvePersonsSkipsMissingAndCachesMiss(t *testing.T) {
	fake, client := setup(t)
	r := New(client, nil, nil)
	missing := "dddddddd-0000-0000-0000-000000000009"

	for i := 0; i < 2; i++ {
		persons := r.ResolvePersons(context.Background(), []string{missing, personID})
		if len(persons) != 1 {
			t.Fatalf("expected missing person dropped, got %+v", persons)
		}
	}
	if got := fake.CountRequests(http.MethodGet, missing); got != 1 {
		t.Errorf("expected missing id fetched once, got %d", got)
	}
}

func TestCompanyNames(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		companyIDs []string
		persons    []models.Person
		want       []string
	}{
		{
			name:       "direct relation wins",
			companyIDs: []string{otherCoID},
			persons:    []models.Person{{FirmaIDs: []string{models.NormalizeID(companyID)}}},
			want:       []string{"Zweite GmbH"},
		},
		{
			name:    "falls back to speakers",
			persons: []models.Person{{FirmaIDs: []string{companyID}}, {FirmaIDs: []string{models.NormalizeID(companyID)}}},
			want:    []string{"Berg Touren"},
		},
		{
			name: "nothing linked",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(client, nil, nil)
			got := r.CompanyNames(ctx, tt.companyIDs, tt.persons)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestResolveExhibitors(t *testing.T) {
	index := NewExhibitorIndex([]models.Exhibitor{
		{ID: "eeeeeeee000000000000000000000001", PageID: "eeeeeeee-0000-0000-0000-000000000001", Firma: "ACME", Stand: "A3-100"},
	})
	r := New(nil, nil, nil)

	refs := r.ResolveExhibitors([]string{
		"eeeeeeee-0000-0000-0000-000000000001",
		"EEEEEEEE000000000000000000000001",
		"ffffffff-0000-0000-0000-000000000000",
	}, index)

	if len(refs) != 1 {
		t.Fatalf("expected 1 exhibitor, got %+v", refs)
	}
	if refs[0].Stand != "A3-100" || refs[0].Firma != "ACME" {
		t.Errorf("unexpected exhibitor %+v", refs[0])
	}
}
