package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/logger"
	"github.com/pders01/guide-sync/internal/runlock"
	"github.com/pders01/guide-sync/internal/snapshot"
	"github.com/pders01/guide-sync/internal/testutil"
)

const (
	sessionID   = "11111111-0000-0000-0000-000000000001"
	personID    = "aaaaaaaa-0000-0000-0000-000000000001"
	exhibitorID = "eeeeeeee-0000-0000-0000-000000000001"
)

// setupCLI points the commands at an in-memory filesystem and a fresh viper
func setupCLI(t *testing.T) (afero.Fs, *bytes.Buffer, *cobra.Command) {
	t.Helper()

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("notion.request_interval", time.Duration(0))
	viper.Set("notion.token", "")

	fs := afero.NewMemMapFs()
	oldFS, oldLogger := appFS, newLogger
	appFS = fs
	newLogger = func(string) (*logger.Logger, error) { return logger.Nop(), nil }
	t.Cleanup(func() {
		appFS, newLogger = oldFS, oldLogger
		viper.Reset()
	})

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return fs, &buf, cmd
}

// seedWorkspace serves one session with a speaker and an exhibitor
func seedWorkspace(t *testing.T) *testutil.FakeNotion {
	t.Helper()
	fake := testutil.NewFakeNotion(t)
	logo := fake.AddAsset("logo.png", testutil.PNG(t, 240, 80))

	fake.AddDatabase("ws", testutil.Page(sessionID, testutil.Props{
		"Titel":             testutil.Title("Dachzelt aufbauen"),
		"Tag":               testutil.Select("Samstag"),
		"Kategorien":        testutil.MultiSelect("Camping"),
		"Status":            testutil.Status("Referent bestätigt"),
		"Referent (Person)": testutil.Relation(personID),
		"Aussteller (AS26)": testutil.Relation(exhibitorID),
	}))
	fake.SetChildren(sessionID, testutil.Paragraph("p1", "In zehn Minuten zum Zelt."))
	fake.AddDatabase("rf", testutil.Page(personID, testutil.Props{
		"Vorname":              testutil.RichText("Jonas"),
		"Nachname":             testutil.RichText("Weber"),
		"Workshops & Vorträge": testutil.Relation(sessionID),
	}))
	fake.AddDatabase("as", testutil.Page(exhibitorID, testutil.Props{
		"Aussteller": testutil.Title("Zeltwerk"),
		"Stand":      testutil.RichText("A4-210"),
		"Logo":       testutil.Files(logo),
		"Stand_X":    testutil.Number(12.5),
		"Stand_Y":    testutil.Number(80),
	}))

	viper.Set("notion.base_url", fake.URL())
	viper.Set("notion.token", "secret")
	viper.Set("notion.workshop_db", "ws")
	viper.Set("notion.referenten_db", "rf")
	viper.Set("notion.aussteller_db", "as")
	return fake
}

func TestRunWritesAllSnapshots(t *testing.T) {
	fs, _, cmd := setupCLI(t)
	seedWorkspace(t)

	if err := runRun(cmd, nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, p := range []string{
		"public/api/workshops.json",
		"public/api/aussteller.json",
		"public/api/experten.json",
		"public/api/standplan.json",
		"public/img/logos/eeeeeeee000000000000000000000001.webp",
	} {
		if ok, _ := afero.Exists(fs, p); !ok {
			t.Errorf("expected %s", p)
		}
	}
	if ok, _ := afero.Exists(fs, "storage/generate-json.lock"); ok {
		t.Error("lock should be released after the run")
	}
}

func TestRunSkipsWhenLocked(t *testing.T) {
	fs, _, cmd := setupCLI(t)
	seedWorkspace(t)

	now := time.Now().UTC()
	rec, _ := json.Marshal(runlock.Record{Owner: "other", PID: os.Getpid(), StartedAt: now, HeartbeatAt: now})
	_ = afero.WriteFile(fs, "storage/generate-json.lock", rec, 0644)

	if err := runRun(cmd, nil); err != nil {
		t.Fatalf("a held lock must not fail the run: %v", err)
	}
	if ok, _ := afero.Exists(fs, "public/api/workshops.json"); ok {
		t.Error("no generator should run while the lock is held")
	}
	if data, _ := afero.ReadFile(fs, "storage/generate-json.lock"); !bytes.Equal(data, rec) {
		t.Error("foreign lock must be left alone")
	}
}

func TestRunReportsFailure(t *testing.T) {
	fs, _, cmd := setupCLI(t)
	fake := seedWorkspace(t)
	fake.Fail("/databases/rf/query", http.StatusBadGateway)

	err := runRun(cmd, nil)
	if !errors.Is(err, errRunFailed) || !strings.Contains(err.Error(), "experts") {
		t.Fatalf("expected experts failure, got %v", err)
	}
	if ok, _ := afero.Exists(fs, "public/api/workshops.json"); !ok {
		t.Error("sessions should still be written")
	}
	if ok, _ := afero.Exists(fs, "storage/generate-json.lock"); ok {
		t.Error("lock should be released after a failed run")
	}
}

func TestRunRequiresToken(t *testing.T) {
	_, _, cmd := setupCLI(t)

	if err := runRun(cmd, nil); err == nil || !strings.Contains(err.Error(), "notion.token") {
		t.Errorf("expected missing token error, got %v", err)
	}
}

func TestGenerateSingle(t *testing.T) {
	fs, _, cmd := setupCLI(t)
	seedWorkspace(t)

	if err := runGenerate(cmd, []string{"aussteller"}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if ok, _ := afero.Exists(fs, "public/api/standplan.json"); !ok {
		t.Error("expected floor-plan index")
	}
	if ok, _ := afero.Exists(fs, "public/api/workshops.json"); ok {
		t.Error("only the exhibitor generator should run")
	}

	if err := runGenerate(cmd, []string{"speakers"}); err == nil {
		t.Error("expected unknown kind error")
	}
}

func TestStatsAndList(t *testing.T) {
	_, buf, cmd := setupCLI(t)
	seedWorkspace(t)
	if err := runRun(cmd, nil); err != nil {
		t.Fatal(err)
	}

	statsJSON, statsToon = true, false
	defer func() { statsJSON = false }()
	buf.Reset()
	if err := runStats(cmd, nil); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var stats snapshotStats
	if err := json.Unmarshal(buf.Bytes(), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, buf.String())
	}
	if stats.Sessions.Count != 1 || stats.WithContent != 1 || stats.Experts.Count != 1 || stats.Placed != 1 || stats.Halls == 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	statsJSON = false
	buf.Reset()
	if err := runStats(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "lock: free") {
		t.Errorf("expected lock state in output:\n%s", buf.String())
	}

	for kind, want := range map[string]string{
		"sessions":   "Dachzelt aufbauen",
		"exhibitors": "A4-210",
		"experts":    "Jonas Weber",
	} {
		buf.Reset()
		if err := runList(cmd, []string{kind}); err != nil {
			t.Fatalf("list %s failed: %v", kind, err)
		}
		if !strings.Contains(buf.String(), want) {
			t.Errorf("list %s: expected %q in:\n%s", kind, want, buf.String())
		}
	}

	listDay = "Freitag"
	defer func() { listDay = "" }()
	buf.Reset()
	if err := runList(cmd, []string{"sessions"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No sessions match") {
		t.Errorf("expected empty filter result, got:\n%s", buf.String())
	}
}

func TestListMissingSnapshot(t *testing.T) {
	_, _, cmd := setupCLI(t)

	if err := runList(cmd, []string{"experts"}); !errors.Is(err, snapshot.ErrMissing) {
		t.Errorf("expected ErrMissing, got %v", err)
	}
}

func TestPrune(t *testing.T) {
	fs, buf, cmd := setupCLI(t)
	seedWorkspace(t)
	if err := runRun(cmd, nil); err != nil {
		t.Fatal(err)
	}
	orphan := "public/img/experten/ffffffff000000000000000000000009.webp"
	live := "public/img/logos/eeeeeeee000000000000000000000001.webp"
	_ = afero.WriteFile(fs, orphan, []byte("old"), 0644)

	pruneForce = false
	buf.Reset()
	if err := runPrune(cmd, nil); err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(buf.String(), orphan) || strings.Contains(buf.String(), live) {
		t.Errorf("unexpected dry run output:\n%s", buf.String())
	}
	if ok, _ := afero.Exists(fs, orphan); !ok {
		t.Error("dry run must not delete")
	}

	pruneForce = true
	defer func() { pruneForce = false }()
	if err := runPrune(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, orphan); ok {
		t.Error("orphan should be deleted")
	}
	if ok, _ := afero.Exists(fs, live); !ok {
		t.Error("referenced logo must survive")
	}
}

func TestPruneRefusesWithoutSnapshots(t *testing.T) {
	fs, _, cmd := setupCLI(t)
	_ = afero.WriteFile(fs, "public/img/logos/x.webp", []byte("x"), 0644)

	pruneForce = true
	defer func() { pruneForce = false }()
	if err := runPrune(cmd, nil); !errors.Is(err, snapshot.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if ok, _ := afero.Exists(fs, "public/img/logos/x.webp"); !ok {
		t.Error("nothing may be deleted without snapshots")
	}
}

func TestStandplanSave(t *testing.T) {
	_, buf, cmd := setupCLI(t)
	fake := seedWorkspace(t)

	payload := fmt.Sprintf(`{"items":[{"page_id":%q,"stand":"A4-210","x":"33.33","y":null},{"page_id":"bad","stand":"A4-999"}]}`, exhibitorID)
	cmd.SetIn(strings.NewReader(payload))

	err := runStandplanSave(cmd, []string{"-"})
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected partial failure, got %v", err)
	}

	var res struct {
		Updated int      `json:"updated"`
		Failed  int      `json:"failed"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if res.Updated != 1 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	patches := fake.Patches(exhibitorID)
	if len(patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(patches))
	}
	if x := patches[0]["Stand_X"].(map[string]any)["number"]; x != 33.3 {
		t.Errorf("expected rounded x, got %v", x)
	}
}

func TestProps(t *testing.T) {
	_, buf, cmd := setupCLI(t)
	fake := seedWorkspace(t)
	fake.SetSchema("as", map[string]any{
		"Stand_X":    map[string]any{"id": "a", "name": "Stand_X", "type": "number"},
		"Aussteller": map[string]any{"id": "title", "name": "Aussteller", "type": "title"},
	})

	if err := runProps(cmd, []string{"aussteller"}); err != nil {
		t.Fatalf("props failed: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Aussteller") || !strings.Contains(got, "number") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if strings.Index(got, "Aussteller ") > strings.Index(got, "Stand_X") {
		t.Error("properties should be sorted by name")
	}

	if err := runProps(cmd, []string{"missing-db"}); err == nil {
		t.Error("expected error for unknown database")
	}
}

func TestInit(t *testing.T) {
	fs, buf, cmd := setupCLI(t)
	initPath = "guide-sync.toml"

	if err := runInit(cmd, nil); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	data, err := afero.ReadFile(fs, "guide-sync.toml")
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}

	var decoded struct {
		Notion struct {
			Version string `toml:"version"`
			Token   string `toml:"token"`
		} `toml:"notion"`
		Standplan struct {
			Halls []config.Hall `toml:"halls"`
		} `toml:"standplan"`
	}
	if _, err := toml.Decode(string(data), &decoded); err != nil {
		t.Fatalf("config is not valid TOML: %v\n%s", err, data)
	}
	if decoded.Notion.Version != "2022-06-28" || decoded.Notion.Token != "" {
		t.Errorf("unexpected notion section %+v", decoded.Notion)
	}
	if len(decoded.Standplan.Halls) != len(config.DefaultHalls()) {
		t.Errorf("expected %d halls, got %d", len(config.DefaultHalls()), len(decoded.Standplan.Halls))
	}
	for _, dir := range []string{"public/api", "public/img", "storage"} {
		if ok, _ := afero.DirExists(fs, dir); !ok {
			t.Errorf("expected directory %s", dir)
		}
	}

	buf.Reset()
	_ = afero.WriteFile(fs, "guide-sync.toml", []byte("# mine\n"), 0644)
	if err := runInit(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if data, _ := afero.ReadFile(fs, "guide-sync.toml"); string(data) != "# mine\n" {
		t.Error("existing config was overwritten")
	}
	if !strings.Contains(buf.String(), "already exists") {
		t.Errorf("expected notice, got:\n%s", buf.String())
	}
}
