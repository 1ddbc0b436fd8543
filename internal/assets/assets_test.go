package assets

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/image/webp"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/testutil"
)

func newTestMaterializer(fs afero.Fs) *Materializer {
	return New(config.Assets{
		Dir:             "img",
		URLPrefix:       "/img/",
		Timeout:         5 * time.Second,
		MinBytes:        100,
		Quality:         82,
		PersonMaxWidth:  400,
		LogoMaxWidth:    200,
		ContentMaxWidth: 800,
	}, fs, nil)
}

func decodeWebP(t *testing.T, fs afero.Fs, path string) image.Image {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not webp: %v", err)
	}
	return img
}

func TestMaterializeResizes(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		w, h  int
		wantW int
		wantH int
	}{
		{name: "person wider than max", kind: KindPerson, w: 1000, h: 500, wantW: 400, wantH: 200},
		{name: "logo wider than max", kind: KindLogo, w: 300, h: 300, wantW: 200, wantH: 200},
		{name: "narrow image kept", kind: KindPerson, w: 120, h: 80, wantW: 120, wantH: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeNotion(t)
			url := fake.AddAsset("img.png", testutil.PNG(t, tt.w, tt.h))
			fs := afero.NewMemMapFs()
			m := newTestMaterializer(fs)

			got := m.Materialize(context.Background(), url, "abc", tt.kind)

			want := "/img/" + tt.kind.Dir() + "/abc.webp"
			if got != want {
				t.Fatalf("expected %s, got %q", want, got)
			}
			img := decodeWebP(t, fs, filepath.Join("img", tt.kind.Dir(), "abc.webp"))
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestMaterializeKeepsTransparency(t *testing.T) {
	fake := testutil.NewFakeNotion(t)
	url := fake.AddAsset("logo.png", testutil.PNG(t, 600, 300))
	fs := afero.NewMemMapFs()

	newTestMaterializer(fs).Materialize(context.Background(), url, "logo", KindLogo)

	img := decodeWebP(t, fs, filepath.Join("img", "logos", "logo.webp"))
	if _, _, _, a := img.At(0, 0).RGBA(); a == 0xffff {
		t.Error("expected alpha channel to survive")
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	fake := testutil.NewFakeNotion(t)
	url := fake.AddAsset("p.png", testutil.PNG(t, 500, 500))
	fs := afero.NewMemMapFs()
	m := newTestMaterializer(fs)
	path := filepath.Join("img", "experten", "p1.webp")

	first := m.Materialize(context.Background(), url, "p1", KindPerson)
	firstBytes, _ := afero.ReadFile(fs, path)
	second := m.Materialize(context.Background(), url, "p1", KindPerson)
	secondBytes, _ := afero.ReadFile(fs, path)

	if first != second {
		t.Errorf("expected stable path, got %s and %s", first, second)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Error("expected identical bytes on repeated runs")
	}
	if m.Stats().Written != 2 {
		t.Errorf("expected 2 writes, got %+v", m.Stats())
	}
}

func TestMaterializeFailures(t *testing.T) {
	corrupt := bytes.Repeat([]byte{0x42}, 500)

	tests := []struct {
		name     string
		body     []byte
		missing  bool
		previous bool
		want     string
	}{
		{name: "tiny body without previous", body: []byte("tiny"), want: ""},
		{name: "tiny body with previous", body: []byte("tiny"), previous: true, want: "/img/experten/x.webp"},
		{name: "corrupt body without previous", body: corrupt, want: ""},
		{name: "corrupt body with previous", body: corrupt, previous: true, want: "/img/experten/x.webp"},
		{name: "not found with previous", missing: true, previous: true, want: "/img/experten/x.webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeNotion(t)
			url := fake.URL() + "/files/absent.png"
			if !tt.missing {
				url = fake.AddAsset("x.png", tt.body)
			}
			fs := afero.NewMemMapFs()
			if tt.previous {
				_ = afero.WriteFile(fs, filepath.Join("img", "experten", "x.webp"), []byte("old"), 0644)
			}

			got := newTestMaterializer(fs).Materialize(context.Background(), url, "x", KindPerson)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if tt.previous {
				data, _ := afero.ReadFile(fs, filepath.Join("img", "experten", "x.webp"))
				if string(data) != "old" {
					t.Error("previous asset must not be touched")
				}
			}
		})
	}
}

func TestMaterializeEmptyURL(t *testing.T) {
	m := newTestMaterializer(afero.NewMemMapFs())
	if got := m.Materialize(context.Background(), "", "x", KindLogo); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
}

func TestUnreferenced(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := newTestMaterializer(fs)
	for _, p := range []string{"img/experten/a.webp", "img/experten/b.webp", "img/logos/c.webp", "img/plan/A3.jpg"} {
		_ = afero.WriteFile(fs, p, []byte("x"), 0644)
	}

	orphans, err := m.Unreferenced(map[string]bool{
		"/img/experten/a.webp": true,
		"/img/logos/c.webp":    true,
	})
	if err != nil {
		t.Fatalf("Unreferenced failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != filepath.Join("img", "experten", "b.webp") {
		t.Fatalf("unexpected orphans %v", orphans)
	}

	if err := m.Remove(orphans); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if exists, _ := afero.Exists(fs, "img/experten/b.webp"); exists {
		t.Error("expected orphan removed")
	}
}
