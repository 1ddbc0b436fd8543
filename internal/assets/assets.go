// Package assets downloads store-hosted images, which expire after about an
// hour, and re-encodes them to WebP at paths derived from a stable id.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/fsutil"
	"github.com/pders01/guide-sync/internal/logger"
)

// Kind selects the target directory and maximum width
type Kind string

const (
	KindPerson  Kind = "person"
	KindLogo    Kind = "logo"
	KindContent Kind = "content"
)

// maxDownload bounds a single image body
const maxDownload = 32 << 20

// Dir is the subdirectory for a kind
func (k Kind) Dir() string {
	switch k {
	case KindPerson:
		return "experten"
	case KindLogo:
		return "logos"
	default:
		return "content"
	}
}

// Stats counts outcomes over the materializer's lifetime
type Stats struct {
	Written  int
	Fallback int
	Failed   int
}

// Materializer fetches and transcodes images
type Materializer struct {
	fs       afero.Fs
	dir      string
	prefix   string
	http     *http.Client
	minBytes int
	quality  float32
	widths   map[Kind]int
	log      *logger.Logger
	stats    Stats
}

// New creates a materializer writing below cfg.Dir
func New(cfg config.Assets, fs afero.Fs, log *logger.Logger) *Materializer {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	return &Materializer{
		fs:       fs,
		dir:      cfg.Dir,
		prefix:   strings.TrimRight(cfg.URLPrefix, "/"),
		http:     &http.Client{Timeout: timeout},
		minBytes: cfg.MinBytes,
		quality:  quality,
		widths: map[Kind]int{
			KindPerson:  cfg.PersonMaxWidth,
			KindLogo:    cfg.LogoMaxWidth,
			KindContent: cfg.ContentMaxWidth,
		},
		log: log,
	}
}

func (m *Materializer) Stats() Stats {
	return m.stats
}

// FilePath is where the asset for id is stored on disk
func (m *Materializer) FilePath(kind Kind, stableID string) string {
	return filepath.Join(m.dir, kind.Dir(), stableID+".webp")
}

// URLPath is how the published documents reference the asset
func (m *Materializer) URLPath(kind Kind, stableID string) string {
	return path.Join(m.prefix, kind.Dir(), stableID+".webp")
}

// Materialize downloads url, resizes it to the kind's maximum width and writes
// it as WebP. On any failure it returns the previously written file for the
// same id, or "" when there is none. It never fails the caller.
func (m *Materializer) Materialize(ctx context.Context, url, stableID string, kind Kind) string {
	if url == "" || stableID == "" {
		return ""
	}

	file := m.FilePath(kind, stableID)
	fallback := func(reason string, err error) string {
		if fsutil.Exists(m.fs, file) {
			m.stats.Fallback++
			m.log.Warn("keeping previous asset", "id", stableID, "kind", kind, "reason", reason, "error", err)
			return m.URLPath(kind, stableID)
		}
		m.stats.Failed++
		m.log.Warn("asset unavailable", "id", stableID, "kind", kind, "reason", reason, "error", err)
		return ""
	}

	data, err := m.download(ctx, url)
	if err != nil {
		return fallback("download", err)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fallback("decode", err)
	}

	img := Fit(src, m.widths[kind])

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: m.quality}); err != nil {
		return fallback("encode", err)
	}
	if err := fsutil.WriteFileAtomic(m.fs, file, buf.Bytes(), 0644); err != nil {
		return fallback("write", err)
	}

	m.stats.Written++
	m.log.Debug("asset written", "id", stableID, "kind", kind, "source_format", format, "bytes", buf.Len())
	return m.URLPath(kind, stableID)
}

func (m *Materializer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) < m.minBytes {
		return nil, fmt.Errorf("body too small (%d bytes)", len(data))
	}
	return data, nil
}

// Fit scales src down to maxWidth, keeping the aspect ratio and alpha.
// Images that already fit are returned unchanged.
func Fit(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return src
	}
	newH := int(float64(h)*float64(maxWidth)/float64(w) + 0.5)
	if newH < 1 {
		newH = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Unreferenced lists asset files whose URL path is not in referenced
func (m *Materializer) Unreferenced(referenced map[string]bool) ([]string, error) {
	var orphans []string
	for _, kind := range []Kind{KindPerson, KindLogo, KindContent} {
		dir := filepath.Join(m.dir, kind.Dir())
		if !fsutil.Exists(m.fs, dir) {
			continue
		}
		err := afero.Walk(m.fs, dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(p) != ".webp" {
				return nil
			}
			id := strings.TrimSuffix(filepath.Base(p), ".webp")
			if !referenced[m.URLPath(kind, id)] {
				orphans = append(orphans, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// Remove deletes the given asset files
func (m *Materializer) Remove(files []string) error {
	for _, f := range files {
		if err := m.fs.Remove(f); err != nil {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}
