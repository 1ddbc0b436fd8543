// Package generate builds the published snapshots: sessions, exhibitors (with
// the floor-plan index) and experts. Each generator is one sequential run.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/pders01/guide-sync/internal/assets"
	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/logger"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/notion"
	"github.com/pders01/guide-sync/internal/redundancy"
	"github.com/pders01/guide-sync/internal/render"
)

var (
	// ErrNoRecords aborts a generator whose source returned nothing usable
	ErrNoRecords = errors.New("no records")
	// ErrNotConfigured is returned when the source database id is missing
	ErrNotConfigured = errors.New("database id not configured")
	// ErrAllFailed aborts a generator whose every record failed to build
	ErrAllFailed = errors.New("every record failed")
)

// Store is the part of the remote store the generators read from
type Store interface {
	QueryDatabase(ctx context.Context, dbID string, q notion.Query) ([]notion.Page, error)
	FetchTree(ctx context.Context, blockID string) ([]notion.Block, error)
	FetchPage(ctx context.Context, pageID string) (*notion.Page, error)
}

// Assets materializes remote images
type Assets interface {
	Materialize(ctx context.Context, url, stableID string, kind assets.Kind) string
}

// Generator produces one snapshot
type Generator interface {
	Name() string
	Run(ctx context.Context) Result
}

// Result summarizes one generator run
type Result struct {
	Name           string
	Count          int
	WithContent    int
	WithoutContent int
	Failures       int
	Output         string
	Bytes          int
	Duration       time.Duration
	Err            error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Status is OK or FAIL
func (r Result) Status() string {
	if r.OK() {
		return "OK"
	}
	return "FAIL"
}

// Deps are the collaborators shared by all generators
type Deps struct {
	Config   *config.Config
	Store    Store
	Assets   Assets
	Renderer *render.Renderer
	Filter   *redundancy.Filter
	FS       afero.Fs
	Log      *logger.Logger
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) generated() string {
	return models.Timestamp(d.now(), d.Config.Location())
}

// interrupted reports a cancelled run. Records built after cancellation
// are incomplete, so the snapshot must not be replaced.
func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

func (d Deps) log() *logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

// All returns the generators in run order. Sessions must precede experts.
func All(d Deps) []Generator {
	return []Generator{NewSessions(d), NewExhibitors(d), NewExperts(d)}
}

// ByKind returns the generator for one snapshot kind
func ByKind(d Deps, kind models.SnapshotKind) (Generator, bool) {
	switch kind {
	case models.KindSessions:
		return NewSessions(d), true
	case models.KindExhibitors, models.KindStandplan:
		return NewExhibitors(d), true
	case models.KindExperts:
		return NewExperts(d), true
	}
	return nil, false
}
