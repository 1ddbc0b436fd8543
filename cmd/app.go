package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pders01/guide-sync/internal/assets"
	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/coordinator"
	"github.com/pders01/guide-sync/internal/generate"
	"github.com/pders01/guide-sync/internal/logger"
	"github.com/pders01/guide-sync/internal/notion"
	"github.com/pders01/guide-sync/internal/redundancy"
	"github.com/pders01/guide-sync/internal/render"
	"github.com/pders01/guide-sync/internal/runlock"
)

// appFS is the filesystem every command writes to; tests swap in a MemMapFs
var appFS afero.Fs = afero.NewOsFs()

// newLogger is replaced in tests to keep output quiet
var newLogger = logger.New

type app struct {
	cfg    *config.Config
	log    *logger.Logger
	fs     afero.Fs
	client *notion.Client
	assets *assets.Materializer
}

func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &app{
		cfg:    cfg,
		log:    log,
		fs:     appFS,
		client: notion.NewClient(cfg.Notion, log),
		assets: assets.New(cfg.Assets, appFS, log),
	}, nil
}

// requireToken fails early for commands that talk to the workspace
func (a *app) requireToken() error {
	if a.cfg.Notion.Token == "" {
		return fmt.Errorf("notion.token is not set (NOTION_TOKEN or --env-file)")
	}
	return nil
}

func (a *app) deps() (generate.Deps, error) {
	filter, err := redundancy.New(a.cfg.Redundancy.Rules)
	if err != nil {
		return generate.Deps{}, err
	}
	return generate.Deps{
		Config:   a.cfg,
		Store:    a.client,
		Assets:   a.assets,
		Renderer: render.New(),
		Filter:   filter,
		FS:       a.fs,
		Log:      a.log,
	}, nil
}

func (a *app) runner() *coordinator.Runner {
	return coordinator.New(runlock.New(a.fs, a.cfg.Lock, a.log), a.log)
}

func (a *app) close() {
	a.log.Sync()
}

func out(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}
