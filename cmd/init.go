package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pders01/guide-sync/internal/config"
)

var initPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration and the output directories",
	Long: `Write guide-sync.toml with every setting at its default and create the
snapshot, asset and lock directories.

The Notion token is left empty on purpose; set NOTION_TOKEN in the
environment or in the file given by --env-file. Database ids can go in
either place (NOTION_WORKSHOP_DB, NOTION_AUSSTELLER_DB, NOTION_REFERENTEN_DB).

An existing configuration file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initPath, "path", "guide-sync.toml", "where to write the configuration")
}

// defaultConfig renders the built-in defaults as TOML
func defaultConfig() ([]byte, error) {
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	cfg.Notion.Token = ""

	var buf bytes.Buffer
	buf.WriteString("# guide-sync configuration. Environment variables override every key,\n")
	buf.WriteString("# e.g. NOTION_WORKSHOP_DB for notion.workshop_db.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func runInit(cmd *cobra.Command, args []string) error {
	w := out(cmd)
	fs := appFS

	if ok, _ := afero.Exists(fs, initPath); ok {
		fmt.Fprintf(w, "Config already exists: %s\n", initPath)
	} else {
		data, err := defaultConfig()
		if err != nil {
			return err
		}
		if dir := filepath.Dir(initPath); dir != "." {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
		}
		if err := afero.WriteFile(fs, initPath, data, 0644); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Fprintf(w, "✓ Created default config: %s\n", initPath)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	for _, dir := range []string{cfg.Output.Dir, cfg.Assets.Dir, filepath.Dir(cfg.Lock.Path)} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		fmt.Fprintf(w, "✓ Directory ready: %s\n", dir)
	}

	fmt.Fprintln(w, "\n✓ guide-sync initialized successfully!")
	fmt.Fprintln(w, "  Set NOTION_TOKEN, then run: guide-sync run")
	return nil
}
