package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/pders01/guide-sync/internal/config"
)

var (
	cfgFile string
	envFile string
	logMode string
)

var rootCmd = &cobra.Command{
	Use:   "guide-sync",
	Short: "Mirror the event workspace into static JSON snapshots",
	Long: `guide-sync reads sessions, exhibitors and speakers from the Notion
workspace and writes the static documents the event guide serves:
  - workshops.json with rendered session bodies
  - aussteller.json and the standplan.json floor-plan index
  - experten.json with every confirmed speaker
  - WebP copies of photos, logos and content images

Without a subcommand it runs all generators, like "guide-sync run".`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runRun,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is guide-sync.toml in . or $HOME/.config/guide-sync)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with NOTION_* credentials")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "log encoding: dev or prod (overrides log.mode)")
}

func initConfig() {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "Warning: failed to load env file:", err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "guide-sync"))
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("guide-sync")
	}

	config.SetDefaults(viper.GetViper())
	if logMode != "" {
		viper.Set("log.mode", logMode)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Warning: failed to read config file:", err)
	}
}
