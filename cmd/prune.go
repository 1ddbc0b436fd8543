package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/render"
	"github.com/pders01/guide-sync/internal/snapshot"
)

var pruneForce bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove image files no snapshot references",
	Long: `Remove WebP assets that none of the published snapshots reference.

Photos, logos and content images stay on disk when a speaker or exhibitor
disappears from the workspace. prune lists those files and deletes them
with --force. All four snapshots must be present; a partial set would mark
live assets as orphans.

Example:
  guide-sync prune              # Show what would be pruned
  guide-sync prune --force      # Actually delete the files`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Actually delete the files")
}

// referencedAssets collects every asset URL the snapshots point to
func referencedAssets(fs afero.Fs, o config.Output) (map[string]bool, error) {
	refs := make(map[string]bool)
	add := func(u string) {
		if u != "" {
			refs[u] = true
		}
	}

	sessions, err := snapshot.ReadSessions(fs, o.SessionsPath())
	if err != nil {
		return nil, err
	}
	for _, s := range sessions.Workshops {
		for _, p := range s.Referenten {
			add(p.Foto)
		}
		for _, e := range s.Aussteller {
			add(e.Logo)
		}
		for _, src := range render.ImageSources(s.ContentHTML) {
			add(src)
		}
	}

	exhibitors, err := snapshot.ReadExhibitors(fs, o.ExhibitorsPath())
	if err != nil {
		return nil, err
	}
	for _, e := range exhibitors.Aussteller {
		add(e.Logo)
	}

	experts, err := snapshot.ReadExperts(fs, o.ExpertsPath())
	if err != nil {
		return nil, err
	}
	for _, e := range experts.Experten {
		add(e.Foto)
	}
	return refs, nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	w := out(cmd)

	refs, err := referencedAssets(a.fs, a.cfg.Output)
	if errors.Is(err, snapshot.ErrMissing) {
		return fmt.Errorf("refusing to prune without all snapshots: %w", err)
	}
	if err != nil {
		return err
	}

	orphans, err := a.assets.Unreferenced(refs)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		fmt.Fprintln(w, "No unreferenced assets")
		return nil
	}

	fmt.Fprintf(w, "Unreferenced assets (%d):\n\n", len(orphans))
	for _, f := range orphans {
		fmt.Fprintf(w, "  %s\n", f)
	}

	if !pruneForce {
		fmt.Fprintln(w, "\nThis is a dry run. Use --force to actually delete the files.")
		return nil
	}
	if err := a.assets.Remove(orphans); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n✓ Pruned %d file(s)\n", len(orphans))
	return nil
}
