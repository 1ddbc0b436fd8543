package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/models"
	"github.com/pders01/guide-sync/internal/snapshot"
)

var (
	listDay     string
	listWithout bool
)

var listCmd = &cobra.Command{
	Use:   "list <sessions|exhibitors|experts>",
	Short: "List the entries of a snapshot",
	Long: `List one line per entry of a published snapshot.

Examples:
  guide-sync list sessions
  guide-sync list sessions --day Samstag
  guide-sync list sessions --without-content
  guide-sync list exhibitors
  guide-sync list experts`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"sessions", "exhibitors", "experts"},
	RunE:      runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listDay, "day", "", "Filter sessions by day tag")
	listCmd.Flags().BoolVar(&listWithout, "without-content", false, "Show only sessions without rendered content")
}

func runList(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseKind(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return listSnapshot(out(cmd), a.fs, a.cfg.Output, kind)
}

func listSnapshot(w io.Writer, fs afero.Fs, o config.Output, kind models.SnapshotKind) error {
	switch kind {
	case models.KindSessions:
		doc, err := snapshot.ReadSessions(fs, o.SessionsPath())
		if err != nil {
			return err
		}
		var shown []models.Session
		for _, s := range doc.Workshops {
			if listDay != "" && !strings.EqualFold(s.Tag, listDay) {
				continue
			}
			if listWithout && s.HasContent {
				continue
			}
			shown = append(shown, s)
		}
		if len(shown) == 0 {
			fmt.Fprintln(w, "No sessions match the filter criteria")
			return nil
		}
		fmt.Fprintf(w, "Found %d session(s), generated %s:\n\n", len(shown), doc.Generated)
		for _, s := range shown {
			marker := " "
			if !s.HasContent {
				marker = "-"
			}
			fmt.Fprintf(w, "%s %-32s  %-8s  %-18s  %s\n", marker, s.ID, s.Tag, s.Zeit, s.Title)
		}

	case models.KindExhibitors, models.KindStandplan:
		doc, err := snapshot.ReadExhibitors(fs, o.ExhibitorsPath())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Found %d exhibitor(s), generated %s:\n\n", doc.Count, doc.Generated)
		for _, e := range doc.Aussteller {
			placed := " "
			if e.HasCoordinates() {
				placed = "*"
			}
			fmt.Fprintf(w, "%s %-10s  %s\n", placed, e.Stand, e.Firma)
		}

	case models.KindExperts:
		doc, err := snapshot.ReadExperts(fs, o.ExpertsPath())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Found %d expert(s), generated %s:\n\n", doc.Count, doc.Generated)
		for _, e := range doc.Experten {
			titles := make([]string, 0, len(e.Workshops))
			for _, s := range e.Workshops {
				titles = append(titles, s.Title)
			}
			sort.Strings(titles)
			fmt.Fprintf(w, "  %-30s  %d session(s): %s\n", e.Name, len(e.Workshops), strings.Join(titles, "; "))
		}
	}
	return nil
}
