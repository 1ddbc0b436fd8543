package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/runlock"
	"github.com/pders01/guide-sync/internal/snapshot"
)

var (
	statsJSON bool
	statsToon bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about the snapshots on disk",
	Long: `Display statistics about the published snapshots including:
  - Generation time and record count per document
  - Sessions with and without rendered content
  - Exhibitors with logo and floor-plan placement
  - Top session categories
  - Run lock state

Examples:
  guide-sync stats
  guide-sync stats --json
  guide-sync stats --toon`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&statsToon, "toon", false, "Output in LLM-friendly toon format")
}

type documentStats struct {
	Present   bool   `json:"present"`
	Generated string `json:"generated,omitempty"`
	Count     int    `json:"count"`
}

type snapshotStats struct {
	Sessions       documentStats  `json:"sessions"`
	WithContent    int            `json:"with_content"`
	WithoutContent int            `json:"without_content"`
	ByDay          map[string]int `json:"by_day"`
	TopCategories  []categoryStat `json:"top_categories"`
	Exhibitors     documentStats  `json:"exhibitors"`
	WithLogo       int            `json:"with_logo"`
	Placed         int            `json:"placed"`
	Experts        documentStats  `json:"experts"`
	Standplan      documentStats  `json:"standplan"`
	Halls          int            `json:"halls"`
}

type categoryStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// collectStats reads whatever snapshots exist; missing ones are reported as absent
func collectStats(fs afero.Fs, out config.Output) (*snapshotStats, error) {
	stats := &snapshotStats{ByDay: make(map[string]int)}

	sessions, err := snapshot.ReadSessions(fs, out.SessionsPath())
	switch {
	case err == nil:
		stats.Sessions = documentStats{Present: true, Generated: sessions.Generated, Count: sessions.Count}
		byCategory := make(map[string]int)
		for _, s := range sessions.Workshops {
			if s.HasContent {
				stats.WithContent++
			} else {
				stats.WithoutContent++
			}
			if s.Tag != "" {
				stats.ByDay[s.Tag]++
			}
			for _, k := range s.Kategorien {
				byCategory[k]++
			}
		}
		for k, n := range byCategory {
			stats.TopCategories = append(stats.TopCategories, categoryStat{Category: k, Count: n})
		}
		sort.Slice(stats.TopCategories, func(i, j int) bool {
			a, b := stats.TopCategories[i], stats.TopCategories[j]
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return a.Category < b.Category
		})
	case !errors.Is(err, snapshot.ErrMissing):
		return nil, err
	}

	exhibitors, err := snapshot.ReadExhibitors(fs, out.ExhibitorsPath())
	switch {
	case err == nil:
		stats.Exhibitors = documentStats{Present: true, Generated: exhibitors.Generated, Count: exhibitors.Count}
		for _, e := range exhibitors.Aussteller {
			if e.Logo != "" {
				stats.WithLogo++
			}
			if e.HasCoordinates() {
				stats.Placed++
			}
		}
	case !errors.Is(err, snapshot.ErrMissing):
		return nil, err
	}

	experts, err := snapshot.ReadExperts(fs, out.ExpertsPath())
	switch {
	case err == nil:
		stats.Experts = documentStats{Present: true, Generated: experts.Generated, Count: experts.Count}
	case !errors.Is(err, snapshot.ErrMissing):
		return nil, err
	}

	plan, err := snapshot.ReadStandplan(fs, out.StandplanPath())
	switch {
	case err == nil:
		stats.Standplan = documentStats{Present: true, Generated: plan.Generated, Count: len(plan.Staende)}
		stats.Halls = len(plan.Hallen)
	case !errors.Is(err, snapshot.ErrMissing):
		return nil, err
	}

	return stats, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	w := out(cmd)

	stats, err := collectStats(a.fs, a.cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}

	if statsJSON {
		output, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	if statsToon {
		output, err := gotoon.Encode(stats)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Fprintln(w, output)
		return nil
	}

	printStats(w, stats)
	fmt.Fprintln(w)
	return runlock.Describe(w, a.fs, a.cfg.Lock.Path)
}

func printStats(w io.Writer, stats *snapshotStats) {
	fmt.Fprintln(w, "Snapshot Statistics")
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	for _, doc := range []struct {
		name string
		s    documentStats
	}{
		{"Sessions", stats.Sessions},
		{"Exhibitors", stats.Exhibitors},
		{"Experts", stats.Experts},
		{"Floor plan", stats.Standplan},
	} {
		if !doc.s.Present {
			fmt.Fprintf(w, "%-12s missing\n", doc.name+":")
			continue
		}
		fmt.Fprintf(w, "%-12s %4d  (generated %s)\n", doc.name+":", doc.s.Count, doc.s.Generated)
	}
	fmt.Fprintln(w)

	if stats.Sessions.Present && stats.Sessions.Count > 0 {
		percentage := float64(stats.WithContent) / float64(stats.Sessions.Count) * 100
		fmt.Fprintln(w, "Session Content:")
		fmt.Fprintf(w, "  With content:    %3d  (%.1f%%)\n", stats.WithContent, percentage)
		fmt.Fprintf(w, "  Without content: %3d  (%.1f%%)\n", stats.WithoutContent, 100-percentage)
		fmt.Fprintln(w)

		days := make([]string, 0, len(stats.ByDay))
		for d := range stats.ByDay {
			days = append(days, d)
		}
		sort.Strings(days)
		fmt.Fprintln(w, "By Day:")
		for _, d := range days {
			fmt.Fprintf(w, "  %-12s %3d  %s\n", d, stats.ByDay[d], strings.Repeat("█", min(stats.ByDay[d], 20)))
		}
		fmt.Fprintln(w)
	}

	if len(stats.TopCategories) > 0 {
		fmt.Fprintln(w, "Top Categories:")
		for _, c := range stats.TopCategories[:min(len(stats.TopCategories), 10)] {
			fmt.Fprintf(w, "  %-20s %3d\n", c.Category, c.Count)
		}
		fmt.Fprintln(w)
	}

	if stats.Exhibitors.Present {
		fmt.Fprintln(w, "Exhibitors:")
		fmt.Fprintf(w, "  With logo:       %3d\n", stats.WithLogo)
		fmt.Fprintf(w, "  On floor plan:   %3d\n", stats.Placed)
		fmt.Fprintf(w, "  Halls:           %3d\n", stats.Halls)
	}
}
