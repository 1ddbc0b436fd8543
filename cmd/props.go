package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pders01/guide-sync/internal/notion"
)

var propsJSON bool

var propsCmd = &cobra.Command{
	Use:   "props <workshops|aussteller|referenten|database-id>",
	Short: "Show the property schema of a database",
	Long: `Print every property name and type of a workspace database. Use it to
check the column names the generators expect after someone renamed one.

Examples:
  guide-sync props workshops
  guide-sync props aussteller --json
  guide-sync props 1f2e3d4c5b6a79880123456789abcdef`,
	Args: cobra.ExactArgs(1),
	RunE: runProps,
}

func init() {
	rootCmd.AddCommand(propsCmd)

	propsCmd.Flags().BoolVar(&propsJSON, "json", false, "Output as JSON")
}

func runProps(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireToken(); err != nil {
		return err
	}

	dbID := a.cfg.DatabaseID(args[0])
	if dbID == "" {
		return fmt.Errorf("database %q is not configured", args[0])
	}
	db, err := a.client.RetrieveDatabase(commandContext(cmd), dbID)
	if err != nil {
		return err
	}

	props := make([]notion.PropertySchema, 0, len(db.Properties))
	for name, p := range db.Properties {
		if p.Name == "" {
			p.Name = name
		}
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })

	w := out(cmd)
	if propsJSON {
		output, err := json.MarshalIndent(props, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	title := notion.Plain(db.Title)
	if title == "" {
		title = db.ID
	}
	fmt.Fprintf(w, "%s (%d properties)\n\n", title, len(props))
	for _, p := range props {
		fmt.Fprintf(w, "  %-28s %s\n", p.Name, p.Type)
	}
	return nil
}
