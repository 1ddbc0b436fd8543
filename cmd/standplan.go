package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pders01/guide-sync/internal/standplan"
)

var standplanCmd = &cobra.Command{
	Use:   "standplan",
	Short: "Floor-plan editor support",
}

var standplanSaveCmd = &cobra.Command{
	Use:   "save <file|->",
	Short: "Write booth coordinates back to the exhibitor database",
	Long: `Read the floor-plan editor payload and patch Stand_X, Stand_Y,
Stand_W and Stand_H on every listed exhibitor page. Coordinates are
rounded to one decimal; missing ones are cleared.

Payload:
  {"items": [{"page_id": "…", "stand": "A3-300", "x": 45.2, "y": 32.1, "w": null, "h": null}]}

Examples:
  guide-sync standplan save positions.json
  curl -s … | guide-sync standplan save -`,
	Args: cobra.ExactArgs(1),
	RunE: runStandplanSave,
}

func init() {
	rootCmd.AddCommand(standplanCmd)
	standplanCmd.AddCommand(standplanSaveCmd)
}

func runStandplanSave(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := appFS.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	items, err := standplan.ParseRequest(r)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireToken(); err != nil {
		return err
	}

	res := standplan.Save(commandContext(cmd), a.client, items, a.log)

	enc := json.NewEncoder(out(cmd))
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d item(s) failed", res.Failed, len(items))
	}
	return nil
}
