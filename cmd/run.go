package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/guide-sync/internal/coordinator"
	"github.com/pders01/guide-sync/internal/generate"
	"github.com/pders01/guide-sync/internal/models"
)

// errRunFailed carries exit code 1 after the coordinator already logged why
var errRunFailed = errors.New("run failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all generators under the run lock",
	Long: `Run the sessions, exhibitors and experts generators in that order.

A run that finds the lock held by a live process exits 0 without doing
anything, so the command is safe to call from cron:

  0 * * * * cd /srv/guide && guide-sync run >> /var/log/guide-sync.log 2>&1`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var generateCmd = &cobra.Command{
	Use:   "generate <sessions|exhibitors|experts>",
	Short: "Run a single generator under the run lock",
	Long: `Run one generator. "experts" reads the sessions snapshot, so run
"sessions" first on a fresh checkout.

Examples:
  guide-sync generate sessions
  guide-sync generate aussteller`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"sessions", "exhibitors", "experts", "workshops", "aussteller", "experten", "standplan"},
	RunE:      runGenerate,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireToken(); err != nil {
		return err
	}

	d, err := a.deps()
	if err != nil {
		return err
	}
	return finish(a, a.runner().Run(commandContext(cmd), generate.All(d)))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseKind(args[0])
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

	d, err := a.deps()
	if err != nil {
		return err
	}
	g, ok := generate.ByKind(d, kind)
	if !ok {
		return fmt.Errorf("no generator for %s", kind)
	}
	return finish(a, a.runner().Run(commandContext(cmd), []generate.Generator{g}))
}

func finish(a *app, report coordinator.Report) error {
	if report.Skipped {
		return nil
	}
	st := a.assets.Stats()
	a.log.Info("assets", "written", st.Written, "fallback", st.Fallback, "failed", st.Failed)

	if report.ExitCode() != coordinator.ExitOK {
		var failed []string
		for _, r := range report.Results {
			if !r.OK() {
				failed = append(failed, r.Name)
			}
		}
		return fmt.Errorf("%w: %s", errRunFailed, strings.Join(failed, ", "))
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
