// File: cmd/run.go

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/browser/cdp"
	"github.com/xkilldash9x/actiongate/internal/config"
	"github.com/xkilldash9x/actiongate/internal/engine"
	"github.com/xkilldash9x/actiongate/internal/observability"
	"github.com/xkilldash9x/actiongate/internal/runner"
)

const releaseTimeout = 5 * time.Second

// newRunCmd creates the `run` command, which executes one action script in a fresh browser.
func newRunCmd() *cobra.Command {
	var (
		url      string
		headless bool
		timeout  time.Duration
	)
	runCmd := &cobra.Command{
		Use:   "run <script.json>",
		Short: "Executes an action script against a new Chrome instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			// Flags override config only when given explicitly.
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if cmd.Flags().Changed("timeout") {
				if timeout <= 0 {
					return fmt.Errorf("--timeout must be positive, got %v", timeout)
				}
				cfg.SetEngineDefaultTimeout(timeout)
			}

			script, err := runner.LoadScript(args[0])
			if err != nil {
				return err
			}
			if url != "" {
				script.URL = url
			}

			results, err := runScript(ctx, cfg, script, logger)
			printResults(cmd.OutOrStdout(), results)
			return err
		},
	}

	runCmd.Flags().StringVarP(&url, "url", "u", "", "URL to open before the first step (overrides the script's url)")
	runCmd.Flags().BoolVar(&headless, "headless", true, "Run Chrome without a window (overrides config)")
	runCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Default per-action timeout, e.g. 10s (overrides config)")
	return runCmd
}

// runScript launches Chrome, opens one tab and runs script in it.
func runScript(ctx context.Context, cfg config.Interface, script *schemas.Script, logger *zap.Logger) ([]runner.StepResult, error) {
	session, err := cdp.Launch(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		// A failed step can leave a mouse button held.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := page.ReleaseInput(releaseCtx); err != nil {
			logger.Debug("Failed to release input.", zap.Error(err))
		}
	}()

	eng := engine.New(page, page, page.Navigation(), cfg.Engine(), logger)
	r, err := runner.New(eng, page, logger)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, script)
}

func printResults(w io.Writer, results []runner.StepResult) {
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = "FAILED"
			if kind := engine.KindOf(res.Err); kind != 0 {
				status = fmt.Sprintf("FAILED [%s]", kind)
			}
		}
		fmt.Fprintf(w, "%3d  %-16s %-24s %8s", res.Index, res.Action, status, res.Duration.Round(time.Millisecond))
		if len(res.Selected) > 0 {
			fmt.Fprintf(w, "  selected=%v", res.Selected)
		}
		fmt.Fprintln(w)
	}
}
