package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/diff"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
	"github.com/lucasnoah/reprofactory/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-evaluate whenever a snapshot file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, _, err := newEvaluator(cmd)
		if err != nil {
			return err
		}
		debounce, _ := cmd.Flags().GetDuration("debounce")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report := func(ctx context.Context) {
			rep, err := ev.Evaluate(ctx)
			if err != nil {
				if ctx.Err() == nil {
					ev.Logger.Error("evaluation failed", "error", err)
				}
				return
			}
			printSummaryLine(cmd, rep)
		}

		report(ctx)
		w := &watch.Watcher{
			Files:    []string{ev.CurrentPath, ev.BaselinePath},
			Debounce: debounce,
			Logger:   ev.Logger,
			OnChange: report,
		}
		return w.Run(ctx)
	},
}

// printSummaryLine prints one line with the status totals and diff counts.
func printSummaryLine(cmd *cobra.Command, rep *evaluate.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "[%s]", rep.GeneratedAt.Local().Format(time.TimeOnly))
	for _, s := range aggregate.Statuses {
		if n := rep.Totals[s]; n > 0 {
			fmt.Fprintf(w, " %s=%d", s, n)
		}
	}
	fmt.Fprintf(w, " | regressions=%d fixed=%d new=%d\n",
		rep.DiffCounts[diff.Regression], rep.DiffCounts[diff.Fixed], rep.DiffCounts[diff.New])
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before re-evaluating")
}
