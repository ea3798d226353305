package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/db"
	"github.com/lucasnoah/reprofactory/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and status stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, cfg, err := newEvaluator(cmd)
		if err != nil {
			return err
		}
		port := cfg.Repro.Serve.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		var database *db.DB
		if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
			database, err = openHistory(cfg)
			if err != nil {
				ev.Logger.Warn("history unavailable, /api/history disabled", "error", err)
			} else {
				defer database.Close()
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://localhost:%d\n", cfg.RootDir(), port)
		return web.NewServer(ev, database, port, ev.Logger).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config, 8420)")
	serveCmd.Flags().Bool("no-history", false, "Do not open the history database")
}
