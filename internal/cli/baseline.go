package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/snapshot"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage the baseline snapshot",
}

var baselineAcceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept the current snapshot as the new baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		n, err := snapshot.Promote(afero.NewOsFs(), cfg.CurrentPath(), cfg.BaselinePath())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Promoted %d result(s) from %s to %s\n", n, cfg.CurrentPath(), cfg.BaselinePath())
		return nil
	},
}

func init() {
	baselineCmd.AddCommand(baselineAcceptCmd)
}
