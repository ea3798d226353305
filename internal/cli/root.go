package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	configFile string
	verbose    bool
)

// settings resolves --root, the history DSN and the serve port from flags
// and REPRO_* environment variables.
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "repro",
	Short: "Reconcile baseline and current reproduction results",
	Long: `repro compares a baseline snapshot of per-project step results with the
current snapshot, classifies what changed, resolves each issue's lifecycle
state and buckets every issue into a dashboard status.

Snapshots are JSON arrays stored under the repository root (results/ by
default). Configuration lives in ./repro.yaml or ~/.repro/config.yaml.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, used for signal handling.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "path to repro.yaml (default: ./repro.yaml, then ~/.repro/config.yaml)")
	pf.String("root", "", "repository root containing the issue directories")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")

	settings.SetEnvPrefix("REPRO")
	_ = settings.BindEnv("root")
	_ = settings.BindEnv("history_dsn")
	_ = settings.BindEnv("port")
	_ = settings.BindPFlag("root", pf.Lookup("root"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
