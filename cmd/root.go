package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/config"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "jobinsight",
	Short: "Web3 job market crawler and enrichment pipeline",
	Long: `Crawls recruiting sites (Boss直聘 plus any sources declared in YAML) for
Web3 postings, stores the relevant ones, enriches them with a text-generation
model and reports on salaries, skills and Web3 features.

Stages run separately (crawl, process, analyze) or together (pipeline) and
share state through the store's processed flag.

Settings come from config.yaml, .env and JOBINSIGHT_* environment variables,
e.g. JOBINSIGHT_ANTHROPIC_KEY or JOBINSIGHT_STORE_DATABASE_URL.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsConfig(cmd) {
			return nil
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// needsConfig reports whether cmd touches the store or the network. Help
// and shell completion run without a config.
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd, "completion":
			return false
		}
	}
	return true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
