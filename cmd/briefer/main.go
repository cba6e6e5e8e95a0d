// Command briefer generates research briefs from the command line or over HTTP.
package main

import (
	"fmt"
	"os"
	"time"

	"briefer/internal/config"
	"briefer/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "briefer",
	Short: "briefer - context-aware research briefs",
	Long: `briefer plans a research topic, searches the web, summarizes each source
and synthesizes a validated brief. Briefs are kept per user so follow-up
runs can build on earlier ones.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := logging.Initialize(logging.Options{
			Level:      loaded.Logging.Level,
			Format:     loaded.Logging.Format,
			File:       loaded.Logging.File,
			Categories: categorySwitches(&loaded.Logging),
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		logging.BootDebug("config loaded from %s (provider=%s history=%s)", configPath, cfg.LLM.Provider, cfg.History.Backend)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newTraceCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// categorySwitches expands the configured category map over every known
// category so the logger sees an explicit switch for each one.
func categorySwitches(c *config.LoggingConfig) map[string]bool {
	out := make(map[string]bool, len(logging.AllCategories))
	for _, cat := range logging.AllCategories {
		out[string(cat)] = c.IsCategoryEnabled(string(cat))
	}
	return out
}
