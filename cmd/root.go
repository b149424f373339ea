package cmd

import (
	"tutorloop/internal/config"
	"tutorloop/internal/journal"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tutorloop",
	Short: "Session lifecycle client for the AI tutor",
	Long: "Tutorloop drives practice sessions against the tutoring agent backend:\n" +
		"it resolves where a student resumes, starts agent runs exactly once,\n" +
		"polls for run results, and mirrors progress into the session store.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to the local journal database (overrides TUTORLOOP_DB)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment from this file (default .env if present)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the env file, builds config from the environment,
// and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return config.Config{}, err
	}

	cfg := config.FromEnv()
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	if d, _ := cmd.Flags().GetBool("debug"); d {
		cfg.Debug = true
	}
	return cfg, nil
}

// openJournal opens the local journal at the configured path, falling
// back to the default XDG location.
func openJournal(cfg config.Config) (*journal.Journal, error) {
	path := cfg.DBPath
	if path == "" {
		var err error
		path, err = journal.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	} else if err := journal.EnsureDir(path); err != nil {
		return nil, err
	}
	return journal.Open(path)
}
