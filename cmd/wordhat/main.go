package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wordhat/internal/config"
	"wordhat/internal/core"
	"wordhat/internal/logging"
	"wordhat/internal/store"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	learner string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wordhat",
	Short: "wordhat - adaptive vocabulary trainer core",
	Long: `wordhat is the backend core of an adaptive vocabulary trainer.

It places new learners on the difficulty spectrum with an adaptive
binary search, then schedules every word with the SM-2 spaced-repetition
algorithm across the New / Learning / Review / Mastered lifecycle.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// migrateCmd creates or upgrades the database schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Printf("database ready at %s\n", cfg.Database.Path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "wordhat.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, c := range []*cobra.Command{
		placeCmd, reviewCmd, triageCmd, statsCmd,
	} {
		c.Flags().StringVarP(&learner, "learner", "l", "", "learner id")
		c.MarkFlagRequired("learner")
	}

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(placeCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(recalcCmd)
}

// openService opens the store and wires the core over the loaded
// config. The returned closer shuts the store down.
func openService() (*core.Service, func(), error) {
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := core.New(cfg, st, nil, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, func() { st.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
