// Package cli provides the command-line interface for memdedup.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memdedup-go/internal/config"
	"github.com/raphaelgruber/memdedup-go/internal/db"
	"github.com/raphaelgruber/memdedup-go/internal/detector"
	"github.com/raphaelgruber/memdedup-go/internal/engine"
	"github.com/raphaelgruber/memdedup-go/internal/scorecache"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and db client
	cfg        config.Config
	dbClient   *db.Client
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "memdedup",
	Short: "Memory deduplication and consolidation engine",
	Long: `Memdedup finds duplicate and near-duplicate memories in a SurrealDB-backed
memory store, groups them into reviewable candidates, and consolidates
approved groups into merged records with full lineage.

Detection combines exact content hashing, embedding cosine similarity, and
fuzzy token overlap; nothing is ever merged without an explicit approval.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		logCleanup = cleanup

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// newEngine builds the engine against the connected database.
func newEngine() *engine.Engine {
	return engine.New(dbClient, detector.All(), scorecache.New(), nil, cfg.Workers)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(statsCmd)
}
