package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmsconsultores/cmsweb/internal/config"
	"github.com/cmsconsultores/cmsweb/internal/contacts"
	"github.com/cmsconsultores/cmsweb/internal/storage"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

// openStore is replaced in tests.
var openStore = storage.Open

var envFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cmsweb",
		Short:         "cmsweb contact ledger CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with CMSWEB_ settings")

	rootCmd.AddCommand(newContactsCmd(), newTokenCmd(), newHashPasswordCmd(), newMigrateCmd())
	return rootCmd
}

func loadConfig() (*config.AppConfig, error) {
	return config.LoadFile(envFile)
}

// withContactStore opens the configured blob store and runs fn with a
// contact store over it.
func withContactStore(ctx context.Context, fn func(*contacts.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	blobs, err := openStore(ctx, cfg.Storage, cfg.DB)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer blobs.Close()

	// stdout is reserved for command output
	log := logger.New(cfg.Log, os.Stderr)
	store, err := contacts.NewStore(blobs, cfg.Ledger, log)
	if err != nil {
		return err
	}
	return fn(store)
}
