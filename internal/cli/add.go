package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/postwatch/internal/core/config"
	"github.com/vietddude/postwatch/internal/infra/storage/postgres"
)

var addCmd = &cobra.Command{
	Use:   "add <account>",
	Short: "Register an account to watch",
	Args:  cobra.ExactArgs(1),
	Run:   runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		slog.Error("add requires database storage; set database.url in the config")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	account := args[0]
	if err := postgres.NewAccountRepo(db).AddWatched(ctx, account); err != nil {
		slog.Error("Failed to add account", "account", account, "error", err)
		os.Exit(1)
	}

	fmt.Printf("watching %s\n", account)
}
