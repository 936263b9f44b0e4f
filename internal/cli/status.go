package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/postwatch/internal/control"
	"github.com/vietddude/postwatch/internal/core/config"
	"github.com/vietddude/postwatch/internal/infra/storage"
	"github.com/vietddude/postwatch/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler liveness and recent accepted events",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if pid, alive := control.ReadPIDFile(cfg.PIDFile); alive {
		fmt.Printf("postwatch is running (pid %d)\n", pid)
	} else {
		fmt.Println("postwatch is not running")
	}

	if cfg.Database.URL == "" {
		return
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

	events, err := postgres.NewEventRepo(db).List(ctx, storage.EventFilter{Limit: 10})
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tPOST\tCATEGORY\tCONFIDENCE\tCREATED")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\n",
			ev.Account, ev.PostID, ev.Category, ev.Confidence,
			ev.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
