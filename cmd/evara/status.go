package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahulyyadav/Evara/pkg/audit"
	"github.com/rahulyyadav/Evara/pkg/config"
	"github.com/rahulyyadav/Evara/pkg/logger"
	"github.com/rahulyyadav/Evara/pkg/store"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store, backup and delivery journal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runStatus(configPath)
		},
	}
}

func runStatus(configPath string) error {
	log := logger.NewConsole("evara")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	rotator, err := store.NewRotator(cfg.MemoryFilePath(), cfg.BackupDirPath(), cfg.Data.BackupKeep, cfg.Data.BackupCron,
		log.With().Str("component", "backup").Logger())
	if err != nil {
		return err
	}
	st := store.New(store.Options{
		Path:    cfg.MemoryFilePath(),
		Rotator: rotator,
		Log:     log.With().Str("component", "store").Logger(),
	})
	if err := st.Load(); err != nil {
		return err
	}

	pending := st.PendingNotifications()
	fmt.Printf("Snapshot:       %s\n", st.Path())
	fmt.Printf("Users:          %d\n", st.UserCount())
	fmt.Printf("Pending:        %d notification(s)\n", len(pending))
	for _, n := range pending {
		fmt.Printf("  - %s  %s  (user %s)\n", n.DueAt.Format(time.RFC3339), n.Task, n.UserID)
	}

	if fi, err := os.Stat(st.Path()); err == nil {
		fmt.Printf("Snapshot size:  %d bytes (modified %s)\n", fi.Size(), fi.ModTime().Format(time.RFC3339))
	} else {
		fmt.Println("Snapshot size:  (no snapshot file yet)")
	}

	if cfg.Data.AuditEnabled {
		if journal, err := audit.NewSQLiteLog(cfg.AuditDBPath()); err == nil {
			defer journal.Close()
			recent, err := journal.Recent(context.Background(), 5)
			if err == nil {
				fmt.Printf("Deliveries:     %d recent\n", len(recent))
				for _, r := range recent {
					fmt.Printf("  - %s  %s  (user %s)\n",
						time.UnixMilli(r.DeliveredAtMS).Format(time.RFC3339), r.Task, r.UserID)
				}
			}
		}
	}

	return nil
}
