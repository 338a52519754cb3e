package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahulyyadav/Evara/pkg/audit"
	"github.com/rahulyyadav/Evara/pkg/bus"
	"github.com/rahulyyadav/Evara/pkg/channels"
	"github.com/rahulyyadav/Evara/pkg/config"
	"github.com/rahulyyadav/Evara/pkg/logger"
	"github.com/rahulyyadav/Evara/pkg/scheduler"
	"github.com/rahulyyadav/Evara/pkg/store"
)

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the delivery gateway: record store, scheduler, pruner and channels",
		Example: "  evara gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runGateway(configPath, debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runGateway(configPath string, debug bool) error {
	logger.SetDebug(debug)
	log := logger.New("evara")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
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
	log.Info().Int("users", st.UserCount()).Str("snapshot", st.Path()).Msg("record store loaded")

	// Cover processes that are never up at the cron instant.
	if err := rotator.CheckAndBackup(time.Now()); err != nil {
		log.Warn().Err(err).Msg("startup backup failed")
	}

	var auditLog *audit.SQLiteLog
	if cfg.Data.AuditEnabled {
		auditLog, err = audit.NewSQLiteLog(cfg.AuditDBPath())
		if err != nil {
			log.Warn().Err(err).Msg("delivery journal unavailable, continuing without audit")
		} else {
			defer auditLog.Close()
		}
	}

	messageBus := bus.NewMessageBus()
	defer messageBus.Close()

	manager, err := channels.NewManager(cfg, messageBus, log.With().Str("component", "channels").Logger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = manager.StopAll(stopCtx)
	}()

	var auditSink scheduler.AuditLog
	if auditLog != nil {
		auditSink = auditLog
	}
	sched := scheduler.New(st, manager, auditSink, scheduler.Config{
		Tick:      cfg.Tick(),
		Tolerance: cfg.Tolerance(),
		Location:  loc,
	}, log.With().Str("component", "scheduler").Logger())

	pruner := store.NewPruner(st, cfg.PruneInterval(), cfg.HistoryMaxAge(),
		log.With().Str("component", "pruner").Logger())

	go rotator.Run(ctx)
	go pruner.Run(ctx)
	go sched.Run(ctx)

	log.Info().Msg("evara gateway running")
	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}
