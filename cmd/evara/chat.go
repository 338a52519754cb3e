package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/rahulyyadav/Evara/pkg/bus"
	"github.com/rahulyyadav/Evara/pkg/channels"
	"github.com/rahulyyadav/Evara/pkg/config"
	"github.com/rahulyyadav/Evara/pkg/logger"
	"github.com/rahulyyadav/Evara/pkg/remind"
	"github.com/rahulyyadav/Evara/pkg/store"
)

func newChatCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage reminders interactively against the local store",
		Long:  "Local console for the record store: set, list and cancel reminders without any network channel.",
		Example: strings.Join([]string{
			"  evara chat",
			"  evara chat --user 919876543210",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runChat(configPath, user)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "local", "User identifier to operate on")
	return cmd
}

func runChat(configPath, user string) error {
	log := logger.NewConsole("evara")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Console messages flow through the same bus -> manager -> channel
	// path the gateway uses for Discord.
	messageBus := bus.NewMessageBus()
	defer messageBus.Close()
	manager, err := channels.NewManager(&config.Config{}, messageBus, log)
	if err != nil {
		return err
	}
	manager.Register(channels.NewConsoleChannel(os.Stdout))
	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() { _ = manager.StopAll(context.Background()) }()

	svc := remind.NewService(st, remind.FixedFormatResolver{}, loc)

	rl, err := readline.New("evara> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("Commands: set <when> | <task>   list   cancel <n>   history   quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "quit", "exit":
			return nil
		case "set":
			handleSet(messageBus, svc, user, rest)
		case "list":
			handleList(svc, user, loc)
		case "cancel":
			handleCancel(messageBus, svc, user, rest)
		case "history":
			handleHistory(st, user, loc)
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
		// Give the dispatcher a beat to print before the next prompt.
		time.Sleep(50 * time.Millisecond)
	}
}

func handleSet(mb *bus.MessageBus, svc *remind.Service, user, rest string) {
	when, task, ok := strings.Cut(rest, "|")
	if !ok {
		fmt.Println("usage: set <when> | <task>")
		return
	}
	n, err := svc.Set(user, strings.TrimSpace(task), strings.TrimSpace(when), "", "")
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	active := len(svc.List(user))
	mb.PublishOutbound(bus.OutboundMessage{
		Channel: "console",
		ChatID:  user,
		Content: fmt.Sprintf("✅ Reminder set!\n📅 %s\n📝 %s\n\nYou have %d active reminder(s).",
			n.DueAt.Format("Jan 02, 2006 at 03:04 PM"), n.Task, active),
	})
}

func handleList(svc *remind.Service, user string, loc *time.Location) {
	reminders := svc.List(user)
	if len(reminders) == 0 {
		fmt.Println("You have no active reminders.")
		return
	}
	fmt.Printf("📋 You have %d active reminder(s):\n", len(reminders))
	for _, r := range reminders {
		fmt.Printf("%d. 📝 %s\n   📅 %s\n", r.Ordinal, r.Task, r.DueAt.In(loc).Format("Jan 02, 2006 at 03:04 PM"))
	}
}

func handleCancel(mb *bus.MessageBus, svc *remind.Service, user, rest string) {
	ordinal, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		fmt.Println("usage: cancel <n>")
		return
	}
	r, err := svc.CancelByOrdinal(user, ordinal)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	mb.PublishOutbound(bus.OutboundMessage{
		Channel: "console",
		ChatID:  user,
		Content: fmt.Sprintf("✅ Cancelled reminder: %s", r.Task),
	})
}

func handleHistory(st *store.Store, user string, loc *time.Location) {
	turns := st.RecentTurns(user, 10)
	if len(turns) == 0 {
		fmt.Println("No conversation history.")
		return
	}
	for _, turn := range turns {
		fmt.Printf("[%s] > %s\n", turn.Timestamp.In(loc).Format("15:04"), turn.UserMessage)
		if turn.AgentResponse != "" {
			fmt.Printf("            < %s\n", turn.AgentResponse)
		}
	}
}
