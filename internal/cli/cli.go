// Package cli wires configuration, storage, transport and the dispatcher
// into the fitbot commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telegram-fitness-bot/internal/config"
	"telegram-fitness-bot/internal/conversation"
	"telegram-fitness-bot/internal/handlers"
	"telegram-fitness-bot/internal/scheduler"
	"telegram-fitness-bot/internal/server"
	"telegram-fitness-bot/internal/storage"
	"telegram-fitness-bot/internal/telegram"
	"telegram-fitness-bot/internal/utils"
)

type app struct {
	cfg config.Config
	log *slog.Logger
}

func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "fitbot",
		Short:         "Telegram bot for training plans and the fitness diary",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = utils.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(a.log)
			return nil
		},
		RunE: a.run,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Serve the bot, the daily dispatcher and the ops endpoints",
		Args:  cobra.NoArgs,
		RunE:  a.run,
	})
	root.AddCommand(&cobra.Command{
		Use:   "tick",
		Short: "Run one dispatch pass and exit",
		Args:  cobra.NoArgs,
		RunE:  a.tick,
	})
	root.AddCommand(&cobra.Command{
		Use:   "link-code <user-id>",
		Short: "Issue a one-time code that links a chat to the user",
		Args:  cobra.ExactArgs(1),
		RunE:  a.linkCode,
	})
	return root
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (a *app) dispatcher(db *storage.DB, sender scheduler.Sender, m *scheduler.Metrics) *scheduler.Dispatcher {
	cfg := scheduler.Config{
		Interval:    a.cfg.TickInterval,
		Concurrency: a.cfg.DispatchConcurrency,
		Lease:       a.cfg.DispatchLease,
	}
	return scheduler.New(cfg, db, db, sender, clockwork.NewRealClock(), a.log, m)
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	if err := a.cfg.RequireToken(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := newRegistry()
	bot, err := telegram.New(a.cfg.TelegramToken, a.log, telegram.NewMetrics(reg))
	if err != nil {
		return err
	}

	conv := conversation.NewStore(a.cfg.ConversationCapacity, a.cfg.ConversationTTL)
	h := handlers.NewHandler(db, conv, clockwork.NewRealClock(), a.log, a.cfg.DefaultTZ)

	g, gctx := errgroup.WithContext(ctx)

	if _, err := a.dispatcher(db, bot, scheduler.NewMetrics(reg)).Start(gctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if a.cfg.OpsAddr != "" {
		srv := server.New(a.cfg.OpsAddr, db, reg, a.log)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error { return bot.Run(gctx, h) })

	a.log.Info("bot started", "db", a.cfg.DBPath, "tick", a.cfg.TickInterval, "ops_addr", a.cfg.OpsAddr)
	err = g.Wait()
	a.log.Info("bot stopped")
	return err
}

func (a *app) tick(cmd *cobra.Command, _ []string) error {
	if err := a.cfg.RequireToken(); err != nil {
		return err
	}
	db, err := storage.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	bot, err := telegram.New(a.cfg.TelegramToken, a.log, nil)
	if err != nil {
		return err
	}

	rep, err := a.dispatcher(db, bot, nil).Tick(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checked=%d due=%d sent=%d failed=%d skipped=%d\n",
		rep.Checked, rep.Due, rep.Sent, rep.Failed, rep.Skipped)
	return nil
}

func (a *app) linkCode(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("bad user id %q", args[0])
	}

	db, err := storage.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	lc, err := db.IssueLinkCode(cmd.Context(), userID, a.cfg.LinkCodeTTL, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (valid until %s)\n", lc.Code, lc.ExpiresAt.Format(time.RFC3339))
	return nil
}
