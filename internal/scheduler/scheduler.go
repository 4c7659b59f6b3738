package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"telegram-fitness-bot/internal/messages"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/utils"
)

// Directory is the subscription side of the store used by the dispatcher.
type Directory interface {
	ListDispatchable(ctx context.Context) ([]models.Subscription, error)
	ClaimDispatch(ctx context.Context, userID int64, date string, now time.Time, lease time.Duration) (bool, error)
	CompleteDispatch(ctx context.Context, userID int64, date string) error
	ReleaseDispatch(ctx context.Context, userID int64, date string) error
}

type Plans interface {
	PlanEntriesByDate(ctx context.Context, userID int64, date string) ([]models.PlanEntry, error)
}

type Sender interface {
	Send(ctx context.Context, chatID int64, text string, kb *models.Keyboard) error
}

type Config struct {
	Interval    time.Duration
	Concurrency int
	// Lease is how long a claim blocks other ticks before it is considered
	// abandoned by a crashed sender.
	Lease time.Duration
}

// Report counts what one tick did.
type Report struct {
	Checked int // dispatchable subscriptions loaded
	Due     int
	Sent    int
	Failed  int
	Skipped int // claimed or dispatched by a concurrent tick
}

type Dispatcher struct {
	dir     Directory
	plans   Plans
	sender  Sender
	clock   clockwork.Clock
	cfg     Config
	log     *slog.Logger
	metrics *Metrics
}

func New(cfg Config, dir Directory, plans Plans, sender Sender, clock clockwork.Clock, log *slog.Logger, m *Metrics) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = utils.Discard()
	}
	return &Dispatcher{
		dir:     dir,
		plans:   plans,
		sender:  sender,
		clock:   clock,
		cfg:     cfg,
		log:     log.With("component", "dispatcher"),
		metrics: m,
	}
}

// Due reports whether sub should get the plan at now and for which local
// date. A date is due only when it is later than the last dispatched one.
// The zone is resolved on every call so DST changes need no care.
func Due(sub models.Subscription, now time.Time) (date string, due bool, err error) {
	if !sub.Enabled || !sub.Configured() {
		return "", false, nil
	}
	loc, err := utils.LoadZone(*sub.Timezone)
	if err != nil {
		return "", false, err
	}
	at, err := utils.ParseClock(*sub.SendTime)
	if err != nil {
		return "", false, err
	}

	date, clock := utils.LocalDay(now, loc)
	if clock < at {
		return date, false, nil
	}
	// дата должна быть строго позже последней отправки, иначе при
	// откате часов или смене пояса план уйдёт повторно
	if sub.LastDispatchedDate != nil && *sub.LastDispatchedDate >= date {
		return date, false, nil
	}
	return date, true, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

// Tick runs one dispatch pass. Failures of single subscriptions are logged
// and counted, only a failure to load subscriptions is returned.
func (d *Dispatcher) Tick(ctx context.Context) (Report, error) {
	started := d.clock.Now()
	log := d.log.With("tick", uuid.NewString())

	subs, err := d.dir.ListDispatchable(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list subscriptions: %w", err)
	}

	rep := Report{Checked: len(subs)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	for _, sub := range subs {
		sub := sub
		date, due, err := Due(sub, started)
		if err != nil {
			log.Warn("skip misconfigured subscription", "user_id", sub.UserID, "err", err)
			continue
		}
		if !due {
			continue
		}
		rep.Due++

		g.Go(func() error {
			res := d.dispatch(ctx, log, sub, date)

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeSent:
				rep.Sent++
			case outcomeFailed:
				rep.Failed++
			case outcomeSkipped:
				rep.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.observeTick(rep, d.clock.Since(started))
	if rep.Due > 0 {
		log.Info("tick finished", "due", rep.Due, "sent", rep.Sent, "failed", rep.Failed, "skipped", rep.Skipped)
	}
	return rep, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, log *slog.Logger, sub models.Subscription, date string) outcome {
	log = log.With("user_id", sub.UserID, "chat_id", sub.ChatID, "date", date)

	claimed, err := d.dir.ClaimDispatch(ctx, sub.UserID, date, d.clock.Now(), d.cfg.Lease)
	if err != nil {
		log.Error("claim dispatch", "err", err)
		return outcomeFailed
	}
	if !claimed {
		log.Debug("already claimed or dispatched")
		return outcomeSkipped
	}

	entries, err := d.plans.PlanEntriesByDate(ctx, sub.UserID, date)
	if err != nil {
		log.Error("load plan", "err", err)
		d.release(ctx, log, sub.UserID, date)
		return outcomeFailed
	}

	if err := d.sender.Send(ctx, sub.ChatID, messages.RenderPlan(date, entries), nil); err != nil {
		log.Warn("send plan", "err", err)
		d.release(ctx, log, sub.UserID, date)
		return outcomeFailed
	}

	if err := d.dir.CompleteDispatch(ctx, sub.UserID, date); err != nil {
		// claim висит до конца lease, потом возможна повторная отправка
		log.Error("mark dispatched", "err", err)
	}
	log.Info("plan dispatched", "entries", len(entries))
	return outcomeSent
}

func (d *Dispatcher) release(ctx context.Context, log *slog.Logger, userID int64, date string) {
	if err := d.dir.ReleaseDispatch(ctx, userID, date); err != nil {
		log.Error("release claim", "err", err)
	}
}

// Start runs Tick every cfg.Interval until ctx is done. A tick that takes
// longer than the interval delays the next one instead of overlapping it.
func (d *Dispatcher) Start(ctx context.Context) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithClock(d.clock),
		gocron.WithLogger(d.log),
	)
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(d.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := d.Tick(ctx); err != nil {
				d.log.Error("dispatch tick", "err", err)
			}
		}),
		gocron.WithName("daily-plan-dispatch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	s.Start()
	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			d.log.Warn("scheduler shutdown", "err", err)
		}
	}()
	return s, nil
}
