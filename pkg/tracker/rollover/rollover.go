package rollover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MaineK00n/vulstrack/pkg/types"
)

const (
	// ModeOnRead rolls treatment dates over before every consolidated read.
	ModeOnRead = "on-read"
	// ModeScheduled rolls treatment dates over from a background ticker.
	ModeScheduled = "scheduled"
)

// Store is the write primitive the rollover needs from the tracking store.
type Store interface {
	RolloverTreatmentDates(string) (int64, error)
}

// Rollover moves the treatment date of every Open, WIP, Pending and NOK row to
// the local calendar date of now. Closed rows are never touched, so running it
// again on the same day changes nothing.
func Rollover(store Store, now time.Time) (int64, error) {
	date := now.Local().Format(types.DateLayout)
	n, err := store.RolloverTreatmentDates(date)
	if err != nil {
		return 0, errors.Wrapf(err, "rollover treatment dates to %s", date)
	}
	return n, nil
}

type Locker interface {
	Lock(ctx context.Context, name, owner string, expiration time.Duration) (bool, error)
	Unlock(ctx context.Context, name, owner string) error
}

// NopLocker always grants the lock. It suits a single server instance.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func (NopLocker) Unlock(context.Context, string, string) error {
	return nil
}

type options struct {
	name       string
	instanceID string
	interval   time.Duration
	locker     Locker
	now        func() time.Time
}

type Option interface {
	apply(*options)
}

type nameOption string

func (o nameOption) apply(opts *options) {
	opts.name = string(o)
}

func WithName(name string) Option {
	return nameOption(name)
}

type instanceIDOption string

func (o instanceIDOption) apply(opts *options) {
	opts.instanceID = string(o)
}

func WithInstanceID(id string) Option {
	return instanceIDOption(id)
}

type intervalOption time.Duration

func (o intervalOption) apply(opts *options) {
	opts.interval = time.Duration(o)
}

func WithInterval(interval time.Duration) Option {
	return intervalOption(interval)
}

type lockerOption struct{ Locker }

func (o lockerOption) apply(opts *options) {
	opts.locker = o.Locker
}

func WithLocker(locker Locker) Option {
	return lockerOption{locker}
}

type clockOption func() time.Time

func (o clockOption) apply(opts *options) {
	opts.now = o
}

func WithClock(now func() time.Time) Option {
	return clockOption(now)
}

// Scheduler runs the rollover on a ticker. Among schedulers sharing a Locker,
// only the lock holder writes. The holder renews the lock for two intervals on
// every tick, so it keeps it until it stops.
type Scheduler struct {
	store Store
	opts  options

	mu      sync.Mutex
	lastRun time.Time
}

func NewScheduler(store Store, opts ...Option) *Scheduler {
	o := options{
		name:       "rollover",
		instanceID: uuid.NewString(),
		interval:   time.Hour,
		locker:     NopLocker{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Scheduler{store: store, opts: o}
}

func (s *Scheduler) InstanceID() string {
	return s.opts.instanceID
}

// LastRun returns when this instance last rolled dates over.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// RunOnce rolls dates over if the lock is granted. It reports whether it ran.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	locked, err := s.opts.locker.Lock(ctx, s.opts.name, s.opts.instanceID, 2*s.opts.interval)
	if err != nil {
		return false, errors.Wrapf(err, "lock %s", s.opts.name)
	}
	if !locked {
		slog.Debug("Skip Rollover, not the lock holder", "name", s.opts.name, "instance", s.opts.instanceID)
		return false, nil
	}

	now := s.opts.now()
	n, err := Rollover(s.store, now)
	if err != nil {
		return false, errors.Wrap(err, "rollover")
	}
	slog.Info("Rollover Treatment Dates", "date", now.Local().Format(types.DateLayout), "rows", n, "instance", s.opts.instanceID)

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return true, nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
// Failed runs are logged and retried at the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.interval <= 0 {
		return errors.Errorf("unexpected rollover interval. expected: > 0, actual: %s", s.opts.interval)
	}

	ticker := time.NewTicker(s.opts.interval)
	defer ticker.Stop()

	defer func() {
		if err := s.opts.locker.Unlock(context.WithoutCancel(ctx), s.opts.name, s.opts.instanceID); err != nil {
			slog.Warn("Failed to release rollover lock", "name", s.opts.name, "err", err)
		}
	}()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			slog.Error("Failed to rollover treatment dates", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
