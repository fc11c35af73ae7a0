package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/rueidis"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	"github.com/MaineK00n/vulstrack/pkg/db/common/redis"
	dbInit "github.com/MaineK00n/vulstrack/pkg/db/init"
	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/tracker/rollover"
)

type options struct {
	listen string

	dbtype string
	dbpath string
	dbopts db.DBOptions

	rollover         string
	rolloverInterval time.Duration
	redis            string

	debug bool
}

type Option interface {
	apply(*options)
}

type listenOption string

func (o listenOption) apply(opts *options) {
	opts.listen = string(o)
}

func WithListen(listen string) Option {
	return listenOption(listen)
}

type dbtypeOption string

func (o dbtypeOption) apply(opts *options) {
	opts.dbtype = string(o)
}

func WithDBType(dbtype string) Option {
	return dbtypeOption(dbtype)
}

type dbpathOption string

func (o dbpathOption) apply(opts *options) {
	opts.dbpath = string(o)
}

func WithDBPath(dbpath string) Option {
	return dbpathOption(dbpath)
}

type dboptsOption db.DBOptions

func (o dboptsOption) apply(opts *options) {
	opts.dbopts = db.DBOptions(o)
}

func WithDBOptions(dbopts db.DBOptions) Option {
	return dboptsOption(dbopts)
}

type rolloverOption string

func (o rolloverOption) apply(opts *options) {
	opts.rollover = string(o)
}

// WithRollover selects rollover.ModeOnRead or rollover.ModeScheduled.
func WithRollover(mode string) Option {
	return rolloverOption(mode)
}

type rolloverIntervalOption time.Duration

func (o rolloverIntervalOption) apply(opts *options) {
	opts.rolloverInterval = time.Duration(o)
}

func WithRolloverInterval(interval time.Duration) Option {
	return rolloverIntervalOption(interval)
}

type redisOption string

func (o redisOption) apply(opts *options) {
	opts.redis = string(o)
}

// WithRedis shares the scheduled rollover lock through the redis at addr.
func WithRedis(addr string) Option {
	return redisOption(addr)
}

type debugOption bool

func (o debugOption) apply(opts *options) {
	opts.debug = bool(o)
}

func WithDebug(debug bool) Option {
	return debugOption(debug)
}

// Serve runs the HTTP API until ctx is done.
func Serve(ctx context.Context, opts ...Option) error {
	options := &options{
		listen:           "127.0.0.1:5515",
		dbtype:           "sqlite3",
		dbpath:           dbInit.DefaultDBPath(),
		rollover:         rollover.ModeOnRead,
		rolloverInterval: time.Hour,
		debug:            false,
	}
	for _, o := range opts {
		o.apply(options)
	}

	switch options.rollover {
	case rollover.ModeOnRead, rollover.ModeScheduled:
	default:
		return errors.Errorf("unexpected rollover mode. expected: %q, actual: %q", []string{rollover.ModeOnRead, rollover.ModeScheduled}, options.rollover)
	}
	if options.rollover == rollover.ModeScheduled && options.rolloverInterval <= 0 {
		return errors.Errorf("unexpected rollover interval. expected: > 0, actual: %s", options.rolloverInterval)
	}

	dbc, err := db.Open(db.Config{
		Type:    options.dbtype,
		Path:    options.dbpath,
		Debug:   options.debug,
		Options: options.dbopts,
	})
	if err != nil {
		return errors.Wrap(err, "open db")
	}
	defer dbc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	if options.rollover == rollover.ModeScheduled {
		locker, closeLocker, err := newLocker(options.redis)
		if err != nil {
			return errors.Wrap(err, "new locker")
		}
		defer closeLocker()

		s := rollover.NewScheduler(dbc, rollover.WithInterval(options.rolloverInterval), rollover.WithLocker(locker))
		slog.Info("Start Rollover Scheduler", "interval", options.rolloverInterval, "instance", s.InstanceID())
		go func() {
			errc <- errors.Wrap(s.Run(ctx), "run rollover scheduler")
		}()
	}

	e := New(tracker.New(dbc, tracker.WithRolloverOnRead(options.rollover == rollover.ModeOnRead)), dbc)
	e.Debug = options.debug
	go func() {
		slog.Info("Start Server", "listen", options.listen, "rollover", options.rollover)
		if err := e.Start(options.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Wrap(err, "start server")
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	slog.Info("Shutdown Server")
	sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer scancel()
	if err := e.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutdown server")
	}
	return nil
}

func newLocker(addr string) (rollover.Locker, func(), error) {
	if addr == "" {
		return rollover.NopLocker{}, func() {}, nil
	}

	c := &redis.Connection{Config: &rueidis.ClientOption{InitAddress: []string{addr}}}
	if err := c.Open(); err != nil {
		return nil, nil, errors.Wrapf(err, "open redis %s", addr)
	}
	return c, func() { _ = c.Close() }, nil
}
