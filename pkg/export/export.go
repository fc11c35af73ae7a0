package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	utiljson "github.com/MaineK00n/vulstrack/pkg/db/common/util"
	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

type options struct {
	dir         string
	compress    bool
	concurrency int
	clients     []string
	month       string
	now         func() time.Time
}

type Option interface {
	apply(*options)
}

type dirOption string

func (o dirOption) apply(opts *options) {
	opts.dir = string(o)
}

func WithDir(dir string) Option {
	return dirOption(dir)
}

type compressOption bool

func (o compressOption) apply(opts *options) {
	opts.compress = bool(o)
}

func WithCompress(compress bool) Option {
	return compressOption(compress)
}

type concurrencyOption int

func (o concurrencyOption) apply(opts *options) {
	opts.concurrency = int(o)
}

func WithConcurrency(concurrency int) Option {
	return concurrencyOption(concurrency)
}

type clientsOption []string

func (o clientsOption) apply(opts *options) {
	opts.clients = []string(o)
}

// WithClients restricts the export to the named clients. Every tracked client
// is exported by default.
func WithClients(clients []string) Option {
	return clientsOption(clients)
}

type monthOption string

func (o monthOption) apply(opts *options) {
	opts.month = string(o)
}

func WithMonth(month string) Option {
	return monthOption(month)
}

type clockOption func() time.Time

func (o clockOption) apply(opts *options) {
	opts.now = o
}

func WithClock(now func() time.Time) Option {
	return clockOption(now)
}

// Snapshot is the content of one exported file.
type Snapshot struct {
	Run         string          `json:"run"`
	Client      string          `json:"client"`
	Month       string          `json:"month,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Summary     tracker.Summary `json:"summary"`
	Records     []types.Record  `json:"records"`
}

// Manifest describes a finished export run.
type Manifest struct {
	Run         string            `json:"run"`
	GeneratedAt time.Time         `json:"generated_at"`
	Files       map[string]string `json:"files"`
	Records     int               `json:"records"`
}

// Export writes one snapshot per client under the export directory. Treatment
// dates are rolled over once before any client is read.
func Export(ctx context.Context, dbc db.DB, opts ...Option) (Manifest, error) {
	options := &options{
		dir:         "export",
		compress:    false,
		concurrency: 4,
		now:         time.Now,
	}
	for _, o := range opts {
		o.apply(options)
	}
	if options.concurrency < 1 {
		options.concurrency = 1
	}

	t := tracker.New(dbc, tracker.WithRolloverOnRead(false), tracker.WithClock(options.now))
	if _, err := t.Rollover(); err != nil {
		return Manifest{}, errors.Wrap(err, "rollover")
	}

	clients := options.clients
	if len(clients) == 0 {
		cs, err := t.TrackedClients()
		if err != nil {
			return Manifest{}, errors.Wrap(err, "get tracked clients")
		}
		clients = cs
	}
	slices.Sort(clients)
	clients = slices.Compact(clients)

	m := Manifest{
		Run:         uuid.NewString(),
		GeneratedAt: options.now().UTC(),
		Files:       make(map[string]string, len(clients)),
	}
	slog.Info("Export Tracking Records", "run", m.Run, "clients", len(clients), "dir", options.dir)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(options.concurrency)
	for _, c := range clients {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rs, err := t.Records(tracker.Query{Client: c, Month: options.month})
			if err != nil {
				return errors.Wrapf(err, "records of %s", c)
			}
			s, err := t.Summary(c, options.month)
			if err != nil {
				return errors.Wrapf(err, "summary of %s", c)
			}

			path := filepath.Join(options.dir, Filename(c, m.Run, options.compress))
			if err := utiljson.WriteFile(path, Snapshot{
				Run:         m.Run,
				Client:      c,
				Month:       options.month,
				GeneratedAt: m.GeneratedAt,
				Summary:     s,
				Records:     rs,
			}, options.compress); err != nil {
				return errors.Wrapf(err, "write %s", path)
			}
			slog.Debug("Write Snapshot", "client", c, "records", len(rs), "path", path)

			mu.Lock()
			defer mu.Unlock()
			m.Files[c] = path
			m.Records += len(rs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Manifest{}, errors.Wrap(err, "err in goroutine")
	}

	path := filepath.Join(options.dir, fmt.Sprintf("manifest_%s%s", m.Run, utiljson.Extension(false)))
	if err := utiljson.WriteFile(path, m, false); err != nil {
		return Manifest{}, errors.Wrapf(err, "write %s", path)
	}
	return m, nil
}

// Filename is the snapshot file name of client for run. A client name that is
// not file-safe gets a short hash of the raw name, so names differing only in
// replaced characters do not share a file.
func Filename(client, run string, compress bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		default:
			return r
		}
	}, client)
	if name != client {
		name = fmt.Sprintf("%s-%s", name, uuid.NewSHA1(uuid.NameSpaceOID, []byte(client)).String()[:8])
	}
	return fmt.Sprintf("%s_%s%s", name, run, utiljson.Extension(compress))
}
