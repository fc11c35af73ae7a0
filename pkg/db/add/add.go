package add

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
	progressbar "github.com/schollz/progressbar/v3"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	dbInit "github.com/MaineK00n/vulstrack/pkg/db/init"
	"github.com/MaineK00n/vulstrack/pkg/ingest"
	"github.com/MaineK00n/vulstrack/pkg/version"
)

type options struct {
	dbtype string
	dbpath string
	dbopts db.DBOptions

	noProgress bool
	debug      bool
}

type Option interface {
	apply(*options)
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

type noProgressOption bool

func (o noProgressOption) apply(opts *options) {
	opts.noProgress = bool(o)
}

func WithNoProgress(noProgress bool) Option {
	return noProgressOption(noProgress)
}

type debugOption bool

func (o debugOption) apply(opts *options) {
	opts.debug = bool(o)
}

func WithDebug(debug bool) Option {
	return debugOption(debug)
}

// Add imports the bulletin files at paths into the tracking store.
func Add(paths []string, opts ...Option) (ingest.Result, error) {
	options := &options{
		dbtype:     "sqlite3",
		dbpath:     dbInit.DefaultDBPath(),
		noProgress: false,
		debug:      false,
	}
	for _, o := range opts {
		o.apply(options)
	}

	dbc, err := db.Open(db.Config{
		Type:    options.dbtype,
		Path:    options.dbpath,
		Debug:   options.debug,
		Options: options.dbopts,
	})
	if err != nil {
		return ingest.Result{}, errors.Wrap(err, "open db")
	}
	defer dbc.Close()

	slog.Info("Get Metadata")
	meta, err := dbc.GetMetadata()
	if err != nil {
		return ingest.Result{}, errors.Wrap(err, "get metadata")
	}
	if meta == nil {
		return ingest.Result{}, errors.New("metadata not found. run `vulstrack db init` first")
	}
	if meta.SchemaVersion != db.SchemaVersion {
		return ingest.Result{}, errors.Errorf("unexpected schema version. expected: %d, actual: %d", db.SchemaVersion, meta.SchemaVersion)
	}

	slog.Info("Load Bulletins", "files", len(paths))
	var bs []ingest.Bulletin
	for _, p := range paths {
		vs, err := ingest.Load(p)
		if err != nil {
			return ingest.Result{}, errors.Wrapf(err, "load %s", p)
		}
		bs = append(bs, vs...)
	}

	clients, err := dbc.GetClientsWithProducts()
	if err != nil {
		return ingest.Result{}, errors.Wrap(err, "get clients with products")
	}

	pb := func() *progressbar.ProgressBar {
		if options.noProgress {
			return progressbar.DefaultSilent(int64(len(bs)))
		}
		return progressbar.Default(int64(len(bs)), "importing")
	}()
	defer pb.Finish()

	slog.Info("Put Bulletins", "bulletins", len(bs))
	var res ingest.Result
	now := time.Now()
	for _, b := range bs {
		r, err := ingest.Ingest(dbc, b, clients, now)
		if err != nil {
			return ingest.Result{}, errors.Wrapf(err, "ingest %s", b.ID)
		}
		if r.Skipped > 0 {
			slog.Debug("Skip Bulletin, no client matched", "bulletin", b.ID, "title", b.Title)
		}
		res.Add(r)
		_ = pb.Add(1)
	}

	slog.Info("Put Metadata")
	if err := dbc.PutMetadata(dbTypes.Metadata{
		SchemaVersion: db.SchemaVersion,
		CreatedBy:     meta.CreatedBy,
		LastModified:  time.Now().UTC(),
	}); err != nil {
		return ingest.Result{}, errors.Wrap(err, "put metadata")
	}

	slog.Info("Imported", "bulletins", res.Bulletins, "skipped", res.Skipped, "facts", res.Facts, "rows", res.Rows, "by", version.String())
	return res, nil
}
