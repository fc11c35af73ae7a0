package tracker

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	"github.com/MaineK00n/vulstrack/pkg/tracker/consolidate"
	"github.com/MaineK00n/vulstrack/pkg/tracker/filter"
	"github.com/MaineK00n/vulstrack/pkg/tracker/kpi"
	"github.com/MaineK00n/vulstrack/pkg/tracker/rollover"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

// DefaultWindow is the number of months covered by trends when none is given.
const DefaultWindow = 6

type options struct {
	rolloverOnRead bool
	now            func() time.Time
}

type Option interface {
	apply(*options)
}

type rolloverOnReadOption bool

func (o rolloverOnReadOption) apply(opts *options) {
	opts.rolloverOnRead = bool(o)
}

// WithRolloverOnRead rolls treatment dates over before every read that reports
// ages. Disable it when a rollover.Scheduler runs instead.
func WithRolloverOnRead(b bool) Option {
	return rolloverOnReadOption(b)
}

type clockOption func() time.Time

func (o clockOption) apply(opts *options) {
	opts.now = o
}

func WithClock(now func() time.Time) Option {
	return clockOption(now)
}

// Tracker answers tracking queries over a store. It holds no state between calls.
type Tracker struct {
	db   db.DB
	opts options
}

func New(dbc db.DB, opts ...Option) *Tracker {
	o := options{
		rolloverOnRead: true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Tracker{db: dbc, opts: o}
}

// Query narrows consolidated reads. Month, when set, replaces StartDate and EndDate.
type Query struct {
	Client    string
	StartDate string
	EndDate   string
	Month     string
}

func (q Query) filter() (dbTypes.Filter, error) {
	f := dbTypes.Filter{Client: q.Client, StartDate: q.StartDate, EndDate: q.EndDate}
	if q.Month != "" {
		start, end, err := filter.MonthRange(q.Month)
		if err != nil {
			return dbTypes.Filter{}, err
		}
		f.StartDate, f.EndDate = start, end
		return f, nil
	}
	if err := filter.ValidateDate("start_date", q.StartDate); err != nil {
		return dbTypes.Filter{}, err
	}
	if err := filter.ValidateDate("end_date", q.EndDate); err != nil {
		return dbTypes.Filter{}, err
	}
	return f, nil
}

func (t *Tracker) today() string {
	return t.opts.now().Local().Format(types.DateLayout)
}

// Rollover moves the treatment date of ongoing rows to today.
func (t *Tracker) Rollover() (int64, error) {
	n, err := rollover.Rollover(t.db, t.opts.now())
	if err != nil {
		return 0, errors.Wrap(err, "rollover")
	}
	slog.Debug("Rollover Treatment Dates", "date", t.today(), "rows", n)
	return n, nil
}

func (t *Tracker) rolloverOnRead() error {
	if !t.opts.rolloverOnRead {
		return nil
	}
	if _, err := t.Rollover(); err != nil {
		return errors.Wrap(err, "rollover on read")
	}
	return nil
}

func (t *Tracker) rows(f dbTypes.Filter) ([]types.JoinedRow, error) {
	rs, err := t.db.GetJoinedRows(f)
	if err != nil {
		return nil, errors.Wrap(err, "get joined rows")
	}
	return rs, nil
}

func logIntegrity(errs []error) {
	for _, err := range errs {
		var ie *types.DataIntegrityError
		if errors.As(err, &ie) {
			slog.Warn("Skip Dangling Tracking Rows", "bulletin", ie.BulletinID, "client", ie.Client, "cves", ie.CVEs)
			continue
		}
		slog.Warn("Skip Tracking Rows", "err", err)
	}
}

// Records returns one consolidated record per (bulletin, client) matching q.
func (t *Tracker) Records(q Query) ([]types.Record, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	if err := t.rolloverOnRead(); err != nil {
		return nil, err
	}

	rows, err := t.rows(f)
	if err != nil {
		return nil, err
	}
	rs, errs := consolidate.Consolidate(rows)
	logIntegrity(errs)
	return rs, nil
}

func monthFilter(client, month string) (dbTypes.Filter, error) {
	f := dbTypes.Filter{Client: client}
	if month == "" {
		return f, nil
	}
	if _, err := filter.ParseMonth(month); err != nil {
		return dbTypes.Filter{}, err
	}
	f.Months = []string{month}
	return f, nil
}

func (t *Tracker) StatusDistribution(client, month string) (kpi.Distribution, error) {
	f, err := monthFilter(client, month)
	if err != nil {
		return kpi.Distribution{}, err
	}
	rows, err := t.rows(f)
	if err != nil {
		return kpi.Distribution{}, err
	}
	d, errs := kpi.StatusDistribution(rows, client)
	logIntegrity(errs)
	return d, nil
}

func (t *Tracker) SLACompliance(client, month string) (kpi.SLACounts, error) {
	f, err := Query{Client: client, Month: month}.filter()
	if err != nil {
		return kpi.SLACounts{}, err
	}
	if err := t.rolloverOnRead(); err != nil {
		return kpi.SLACounts{}, err
	}
	rows, err := t.rows(f)
	if err != nil {
		return kpi.SLACounts{}, err
	}
	c, errs := kpi.SLACompliance(rows)
	logIntegrity(errs)
	return c, nil
}

// MonthlyTrend counts statuses per month over the last window months.
func (t *Tracker) MonthlyTrend(client string, window int) (map[string]kpi.StatusCounts, error) {
	if err := filter.ValidateWindow(window); err != nil {
		return nil, err
	}
	since := kpi.WindowStart(t.opts.now(), window)
	rows, err := t.rows(dbTypes.Filter{Client: client, StartDate: since})
	if err != nil {
		return nil, err
	}
	m, errs := kpi.MonthlyTrend(rows, since)
	logIntegrity(errs)
	return m, nil
}

// MonthlyEvolution reports months, or the last DefaultWindow months when none are given.
func (t *Tracker) MonthlyEvolution(client string, months []string) (kpi.Evolution, error) {
	ms, err := filter.ValidateMonths(months)
	if err != nil {
		return kpi.Evolution{}, err
	}
	if len(ms) == 0 {
		ms = kpi.LastMonths(t.opts.now(), DefaultWindow)
	}
	rows, err := t.rows(dbTypes.Filter{Client: client, Months: ms})
	if err != nil {
		return kpi.Evolution{}, err
	}
	e, errs := kpi.MonthlyEvolution(rows, ms)
	logIntegrity(errs)
	return e, nil
}

func (t *Tracker) OpenVsClosed(client, month string) (kpi.OpenClosed, error) {
	f, err := monthFilter(client, month)
	if err != nil {
		return kpi.OpenClosed{}, err
	}
	rows, err := t.rows(f)
	if err != nil {
		return kpi.OpenClosed{}, err
	}
	c, errs := kpi.OpenVsClosed(rows)
	logIntegrity(errs)
	return c, nil
}

// ComprehensiveTable covers months, or the whole history when none are given.
func (t *Tracker) ComprehensiveTable(client string, months []string) (kpi.Comprehensive, error) {
	ms, err := filter.ValidateMonths(months)
	if err != nil {
		return kpi.Comprehensive{}, err
	}
	rows, err := t.rows(dbTypes.Filter{Client: client, Months: ms})
	if err != nil {
		return kpi.Comprehensive{}, err
	}
	c, errs := kpi.ComprehensiveTable(rows, ms)
	logIntegrity(errs)
	return c, nil
}

func (t *Tracker) AvailableMonths(client string) ([]kpi.Month, error) {
	rows, err := t.rows(dbTypes.Filter{Client: client})
	if err != nil {
		return nil, err
	}
	return kpi.AvailableMonths(rows), nil
}

type Summary struct {
	StatusDistribution kpi.Distribution            `json:"status_distribution"`
	SLACompliance      kpi.SLACounts               `json:"sla_compliance"`
	MonthlyTrend       map[string]kpi.StatusCounts `json:"monthly_trend"`
	OpenVsClosed       kpi.OpenClosed              `json:"open_vs_closed"`
}

func (t *Tracker) Summary(client, month string) (Summary, error) {
	var (
		s   Summary
		err error
	)
	if s.StatusDistribution, err = t.StatusDistribution(client, month); err != nil {
		return Summary{}, errors.Wrap(err, "status distribution")
	}
	if s.SLACompliance, err = t.SLACompliance(client, month); err != nil {
		return Summary{}, errors.Wrap(err, "sla compliance")
	}
	if s.MonthlyTrend, err = t.MonthlyTrend(client, DefaultWindow); err != nil {
		return Summary{}, errors.Wrap(err, "monthly trend")
	}
	if s.OpenVsClosed, err = t.OpenVsClosed(client, month); err != nil {
		return Summary{}, errors.Wrap(err, "open vs closed")
	}
	return s, nil
}

type Overview struct {
	ClientsSummary map[string]Summary `json:"clients_summary"`
	TotalCounts    struct {
		Status kpi.OpenClosed `json:"status"`
		SLA    kpi.SLACounts  `json:"sla"`
	} `json:"total_counts"`
	TotalClients int `json:"total_clients"`
}

// GlobalOverview reports totals computed over every client at once, so no pair
// is counted twice, next to the summary of each tracked client.
func (t *Tracker) GlobalOverview(month string) (Overview, error) {
	var (
		o   = Overview{ClientsSummary: map[string]Summary{}}
		err error
	)
	if o.TotalCounts.Status, err = t.OpenVsClosed("", month); err != nil {
		return Overview{}, errors.Wrap(err, "open vs closed")
	}
	if o.TotalCounts.SLA, err = t.SLACompliance("", month); err != nil {
		return Overview{}, errors.Wrap(err, "sla compliance")
	}

	cs, err := t.TrackedClients()
	if err != nil {
		return Overview{}, err
	}
	for _, c := range cs {
		s, err := t.Summary(c, month)
		if err != nil {
			return Overview{}, errors.Wrapf(err, "summary of %s", c)
		}
		o.ClientsSummary[c] = s
	}
	o.TotalClients = len(cs)
	return o, nil
}

// TrackedClients lists the clients owning at least one tracking row.
func (t *Tracker) TrackedClients() ([]string, error) {
	cs, err := t.db.GetTrackedClients()
	if err != nil {
		return nil, errors.Wrap(err, "get tracked clients")
	}
	return cs, nil
}

// Edit is an operator change to a consolidated record.
type Edit struct {
	dbTypes.TrackingUpdate
	Product *string
}

// UpdateRecord applies e to every row of the (bulletin, client) pair of row id.
func (t *Tracker) UpdateRecord(id uint, e Edit) (*types.TrackingRow, error) {
	r, err := t.db.GetTrackingRow(id)
	if err != nil {
		return nil, errors.Wrapf(err, "get tracking row %d", id)
	}

	n, err := t.db.UpdateGroup(r.BulletinID, r.Client, e.TrackingUpdate.WithTreatmentPolicy(t.today()))
	if err != nil {
		return nil, errors.Wrapf(err, "update %s %s", r.BulletinID, r.Client)
	}
	slog.Info("Update Tracking Rows", "bulletin", r.BulletinID, "client", r.Client, "rows", n)

	if e.Product != nil {
		if _, err := t.db.UpdateFact(r.BulletinID, dbTypes.FactUpdate{Product: e.Product}); err != nil {
			return nil, errors.Wrapf(err, "update product of %s", r.BulletinID)
		}
	}

	r, err = t.db.GetTrackingRow(id)
	if err != nil {
		return nil, errors.Wrapf(err, "get tracking row %d", id)
	}
	return r, nil
}

// UpdateRow applies u to row id only.
func (t *Tracker) UpdateRow(id uint, u dbTypes.TrackingUpdate) (*types.TrackingRow, error) {
	if err := t.db.UpdateTrackingRow(id, u.WithTreatmentPolicy(t.today())); err != nil {
		return nil, errors.Wrapf(err, "update tracking row %d", id)
	}
	r, err := t.db.GetTrackingRow(id)
	if err != nil {
		return nil, errors.Wrapf(err, "get tracking row %d", id)
	}
	return r, nil
}

// UpdateFact edits the descriptive fields of every CVE of a bulletin.
func (t *Tracker) UpdateFact(bulletinID string, u dbTypes.FactUpdate) (int64, error) {
	n, err := t.db.UpdateFact(bulletinID, u)
	if err != nil {
		return 0, errors.Wrapf(err, "update %s", bulletinID)
	}
	return n, nil
}

func (t *Tracker) DeleteRow(id uint) error {
	if err := t.db.DeleteTrackingRow(id); err != nil {
		return errors.Wrapf(err, "delete tracking row %d", id)
	}
	return nil
}

// DeleteRecord removes every row of a (bulletin, client) pair.
func (t *Tracker) DeleteRecord(bulletinID, client string) (int64, error) {
	n, err := t.db.DeleteGroup(bulletinID, client)
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s %s", bulletinID, client)
	}
	if n == 0 {
		return 0, errors.Wrapf(dbTypes.ErrNotFound, "%s %s", bulletinID, client)
	}
	slog.Info("Delete Tracking Rows", "bulletin", bulletinID, "client", client, "rows", n)
	return n, nil
}
