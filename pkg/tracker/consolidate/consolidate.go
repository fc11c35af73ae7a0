package consolidate

import (
	"cmp"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/MaineK00n/vulstrack/pkg/tracker/sla"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

// Group is every tracking row of one (bulletin, client) pair whose fact exists.
type Group struct {
	BulletinID string
	Client     string
	Rows       []types.JoinedRow
}

type groupKey struct {
	bulletinID string
	client     string
}

// GroupRows groups rows by (bulletin, client). Rows without a fact are dropped and
// reported as one DataIntegrityError per pair; a pair left without rows is
// omitted. Groups come back ordered by bulletin then client, rows by CVE then id.
func GroupRows(rows []types.JoinedRow) ([]Group, []error) {
	gm := make(map[groupKey]*Group)
	dm := make(map[groupKey][]string)
	var keys []groupKey
	for _, r := range rows {
		k := groupKey{bulletinID: r.BulletinID, client: r.Client}
		if _, ok := gm[k]; !ok {
			if _, ok := dm[k]; !ok {
				keys = append(keys, k)
			}
		}
		if r.Fact == nil {
			dm[k] = append(dm[k], r.CVEID)
			continue
		}
		g, ok := gm[k]
		if !ok {
			g = &Group{BulletinID: r.BulletinID, Client: r.Client}
			gm[k] = g
		}
		g.Rows = append(g.Rows, r)
	}

	slices.SortFunc(keys, func(a, b groupKey) int {
		return cmp.Or(cmp.Compare(a.bulletinID, b.bulletinID), cmp.Compare(a.client, b.client))
	})

	var (
		gs   = make([]Group, 0, len(gm))
		errs []error
	)
	for _, k := range keys {
		if cves, ok := dm[k]; ok {
			slices.Sort(cves)
			errs = append(errs, &types.DataIntegrityError{BulletinID: k.bulletinID, Client: k.client, CVEs: slices.Compact(cves)})
		}
		g, ok := gm[k]
		if !ok {
			continue
		}
		slices.SortFunc(g.Rows, func(a, b types.JoinedRow) int {
			return cmp.Or(cmp.Compare(a.CVEID, b.CVEID), cmp.Compare(a.ID, b.ID))
		})
		gs = append(gs, *g)
	}
	return gs, errs
}

// latest orders rows by treatment date, then row id, so that the last element wins.
func latest(a, b types.JoinedRow) int {
	return cmp.Or(cmp.Compare(a.TreatmentDate, b.TreatmentDate), cmp.Compare(a.ID, b.ID))
}

// ResolveStatus returns the status of highest priority in rows. Among rows of
// equal priority, the latest treated row decides.
func ResolveStatus(rows []types.JoinedRow) types.Status {
	if len(rows) == 0 {
		return ""
	}
	return slices.MinFunc(rows, func(a, b types.JoinedRow) int {
		return cmp.Or(cmp.Compare(a.Status.Priority(), b.Status.Priority()), -latest(a, b))
	}).Status
}

// ResolveTreatmentDate returns the latest treatment date among the closed rows
// when status is closed, otherwise among the rows still in progress, falling
// back to every row.
func ResolveTreatmentDate(rows []types.JoinedRow, status types.Status) string {
	if r, ok := latestOf(rows, func(r types.JoinedRow) bool { return r.Status.IsClosed() == status.IsClosed() }); ok {
		return r.TreatmentDate
	}
	if r, ok := latestOf(rows, func(types.JoinedRow) bool { return true }); ok {
		return r.TreatmentDate
	}
	return ""
}

// ResolveComment returns the comment of the latest closed row when status is
// closed, otherwise of the latest row carrying status.
func ResolveComment(rows []types.JoinedRow, status types.Status) string {
	match := func(r types.JoinedRow) bool { return r.Status == status }
	if status.IsClosed() {
		match = func(r types.JoinedRow) bool { return r.Status.IsClosed() }
	}
	if r, ok := latestOf(rows, match); ok {
		return r.Comment
	}
	return ""
}

func latestOf(rows []types.JoinedRow, match func(types.JoinedRow) bool) (types.JoinedRow, bool) {
	ms := lo.Filter(rows, func(r types.JoinedRow, _ int) bool { return match(r) })
	if len(ms) == 0 {
		return types.JoinedRow{}, false
	}
	return slices.MaxFunc(ms, latest), true
}

// Representative returns the row whose fact describes the group: lowest CVE, then lowest id.
func Representative(rows []types.JoinedRow) types.JoinedRow {
	return slices.MinFunc(rows, func(a, b types.JoinedRow) int {
		return cmp.Or(cmp.Compare(a.CVEID, b.CVEID), cmp.Compare(a.ID, b.ID))
	})
}

// Resolve builds the consolidated record of a non-empty group.
func Resolve(g Group) types.Record {
	status := ResolveStatus(g.Rows)
	rep := Representative(g.Rows)
	cves := lo.Uniq(lo.Map(g.Rows, func(r types.JoinedRow, _ int) string { return r.CVEID }))
	slices.Sort(cves)

	r := types.Record{
		ID:               rep.ID,
		BulletinID:       g.BulletinID,
		Client:           g.Client,
		CVEs:             strings.Join(cves, ", "),
		CVEIDs:           cves,
		Product:          rep.Fact.Product,
		Description:      rep.Fact.Description,
		ReleaseDate:      rep.Fact.ReleaseDate,
		Risk:             rep.Fact.Risk,
		RiskLevel:        rep.Fact.RiskLevel,
		CVSSScore:        rep.Fact.CVSSScore,
		ProcessingTime:   rep.Fact.ProcessingTime,
		Mitigation:       rep.Fact.Mitigation,
		Reference:        rep.Fact.Reference,
		NotificationDate: rep.Fact.NotificationDate,
		Status:           status,
		ResponsibleTeam:  rep.ResponsibleTeam,
		TreatmentDate:    ResolveTreatmentDate(g.Rows, status),
		Comment:          ResolveComment(g.Rows, status),
	}
	r.AgeDays, r.SLA = sla.Calculate(r.ReleaseDate, r.TreatmentDate, r.ProcessingTime)
	return r
}

// Consolidate merges joined rows into one record per (bulletin, client), ordered
// by release date descending, then bulletin, then client. Pairs whose facts are
// missing are reported and left out.
func Consolidate(rows []types.JoinedRow) ([]types.Record, []error) {
	gs, errs := GroupRows(rows)

	rs := make([]types.Record, 0, len(gs))
	for _, g := range gs {
		rs = append(rs, Resolve(g))
	}
	slices.SortStableFunc(rs, func(a, b types.Record) int {
		return cmp.Or(
			cmp.Compare(b.ReleaseDate, a.ReleaseDate),
			cmp.Compare(a.BulletinID, b.BulletinID),
			cmp.Compare(a.Client, b.Client),
		)
	})
	return rs, errs
}
