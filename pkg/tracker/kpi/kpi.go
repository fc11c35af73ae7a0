package kpi

import (
	"encoding/json"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/MaineK00n/vulstrack/pkg/tracker/consolidate"
	"github.com/MaineK00n/vulstrack/pkg/tracker/filter"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

const (
	LabelClosedAlerts  = "Alertes cloturées"
	LabelOngoingAlerts = "Alertes en cours"
)

// StatusCounts counts consolidated (bulletin, client) pairs per resolved status.
type StatusCounts map[types.Status]int

func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Distribution holds Counts when computed for one client, ByClient otherwise.
type Distribution struct {
	Client   string
	Counts   StatusCounts
	ByClient map[string]StatusCounts
}

func (d Distribution) Total() int {
	if d.Client != "" {
		return d.Counts.Total()
	}
	n := 0
	for _, c := range d.ByClient {
		n += c.Total()
	}
	return n
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	if d.Client != "" {
		return json.Marshal(d.Counts)
	}
	return json.Marshal(d.ByClient)
}

type SLACounts struct {
	WithinSLA   int `json:"WithinSLA"`
	BreachedSLA int `json:"BreachedSLA"`
}

type OpenClosed struct {
	Open int `json:"Open"`
	Clos int `json:"Clos"`
}

type Month struct {
	Month       string `json:"month"`
	DisplayName string `json:"display_name"`
}

type Evolution struct {
	Months      []string                  `json:"months"`
	Data        map[string]EvolutionMonth `json:"data"`
	Statuses    []types.Status            `json:"statuses"`
	TotalMonths int                       `json:"total_months"`
}

type EvolutionMonth struct {
	DisplayName string       `json:"display_name"`
	Year        string       `json:"year"`
	Statuses    StatusCounts `json:"statuses"`
}

type Comprehensive struct {
	Months []string                      `json:"months"`
	Data   map[string]ComprehensiveMonth `json:"data"`
}

type ComprehensiveMonth struct {
	MonthName            string            `json:"month_name"`
	Vulnerabilities      map[RiskLabel]int `json:"vulnerabilities"`
	Statut               map[string]int    `json:"statut"`
	TotalVulnerabilities int               `json:"total_vulnerabilities"`
	TotalClosed          int               `json:"total_closed"`
	TotalOngoing         int               `json:"total_ongoing"`
	TreatmentPercentage  int               `json:"treatment_percentage"`
}

// StatusDistribution counts resolved statuses. With an empty client the counts
// are split per client.
func StatusDistribution(rows []types.JoinedRow, client string) (Distribution, []error) {
	gs, errs := consolidate.GroupRows(rows)

	d := Distribution{Client: client}
	if client != "" {
		d.Counts = StatusCounts{}
	} else {
		d.ByClient = map[string]StatusCounts{}
	}
	for _, g := range gs {
		s := consolidate.ResolveStatus(g.Rows)
		if client != "" {
			d.Counts[s]++
			continue
		}
		if _, ok := d.ByClient[g.Client]; !ok {
			d.ByClient[g.Client] = StatusCounts{}
		}
		d.ByClient[g.Client][s]++
	}
	return d, errs
}

// SLACompliance counts consolidated records within and beyond their SLA.
// Records whose SLA cannot be computed are left out of both buckets.
func SLACompliance(rows []types.JoinedRow) (SLACounts, []error) {
	rs, errs := consolidate.Consolidate(rows)

	var c SLACounts
	for _, r := range rs {
		switch r.SLA {
		case types.SLAWithin:
			c.WithinSLA++
		case types.SLABreached:
			c.BreachedSLA++
		}
	}
	return c, errs
}

// OpenVsClosed counts records resolved to Open against records resolved to any
// closed status. Other statuses are in neither bucket.
func OpenVsClosed(rows []types.JoinedRow) (OpenClosed, []error) {
	gs, errs := consolidate.GroupRows(rows)

	var c OpenClosed
	for _, g := range gs {
		switch s := consolidate.ResolveStatus(g.Rows); {
		case s == types.StatusOpen:
			c.Open++
		case s.IsClosed():
			c.Clos++
		}
	}
	return c, errs
}

type monthlyGroup struct {
	month  string
	status types.Status
	group  consolidate.Group
}

// byMonth resolves each group and keys it by the month of its release date.
// Groups without a valid release date are skipped.
func byMonth(rows []types.JoinedRow) ([]monthlyGroup, []error) {
	gs, errs := consolidate.GroupRows(rows)

	ms := make([]monthlyGroup, 0, len(gs))
	for _, g := range gs {
		m, ok := MonthOf(consolidate.Representative(g.Rows).Fact.ReleaseDate)
		if !ok {
			continue
		}
		ms = append(ms, monthlyGroup{month: m, status: consolidate.ResolveStatus(g.Rows), group: g})
	}
	return ms, errs
}

// MonthlyTrend counts resolved statuses per release month for records released
// on or after since.
func MonthlyTrend(rows []types.JoinedRow, since string) (map[string]StatusCounts, []error) {
	ms, errs := byMonth(rows)

	t := map[string]StatusCounts{}
	for _, m := range ms {
		if consolidate.Representative(m.group.Rows).Fact.ReleaseDate < since {
			continue
		}
		if _, ok := t[m.month]; !ok {
			t[m.month] = StatusCounts{}
		}
		t[m.month][m.status]++
	}
	return t, errs
}

// MonthlyEvolution builds a month by status matrix over months. Every month of
// months is present and every observed status is zero-filled in every month.
func MonthlyEvolution(rows []types.JoinedRow, months []string) (Evolution, []error) {
	ms, errs := byMonth(rows)

	e := Evolution{
		Months:   sortedMonths(months),
		Data:     make(map[string]EvolutionMonth, len(months)),
		Statuses: []types.Status{},
	}
	for _, m := range e.Months {
		name, year := DisplayName(m)
		e.Data[m] = EvolutionMonth{DisplayName: name, Year: year, Statuses: StatusCounts{}}
	}
	for _, m := range ms {
		em, ok := e.Data[m.month]
		if !ok {
			continue
		}
		em.Statuses[m.status]++
		if !slices.Contains(e.Statuses, m.status) {
			e.Statuses = append(e.Statuses, m.status)
		}
	}
	slices.SortFunc(e.Statuses, types.CompareStatus)
	for _, em := range e.Data {
		for _, s := range e.Statuses {
			if _, ok := em.Statuses[s]; !ok {
				em.Statuses[s] = 0
			}
		}
	}
	e.TotalMonths = len(e.Months)
	return e, errs
}

// ComprehensiveTable counts records per month by normalized risk and by status.
// An empty months covers every month with data; otherwise exactly months are
// reported, including empty ones.
func ComprehensiveTable(rows []types.JoinedRow, months []string) (Comprehensive, []error) {
	ms, errs := byMonth(rows)

	if len(months) == 0 {
		months = lo.Uniq(lo.Map(ms, func(m monthlyGroup, _ int) string { return m.month }))
	}
	c := Comprehensive{
		Months: sortedMonths(months),
		Data:   make(map[string]ComprehensiveMonth, len(months)),
	}
	for _, m := range c.Months {
		c.Data[m] = newComprehensiveMonth(m)
	}

	for _, m := range ms {
		cm, ok := c.Data[m.month]
		if !ok {
			continue
		}
		cm.Vulnerabilities[groupRisk(m.group)]++
		cm.Statut[string(m.status)]++
		cm.TotalVulnerabilities++
		switch {
		case m.status.IsClosed():
			cm.Statut[LabelClosedAlerts]++
			cm.TotalClosed++
		case m.status.IsOngoing():
			cm.Statut[LabelOngoingAlerts]++
			cm.TotalOngoing++
		}
		c.Data[m.month] = cm
	}

	for m, cm := range c.Data {
		cm.TreatmentPercentage = TreatmentPercentage(cm.TotalClosed, cm.TotalVulnerabilities)
		c.Data[m] = cm
	}
	return c, errs
}

func newComprehensiveMonth(month string) ComprehensiveMonth {
	name, _ := DisplayName(month)
	cm := ComprehensiveMonth{
		MonthName:       name,
		Vulnerabilities: make(map[RiskLabel]int, len(RiskLabels())),
		Statut:          make(map[string]int, len(types.Statuses())+2),
	}
	for _, l := range RiskLabels() {
		cm.Vulnerabilities[l] = 0
	}
	for _, s := range types.Statuses() {
		cm.Statut[string(s)] = 0
	}
	cm.Statut[LabelClosedAlerts] = 0
	cm.Statut[LabelOngoingAlerts] = 0
	return cm
}

// groupRisk takes the smallest non-empty risk and risk level across the rows of g.
func groupRisk(g consolidate.Group) RiskLabel {
	risks := lo.Compact(lo.Map(g.Rows, func(r types.JoinedRow, _ int) string { return r.Fact.Risk }))
	levels := lo.Compact(lo.Map(g.Rows, func(r types.JoinedRow, _ int) string { return r.Fact.RiskLevel }))
	return NormalizeRisk(lo.Min(risks), lo.Min(levels))
}

// TreatmentPercentage is 100 * closed / total rounded half to even, 0 when total is 0.
func TreatmentPercentage(closed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(100 * float64(closed) / float64(total)))
}

// AvailableMonths lists the release months present in rows, newest first.
func AvailableMonths(rows []types.JoinedRow) []Month {
	ms := lo.Uniq(lo.FilterMap(rows, func(r types.JoinedRow, _ int) (string, bool) {
		if r.Fact == nil {
			return "", false
		}
		return MonthOf(r.Fact.ReleaseDate)
	}))
	slices.Sort(ms)
	slices.Reverse(ms)

	vs := make([]Month, 0, len(ms))
	for _, m := range ms {
		name, year := DisplayName(m)
		vs = append(vs, Month{Month: m, DisplayName: name + " " + year})
	}
	return vs
}

// MonthOf returns the "YYYY-MM" month of a "YYYY-MM-DD" date.
func MonthOf(date string) (string, bool) {
	t, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return "", false
	}
	return t.Format(filter.MonthLayout), true
}

// DisplayName returns the English month name and the year of a "YYYY-MM" month.
func DisplayName(month string) (string, string) {
	t, err := filter.ParseMonth(month)
	if err != nil {
		return month, ""
	}
	return t.Month().String(), t.Format("2006")
}

// LastMonths returns the n months ending with the month of now, oldest first.
func LastMonths(now time.Time, n int) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	ms := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		ms = append(ms, first.AddDate(0, -i, 0).Format(filter.MonthLayout))
	}
	return ms
}

// WindowStart returns the first release date covered by a window of n months.
func WindowStart(now time.Time, n int) string {
	return now.AddDate(0, -n, 0).Format(types.DateLayout)
}

func sortedMonths(months []string) []string {
	ms := lo.Uniq(months)
	slices.Sort(ms)
	return ms
}
