package ingest

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/MaineK00n/vulstrack/pkg/types"
)

const (
	DefaultRisk      = "Important"
	DefaultRiskLevel = "Fort"
)

// Text is a JSON string, number, or list of strings.
type Text []string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return errors.Wrap(err, "unmarshal string list")
		}
		*t = ss
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "unmarshal string")
		}
		*t = Text{s}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrapf(err, "unexpected text %s", string(data))
		}
		*t = Text{n.String()}
		return nil
	}
}

// Join joins the parts with sep. A list of single characters is joined as is.
func (t Text) Join(sep string) string {
	if len(t) > 1 && lo.EveryBy(t, func(s string) bool { return len([]rune(s)) == 1 }) {
		return strings.Join(t, "")
	}
	return strings.Join(t, sep)
}

// Assignment assigns a bulletin to a client and its responsible team.
type Assignment struct {
	Client                string `json:"client"`
	ResponsibleResolution string `json:"responsible_resolution,omitempty"`
}

// Bulletin is one advisory as produced by the bulletin scrapers.
type Bulletin struct {
	ID               string       `json:"id_bulletin"`
	Title            string       `json:"title"`
	Product          string       `json:"produit_name"`
	Date             string       `json:"date"`
	Description      string       `json:"description"`
	CVSSScore        Text         `json:"cvss_score"`
	CVEs             Text         `json:"cves"`
	Risk             Text         `json:"risk"`
	RiskLevel        string       `json:"niveau_de_risque"`
	ProcessingTime   *int         `json:"processing_time,omitempty"`
	Mitigation       Text         `json:"mitigation"`
	Reference        Text         `json:"reference"`
	NotificationDate string       `json:"date_de_notification"`
	Clients          []Assignment `json:"clients,omitempty"`
}

// Load reads the bulletins of a JSON file holding one bulletin or a list of
// them. Bulletins without id take it from the file name.
func Load(path string) ([]Bulletin, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var vs []Bulletin
	if trimmed := bytes.TrimSpace(bs); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &vs); err != nil {
			return nil, errors.Wrapf(err, "unmarshal %s", path)
		}
	} else {
		var v Bulletin
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, errors.Wrapf(err, "unmarshal %s", path)
		}
		vs = []Bulletin{v}
	}

	for i := range vs {
		if vs[i].ID == "" {
			vs[i].ID = IDFromFilename(path)
		}
	}
	return vs, nil
}

// IDFromFilename keeps the first two dash separated parts of a file name,
// "CERTFR-2024-AVI-0001.json" gives "CERTFR-2024".
func IDFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ss := strings.SplitN(name, "-", 3)
	if len(ss) < 2 {
		return name
	}
	return ss[0] + "-" + ss[1]
}

var dateLayouts = []string{types.DateLayout, "02/01/2006", "02-01-2006"}

// NormalizeDate returns s as "YYYY-MM-DD". Day first layouts are tried before
// free form parsing. Unparsable values are returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format(types.DateLayout)
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.Format(types.DateLayout)
	}
	return s
}

// ProcessingTime returns the remediation delay in days for a CVSS score. For a
// range "a - b" the upper bound is used.
func ProcessingTime(score string) int {
	score = strings.TrimSpace(score)
	if _, upper, ok := strings.Cut(score, " - "); ok {
		score = strings.TrimSpace(upper)
	}
	f, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return 30
	}
	switch {
	case f >= 9.0:
		return 2
	case f >= 7.0:
		return 5
	case f >= 5.0:
		return 15
	default:
		return 30
	}
}

// MatchClients assigns the bulletin to every client owning a product named in
// title, ignoring case. The first matching product of a client gives the team.
func MatchClients(title string, clients map[string][]types.Product) []Assignment {
	title = strings.ToLower(title)

	names := lo.Keys(clients)
	slices.Sort(names)

	var as []Assignment
	for _, name := range names {
		ps := slices.Clone(clients[name])
		slices.SortFunc(ps, func(a, b types.Product) int { return cmp.Compare(a.ID, b.ID) })
		p, ok := lo.Find(ps, func(p types.Product) bool {
			return p.Name != "" && strings.Contains(title, strings.ToLower(p.Name))
		})
		if !ok {
			continue
		}
		team := p.ResponsibleResolution
		if team == "" {
			team = types.DefaultResponsibleTeam
		}
		as = append(as, Assignment{Client: name, ResponsibleResolution: team})
	}
	return as
}

// Facts expands b into one fact per CVE.
func Facts(b Bulletin) []types.Fact {
	release := NormalizeDate(b.Date)

	pt := ProcessingTime(b.CVSSScore.Join(""))
	if b.ProcessingTime != nil {
		pt = *b.ProcessingTime
	}
	product := b.Product
	if product == "" {
		product = b.Title
	}
	risk := b.Risk.Join(", ")
	if risk == "" {
		risk = DefaultRisk
	}
	level := b.RiskLevel
	if level == "" {
		level = DefaultRiskLevel
	}
	notification := release
	if b.NotificationDate != "" {
		notification = NormalizeDate(b.NotificationDate)
	}

	cves := lo.Uniq(lo.Compact(lo.Map(b.CVEs, func(s string, _ int) string { return strings.TrimSpace(s) })))
	fs := make([]types.Fact, 0, len(cves))
	for _, cve := range cves {
		fs = append(fs, types.Fact{
			BulletinID:       b.ID,
			CVEID:            cve,
			Product:          product,
			ReleaseDate:      release,
			Description:      b.Description,
			RiskLevel:        level,
			CVSSScore:        b.CVSSScore.Join(""),
			Risk:             risk,
			ProcessingTime:   pt,
			Mitigation:       b.Mitigation.Join("\n"),
			Reference:        b.Reference.Join(", "),
			NotificationDate: notification,
		})
	}
	return fs
}

// DefaultComment is the comment of a freshly notified tracking row.
func DefaultComment(release string) string {
	return fmt.Sprintf("%s : Mail envoyé par SOC", release)
}

type Store interface {
	PutFact(types.Fact) (bool, error)
	PutTrackingRow(types.TrackingRow) (bool, error)
}

type Result struct {
	Bulletins int `json:"bulletins"`
	Skipped   int `json:"skipped"`
	Facts     int `json:"facts"`
	Rows      int `json:"rows"`
}

func (r *Result) Add(o Result) {
	r.Bulletins += o.Bulletins
	r.Skipped += o.Skipped
	r.Facts += o.Facts
	r.Rows += o.Rows
}

// Ingest stores the facts of b and one Open tracking row per CVE and assigned
// client. Clients listed in b win over product matching. A bulletin no client
// is assigned to, or without CVE, is skipped. Already stored rows are left as is.
func Ingest(store Store, b Bulletin, clients map[string][]types.Product, now time.Time) (Result, error) {
	if b.ID == "" {
		return Result{}, errors.New("bulletin id is empty")
	}

	as := b.Clients
	if len(as) == 0 {
		as = MatchClients(b.Title, clients)
	}
	fs := Facts(b)
	if len(as) == 0 || len(fs) == 0 {
		return Result{Skipped: 1}, nil
	}

	r := Result{Bulletins: 1}
	for _, f := range fs {
		inserted, err := store.PutFact(f)
		if err != nil {
			return Result{}, errors.Wrapf(err, "put fact %s %s", f.BulletinID, f.CVEID)
		}
		if inserted {
			r.Facts++
		}
	}

	today := now.Local().Format(types.DateLayout)
	for _, a := range as {
		team := a.ResponsibleResolution
		if team == "" {
			team = types.DefaultResponsibleTeam
		}
		for _, f := range fs {
			inserted, err := store.PutTrackingRow(types.TrackingRow{
				BulletinID:      f.BulletinID,
				CVEID:           f.CVEID,
				Client:          a.Client,
				Status:          types.StatusOpen,
				ResponsibleTeam: team,
				TreatmentDate:   today,
				Comment:         DefaultComment(f.ReleaseDate),
			})
			if err != nil {
				return Result{}, errors.Wrapf(err, "put tracking row %s %s %s", f.BulletinID, f.CVEID, a.Client)
			}
			if inserted {
				r.Rows++
			}
		}
	}
	return r, nil
}
