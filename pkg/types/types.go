package types

import (
	"cmp"
	"slices"
	"strings"
)

// DateLayout is the storage layout of every date column in the tracking store.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusOpen                Status = "Open"
	StatusWIP                 Status = "WIP"
	StatusPending             Status = "Pending"
	StatusNOK                 Status = "NOK"
	StatusClos                Status = "Clos"
	StatusClosTraite          Status = "Clos (Traité)"
	StatusClosPatchCumulative Status = "Clos (Patch cumulative)"
	StatusClosNonConcerne     Status = "Clos (Non concerné)"
)

// UnknownPriority ranks statuses the tracker does not know after every known one.
const UnknownPriority = 99

var statusPriority = map[Status]int{
	StatusOpen:                1,
	StatusWIP:                 2,
	StatusPending:             3,
	StatusNOK:                 4,
	StatusClos:                5,
	StatusClosTraite:          5,
	StatusClosPatchCumulative: 5,
	StatusClosNonConcerne:     5,
}

// Statuses returns every known status in resolution order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusWIP, StatusPending, StatusNOK, StatusClos, StatusClosTraite, StatusClosPatchCumulative, StatusClosNonConcerne}
}

// OngoingStatuses are the statuses whose treatment date follows the calendar.
func OngoingStatuses() []Status {
	return []Status{StatusOpen, StatusWIP, StatusPending, StatusNOK}
}

func ClosedStatuses() []Status {
	return []Status{StatusClos, StatusClosTraite, StatusClosPatchCumulative, StatusClosNonConcerne}
}

func (s Status) Priority() int {
	p, ok := statusPriority[s]
	if !ok {
		return UnknownPriority
	}
	return p
}

func (s Status) IsKnown() bool {
	_, ok := statusPriority[s]
	return ok
}

func (s Status) IsClosed() bool {
	return slices.Contains(ClosedStatuses(), s)
}

func (s Status) IsOngoing() bool {
	return slices.Contains(OngoingStatuses(), s)
}

// CompareStatus orders statuses by priority, then by name so that closed variants
// sharing a priority still sort deterministically.
func CompareStatus(a, b Status) int {
	return cmp.Or(cmp.Compare(a.Priority(), b.Priority()), cmp.Compare(a, b))
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.IsKnown() {
		return "", &InvalidFilterError{Field: "status", Value: s}
	}
	return st, nil
}

type SLAStatus string

const (
	SLAWithin   SLAStatus = "WithinSLA"
	SLABreached SLAStatus = "BreachedSLA"
	SLAUnknown  SLAStatus = "Unknown"
)

// Fact is one vulnerability of a bulletin, shared by every client.
type Fact struct {
	BulletinID       string `json:"id_bulletin"`
	CVEID            string `json:"cve_id"`
	Product          string `json:"produit_name,omitempty"`
	ReleaseDate      string `json:"date_de_sortie,omitempty"`
	Description      string `json:"description,omitempty"`
	RiskLevel        string `json:"niveau_de_risque,omitempty"`
	CVSSScore        string `json:"cvss_score,omitempty"`
	Risk             string `json:"risk,omitempty"`
	ProcessingTime   int    `json:"processing_time,omitempty"`
	Mitigation       string `json:"mitigation,omitempty"`
	Reference        string `json:"reference,omitempty"`
	NotificationDate string `json:"date_de_notification,omitempty"`
}

// TrackingRow is the remediation state of one CVE of a bulletin for one client.
type TrackingRow struct {
	ID              uint   `json:"id"`
	BulletinID      string `json:"id_bulletin"`
	CVEID           string `json:"cve_id"`
	Client          string `json:"client"`
	Status          Status `json:"status"`
	ResponsibleTeam string `json:"responsable_resolution,omitempty"`
	TreatmentDate   string `json:"date_de_traitement,omitempty"`
	Comment         string `json:"comment,omitempty"`
}

// JoinedRow is a tracking row with the fact it references. Fact is nil when the
// reference dangles.
type JoinedRow struct {
	TrackingRow
	Fact *Fact `json:"fact,omitempty"`
}

// Record is the consolidated view of one (bulletin, client) pair.
type Record struct {
	ID               uint      `json:"id"`
	BulletinID       string    `json:"id_bulletin"`
	Client           string    `json:"client"`
	CVEs             string    `json:"cves"`
	CVEIDs           []string  `json:"cve_ids"`
	Product          string    `json:"produit_name,omitempty"`
	Description      string    `json:"description,omitempty"`
	ReleaseDate      string    `json:"date_de_sortie,omitempty"`
	Risk             string    `json:"risk,omitempty"`
	RiskLevel        string    `json:"niveau_de_risque,omitempty"`
	CVSSScore        string    `json:"cvss_score,omitempty"`
	ProcessingTime   int       `json:"processing_time"`
	Mitigation       string    `json:"mitigation,omitempty"`
	Reference        string    `json:"reference,omitempty"`
	NotificationDate string    `json:"date_de_notification,omitempty"`
	Status           Status    `json:"status"`
	ResponsibleTeam  string    `json:"responsable_resolution,omitempty"`
	TreatmentDate    string    `json:"date_de_traitement,omitempty"`
	Comment          string    `json:"comment,omitempty"`
	AgeDays          int       `json:"age_alerte"`
	SLA              SLAStatus `json:"sla"`
}

type Client struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// DefaultResponsibleTeam is assigned when a product has no responsible team.
const DefaultResponsibleTeam = "SOC Team"

type Product struct {
	ID                    uint   `json:"id"`
	Name                  string `json:"name"`
	ClientID              uint   `json:"client_id"`
	ResponsibleResolution string `json:"responsible_resolution"`
}
