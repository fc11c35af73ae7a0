package types

import (
	"time"

	"github.com/MaineK00n/vulstrack/pkg/types"
)

type Metadata struct {
	SchemaVersion uint      `json:"schema_version,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	LastModified  time.Time `json:"last_modified,omitempty"`
}

// Filter narrows the joined rows returned by the store. Zero values mean
// unrestricted. Dates are inclusive and compared against the fact release date.
type Filter struct {
	Client    string
	StartDate string
	EndDate   string
	Months    []string
}

// TrackingUpdate carries an operator edit. Nil fields are left untouched.
type TrackingUpdate struct {
	Status          *types.Status
	Comment         *string
	TreatmentDate   *string
	ResponsibleTeam *string
}

// WithTreatmentPolicy fills the treatment date the way operators expect: an
// explicit date always wins, a move to an ongoing status restarts the clock at
// today, and a move to a closed status keeps the stored date.
func (u TrackingUpdate) WithTreatmentPolicy(today string) TrackingUpdate {
	if u.TreatmentDate != nil || u.Status == nil {
		return u
	}
	if u.Status.IsClosed() {
		return u
	}
	u.TreatmentDate = &today
	return u
}

func (u TrackingUpdate) IsEmpty() bool {
	return u.Status == nil && u.Comment == nil && u.TreatmentDate == nil && u.ResponsibleTeam == nil
}

// FactUpdate edits descriptive fields shared by every CVE of a bulletin.
type FactUpdate struct {
	Product     *string
	Description *string
	Risk        *string
	Mitigation  *string
	Reference   *string
}

func (u FactUpdate) IsEmpty() bool {
	return u.Product == nil && u.Description == nil && u.Risk == nil && u.Mitigation == nil && u.Reference == nil
}
