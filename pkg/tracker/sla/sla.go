package sla

import (
	"strings"
	"time"

	"github.com/MaineK00n/vulstrack/pkg/types"
)

// Calculate returns the age of an alert in days between its release and its
// treatment, and whether the age stays within processingTime. Unparsable dates
// yield (0, Unknown). A treatment date before the release gives a negative age.
func Calculate(release, treatment string, processingTime int) (int, types.SLAStatus) {
	r, err := parseDate(release)
	if err != nil {
		return 0, types.SLAUnknown
	}
	t, err := parseDate(treatment)
	if err != nil {
		return 0, types.SLAUnknown
	}

	age := int(t.Sub(r).Hours() / 24)
	if age > processingTime {
		return age, types.SLABreached
	}
	return age, types.SLAWithin
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(types.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &types.InvalidDateError{Value: s}
	}
	return t, nil
}
