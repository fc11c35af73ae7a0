package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/MaineK00n/vulstrack/pkg/types"
)

// MonthLayout is the layout of month filters and month keys.
const MonthLayout = "2006-01"

// ParseMonth parses a "YYYY-MM" month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &types.InvalidFilterError{Field: "month", Value: s}
	}
	return t, nil
}

// MonthRange returns the first and last day of month m as dates.
func MonthRange(m string) (string, string, error) {
	t, err := ParseMonth(m)
	if err != nil {
		return "", "", err
	}
	return t.Format(types.DateLayout), t.AddDate(0, 1, -1).Format(types.DateLayout), nil
}

// ValidateDate accepts an empty value or a "YYYY-MM-DD" date.
func ValidateDate(field, s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(types.DateLayout, s); err != nil {
		return &types.InvalidFilterError{Field: field, Value: s}
	}
	return nil
}

// ValidateMonths normalizes months, dropping blanks and duplicates while keeping order.
func ValidateMonths(ms []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ms))
	vs := make([]string, 0, len(ms))
	for _, m := range ms {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, err := ParseMonth(m); err != nil {
			return nil, err
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		vs = append(vs, m)
	}
	return vs, nil
}

// ValidateWindow checks the number of months of a rolling window.
func ValidateWindow(n int) error {
	if n < 1 {
		return &types.InvalidFilterError{Field: "window", Value: strconv.Itoa(n)}
	}
	return nil
}

// SplitMonths splits a comma separated month list as sent by query strings.
func SplitMonths(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
