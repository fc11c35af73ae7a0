package types

import (
	"fmt"
	"strings"
)

// DataIntegrityError reports tracking rows whose vulnerability fact is missing.
type DataIntegrityError struct {
	BulletinID string
	Client     string
	CVEs       []string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("dangling tracking rows. bulletin: %q, client: %q, cves: %q", e.BulletinID, e.Client, strings.Join(e.CVEs, ", "))
}

type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("unexpected date format. expected: %q, actual: %q", DateLayout, e.Value)
}

// InvalidFilterError rejects a request before the store is queried.
type InvalidFilterError struct {
	Field string
	Value string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s filter: %q", e.Field, e.Value)
}
