package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxCopiesPerBatch bounds a single batch copy creation.
const MaxCopiesPerBatch = MaxLocationsPerRequest

// Copybook is one physical copy of an edition.
type Copybook struct {
	ID         int64  `json:"id"`
	EditionID  int64  `json:"edition_id"`
	Status     Status `json:"status"`
	LocationID *int64 `json:"location_id"`

	// Joined fields (not always populated).
	EditionTitle string `json:"edition_title,omitempty"`
}

// MarshalJSON adds status_known so legacy status values are marked on the
// wire while the raw value stays in status.
func (c Copybook) MarshalJSON() ([]byte, error) {
	type plain Copybook
	return json.Marshal(struct {
		plain
		StatusKnown bool `json:"status_known"`
	}{plain(c), c.Status.Known()})
}

// Status is a copy's lifecycle status. Values read from storage that are
// not one of the known statuses are kept verbatim and report Known() false.
type Status string

// Copy statuses.
const (
	StatusAvailable  Status = "available"
	StatusIssued     Status = "issued"
	StatusRestoring  Status = "restoring"
	StatusWrittenOff Status = "written-off"
)

var knownStatuses = map[Status]bool{
	StatusAvailable:  true,
	StatusIssued:     true,
	StatusRestoring:  true,
	StatusWrittenOff: true,
}

// Known reports whether s is one of the four lifecycle statuses.
func (s Status) Known() bool {
	return knownStatuses[s]
}

// String implements fmt.Stringer. Unknown values are marked as such.
func (s Status) String() string {
	if s.Known() {
		return string(s)
	}
	return fmt.Sprintf("unknown(%q)", string(s))
}

// ParseStatus validates caller input. Empty input defaults to available.
func ParseStatus(raw string) (Status, error) {
	if strings.TrimSpace(raw) == "" {
		return StatusAvailable, nil
	}
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Known() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return s, nil
}

// CheckTransition reports whether a manual status edit from one status to
// another is allowed. Issuing is reserved for lendings, and leaving issued
// is further checked against open lendings by the store.
func CheckTransition(from, to Status) error {
	switch {
	case !to.Known():
		return fmt.Errorf("%w: cannot set status %s", ErrValidation, to)
	case to == StatusIssued && from != StatusIssued:
		return fmt.Errorf("%w: copies are issued by creating a lending", ErrValidation)
	}
	return nil
}

// ReleasesLocation reports whether entering status s frees the copy's slot.
func (s Status) ReleasesLocation() bool {
	return s == StatusWrittenOff
}
