package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time of day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{t}, nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrValidation)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Lending aggregates the copies checked out to a reader in one transaction.
type Lending struct {
	ID                int64   `json:"id"`
	ReaderID          int64   `json:"reader_id"`
	EmployeeID        int64   `json:"employee_id"`
	DateLending       Date    `json:"date_lending"`
	DateReturnPlanned Date    `json:"date_return_planned"`
	DateReturn        *Date   `json:"date_return"`
	Items             []int64 `json:"items"`

	// Joined fields (not always populated).
	ReaderName   string `json:"reader_name,omitempty"`
	EmployeeName string `json:"employee_name,omitempty"`
}

// Open reports whether the lending has not been returned yet.
func (l Lending) Open() bool {
	return l.DateReturn == nil
}

// IsOverdue reports whether the lending is open and its planned return day
// lies before asOf. Closed lendings are never overdue.
func IsOverdue(l Lending, asOf Date) bool {
	return l.Open() && l.DateReturnPlanned.Before(asOf)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = NewDate(v)
	default:
		return fmt.Errorf("scanning date: unsupported type %T", src)
	}
	return nil
}
