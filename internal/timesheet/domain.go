// Package timesheet records when employees clock in and out.
package timesheet

import (
	"fmt"

	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// EntryType distinguishes clock-in from clock-out entries.
type EntryType string

const (
	EntryLogin  EntryType = "login"
	EntryLogout EntryType = "logout"
)

// Date and time layouts used on the wire.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// TimeEntry is one clock-in or clock-out of an employee.
type TimeEntry struct {
	ID         int64     `json:"entry_id"`
	EmployeeID int64     `json:"employee_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	EntryType  EntryType `json:"entry_type"`
}

// ClockRequest is the body of a clock-in or clock-out. Empty fields default
// to the current date and time.
type ClockRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time string `json:"time" validate:"omitempty,datetime=15:04:05"`
}

// ErrEntryNotFound is returned for unknown time entries.
var ErrEntryNotFound = fmt.Errorf("%w: login logout time record not found for given id", httpx.ErrNotFound)
