// Package request implements the leave request lifecycle: the entity model,
// the status state machine, the persistent store adapter with its change
// feed, and the per-viewer synchronization engine.
package request

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/descanso-app/descanso/internal/shared"
)

// Kind discriminates the two request variants.
type Kind string

const (
	// KindVacation is a vacation request carrying a fraction type.
	KindVacation Kind = "vacation"
	// KindAbsence is a plain absence request.
	KindAbsence Kind = "absence"
)

// Status is the lifecycle status of a request.
type Status string

const (
	// StatusPending is the initial status of every request.
	StatusPending Status = "pending"
	// StatusApproved means a manager approved the request.
	StatusApproved Status = "approved"
	// StatusRejected means a manager rejected the request.
	StatusRejected Status = "rejected"
	// StatusNotified means HR/payroll has been informed of the approval.
	// Reachable only from approved, and only by the system actor.
	StatusNotified Status = "notified"
)

// FractionType declares how the 30-day vacation entitlement is split.
// Informational only; not validated against the day count.
type FractionType string

const (
	Fraction30      FractionType = "30"
	Fraction15x15   FractionType = "15-15"
	Fraction20x10   FractionType = "20-10"
	Fraction15x5x10 FractionType = "15-5-10"
	Fraction14x9x7  FractionType = "14-9-7"
)

var validFractions = map[FractionType]struct{}{
	Fraction30:      {},
	Fraction15x15:   {},
	Fraction20x10:   {},
	Fraction15x5x10: {},
	Fraction14x9x7:  {},
}

// DateLayout is the wire format for calendar dates. Requests carry dates
// with no time component; the inclusive range counts plain calendar days.
const DateLayout = "2006-01-02"

// Validation errors. All wrap shared.ErrValidation so callers can match the
// whole class with errors.Is.
var (
	ErrInvalidDateRange = fmt.Errorf("%w: start date after end date", shared.ErrValidation)
	ErrDaysMismatch     = fmt.Errorf("%w: day count does not match the date range", shared.ErrValidation)
	ErrMissingField     = fmt.Errorf("%w: required field missing", shared.ErrValidation)
	ErrInvalidFraction  = fmt.Errorf("%w: unknown fraction type", shared.ErrValidation)
	ErrInvalidKind      = fmt.Errorf("%w: unknown request kind", shared.ErrValidation)
)

// Request is a leave or absence request with its lifecycle state.
// ID and RequestDate are assigned by the store at creation and immutable.
// ApprovalDate and ManagerID are set exactly once, together with the status
// leaving pending; both are nil while the request is pending.
type Request struct {
	ID           uuid.UUID
	EmployeeID   uuid.UUID
	EmployeeName string
	StartDate    time.Time
	EndDate      time.Time
	Days         int
	Kind         Kind
	FractionType FractionType
	Status       Status
	RequestDate  time.Time
	ApprovalDate *time.Time
	ManagerID    *uuid.UUID
	Notes        string
}

// ComputeDays returns the inclusive calendar-day count of the range.
// Weekends count as leave days; the entitlement is expressed in calendar
// days, not business days.
func ComputeDays(start, end time.Time) int {
	s := truncateToDate(start)
	e := truncateToDate(end)
	return int(e.Sub(s).Hours()/24) + 1
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate checks the entity invariants. It does not touch the store.
func (r Request) Validate() error {
	if r.EmployeeID == uuid.Nil {
		return fmt.Errorf("%w: employee id", ErrMissingField)
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date", ErrMissingField)
	}
	if r.EndDate.IsZero() {
		return fmt.Errorf("%w: end date", ErrMissingField)
	}
	if r.StartDate.After(r.EndDate) {
		return ErrInvalidDateRange
	}
	if r.Days < 1 || r.Days != ComputeDays(r.StartDate, r.EndDate) {
		return ErrDaysMismatch
	}
	switch r.Kind {
	case KindVacation:
		if _, ok := validFractions[r.FractionType]; !ok {
			return ErrInvalidFraction
		}
	case KindAbsence:
	default:
		return ErrInvalidKind
	}
	if !validStatus(r.Status) {
		return fmt.Errorf("%w: status %q", shared.ErrValidation, r.Status)
	}
	if r.Status == StatusPending {
		if r.ApprovalDate != nil || r.ManagerID != nil {
			return fmt.Errorf("%w: pending request carries decision fields", shared.ErrValidation)
		}
	} else {
		if r.ApprovalDate == nil || r.ManagerID == nil {
			return fmt.Errorf("%w: decided request missing decision fields", shared.ErrValidation)
		}
	}
	return nil
}

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusNotified:
		return true
	}
	return false
}

// Pending reports whether the request still awaits a manager decision.
func (r Request) Pending() bool {
	return r.Status == StatusPending
}
