package models

import (
	"context"
	"database/sql/driver"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ErrorStatus is the per-error lifecycle nested inside a submission.
type ErrorStatus string

const (
	ErrorStatusActive     ErrorStatus = "active"
	ErrorStatusAppealing  ErrorStatus = "appealing"
	ErrorStatusResolved   ErrorStatus = "resolved"
	ErrorStatusRejected   ErrorStatus = "rejected"
	ErrorStatusOverturned ErrorStatus = "overturned"
)

// IsAppealable reports whether an appeal may target an error in this status.
func (s ErrorStatus) IsAppealable() bool {
	return s == ErrorStatusActive || s == ErrorStatusRejected
}

// CountsAgainstScore reports whether the error still penalises the submission.
func (s ErrorStatus) CountsAgainstScore() bool {
	return s == ErrorStatusActive || s == ErrorStatusRejected
}

// CanTransitionTo reports whether the error state machine allows s -> next.
func (s ErrorStatus) CanTransitionTo(next ErrorStatus) bool {
	switch next {
	case ErrorStatusAppealing:
		return s.IsAppealable()
	case ErrorStatusResolved, ErrorStatusRejected:
		return s == ErrorStatusAppealing
	}
	return false
}

// SubmissionError is one defect identified in a submission.
type SubmissionError struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Location    string      `json:"location,omitempty"`
	Description string      `json:"description"`
	Severity    bool        `json:"severity"`
	Status      ErrorStatus `json:"status"`
}

// ErrorList is the ordered error list of a submission, stored as one JSON column.
// Callers replace it wholesale; the helpers below never modify the receiver.
type ErrorList []SubmissionError

// Clone returns an independent copy of the list.
func (l ErrorList) Clone() ErrorList {
	if l == nil {
		return nil
	}
	out := make(ErrorList, len(l))
	copy(out, l)
	return out
}

// Find returns the error with the given id and its index.
func (l ErrorList) Find(id string) (SubmissionError, int, bool) {
	for i, e := range l {
		if e.ID == id {
			return e, i, true
		}
	}
	return SubmissionError{}, -1, false
}

// HasSignificant reports whether any outstanding error affects scoring.
func (l ErrorList) HasSignificant() bool {
	for _, e := range l {
		if e.Severity && e.Status != ErrorStatusResolved && e.Status != ErrorStatusOverturned {
			return true
		}
	}
	return false
}

// HasAppealable reports whether any error is still active or rejected.
func (l ErrorList) HasAppealable() bool {
	for _, e := range l {
		if e.Status.IsAppealable() {
			return true
		}
	}
	return false
}

// WithStatuses returns a copy of the list with the given error statuses applied.
// Ids that are not present are ignored.
func (l ErrorList) WithStatuses(updates map[string]ErrorStatus) ErrorList {
	out := l.Clone()
	for i := range out {
		if status, ok := updates[out[i].ID]; ok {
			out[i].Status = status
		}
	}
	return out
}

// Value implements driver.Valuer through datatypes.JSONSlice.
func (l ErrorList) Value() (driver.Value, error) {
	return l.column().Value()
}

// Scan implements sql.Scanner. NULL columns scan to a nil list.
func (l *ErrorList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var decoded datatypes.JSONSlice[SubmissionError]
	if err := decoded.Scan(value); err != nil {
		return fmt.Errorf("decode error list: %w", err)
	}
	*l = ErrorList(decoded)
	return nil
}

func (ErrorList) GormDataType() string {
	return datatypes.JSONSlice[SubmissionError]{}.GormDataType()
}

func (l ErrorList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return l.column().GormDBDataType(db, field)
}

func (l ErrorList) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	return l.column().GormValue(ctx, db)
}

func (l ErrorList) column() datatypes.JSONSlice[SubmissionError] {
	return datatypes.JSONSlice[SubmissionError](l)
}
