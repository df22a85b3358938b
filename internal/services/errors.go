package services

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotEligible     = errors.New("receiver is not eligible for connection requests")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("too many requests")
)

// DenyReason explains why the message gate refused a pair.
type DenyReason string

const (
	DenyNoConnection         DenyReason = "NoConnection"
	DenyNotApprovedYet       DenyReason = "NotApprovedYet"
	DenyQuestionnairePending DenyReason = "QuestionnairePending"
	DenyBlocked              DenyReason = "Blocked"
)

// DenyError is returned when the gate refuses a send or read. It matches
// ErrForbidden under errors.Is.
type DenyError struct {
	Reason DenyReason
}

func (e *DenyError) Error() string {
	return "messaging not allowed: " + string(e.Reason)
}

func (e *DenyError) Is(target error) bool {
	return target == ErrForbidden
}
