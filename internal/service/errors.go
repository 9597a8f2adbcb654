package service

import "errors"

var (
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrProblemNotFound indicates the referenced problem does not exist.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrProblemUnpublished indicates the problem is not open for submissions.
	ErrProblemUnpublished = errors.New("problem is not published")
	// ErrInvalidSubmissionState indicates the requested transition is not allowed from the current status.
	ErrInvalidSubmissionState = errors.New("submission is not in a state that allows this operation")
	// ErrAppealLimitReached indicates every appeal attempt has been used.
	ErrAppealLimitReached = errors.New("maximum appeal attempts reached")
	// ErrNoValidAppeals indicates no appeal in the batch targeted an appealable error with a justification.
	ErrNoValidAppeals = errors.New("no valid appeals in batch")
	// ErrInvalidAppealImage indicates an image justification could not be decoded as a supported image.
	ErrInvalidAppealImage = errors.New("invalid appeal image")
	// ErrSubmissionBusy indicates another request is currently modifying the submission.
	ErrSubmissionBusy = errors.New("submission is being modified by another request")
	// ErrDataIntegrity indicates persisted state violates an invariant, such as a missing problem.
	ErrDataIntegrity = errors.New("data integrity violation")
)
