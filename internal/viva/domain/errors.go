package domain

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrTranscriptionFailure = errors.New("transcription failed")
	ErrGenerationFailure    = errors.New("generation failed")
	ErrSummaryParse         = errors.New("summary parse failed")
	ErrInvalidSession       = errors.New("invalid session config")
	ErrAlreadyStarted       = errors.New("session already started")
	ErrNothingPending       = errors.New("no unanswered candidate turn")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidUser          = errors.New("invalid user")
	ErrReportNotFound       = errors.New("report not found")
)
