package domain

import (
	"context"
	"time"
)

// User is a candidate account. Accounts live outside the session pipeline.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStore is the CRUD boundary for candidate accounts.
type UserStore interface {
	// SaveUser returns the existing account for email, creating it when absent.
	SaveUser(ctx context.Context, name, email string) (*User, error)
	// ListUsers returns all accounts, newest first.
	ListUsers(ctx context.Context) ([]*User, error)
}

// ReportArchive keeps finished-session reports after the live session is destroyed.
type ReportArchive interface {
	SaveReport(ctx context.Context, r *Report) error
	// GetReport returns ErrReportNotFound when no report exists for the session.
	GetReport(ctx context.Context, sessionID string) (*Report, error)
}
