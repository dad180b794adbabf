package models

import (
	"context"
	"time"
)

// Provider defines the interface for external extraction backends
type Provider interface {
	// Name returns the provider name for logging and attribution
	Name() string

	// Kind returns whether this is a keyed API or a public instance
	Kind() ProviderKind

	// Configured reports whether required credentials are present. An
	// unconfigured keyed provider is skipped without counting as a failure.
	Configured() bool

	// Endpoints returns the ordered endpoint templates. Providers with
	// uncertain path conventions expose several; each is tried as a
	// sub-attempt before the chain advances to the next provider.
	Endpoints() []string

	// Fetch performs one attempt against the given endpoint and returns the
	// decoded raw payload. Failures are returned as *AttemptError where the
	// provider replied, or as plain errors for transport problems.
	Fetch(ctx context.Context, endpoint string, req *ResolutionRequest) (any, error)
}

// Storage defines the interface for resolution history persistence
type Storage interface {
	// SaveRecord saves a resolution record
	SaveRecord(rec *ResolutionRecord) error

	// GetRecord retrieves a resolution record by ID
	GetRecord(id string) (*ResolutionRecord, error)

	// ListRecords lists records with filters
	ListRecords(filter HistoryFilter) ([]*ResolutionRecord, error)

	// DeleteRecord deletes a record by ID
	DeleteRecord(id string) error

	// GetStats returns aggregate resolution statistics
	GetStats() (*Stats, error)

	// User management methods
	SaveUser(user *User) error
	GetUserByUsername(username string) (*User, error)
	GetUserByID(id string) (*User, error)
	UpdateUser(user *User) error

	// Close closes the storage connection
	Close() error
}

// HistoryFilter defines filters for listing resolution records
type HistoryFilter struct {
	Platform  *Platform
	Format    *FileFormat
	Status    *string
	ClientID  *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
