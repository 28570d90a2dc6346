package storage

import (
	"context"
	"time"

	"linkdock/internal/domain"
)

// MetadataUpdate carries the fields the retry coordinator persists after a
// fetch attempt. URL is empty when the stored URL should be kept.
type MetadataUpdate struct {
	LinkID string
	UserID int64

	URL          string
	Title        string
	Description  string
	ThumbnailURL string
	Domain       string

	MetadataComplete      bool
	MetadataFetchAttempts int
	AttemptedAt           time.Time
}

// Repository defines the interface for data storage operations. This allows
// swapping storage implementations (e.g. BadgerDB, PostgreSQL) without
// changing the application logic that uses it.
type Repository interface {
	// SaveLink stores a new link or updates an existing one.
	SaveLink(ctx context.Context, link domain.Link) error

	// GetLinksByUser retrieves all links saved by a user, newest first.
	GetLinksByUser(ctx context.Context, userID int64) ([]domain.Link, error)

	// GetLinksWithIncompleteMetadata retrieves up to limit links for a user
	// whose metadata is still incomplete, oldest saved first. No attempt-count
	// ceiling is applied here; callers decide if and when to give up.
	GetLinksWithIncompleteMetadata(ctx context.Context, userID int64, limit int) ([]domain.Link, error)

	// UpdateLinkMetadata applies the outcome of a metadata fetch attempt to
	// a stored link.
	UpdateLinkMetadata(ctx context.Context, upd MetadataUpdate) error

	// DeleteLink removes a specific link for a given user.
	DeleteLink(ctx context.Context, userID int64, linkID string) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
