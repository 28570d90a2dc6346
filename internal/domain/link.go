package domain

import "time"

// LinkMetadata is the best-effort page metadata extracted for a link.
// Empty Description/ThumbnailURL mean "not found"; Title is always set,
// falling back to Domain when the page yielded nothing usable.
type LinkMetadata struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Domain       string `json:"domain"`
}

// HasRealData reports whether extraction produced more than the bare
// domain fallback. Title == Domain is the fallback signature.
func (m LinkMetadata) HasRealData() bool {
	return m.Title != m.Domain
}

// Fallback returns the minimal metadata used when fetching or extraction
// failed entirely.
func Fallback(host string) LinkMetadata {
	return LinkMetadata{Title: host, Domain: host}
}

// FetchResult pairs extracted metadata with the URL the transport actually
// landed on after following redirects. FinalURL equals the requested URL
// when no redirect occurred.
type FetchResult struct {
	Metadata LinkMetadata `json:"metadata"`
	FinalURL string       `json:"final_url"`
}

// Link represents a saved website link.
type Link struct {
	// ID uniquely identifies the link. The URL is not the key because a
	// retry can upgrade it to the redirect destination.
	ID string `json:"id"`

	// URL is the link target. Updated to the final redirected URL once a
	// fetch resolves it (e.g. a shortener expanding to the real site).
	URL string `json:"url"`

	// UserID is the Telegram user who saved the link.
	UserID int64 `json:"user_id"`

	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Domain       string `json:"domain"`

	// Tags is an optional list of tags for categorizing the link.
	Tags []string `json:"tags,omitempty"`

	// Read indicates whether the user has marked the link as read.
	Read bool `json:"read"`

	SavedAt time.Time `json:"saved_at"`

	// MetadataComplete is false while the link only carries fallback
	// metadata. The retry coordinator flips it once a fetch yields real data.
	MetadataComplete bool `json:"metadata_complete"`

	// MetadataFetchAttempts counts every fetch attempt, successful or not.
	MetadataFetchAttempts int `json:"metadata_fetch_attempts"`

	// LastMetadataAttemptAt is nil until the first retry attempt.
	LastMetadataAttemptAt *time.Time `json:"last_metadata_attempt_at,omitempty"`
}
