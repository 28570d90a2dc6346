package retry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"linkdock/internal/domain"
	"linkdock/internal/metadata"
	"linkdock/internal/storage"
)

const (
	// DefaultBatchSize bounds how many links one sweep will attempt.
	DefaultBatchSize = 10

	// DefaultGlobalInterval is the minimum time between two sweeps. It only
	// exists to absorb rapid-fire triggers.
	DefaultGlobalInterval = time.Second

	// DefaultPerLinkInterval is the minimum time between two attempts for
	// the same link.
	DefaultPerLinkInterval = time.Minute
)

// LinkStore is the slice of the storage layer the coordinator needs.
type LinkStore interface {
	GetLinksWithIncompleteMetadata(ctx context.Context, userID int64, limit int) ([]domain.Link, error)
	UpdateLinkMetadata(ctx context.Context, upd storage.MetadataUpdate) error
}

// Options tune a Coordinator. Zero values mean the defaults above; a nil
// Now means time.Now.
type Options struct {
	BatchSize       int
	GlobalInterval  time.Duration
	PerLinkInterval time.Duration
	Now             func() time.Time
}

// Coordinator re-attempts metadata fetches for links saved with incomplete
// metadata. It holds no persistent state; the debounce timestamps are
// process-lifetime only and reset on restart.
type Coordinator struct {
	store   LinkStore
	fetcher metadata.Fetcher
	log     logrus.FieldLogger

	batchSize       int
	globalInterval  time.Duration
	perLinkInterval time.Duration
	now             func() time.Time

	mu                sync.Mutex
	lastGlobalRetryAt time.Time
}

// NewCoordinator creates a retry coordinator.
func NewCoordinator(store LinkStore, fetcher metadata.Fetcher, logger logrus.FieldLogger, opts Options) *Coordinator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.GlobalInterval <= 0 {
		opts.GlobalInterval = DefaultGlobalInterval
	}
	if opts.PerLinkInterval <= 0 {
		opts.PerLinkInterval = DefaultPerLinkInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:           store,
		fetcher:         fetcher,
		log:             logger.WithField("component", "retry_coordinator"),
		batchSize:       opts.BatchSize,
		globalInterval:  opts.GlobalInterval,
		perLinkInterval: opts.PerLinkInterval,
		now:             opts.Now,
	}
}

// RetryIncompleteLinks re-fetches metadata for up to batchSize of the
// user's incomplete links, strictly one at a time, and persists each
// outcome. It returns how many links gained real metadata. A single bad
// link never aborts the batch.
func (c *Coordinator) RetryIncompleteLinks(ctx context.Context, userID int64) (int, error) {
	if !c.passGlobalDebounce() {
		return 0, nil
	}

	log := c.log.WithField("user_id", userID)

	links, err := c.store.GetLinksWithIncompleteMetadata(ctx, userID, c.batchSize)
	if err != nil {
		log.WithError(err).Error("Failed to load links with incomplete metadata")
		return 0, err
	}
	if len(links) == 0 {
		return 0, nil
	}

	log.WithField("count", len(links)).Info("Retrying links with incomplete metadata")

	success := 0
	for _, link := range links {
		if c.retryLink(ctx, link, log) {
			success++
		}
	}

	log.WithField("success_count", success).Info("Retry sweep completed")
	return success, nil
}

// passGlobalDebounce records a sweep start unless one ran too recently.
// The mutex keeps the read-then-write safe under concurrent triggers.
func (c *Coordinator) passGlobalDebounce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastGlobalRetryAt.IsZero() && now.Sub(c.lastGlobalRetryAt) < c.globalInterval {
		return false
	}
	c.lastGlobalRetryAt = now
	return true
}

// retryLink attempts one link and persists the outcome. It reports whether
// the attempt produced real metadata that was persisted.
func (c *Coordinator) retryLink(ctx context.Context, link domain.Link, log logrus.FieldLogger) bool {
	log = log.WithFields(logrus.Fields{
		"link_id": link.ID,
		"url":     link.URL,
	})

	now := c.now()
	if link.LastMetadataAttemptAt != nil && now.Sub(*link.LastMetadataAttemptAt) < c.perLinkInterval {
		log.Debug("Skipping link, attempted too recently")
		return false
	}

	md, finalURL, err := c.fetcher.FetchWithFinalURL(ctx, link.URL)
	if err != nil {
		// Fetchers degrade to fallback metadata instead of failing, so this
		// path only fires for broken alternative implementations. Keep the
		// stored metadata and record the attempt.
		log.WithError(err).Warn("Fetcher returned an error, recording failed attempt")
		upd := storage.MetadataUpdate{
			LinkID:                link.ID,
			UserID:                link.UserID,
			Title:                 link.Title,
			Description:           link.Description,
			ThumbnailURL:          link.ThumbnailURL,
			Domain:                link.Domain,
			MetadataComplete:      false,
			MetadataFetchAttempts: link.MetadataFetchAttempts + 1,
			AttemptedAt:           now,
		}
		if updErr := c.store.UpdateLinkMetadata(ctx, upd); updErr != nil {
			log.WithError(updErr).Error("Failed to record failed attempt")
		}
		return false
	}

	hasMetadata := md.HasRealData()

	upd := storage.MetadataUpdate{
		LinkID:                link.ID,
		UserID:                link.UserID,
		Title:                 md.Title,
		Description:           md.Description,
		ThumbnailURL:          md.ThumbnailURL,
		Domain:                md.Domain,
		MetadataComplete:      hasMetadata,
		MetadataFetchAttempts: link.MetadataFetchAttempts + 1,
		AttemptedAt:           now,
	}
	// A resolved shortener upgrades the stored URL to its destination.
	if finalURL != "" && finalURL != link.URL {
		upd.URL = finalURL
	}

	if err := c.store.UpdateLinkMetadata(ctx, upd); err != nil {
		log.WithError(err).Error("Failed to persist retry outcome")
		return false
	}

	if hasMetadata {
		log.Info("Metadata retry succeeded")
		return true
	}
	log.Debug("Metadata retry still incomplete")
	return false
}
