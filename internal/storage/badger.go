package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"linkdock/internal/domain"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository creates and initializes a new BadgerDB repository at
// the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	return nil
}

// generateLinkKey creates a unique key for storing a link.
// Format: user:{userID}:link:{linkID}. Keys use the link ID, not the URL,
// so a retry can rewrite the URL in place when a redirect resolves it.
func generateLinkKey(userID int64, linkID string) []byte {
	return []byte(fmt.Sprintf("user:%d:link:%s", userID, linkID))
}

// generateUserPrefix creates a key prefix for scanning all links of a user.
func generateUserPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("user:%d:link:", userID))
}

// SaveLink stores or updates a link.
func (r *BadgerRepository) SaveLink(ctx context.Context, link domain.Link) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": link.UserID,
		"link_id": link.ID,
		"url":     link.URL,
	})

	linkBytes, err := json.Marshal(link)
	if err != nil {
		log.WithError(err).Error("Failed to marshal link to JSON")
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	key := generateLinkKey(link.UserID, link.ID)

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, linkBytes))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save link to BadgerDB")
		return fmt.Errorf("failed to save link: %w", err)
	}

	log.Debug("Link saved")
	return nil
}

// GetLinksByUser retrieves all links for a user, newest first.
func (r *BadgerRepository) GetLinksByUser(ctx context.Context, userID int64) ([]domain.Link, error) {
	links, err := r.scanUserLinks(userID, nil)
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to retrieve links from BadgerDB")
		return nil, fmt.Errorf("failed to get links for user %d: %w", userID, err)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].SavedAt.After(links[j].SavedAt)
	})
	return links, nil
}

// GetLinksWithIncompleteMetadata retrieves up to limit links whose metadata
// is still incomplete, oldest saved first so long-waiting links are retried
// before fresh ones.
func (r *BadgerRepository) GetLinksWithIncompleteMetadata(ctx context.Context, userID int64, limit int) ([]domain.Link, error) {
	links, err := r.scanUserLinks(userID, func(l domain.Link) bool {
		return !l.MetadataComplete
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to retrieve incomplete links from BadgerDB")
		return nil, fmt.Errorf("failed to get incomplete links for user %d: %w", userID, err)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].SavedAt.Before(links[j].SavedAt)
	})
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

// scanUserLinks iterates a user's key prefix, returning links that pass the
// optional filter.
func (r *BadgerRepository) scanUserLinks(userID int64, keep func(domain.Link) bool) ([]domain.Link, error) {
	var links []domain.Link

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := generateUserPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var link domain.Link
				if err := json.Unmarshal(val, &link); err != nil {
					return fmt.Errorf("failed to unmarshal link data for key %s: %w", string(item.Key()), err)
				}
				if keep == nil || keep(link) {
					links = append(links, link)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// UpdateLinkMetadata applies a metadata fetch outcome to a stored link in a
// single read-modify-write transaction.
func (r *BadgerRepository) UpdateLinkMetadata(ctx context.Context, upd MetadataUpdate) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": upd.UserID,
		"link_id": upd.LinkID,
	})

	key := generateLinkKey(upd.UserID, upd.LinkID)

	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return fmt.Errorf("link %s not found: %w", upd.LinkID, err)
		}

		var link domain.Link
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &link)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal link %s: %w", upd.LinkID, err)
		}

		if upd.URL != "" {
			link.URL = upd.URL
		}
		link.Title = upd.Title
		link.Description = upd.Description
		link.ThumbnailURL = upd.ThumbnailURL
		link.Domain = upd.Domain
		link.MetadataComplete = upd.MetadataComplete
		link.MetadataFetchAttempts = upd.MetadataFetchAttempts
		attemptedAt := upd.AttemptedAt
		link.LastMetadataAttemptAt = &attemptedAt

		linkBytes, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("failed to marshal link %s: %w", upd.LinkID, err)
		}
		return txn.SetEntry(badger.NewEntry(key, linkBytes))
	})
	if err != nil {
		log.WithError(err).Error("Failed to update link metadata in BadgerDB")
		return fmt.Errorf("failed to update link metadata: %w", err)
	}

	log.Debug("Link metadata updated")
	return nil
}

// DeleteLink removes a specific link for a user.
func (r *BadgerRepository) DeleteLink(ctx context.Context, userID int64, linkID string) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"link_id": linkID,
	})

	key := generateLinkKey(userID, linkID)

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete link from BadgerDB")
		return fmt.Errorf("failed to delete link %s for user %d: %w", linkID, userID, err)
	}

	log.Debug("Link deleted")
	return nil
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
