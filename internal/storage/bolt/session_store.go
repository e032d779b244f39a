package bolt

import (
	"context"
	"time"

	"github.com/batman-nair/TimeTrak/internal/metrics"
	"github.com/batman-nair/TimeTrak/internal/session"
	"github.com/batman-nair/TimeTrak/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db         *bbolt.DB
	breakDelay time.Duration
}

// AddActivitySample folds one snapshot into the identity's record inside a
// single write transaction, so the ongoing and finalized collections are
// always replaced together and samples for the same identity are serialized
// by bbolt's single-writer model.
func (s *sessionStore) AddActivitySample(ctx context.Context, scopeID, identityID string, names []string, start, end time.Time) error {
	finalizedCount := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var record storage.IdentityRecord
		existing := false
		if bucket := scopeBucket(tx, scopeID); bucket != nil {
			if value := bucket.Get([]byte(identityID)); value != nil {
				if err := unmarshal(value, &record); err != nil {
					return err
				}
				existing = true
			}
		}

		// An empty snapshot for a never-seen identity has nothing to sweep;
		// avoid creating empty records for idle identities.
		if !existing && len(names) == 0 {
			return nil
		}

		record.IdentityID = identityID
		finalizedCount = record.Fold(names, start, end, s.breakDelay)

		bucket, err := ensureScopeBucket(tx, scopeID)
		if err != nil {
			return err
		}
		data, err := marshal(record)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(identityID), data)
	})
	if err == nil && finalizedCount > 0 {
		metrics.SessionsFinalized.WithLabelValues(scopeID).Add(float64(finalizedCount))
	}
	return err
}

func (s *sessionStore) LastActivities(ctx context.Context, scopeID string, filter storage.QueryFilter) (map[string]float64, error) {
	records, err := s.loadRecords(ctx, scopeID, filter.IdentityID)
	if err != nil {
		return nil, err
	}
	return storage.CollectLast(records, filter.From), nil
}

func (s *sessionStore) AggregatedActivities(ctx context.Context, scopeID string, filter storage.QueryFilter) (map[string]float64, error) {
	records, err := s.loadRecords(ctx, scopeID, filter.IdentityID)
	if err != nil {
		return nil, err
	}
	return storage.CollectAggregated(records, filter.From), nil
}

func (s *sessionStore) LongestActivities(ctx context.Context, scopeID, identityID string) ([]session.Ranked, error) {
	records, err := s.loadRecords(ctx, scopeID, identityID)
	if err != nil {
		return nil, err
	}
	return storage.CollectLongest(records), nil
}

func (s *sessionStore) RawSessions(ctx context.Context, scopeID, identityID string) ([]storage.IdentityRecord, error) {
	return s.loadRecords(ctx, scopeID, identityID)
}

// loadRecords reads one identity's record, or every record in the scope when
// identityID is empty. A missing scope or identity reads as no records.
func (s *sessionStore) loadRecords(ctx context.Context, scopeID, identityID string) ([]storage.IdentityRecord, error) {
	records := make([]storage.IdentityRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := scopeBucket(tx, scopeID)
		if bucket == nil {
			return nil
		}
		if identityID != "" {
			value := bucket.Get([]byte(identityID))
			if value == nil {
				return nil
			}
			var record storage.IdentityRecord
			if err := unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record storage.IdentityRecord
			if err := unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *sessionStore) ResetIdentity(ctx context.Context, scopeID, identityID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := scopeBucket(tx, scopeID)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(identityID))
	})
}

func (s *sessionStore) ResetScope(ctx context.Context, scopeID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketScopes))
		if root == nil || root.Bucket([]byte(scopeID)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(scopeID))
	})
}

func (s *sessionStore) DeleteIdentity(ctx context.Context, scopeID, identityID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if bucket := scopeBucket(tx, scopeID); bucket != nil {
			if err := bucket.Delete([]byte(identityID)); err != nil {
				return err
			}
		}
		return removeBlacklisted(tx, scopeID, []string{identityID})
	})
}

func (s *sessionStore) DeleteScope(ctx context.Context, scopeID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketScopes))
		if root != nil && root.Bucket([]byte(scopeID)) != nil {
			if err := root.DeleteBucket([]byte(scopeID)); err != nil {
				return err
			}
		}
		blacklist := tx.Bucket([]byte(bucketBlacklist))
		if blacklist == nil {
			return nil
		}
		return blacklist.Delete([]byte(scopeID))
	})
}
