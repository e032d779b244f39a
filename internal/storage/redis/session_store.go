package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/batman-nair/TimeTrak/internal/metrics"
	"github.com/batman-nair/TimeTrak/internal/session"
	"github.com/batman-nair/TimeTrak/internal/storage"
	"github.com/redis/go-redis/v9"
)

// maxSampleRetries bounds optimistic-locking retries when concurrent samples
// race on the same identity record.
const maxSampleRetries = 5

type sessionStore struct {
	client     *redis.Client
	breakDelay time.Duration
}

// AddActivitySample folds one snapshot into the identity's record under a
// WATCH/MULTI/EXEC compare-and-swap: the record is read, merged in memory and
// written back only if no concurrent write touched it, so the ongoing and
// finalized collections always land together.
func (s *sessionStore) AddActivitySample(ctx context.Context, scopeID, identityID string, names []string, start, end time.Time) error {
	recordKey := identityKey(scopeID, identityID)

	finalizedCount := 0
	txn := func(tx *redis.Tx) error {
		finalizedCount = 0

		var record storage.IdentityRecord
		existing := true
		value, err := tx.Get(ctx, recordKey).Result()
		switch {
		case errors.Is(err, redis.Nil):
			existing = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				return fmt.Errorf("unmarshal identity record: %w", err)
			}
		}

		// An empty snapshot for a never-seen identity has nothing to sweep;
		// avoid creating empty records for idle identities.
		if !existing && len(names) == 0 {
			return nil
		}

		record.IdentityID = identityID
		finalizedCount = record.Fold(names, start, end, s.breakDelay)

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal identity record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, recordKey, data, 0)
			pipe.SAdd(ctx, identityIndexKey(scopeID), identityID)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSampleRetries; attempt++ {
		err := s.client.Watch(ctx, txn, recordKey)
		if err == nil {
			if finalizedCount > 0 {
				metrics.SessionsFinalized.WithLabelValues(scopeID).Add(float64(finalizedCount))
			}
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race, retry against the fresh record.
			continue
		}
		return fmt.Errorf("add activity sample: %w", err)
	}
	return fmt.Errorf("add activity sample for %s/%s: retries exhausted", scopeID, identityID)
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
	identityIDs := []string{identityID}
	if identityID == "" {
		var err error
		identityIDs, err = s.client.SMembers(ctx, identityIndexKey(scopeID)).Result()
		if err != nil {
			return nil, err
		}
	}

	records := make([]storage.IdentityRecord, 0, len(identityIDs))
	if len(identityIDs) == 0 {
		return records, nil
	}

	// Pipeline for efficient batch retrieval.
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(identityIDs))
	for i, id := range identityIDs {
		cmds[i] = pipe.Get(ctx, identityKey(scopeID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	for _, cmd := range cmds {
		value, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var record storage.IdentityRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("unmarshal identity record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

func (s *sessionStore) ResetIdentity(ctx context.Context, scopeID, identityID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, identityKey(scopeID, identityID))
		pipe.SRem(ctx, identityIndexKey(scopeID), identityID)
		return nil
	})
	return err
}

func (s *sessionStore) ResetScope(ctx context.Context, scopeID string) error {
	identityIDs, err := s.client.SMembers(ctx, identityIndexKey(scopeID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(identityIDs)+1)
	for _, id := range identityIDs {
		keys = append(keys, identityKey(scopeID, id))
	}
	keys = append(keys, identityIndexKey(scopeID))

	return s.client.Del(ctx, keys...).Err()
}

func (s *sessionStore) DeleteIdentity(ctx context.Context, scopeID, identityID string) error {
	if err := s.ResetIdentity(ctx, scopeID, identityID); err != nil {
		return err
	}
	return s.client.SRem(ctx, blacklistKey(scopeID), identityID).Err()
}

func (s *sessionStore) DeleteScope(ctx context.Context, scopeID string) error {
	if err := s.ResetScope(ctx, scopeID); err != nil {
		return err
	}
	return s.client.Del(ctx, blacklistKey(scopeID)).Err()
}
