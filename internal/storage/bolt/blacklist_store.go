package bolt

import (
	"context"
	"sort"

	"go.etcd.io/bbolt"
)

type blacklistStore struct {
	db *bbolt.DB
}

func (s *blacklistStore) Add(ctx context.Context, scopeID string, identityIDs []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketBlacklist))
		if bucket == nil {
			return nil
		}
		members, err := readBlacklist(bucket, scopeID)
		if err != nil {
			return err
		}
		for _, id := range identityIDs {
			members[id] = struct{}{}
		}
		return writeBlacklist(bucket, scopeID, members)
	})
}

func (s *blacklistStore) Remove(ctx context.Context, scopeID string, identityIDs []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return removeBlacklisted(tx, scopeID, identityIDs)
	})
}

func (s *blacklistStore) Get(ctx context.Context, scopeID string) (map[string]struct{}, error) {
	var members map[string]struct{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketBlacklist))
		if bucket == nil {
			members = make(map[string]struct{})
			return nil
		}
		var err error
		members, err = readBlacklist(bucket, scopeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// removeBlacklisted strips identities from a scope's blacklist entry within an
// existing transaction. A scope with no entry is a no-op.
func removeBlacklisted(tx *bbolt.Tx, scopeID string, identityIDs []string) error {
	bucket := tx.Bucket([]byte(bucketBlacklist))
	if bucket == nil || bucket.Get([]byte(scopeID)) == nil {
		return nil
	}
	members, err := readBlacklist(bucket, scopeID)
	if err != nil {
		return err
	}
	for _, id := range identityIDs {
		delete(members, id)
	}
	return writeBlacklist(bucket, scopeID, members)
}

func readBlacklist(bucket *bbolt.Bucket, scopeID string) (map[string]struct{}, error) {
	members := make(map[string]struct{})
	value := bucket.Get([]byte(scopeID))
	if value == nil {
		return members, nil
	}
	var ids []string
	if err := unmarshal(value, &ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		members[id] = struct{}{}
	}
	return members, nil
}

func writeBlacklist(bucket *bbolt.Bucket, scopeID string, members map[string]struct{}) error {
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	// Stable on-disk order keeps record bytes deterministic.
	sort.Strings(ids)
	data, err := marshal(ids)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(scopeID), data)
}
