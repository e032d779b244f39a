package bolt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/batman-nair/TimeTrak/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	// bucketScopes holds one nested bucket per scope, whose keys are identity
	// ids and values are JSON identity records.
	bucketScopes = "scope_sessions"
	// bucketBlacklist holds one JSON string list per scope id.
	bucketBlacklist = "blacklist"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db           *bbolt.DB
	sessionStore *sessionStore
	blacklist    *blacklistStore
}

// Open opens a BoltDB-backed store. breakDelay is the session-break grace
// window applied when folding activity samples.
func Open(path string, breakDelay time.Duration) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	store.sessionStore = &sessionStore{db: db, breakDelay: breakDelay}
	store.blacklist = &blacklistStore{db: db}

	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketScopes, bucketBlacklist} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return s.sessionStore }

// Blacklist returns the blacklist store.
func (s *Store) Blacklist() storage.BlacklistStore { return s.blacklist }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

// scopeBucket returns the nested bucket for a scope, or nil if the scope has
// never been written.
func scopeBucket(tx *bbolt.Tx, scopeID string) *bbolt.Bucket {
	root := tx.Bucket([]byte(bucketScopes))
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(scopeID))
}

// ensureScopeBucket creates the nested scope bucket on first write.
func ensureScopeBucket(tx *bbolt.Tx, scopeID string) (*bbolt.Bucket, error) {
	root := tx.Bucket([]byte(bucketScopes))
	if root == nil {
		return nil, fmt.Errorf("scopes bucket missing")
	}
	bucket, err := root.CreateBucketIfNotExists([]byte(scopeID))
	if err != nil {
		return nil, fmt.Errorf("create scope bucket %s: %w", scopeID, err)
	}
	return bucket, nil
}
