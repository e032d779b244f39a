package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type blacklistStore struct {
	client *redis.Client
}

func (s *blacklistStore) Add(ctx context.Context, scopeID string, identityIDs []string) error {
	if len(identityIDs) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, blacklistKey(scopeID), toMembers(identityIDs)...).Err()
}

func (s *blacklistStore) Remove(ctx context.Context, scopeID string, identityIDs []string) error {
	if len(identityIDs) == 0 {
		return nil
	}
	return s.client.SRem(ctx, blacklistKey(scopeID), toMembers(identityIDs)...).Err()
}

func (s *blacklistStore) Get(ctx context.Context, scopeID string) (map[string]struct{}, error) {
	ids, err := s.client.SMembers(ctx, blacklistKey(scopeID)).Result()
	if err != nil {
		return nil, err
	}
	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	return members, nil
}

func toMembers(ids []string) []interface{} {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}
