package storage

import (
	"errors"
	"math/bits"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ShardedMapStorage is a thread-safe key-value storage,
// divided into segments (shards) to reduce contention for locking
type ShardedMapStorage struct {
	shards    []*MapStorage
	shardMask uint64
}

// NewShardedMapStorage creates a new instance of ShardedMapStorage.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is 64.
func NewShardedMapStorage(requestedShards uint) (*ShardedMapStorage, error) {
	if bits.OnesCount(requestedShards) != 1 {
		return nil, errors.New("requested shards must be a power of 2")
	}

	if requestedShards > 64 {
		return nil, errors.New("requested shards must be less or equal than 64")
	}

	s := &ShardedMapStorage{
		shards:    make([]*MapStorage, requestedShards),
		shardMask: uint64(requestedShards - 1),
	}

	for i := range s.shards {
		s.shards[i] = NewMapStorage()
	}

	return s, nil
}

// shard returns the shard owning key
func (s *ShardedMapStorage) shard(key string) *MapStorage {
	return s.shards[xxhash.Sum64String(key)&s.shardMask]
}

// Get returns the value and true if the key is found. Otherwise, "", false.
func (s *ShardedMapStorage) Get(key string) (string, bool) {
	return s.shard(key).Get(key)
}

// Set overwrites the value and replaces any expiration with expireAt.
func (s *ShardedMapStorage) Set(key, value string, expireAt time.Time) {
	s.shard(key).Set(key, value, expireAt)
}

// Delete deletes the key. Returns true if the key existed and was deleted.
func (s *ShardedMapStorage) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

// Expire sets a new expiration instant for an existing key.
func (s *ShardedMapStorage) Expire(key string, expireAt time.Time) bool {
	return s.shard(key).Expire(key, expireAt)
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (s *ShardedMapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	return s.shard(key).Expiry(key)
}

// Flush clears every shard. Callers that need an atomic flush must stop writers first
func (s *ShardedMapStorage) Flush() {
	for _, shard := range s.shards {
		shard.Flush()
	}
}

// Len sums the key count of all shards
func (s *ShardedMapStorage) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// setClock replaces the time source of every shard
func (s *ShardedMapStorage) setClock(now func() time.Time) {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.now = now
		shard.mu.Unlock()
	}
}
