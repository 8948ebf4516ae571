package storage

import (
	"time"
)

type ExpiryStatus int

const (
	// ExpNotFound means that the key does not exist
	ExpNotFound ExpiryStatus = -2
	// ExpNoTimeout means that the key exists, but it does not have a TTL
	ExpNoTimeout ExpiryStatus = -1
	// ExpActive means that the key has an active lifetime
	ExpActive ExpiryStatus = 1
)

// Storage is a common interface for working with key-value storages.
// Keys and values are arbitrary byte strings held in Go strings.
// Every operation that touches a key first removes it if its expiration instant has passed
type Storage interface {
	// Get returns the value and true if the key is found. Otherwise, "", false
	Get(key string) (string, bool)

	// Set overwrites the value and replaces any expiration with expireAt.
	// A zero expireAt stores the key without expiration
	Set(key, value string, expireAt time.Time)

	// Delete deletes the key. Returns true if the key existed and was deleted
	Delete(key string) bool

	// Expire sets the expiration instant of an existing key. Returns false if the key does not exist
	Expire(key string, expireAt time.Time) bool

	// Expiry returns the remaining lifetime and status as ExpiryStatus
	Expiry(key string) (time.Duration, ExpiryStatus)

	// Flush removes every key
	Flush()

	// Len returns the number of stored keys, including expired ones not yet observed
	Len() int
}
