package storage

import (
	"sync"
	"time"
)

// MapStorage is a thread-safe key-value storage.
type MapStorage struct {
	data    map[string]string // key - value
	expires map[string]int64  // key - expires time nanoseconds
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMapStorage creates a new instance of MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{
		data:    make(map[string]string),
		expires: make(map[string]int64),
		mu:      sync.RWMutex{},
		now:     time.Now,
	}
}

// Get returns the value and true if the key is found. Otherwise, "", false
func (m *MapStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	exp, hasExp := m.expires[key]
	val, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}

	if hasExp && m.now().UnixNano() >= exp {
		m.mu.Lock()
		defer m.mu.Unlock()

		// checking again, can be changed while waiting for the lock
		if m.evictLocked(key) {
			return "", false
		}

		if val, ok = m.data[key]; ok {
			return val, true
		}
		return "", false
	}

	return val, true
}

// Set overwrites the value and replaces any expiration with expireAt
func (m *MapStorage) Set(key, value string, expireAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value

	if expireAt.IsZero() {
		// deleting the expiration date if it was earlier
		delete(m.expires, key)
		return
	}

	m.expires[key] = expireAt.UnixNano()
}

// Delete deletes the key. Returns true if the key existed and was deleted
func (m *MapStorage) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.evictLocked(key) {
		return false
	}

	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		delete(m.expires, key)
		return true
	}
	return false
}

// Expire sets a new expiration instant for an existing key
func (m *MapStorage) Expire(key string, expireAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.evictLocked(key) {
		return false
	}

	if _, ok := m.data[key]; !ok {
		return false
	}

	m.expires[key] = expireAt.UnixNano()
	return true
}

// Expiry returns the remaining lifetime and status as expiryStatus
func (m *MapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	m.mu.RLock()

	_, ok := m.data[key]
	exp, hasExp := m.expires[key]

	m.mu.RUnlock()

	// key does not exist
	if !ok {
		return 0, ExpNotFound
	}

	// key without TTL
	if !hasExp {
		return 0, ExpNoTimeout
	}

	now := m.now().UnixNano()

	if now >= exp {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.evictLocked(key) {
			return 0, ExpNotFound
		}

		if _, ok = m.data[key]; !ok {
			return 0, ExpNotFound
		}

		exp, hasExp = m.expires[key]
		if !hasExp {
			return 0, ExpNoTimeout
		}

		return time.Duration(exp - m.now().UnixNano()), ExpActive
	}

	return time.Duration(exp - now), ExpActive
}

// Flush removes every key and expiration
func (m *MapStorage) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
	m.expires = make(map[string]int64)
}

// Len returns the number of keys held, expired or not
func (m *MapStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// evictLocked removes the key if its expiration has passed and reports whether it did.
// m.mu must be held for writing
func (m *MapStorage) evictLocked(key string) bool {
	exp, hasExp := m.expires[key]
	if !hasExp || m.now().UnixNano() < exp {
		return false
	}

	delete(m.data, key)
	delete(m.expires, key)
	return true
}
