package storage

import (
	"strconv"
	"testing"
	"time"
)

const benchKeys = 1024

var benchKeyNames = func() []string {
	keys := make([]string, benchKeys)
	for i := range keys {
		keys[i] = "key:" + strconv.Itoa(i)
	}
	return keys
}()

func benchImplementations() map[string]func() Storage {
	sharded := func(n uint) func() Storage {
		return func() Storage {
			s, _ := NewShardedMapStorage(n) //nolint:errcheck
			return s
		}
	}

	return map[string]func() Storage{
		"Map":        func() Storage { return NewMapStorage() },
		"Sharded_16": sharded(16),
		"Sharded_64": sharded(64),
	}
}

// benchWorkload runs op with a per-goroutine counter against a prepared storage
type benchWorkload struct {
	name    string
	prepare func(s Storage)
	op      func(s Storage, i int)
}

func fill(expireAt time.Time) func(s Storage) {
	return func(s Storage) {
		for _, key := range benchKeyNames {
			s.Set(key, "value", expireAt)
		}
	}
}

func BenchmarkStorage(b *testing.B) {
	workloads := []benchWorkload{
		{
			name:    "Get",
			prepare: fill(time.Time{}),
			op: func(s Storage, i int) {
				s.Get(benchKeyNames[i%benchKeys])
			},
		},
		{
			name:    "SetGet10-90",
			prepare: fill(time.Time{}),
			op: func(s Storage, i int) {
				key := benchKeyNames[i%benchKeys]
				if i%10 == 0 {
					s.Set(key, "new", time.Time{})
					return
				}
				s.Get(key)
			},
		},
		{
			// every read finds a key past its deadline and evicts it
			name:    "GetExpired",
			prepare: fill(time.Unix(1, 0)),
			op: func(s Storage, i int) {
				key := benchKeyNames[i%benchKeys]
				if _, ok := s.Get(key); !ok {
					s.Set(key, "value", time.Unix(1, 0))
				}
			},
		},
		{
			name:    "ExpireTTL",
			prepare: fill(time.Time{}),
			op: func(s Storage, i int) {
				key := benchKeyNames[i%benchKeys]
				if i%2 == 0 {
					s.Expire(key, time.Now().Add(time.Hour))
					return
				}
				s.Expiry(key)
			},
		},
		{
			name:    "DeleteSet",
			prepare: fill(time.Time{}),
			op: func(s Storage, i int) {
				key := benchKeyNames[i%benchKeys]
				if !s.Delete(key) {
					s.Set(key, "value", time.Now().Add(time.Minute))
				}
			},
		},
	}

	for implName, newStorage := range benchImplementations() {
		for _, w := range workloads {
			b.Run(implName+"/"+w.name, func(b *testing.B) {
				s := newStorage()
				w.prepare(s)

				b.ResetTimer()
				b.RunParallel(func(pb *testing.PB) {
					i := 0
					for pb.Next() {
						w.op(s, i)
						i++
					}
				})
			})
		}
	}
}
