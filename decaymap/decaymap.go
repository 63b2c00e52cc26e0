// Package decaymap is a small generic map whose entries expire after a
// per-entry time to live.
package decaymap

import (
	"sync"
	"time"
)

// Zilch returns the zero value of T.
func Zilch[T any]() T {
	var zero T
	return zero
}

// Impl is a lazy key->value map. Expired entries are invisible to readers and
// are removed on access or by Cleanup.
type Impl[K comparable, V any] struct {
	data map[K]decayMapEntry[V]
	lock sync.RWMutex

	// Now is the clock used for expiry decisions. Tests may replace it.
	Now func() time.Time
}

type decayMapEntry[V any] struct {
	Value  V
	expiry time.Time
}

// New creates a new DecayMap of key type K and value type V.
//
// Key types must be comparable to work with maps.
func New[K comparable, V any]() *Impl[K, V] {
	return &Impl[K, V]{
		data: make(map[K]decayMapEntry[V]),
		Now:  time.Now,
	}
}

// expire forcibly expires a key by deleting it from the map if it is still
// past its expiry once the write lock is held.
func (m *Impl[K, V]) expire(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	val, ok := m.data[key]
	if !ok {
		return false
	}

	if m.Now().After(val.expiry) {
		delete(m.data, key)
		return true
	}

	return false
}

// Delete removes a live entry. It reports whether an unexpired entry was
// present. Exactly one of several concurrent callers for the same key
// observes true.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	val, ok := m.data[key]
	if !ok {
		return false
	}

	delete(m.data, key)
	return !m.Now().After(val.expiry)
}

// Get gets a value from the DecayMap by key.
//
// If a value has expired, forcibly delete it if it was not updated.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	value, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return Zilch[V](), false
	}

	if m.Now().After(value.expiry) {
		m.expire(key)
		return Zilch[V](), false
	}

	return value.Value, true
}

// Set sets a key value pair in the map.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = decayMapEntry[V]{
		Value:  value,
		expiry: m.Now().Add(ttl),
	}
}

// SetIfAbsent stores value only when no live entry exists for key. It reports
// whether the value was stored.
func (m *Impl[K, V]) SetIfAbsent(key K, value V, ttl time.Duration) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.Now()
	if val, ok := m.data[key]; ok && !now.After(val.expiry) {
		return false
	}

	m.data[key] = decayMapEntry[V]{
		Value:  value,
		expiry: now.Add(ttl),
	}
	return true
}

// Cleanup removes all expired entries from the DecayMap.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.Now()
	for key, val := range m.data {
		if now.After(val.expiry) {
			delete(m.data, key)
		}
	}
}

// Len returns the number of entries, expired or not, currently held.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.data)
}
