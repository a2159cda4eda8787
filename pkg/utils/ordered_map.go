package utils

import "encoding/json"

// OrderedMap is a map that remembers insertion order, used wherever iteration order must
// match declaration order (class fields, subroutine arguments, compiled classes, ...) while
// still allowing O(1) lookup by key.
type OrderedMap[K comparable, V any] struct {
	index map[K]int
	pairs []MapEntry[K, V]
}

// NewOrderedMapFromList builds an OrderedMap preserving the order of the given entries,
// overwriting earlier pairs on key collision (last one wins, as with a regular map literal).
func NewOrderedMapFromList[K comparable, V any](entries []MapEntry[K, V]) OrderedMap[K, V] {
	m := OrderedMap[K, V]{}
	for _, entry := range entries {
		m.Set(entry.Key, entry.Value)
	}
	return m
}

// MapEntry is a single key/value pair as stored (in insertion order) inside an OrderedMap.
type MapEntry[K comparable, V any] struct {
	Key   K
	Value V
}

// Set inserts or updates the value associated with 'key'. Updating an existing key keeps
// its original position; inserting a new key appends it at the end.
func (m *OrderedMap[K, V]) Set(key K, value V) {
	if m.index == nil {
		m.index = map[K]int{}
	}

	if i, found := m.index[key]; found {
		m.pairs[i].Value = value
		return
	}

	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, MapEntry[K, V]{Key: key, Value: value})
}

// Get returns the value associated with 'key' and whether it was found.
func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	if i, found := m.index[key]; found {
		return m.pairs[i].Value, true
	}

	var zero V
	return zero, false
}

// Has reports whether 'key' is present in the map.
func (m *OrderedMap[K, V]) Has(key K) bool {
	_, found := m.index[key]
	return found
}

// Len returns the number of entries currently stored.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.pairs)
}

// Keys returns the stored keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	keys := make([]K, 0, len(m.pairs))
	for _, p := range m.pairs {
		keys = append(keys, p.Key)
	}
	return keys
}

// Entries returns the stored key/value pairs in insertion order.
func (m *OrderedMap[K, V]) Entries() []MapEntry[K, V] {
	return m.pairs
}

// Iterator yields each entry in insertion order, stopping early if yield returns false.
func (m *OrderedMap[K, V]) Iterator() func(yield func(MapEntry[K, V]) bool) {
	return func(yield func(MapEntry[K, V]) bool) {
		for _, p := range m.pairs {
			if !yield(p) {
				return
			}
		}
	}
}

// MarshalJSON encodes the map as its ordered list of pairs, since a plain JSON object
// would not roundtrip insertion order (and Go's map type has no order to begin with).
func (m OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.pairs)
}

func (m *OrderedMap[K, V]) UnmarshalJSON(data []byte) error {
	var pairs []MapEntry[K, V]
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}

	*m = NewOrderedMapFromList(pairs)
	return nil
}
