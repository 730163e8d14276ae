package store

import (
	"sort"
	"strings"
	"sync"
)

// KeyIndex maps top-level field keys to the offsets of their records in a
// log. Keys may repeat in a log, so each key holds every offset in file order.
type KeyIndex struct {
	entries map[string][]int64
	mutex   sync.RWMutex
}

// NewKeyIndex creates an empty key index
func NewKeyIndex() *KeyIndex {
	return &KeyIndex{
		entries: make(map[string][]int64),
	}
}

// Add records that a field with key starts at offset
func (idx *KeyIndex) Add(key string, offset int64) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries[key] = append(idx.entries[key], offset)
}

// Offsets returns a copy of the record offsets for key
func (idx *KeyIndex) Offsets(key string) ([]int64, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	offsets, exists := idx.entries[key]
	if !exists {
		return nil, false
	}
	return append([]int64(nil), offsets...), true
}

// Size returns the number of distinct keys in the index
func (idx *KeyIndex) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.entries)
}

// Clear removes all entries from the index
func (idx *KeyIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[string][]int64)
}

// Keys returns all keys in sorted order
func (idx *KeyIndex) Keys() []string {
	return idx.KeysWithPrefix("")
}

// KeysWithPrefix returns the sorted keys that start with prefix
func (idx *KeyIndex) KeysWithPrefix(prefix string) []string {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	keys := make([]string, 0, len(idx.entries))
	for key := range idx.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// BuildFromLog replaces the index contents with the fields of the log behind
// reader, scanning from the start. On a corrupt record the fields before it
// stay indexed and the error is returned.
func (idx *KeyIndex) BuildFromLog(reader *LogReader) error {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[string][]int64)

	if err := reader.Seek(0); err != nil {
		return err
	}

	iterator := reader.Iterator()
	defer iterator.Close()

	for iterator.Next() {
		key := iterator.Field().Key
		idx.entries[key] = append(idx.entries[key], iterator.Offset())
	}
	return iterator.Err()
}

// Stats returns index statistics
func (idx *KeyIndex) Stats() *IndexStats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	stats := &IndexStats{TotalKeys: len(idx.entries)}
	for _, offsets := range idx.entries {
		stats.TotalRecords += len(offsets)
	}
	return stats
}

// IndexStats holds statistics about the index
type IndexStats struct {
	TotalKeys    int
	TotalRecords int
}
