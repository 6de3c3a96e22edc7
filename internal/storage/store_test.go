package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStore tests the in-memory store implementation
func TestMemoryStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewMemoryStore("A")

		assert.Empty(t, store.List())
		_, err := store.Get("nonexistent")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.Equal(t, StoreStats{}, store.Stats())
	})

	t.Run("put and get values", func(t *testing.T) {
		store := NewMemoryStore("A")

		e := store.Put("key1", []byte("value1"))
		assert.Equal(t, uint64(1), e.Version)
		assert.Equal(t, "A", e.Origin)

		value, err := store.Get("key1")
		require.NoError(t, err)
		assert.Equal(t, []byte("value1"), value)
	})

	t.Run("binary values round trip", func(t *testing.T) {
		store := NewMemoryStore("A")
		raw := []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}

		store.Put("bin", raw)
		value, err := store.Get("bin")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(raw, value))
	})

	t.Run("empty value is stored", func(t *testing.T) {
		store := NewMemoryStore("A")

		store.Put("empty", nil)
		value, err := store.Get("empty")
		require.NoError(t, err)
		assert.NotNil(t, value)
		assert.Len(t, value, 0)
	})

	t.Run("overwrite existing key", func(t *testing.T) {
		store := NewMemoryStore("A")

		first := store.Put("key1", []byte("value1"))
		second := store.Put("key1", []byte("value2"))
		assert.True(t, second.Newer(first))

		value, err := store.Get("key1")
		require.NoError(t, err)
		assert.Equal(t, []byte("value2"), value)
	})

	t.Run("delete values", func(t *testing.T) {
		store := NewMemoryStore("A")

		store.Put("key1", []byte("value1"))
		require.NoError(t, store.Delete("key1"))

		_, err := store.Get("key1")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.Empty(t, store.List())

		// Delete of non-existent key should not error
		assert.NoError(t, store.Delete("nonexistent"))
	})

	t.Run("list keys sorted", func(t *testing.T) {
		store := NewMemoryStore("A")
		for _, k := range []string{"key3", "key1", "key2"} {
			store.Put(k, []byte(k))
		}
		assert.Equal(t, []string{"key1", "key2", "key3"}, store.List())
	})

	t.Run("stats", func(t *testing.T) {
		store := NewMemoryStore("A")
		store.Put("a", []byte("12345"))
		store.Put("b", []byte("123"))
		store.Put("a", []byte("1"))

		assert.Equal(t, StoreStats{Keys: 2, Bytes: 4}, store.Stats())
	})

	t.Run("values are copied", func(t *testing.T) {
		store := NewMemoryStore("A")
		original := []byte("value")
		store.Put("key", original)
		original[0] = 'X'

		value, _ := store.Get("key")
		assert.Equal(t, []byte("value"), value)

		value[0] = 'Y'
		again, _ := store.Get("key")
		assert.Equal(t, []byte("value"), again)
	})
}

// TestEntryOrdering verifies the version-then-origin ordering.
func TestEntryOrdering(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Entry
		newer bool
	}{
		{"higher version", Entry{Version: 2, Origin: "A"}, Entry{Version: 1, Origin: "B"}, true},
		{"lower version", Entry{Version: 1, Origin: "B"}, Entry{Version: 2, Origin: "A"}, false},
		{"tie broken by origin", Entry{Version: 3, Origin: "B"}, Entry{Version: 3, Origin: "A"}, true},
		{"identical", Entry{Version: 3, Origin: "A"}, Entry{Version: 3, Origin: "A"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.newer, tt.a.Newer(tt.b))
		})
	}
}

// TestApply verifies that replicas converge regardless of arrival order.
func TestApply(t *testing.T) {
	t.Run("newer entry replaces", func(t *testing.T) {
		store := NewMemoryStore("B")
		store.Put("k", []byte("local"))

		applied := store.Apply("k", Entry{Value: []byte("remote"), Version: 5, Origin: "A"})
		assert.True(t, applied)

		value, _ := store.Get("k")
		assert.Equal(t, []byte("remote"), value)
	})

	t.Run("older entry is ignored", func(t *testing.T) {
		store := NewMemoryStore("B")
		store.Apply("k", Entry{Value: []byte("new"), Version: 5, Origin: "A"})

		applied := store.Apply("k", Entry{Value: []byte("old"), Version: 4, Origin: "A"})
		assert.False(t, applied)

		value, _ := store.Get("k")
		assert.Equal(t, []byte("new"), value)
	})

	t.Run("apply advances the clock", func(t *testing.T) {
		store := NewMemoryStore("B")
		store.Apply("k", Entry{Value: []byte("remote"), Version: 41, Origin: "A"})

		e := store.Put("k", []byte("local"))
		assert.Equal(t, uint64(42), e.Version)
	})

	t.Run("arrival order does not matter", func(t *testing.T) {
		entries := []Entry{
			{Value: []byte("one"), Version: 1, Origin: "A"},
			{Value: []byte("two"), Version: 2, Origin: "C"},
			{Value: []byte("three"), Version: 2, Origin: "B"},
		}
		forward := NewMemoryStore("X")
		backward := NewMemoryStore("Y")
		for i := range entries {
			forward.Apply("k", entries[i])
			backward.Apply("k", entries[len(entries)-1-i])
		}

		f, _ := forward.Entry("k")
		b, _ := backward.Entry("k")
		assert.Equal(t, f, b)
		assert.Equal(t, []byte("two"), f.Value)
	})
}

// TestConcurrentAccess exercises the store from many goroutines.
func TestConcurrentAccess(t *testing.T) {
	store := NewMemoryStore("A")
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				store.Put(key, []byte(key))
				_, _ = store.Get(key)
				store.Apply(key, Entry{Value: []byte("r"), Version: uint64(j), Origin: "B"})
				_ = store.List()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, store.Stats().Keys)
}
