// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFOCache(t *testing.T) {
	tests := []struct {
		name     string
		put      string
		lookup   string
		expected int
		found    bool
		length   int
	}{
		{
			name:     "fresh cache",
			put:      "test1",
			lookup:   "test1",
			expected: 1,
			found:    true,
			length:   1,
		},
		{
			name:     "second key",
			put:      "test2",
			lookup:   "test1",
			expected: 1,
			found:    true,
			length:   2,
		},
		{
			name:   "first item evicted",
			put:    "test3",
			lookup: "test1",
			found:  false,
			length: 2,
		},
		{
			name:     "newest retained",
			put:      "test4",
			lookup:   "test4",
			expected: 4,
			found:    true,
			length:   2,
		},
	}

	cache := NewFIFOCache[string, int](2)
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			cache.Put(tt.put, i+1)
			val, ok := cache.Get(tt.lookup)
			require.Equal(tt.found, ok)
			require.Equal(tt.expected, val)
			require.Equal(tt.length, cache.Len())
		})
	}
}

func TestFIFOCacheOverwrite(t *testing.T) {
	require := require.New(t)

	cache := NewFIFOCache[string, int](2)
	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("a", 3)
	require.Equal(2, cache.Len())

	// "a" keeps its original slot, so it is evicted first
	cache.Put("c", 4)
	_, ok := cache.Get("a")
	require.False(ok)

	val, ok := cache.Get("b")
	require.True(ok)
	require.Equal(2, val)
}

func TestFIFOCacheZeroCapacity(t *testing.T) {
	require := require.New(t)

	cache := NewFIFOCache[int, int](0)
	cache.Put(1, 1)
	cache.Put(2, 2)
	require.Equal(1, cache.Len())

	val, ok := cache.Get(2)
	require.True(ok)
	require.Equal(2, val)
}
