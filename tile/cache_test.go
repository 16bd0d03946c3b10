// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"testing"

	"github.com/paulmach/orb/maptile"

	"github.com/gogpu/geoviz"
	"github.com/gogpu/geoviz/schema"
)

func testDF(t *testing.T) *geoviz.Dataframe {
	t.Helper()
	df, err := geoviz.NewPoints([]float32{0, 0}, nil, schema.Schema{})
	if err != nil {
		t.Fatalf("NewPoints: %v", err)
	}
	return df
}

func TestCacheHitMiss(t *testing.T) {
	c, err := NewCache(CacheConfig{Capacity: 4})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	key := maptile.New(0, 0, 0)

	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache should miss")
	}
	df := testDF(t)
	c.Set(key, df)
	got, ok := c.Get(key)
	if !ok || got != df {
		t.Fatalf("Get after Set = (%v, %v), want the cached dataframe", got, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Len != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, len 1", stats)
	}
}

func TestCacheEvictsLRU(t *testing.T) {
	var evicted []Key
	c, err := NewCache(CacheConfig{
		Capacity: 2,
		OnEvict:  func(k Key, df *geoviz.Dataframe) { evicted = append(evicted, k); df.Free() },
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	k := func(x uint32) Key { return maptile.New(x, 0, 3) }
	dfs := map[uint32]*geoviz.Dataframe{}
	for _, x := range []uint32{0, 1} {
		dfs[x] = testDF(t)
		c.Set(k(x), dfs[x])
	}

	// Touch 0 so 1 is the eviction victim.
	if _, ok := c.Get(k(0)); !ok {
		t.Fatal("expected hit")
	}
	dfs[2] = testDF(t)
	c.Set(k(2), dfs[2])

	if len(evicted) != 1 || evicted[0] != k(1) {
		t.Fatalf("evicted = %v, want [%v]", evicted, k(1))
	}
	if !dfs[1].Released() {
		t.Error("evicted dataframe should be freed")
	}
	if dfs[0].Released() || dfs[2].Released() {
		t.Error("resident dataframes must stay live")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestCacheRemoveRunsHookOnce(t *testing.T) {
	calls := 0
	c, err := NewCache(CacheConfig{
		Capacity: 2,
		OnEvict:  func(_ Key, df *geoviz.Dataframe) { calls++; df.Free() },
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	key := maptile.New(0, 0, 0)
	df := testDF(t)
	c.Set(key, df)

	if !c.Remove(key) {
		t.Fatal("Remove should report presence")
	}
	if c.Remove(key) {
		t.Fatal("second Remove should be a no-op")
	}
	if calls != 1 {
		t.Errorf("eviction hook ran %d times, want 1", calls)
	}
	if !df.Released() {
		t.Error("removed dataframe should be freed")
	}
}

func TestCacheReplaceEvictsOld(t *testing.T) {
	freed := 0
	c, err := NewCache(CacheConfig{
		Capacity: 2,
		OnEvict:  func(_ Key, df *geoviz.Dataframe) { freed++; df.Free() },
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	key := maptile.New(0, 0, 0)
	old := testDF(t)
	c.Set(key, old)
	c.Set(key, testDF(t))

	if freed != 1 || !old.Released() {
		t.Errorf("replacing a key should evict the old dataframe (freed=%d)", freed)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	freed := 0
	c, err := NewCache(CacheConfig{
		Capacity: 8,
		OnEvict:  func(_ Key, df *geoviz.Dataframe) { freed++; df.Free() },
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	for x := uint32(0); x < 3; x++ {
		c.Set(maptile.New(x, 0, 2), testDF(t))
	}
	c.Clear()
	if freed != 3 || c.Len() != 0 {
		t.Errorf("Clear freed %d of 3, len %d", freed, c.Len())
	}
}

func TestNewCacheValidates(t *testing.T) {
	if _, err := NewCache(CacheConfig{Capacity: -1}); err == nil {
		t.Error("negative capacity should fail")
	}
	c, err := NewCache(CacheConfig{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if c.cap != DefaultCapacity {
		t.Errorf("default capacity = %d, want %d", c.cap, DefaultCapacity)
	}
}
