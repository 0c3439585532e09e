package orchestrator

import (
	"bytes"
	"testing"

	"github.com/iamNilotpal/zipcache/pkg/logger"
	"github.com/iamNilotpal/zipcache/pkg/options"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()

	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.TinyMax = 7
	opts.MediumMax = 64
	opts.LargeThreshold = 256
	opts.SSD.Total4KBBlocks = 1024
	opts.Dram.NumSubPages = 4

	o, err := Open(&opts, logger.New("orchestrator-test"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestPutGetTiny(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.Put([]byte("k1"), []byte("small")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := o.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("small")) {
		t.Fatalf("got %q, want %q", got, "small")
	}
}

func TestPutGetMediumSpillsToObjectStore(t *testing.T) {
	o := newTestOrchestrator(t)
	value := bytes.Repeat([]byte("x"), 40) // > tinyMax(7), <= mediumMax(64)

	if err := o.Put([]byte("medium-key"), value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := o.Get([]byte("medium-key"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("got %d bytes, want %d", len(got), len(value))
	}
}

func TestPutGetLargeRoutesThroughLargeObjectIndex(t *testing.T) {
	o := newTestOrchestrator(t)
	value := bytes.Repeat([]byte("y"), 200) // > mediumMax(64), <= largeThreshold(256)

	if err := o.Put([]byte("big-key"), value); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The DRAM tree must hold a tombstone for this fingerprint, not the
	// payload itself.
	s := o.Stats()
	if s.PutsLarge != 1 || s.Tombstones != 1 {
		t.Fatalf("stats after large put = %+v, want PutsLarge=1 Tombstones=1", s)
	}

	got, err := o.Get([]byte("big-key"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("got %d bytes, want %d", len(got), len(value))
	}
}

func TestPutOversizeRejected(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.Put([]byte("k"), bytes.Repeat([]byte("z"), 1000)); err == nil {
		t.Fatal("expected invalid_size error for oversize put")
	}
	if err := o.Put([]byte("k"), nil); err == nil {
		t.Fatal("expected invalid_size error for zero-length put")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	o := newTestOrchestrator(t)
	if _, err := o.Get([]byte("absent")); err == nil {
		t.Fatal("expected not_found error for absent key")
	}
}

func TestPutInvalidatesPriorLargeDescriptorOnDemote(t *testing.T) {
	o := newTestOrchestrator(t)
	key := []byte("shrinking-key")

	large := bytes.Repeat([]byte("a"), 200)
	if err := o.Put(key, large); err != nil {
		t.Fatalf("large Put: %v", err)
	}

	small := []byte("tiny")
	if err := o.Put(key, small); err != nil {
		t.Fatalf("tiny Put: %v", err)
	}

	got, err := o.Get(key)
	if err != nil {
		t.Fatalf("Get after demote: %v", err)
	}
	if !bytes.Equal(got, small) {
		t.Fatalf("got %q, want %q — stale large-object descriptor was not invalidated", got, small)
	}
}

func TestDeleteIsIdempotentAndRemovesAcrossTiers(t *testing.T) {
	o := newTestOrchestrator(t)
	key := []byte("del-key")
	if err := o.Put(key, []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := o.Delete(key); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if _, err := o.Get(key); err == nil {
		t.Fatal("expected not_found after delete")
	}
	if err := o.Delete(key); err == nil {
		t.Fatal("expected not_found deleting an already-absent key")
	}
}

func TestManyKeysSurviveLeafSplits(t *testing.T) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.SSD.Total4KBBlocks = 1024
	opts.Dram.NumSubPages = 1 // one sub-page per leaf forces splits quickly

	o, err := Open(&opts, logger.New("orchestrator-split-test"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { o.Close() })

	const n = 1000
	for i := 0; i < n; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		if err := o.Put(key, []byte{byte(i)}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		got, err := o.Get(key)
		if err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
		if len(got) != 1 || got[0] != byte(i) {
			t.Fatalf("Get %d = %v, want [%d]", i, got, byte(i))
		}
	}
}

func TestStatsTracksHitsAndMisses(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.Put([]byte("hk"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := o.Get([]byte("hk")); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := o.Get([]byte("missing")); err == nil {
		t.Fatal("expected miss")
	}

	s := o.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Gets != 2 {
		t.Fatalf("stats = %+v, want Hits=1 Misses=1 Gets=2", s)
	}
}

func TestSweepMigratesColdLeavesToSSD(t *testing.T) {
	o := newTestOrchestrator(t)
	const n = 200
	for i := 0; i < n; i++ {
		key := []byte{byte(i), byte(i >> 8), 0xAA}
		if err := o.Put(key, []byte{byte(i)}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	migrated, _, err := o.dram.Sweep(1)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(migrated) == 0 {
		t.Fatal("expected at least one entry migrated on a forced sweep")
	}

	for _, m := range migrated {
		if err := o.ssd.Put(m.FP, m.Val); err != nil {
			t.Fatalf("ssd.Put after migration: %v", err)
		}
	}

	// Every migrated fingerprint must now answer from the SSD tree since the
	// DRAM leaf that held it was drained.
	for _, m := range migrated {
		if _, found, err := o.ssd.Get(m.FP); err != nil || !found {
			t.Fatalf("ssd.Get(%d) = found=%v err=%v, want found", m.FP, found, err)
		}
	}
}

