package dramtree

import (
	"testing"

	"github.com/iamNilotpal/zipcache/internal/codec"
	"github.com/iamNilotpal/zipcache/internal/wordval"
)

func newTestTree(t *testing.T, lazy bool) *Tree {
	t.Helper()
	c, err := codec.New(codec.Fast, 0)
	if err != nil {
		t.Fatalf("codec.New: %v", err)
	}
	tr := New(Config{NumSubPages: 4, Codec: c, MaxBufferEntries: 16, LazyCompression: lazy})
	t.Cleanup(tr.Close)
	return tr
}

func TestPutGetDeleteSync(t *testing.T) {
	tr := newTestTree(t, false)
	val, _ := wordval.EncodeInline([]byte("v"))

	if err := tr.Put(1, val); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, found, err := tr.Get(1)
	if err != nil || !found || got != val {
		t.Fatalf("Get(1) = %v, %v, %v", got, found, err)
	}
	ok, err := tr.Delete(1)
	if err != nil || !ok {
		t.Fatalf("Delete(1) = %v, %v", ok, err)
	}
	if _, found, _ := tr.Get(1); found {
		t.Fatal("Get(1) should miss after delete")
	}
}

func TestPutGetLazyBufferedThenMerged(t *testing.T) {
	tr := newTestTree(t, true)
	val, _ := wordval.EncodeInline([]byte("buffered"))

	if err := tr.Put(2, val); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Get must see the buffered value even before the background worker
	// has merged it into the compressed region.
	got, found, err := tr.Get(2)
	if err != nil || !found || got != val {
		t.Fatalf("Get(2) = %v, %v, %v", got, found, err)
	}
}

func TestManyKeysForceSplits(t *testing.T) {
	tr := newTestTree(t, false)
	const n = 3000
	for i := uint32(0); i < n; i++ {
		val, _ := wordval.EncodeInline([]byte{byte(i)})
		if err := tr.Put(i, val); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < n; i++ {
		got, found, err := tr.Get(i)
		want, _ := wordval.EncodeInline([]byte{byte(i)})
		if err != nil || !found || got != want {
			t.Fatalf("Get(%d) = %v, %v, %v, want %v", i, got, found, err, want)
		}
	}
}

func TestStatsReflectsCompressedRegions(t *testing.T) {
	tr := newTestTree(t, false)
	val, _ := wordval.EncodeInline([]byte("stat-me"))
	if err := tr.Put(1, val); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s := tr.Stats()
	if s.UncompressedBytes == 0 {
		t.Fatal("expected non-zero uncompressed footprint after a put")
	}
}

func TestSweepNoOpWithNonPositiveTarget(t *testing.T) {
	tr := newTestTree(t, false)
	val, _ := wordval.EncodeInline([]byte("x"))
	tr.Put(1, val)

	migrated, freed, err := tr.Sweep(0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if migrated != nil || freed != 0 {
		t.Fatalf("Sweep(0) = %v, %d, want nil, 0", migrated, freed)
	}
}

func TestSweepMigratesAfterTwoRotationsAndClearsLeaves(t *testing.T) {
	tr := newTestTree(t, false)
	const n = 100
	for i := uint32(0); i < n; i++ {
		val, _ := wordval.EncodeInline([]byte{byte(i)})
		if err := tr.Put(i, val); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	migrated, freed, err := tr.Sweep(1)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(migrated) == 0 {
		t.Fatal("expected at least one migrated entry")
	}
	if freed <= 0 {
		t.Fatalf("freed = %d, want > 0", freed)
	}

	// Every migrated fingerprint must now be absent from the DRAM tree —
	// its leaf was drained to empty.
	for _, m := range migrated {
		if _, found, _ := tr.Get(m.FP); found {
			t.Fatalf("Get(%d) still found after eviction sweep", m.FP)
		}
	}
}

func TestScanNotSupported(t *testing.T) {
	tr := newTestTree(t, false)
	if err := tr.Scan(); err == nil {
		t.Fatal("expected Scan to report an error")
	}
}
