package ssdtree

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/zipcache/internal/wordval"
)

func openTestTree(t *testing.T) *Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.ssd")
	tr, err := Open(Config{Path: path, TotalBlocks: 4096})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestPutGetDelete(t *testing.T) {
	tr := openTestTree(t)
	val, _ := wordval.EncodeInline([]byte("hi"))

	if err := tr.Put(1, val); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, found, err := tr.Get(1)
	if err != nil || !found {
		t.Fatalf("Get(1) = %v, %v, %v", got, found, err)
	}
	if got != val {
		t.Fatalf("Get(1) = %v, want %v", got, val)
	}

	ok, err := tr.Delete(1)
	if err != nil || !ok {
		t.Fatalf("Delete(1) = %v, %v", ok, err)
	}
	if _, found, _ := tr.Get(1); found {
		t.Fatal("Get(1) should miss after delete")
	}
}

func TestManyKeysRoundTrip(t *testing.T) {
	tr := openTestTree(t)
	const n = 2000
	for i := uint32(0); i < n; i++ {
		val, _ := wordval.EncodeInline([]byte{byte(i), byte(i >> 8)})
		if err := tr.Put(i, val); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < n; i++ {
		got, found, err := tr.Get(i)
		if err != nil || !found {
			t.Fatalf("Get(%d) = %v, %v, %v", i, got, found, err)
		}
		want, _ := wordval.EncodeInline([]byte{byte(i), byte(i >> 8)})
		if got != want {
			t.Fatalf("Get(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestFlushAll(t *testing.T) {
	tr := openTestTree(t)
	val, _ := wordval.EncodeInline([]byte("flush-me"))
	if err := tr.Put(7, val); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tr.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
}
