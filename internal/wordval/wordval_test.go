package wordval

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeInline(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x01},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
	}
	for _, b := range cases {
		w, ok := EncodeInline(b)
		if !ok {
			t.Fatalf("EncodeInline(%v) returned ok=false", b)
		}
		if IsTombstone(w) || IsRef(w) {
			t.Fatalf("EncodeInline(%v) produced a word that looks like a tombstone/ref", b)
		}
		got := DecodeInline(w)
		if !bytes.Equal(got, b) && !(len(b) == 0 && len(got) == 0) {
			t.Fatalf("DecodeInline(EncodeInline(%v)) = %v", b, got)
		}
	}
}

func TestEncodeInlineRejectsOversize(t *testing.T) {
	if _, ok := EncodeInline(bytes.Repeat([]byte{1}, 8)); ok {
		t.Fatal("expected EncodeInline to reject 8 bytes")
	}
}

func TestEncodeDecodeRef(t *testing.T) {
	for _, id := range []uint64{0, 1, 1234567, 1 << 40} {
		w := EncodeRef(id)
		if IsTombstone(w) {
			t.Fatalf("EncodeRef(%d) collided with the tombstone sentinel", id)
		}
		if !IsRef(w) {
			t.Fatalf("EncodeRef(%d) not recognized by IsRef", id)
		}
		if got := DecodeRef(w); got != id {
			t.Fatalf("DecodeRef(EncodeRef(%d)) = %d", id, got)
		}
	}
}

func TestTombstoneDistinctFromRef(t *testing.T) {
	if !IsTombstone(Tombstone) {
		t.Fatal("Tombstone must report IsTombstone")
	}
	if IsRef(Tombstone) {
		t.Fatal("Tombstone must not be mistaken for a ref")
	}
}
