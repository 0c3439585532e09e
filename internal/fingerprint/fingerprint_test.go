package fingerprint

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	a := Of([]byte("hello"))
	b := Of([]byte("hello"))
	if a != b {
		t.Fatalf("Of(\"hello\") not deterministic: %d != %d", a, b)
	}
	if Of([]byte("hello")) == Of([]byte("world")) {
		t.Fatal("distinct keys should not collide in this small sample")
	}
}

func TestOfNeverReturnsZero(t *testing.T) {
	// Exhaustively exercising xxhash's zero-preimage isn't practical here;
	// instead verify the reserved-remap path directly reachable via Of's
	// contract: no key this test feeds in should ever produce 0.
	keys := [][]byte{nil, {}, {0}, []byte("a"), []byte("zipcache")}
	for _, k := range keys {
		if Of(k) == 0 {
			t.Fatalf("Of(%v) returned 0", k)
		}
	}
}

func TestSlotWithinRange(t *testing.T) {
	for n := 1; n <= 16; n *= 2 {
		for _, fp := range []Fingerprint{0, 1, 42, 1 << 31, ^Fingerprint(0)} {
			s := Slot(fp, n)
			if s < 0 || s >= n {
				t.Fatalf("Slot(%d, %d) = %d, out of range", fp, n, s)
			}
		}
	}
}

func TestSlotStableForSameInputs(t *testing.T) {
	fp := Of([]byte("stable-key"))
	a := Slot(fp, 8)
	b := Slot(fp, 8)
	if a != b {
		t.Fatalf("Slot not stable: %d != %d", a, b)
	}
}
