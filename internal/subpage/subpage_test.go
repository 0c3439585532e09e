package subpage

import (
	"testing"

	"github.com/iamNilotpal/zipcache/internal/wordval"
)

func TestInsertSearchDelete(t *testing.T) {
	p := New()
	if _, ok := p.Search(1); ok {
		t.Fatal("empty page should not find anything")
	}
	if !p.Insert(5, wordval.Word(55)) {
		t.Fatal("insert into empty page should succeed")
	}
	if !p.Insert(3, wordval.Word(33)) {
		t.Fatal("insert should succeed")
	}
	if !p.Insert(9, wordval.Word(99)) {
		t.Fatal("insert should succeed")
	}

	fps, _ := p.All()
	want := []uint32{3, 5, 9}
	if len(fps) != len(want) {
		t.Fatalf("All() = %v, want sorted %v", fps, want)
	}
	for i := range want {
		if fps[i] != want[i] {
			t.Fatalf("All() = %v, want sorted %v", fps, want)
		}
	}

	if v, ok := p.Search(5); !ok || v != wordval.Word(55) {
		t.Fatalf("Search(5) = %v, %v", v, ok)
	}
	if !p.Delete(5) {
		t.Fatal("Delete(5) should succeed")
	}
	if _, ok := p.Search(5); ok {
		t.Fatal("Search(5) should miss after delete")
	}
	if p.Delete(5) {
		t.Fatal("second Delete(5) should report false")
	}
}

func TestInsertOverwrite(t *testing.T) {
	p := New()
	p.Insert(1, wordval.Word(1))
	p.Insert(1, wordval.Word(2))
	if v, ok := p.Search(1); !ok || v != wordval.Word(2) {
		t.Fatalf("overwrite failed: got %v, %v", v, ok)
	}
	if p.Entries != 1 {
		t.Fatalf("Entries = %d, want 1 after overwrite", p.Entries)
	}
}

func TestInsertReportsFullButAllowsOverwrite(t *testing.T) {
	p := New()
	for i := 0; i < Cap; i++ {
		if !p.Insert(uint32(i), wordval.Word(i)) {
			t.Fatalf("insert %d should succeed before capacity", i)
		}
	}
	if !p.IsFull() {
		t.Fatal("expected page to report full at capacity")
	}
	if p.Insert(uint32(Cap+1000), wordval.Word(1)) {
		t.Fatal("insert of a new key past capacity should fail")
	}
	// Overwriting an existing key must still succeed even when full.
	if !p.Insert(0, wordval.Word(999)) {
		t.Fatal("overwrite of existing key should succeed even when full")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	p := New()
	p.NextSibling = 42
	p.Insert(10, wordval.Word(100))
	p.Insert(20, wordval.Word(200))

	buf := p.MarshalBinary()
	if len(buf) != Size {
		t.Fatalf("MarshalBinary length = %d, want %d", len(buf), Size)
	}

	p2, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p2.NextSibling != 42 {
		t.Fatalf("NextSibling = %d, want 42", p2.NextSibling)
	}
	if v, ok := p2.Search(10); !ok || v != wordval.Word(100) {
		t.Fatalf("Search(10) after round trip = %v, %v", v, ok)
	}
	if v, ok := p2.Search(20); !ok || v != wordval.Word(200) {
		t.Fatalf("Search(20) after round trip = %v, %v", v, ok)
	}
}

func TestUnmarshalRejectsBadSize(t *testing.T) {
	if _, err := Unmarshal(make([]byte, Size-1)); err == nil {
		t.Fatal("expected error for undersize buffer")
	}
	if _, err := Unmarshal(make([]byte, Size+1)); err == nil {
		t.Fatal("expected error for oversize buffer")
	}
}
