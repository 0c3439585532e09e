package objectstore

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/zipcache/internal/subpage"
	"github.com/iamNilotpal/zipcache/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objects.storage")
	s, err := Open(path, logger.New("objectstore-test"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendReadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	payload := []byte("the quick brown fox jumps over the lazy dog")

	desc, err := s.Append(payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if desc.LBA%int64(subpage.Size) != 0 {
		t.Fatalf("descriptor LBA %d is not block-aligned", desc.LBA)
	}

	got, err := s.Read(desc)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Read returned %q, want %q", got, payload)
	}
}

func TestAppendMultipleRecordsStayDistinct(t *testing.T) {
	s := openTestStore(t)
	a, err := s.Append([]byte("first record"))
	if err != nil {
		t.Fatalf("Append a: %v", err)
	}
	b, err := s.Append([]byte("second record, a bit longer than the first"))
	if err != nil {
		t.Fatalf("Append b: %v", err)
	}
	if a.LBA == b.LBA {
		t.Fatal("two appended records must not share an LBA")
	}

	gotA, err := s.Read(a)
	if err != nil || !bytes.Equal(gotA, []byte("first record")) {
		t.Fatalf("Read a = %q, %v", gotA, err)
	}
	gotB, err := s.Read(b)
	if err != nil || !bytes.Equal(gotB, []byte("second record, a bit longer than the first")) {
		t.Fatalf("Read b = %q, %v", gotB, err)
	}
}

func TestReadDetectsChecksumMismatch(t *testing.T) {
	s := openTestStore(t)
	desc, err := s.Append([]byte("integrity-checked payload"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Corrupt one payload byte directly on disk.
	corrupt := []byte{0x00}
	if _, err := s.f.WriteAt(corrupt, desc.LBA+recordHeaderSize); err != nil {
		t.Fatalf("corrupting payload: %v", err)
	}

	if _, err := s.Read(desc); err == nil {
		t.Fatal("expected checksum mismatch error after corrupting payload")
	}
}

func TestAppendRefReadRefRoundTrip(t *testing.T) {
	s := openTestStore(t)
	payload := []byte("spillover value for a medium-sized entry")

	blockID, err := s.AppendRef(payload)
	if err != nil {
		t.Fatalf("AppendRef: %v", err)
	}
	got, err := s.ReadRef(blockID)
	if err != nil {
		t.Fatalf("ReadRef: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadRef = %q, want %q", got, payload)
	}
}
