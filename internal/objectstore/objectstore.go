// Package objectstore implements the SSD-resident, append-only object
// store backing the tiny/medium spillover path of internal/wordval and the
// large-object tier's payload bodies (spec.md §4.6, §4.8). Every record is
// self-describing — a 4-byte length and a checksum precede the payload — and
// every write is padded to a 4 KiB boundary so a record's block id doubles
// as its byte offset divided by 4096.
package objectstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sync"

	"github.com/iamNilotpal/zipcache/internal/subpage"
	"github.com/iamNilotpal/zipcache/pkg/errors"
	"go.uber.org/zap"
)

// recordHeaderSize is the on-disk prefix preceding every record's payload:
// a 4-byte length followed by a 4-byte IEEE CRC32 of the payload.
const recordHeaderSize = 8

// Descriptor locates and authenticates a record: spec.md §4.7's large-object
// index stores exactly these four fields alongside each fingerprint.
type Descriptor struct {
	LBA       int64
	Size      uint32
	Checksum  uint32
	Timestamp int64
}

// Store is a single append-only, 4 KiB-aligned file. Every Append call bumps
// the write offset under mu, releases the lock, then fsyncs — so concurrent
// appends never serialize on the disk flush, only on the offset bump
// (spec.md §5's durability-vs-throughput ordering).
type Store struct {
	mu     sync.Mutex
	f      *os.File
	offset int64
	log    *zap.SugaredLogger
}

// Open opens (creating if necessary) the object store's backing file and
// positions the write cursor at its current end.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open object store file").
			WithPath(path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat object store file").
			WithPath(path)
	}
	return &Store{f: f, offset: info.Size(), log: log}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.f.Close()
}

// Append writes payload as a new self-describing record and returns its
// descriptor. The record is padded with zero bytes up to the next 4 KiB
// boundary (spec.md §6.2's block-alignment requirement), so LBA is always a
// multiple of subpage.Size and doubles as a block id for internal/wordval's
// EncodeRef.
func (s *Store) Append(payload []byte) (Descriptor, error) {
	header := make([]byte, recordHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload))

	raw := make([]byte, 0, len(header)+len(payload))
	raw = append(raw, header...)
	raw = append(raw, payload...)
	if pad := padLength(len(raw)); pad > 0 {
		raw = append(raw, make([]byte, pad)...)
	}

	s.mu.Lock()
	lba := s.offset
	s.offset += int64(len(raw))
	s.mu.Unlock()

	if _, err := s.f.WriteAt(raw, lba); err != nil {
		return Descriptor{}, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append object store record").
			WithOffset(int(lba))
	}
	if err := s.f.Sync(); err != nil {
		return Descriptor{}, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to fsync object store file").
			WithOffset(int(lba))
	}

	return Descriptor{LBA: lba, Size: uint32(len(payload)), Checksum: binary.BigEndian.Uint32(header[4:8])}, nil
}

// Read fetches and checksum-verifies the record described by desc.
func (s *Store) Read(desc Descriptor) ([]byte, error) {
	header := make([]byte, recordHeaderSize)
	if _, err := s.f.ReadAt(header, desc.LBA); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read object store record header").
			WithOffset(int(desc.LBA))
	}

	length := binary.BigEndian.Uint32(header[0:4])
	checksum := binary.BigEndian.Uint32(header[4:8])
	if length != desc.Size {
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeSegmentCorrupted, "object store record length mismatch",
		).WithOffset(int(desc.LBA)).WithDetail("expected", desc.Size).WithDetail("found", length)
	}

	payload := make([]byte, length)
	if _, err := s.f.ReadAt(payload, desc.LBA+recordHeaderSize); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read object store record payload").
			WithOffset(int(desc.LBA))
	}
	if got := crc32.ChecksumIEEE(payload); got != checksum {
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeSegmentCorrupted, "object store record failed checksum verification",
		).WithOffset(int(desc.LBA)).WithDetail("expected", checksum).WithDetail("found", got)
	}
	return payload, nil
}

// AppendRef is a thin wrapper over Append for the internal/wordval spillover
// path: it returns the block id EncodeRef expects instead of a full
// Descriptor, since the inline fixed-width value has no room for a checksum
// or a timestamp — the record itself carries those.
func (s *Store) AppendRef(payload []byte) (blockID uint64, err error) {
	desc, err := s.Append(payload)
	if err != nil {
		return 0, err
	}
	return blockIDFromLBA(desc.LBA), nil
}

// ReadRef reads back a record written by AppendRef, given the block id
// internal/wordval.DecodeRef extracted.
func (s *Store) ReadRef(blockID uint64) ([]byte, error) {
	lba := int64(blockID) * subpage.Size
	header := make([]byte, recordHeaderSize)
	if _, err := s.f.ReadAt(header, lba); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read spillover record header").
			WithOffset(int(lba))
	}
	length := binary.BigEndian.Uint32(header[0:4])
	checksum := binary.BigEndian.Uint32(header[4:8])

	payload := make([]byte, length)
	if _, err := s.f.ReadAt(payload, lba+recordHeaderSize); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read spillover record payload").
			WithOffset(int(lba))
	}
	if got := crc32.ChecksumIEEE(payload); got != checksum {
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeSegmentCorrupted, "spillover record failed checksum verification",
		).WithOffset(int(lba)).WithDetail("expected", checksum).WithDetail("found", got)
	}
	return payload, nil
}

func blockIDFromLBA(lba int64) uint64 {
	if lba%subpage.Size != 0 {
		panic(fmt.Sprintf("objectstore: LBA %d is not 4 KiB-aligned", lba))
	}
	return uint64(lba / subpage.Size)
}

func padLength(n int) int {
	rem := n % subpage.Size
	if rem == 0 {
		return 0
	}
	return subpage.Size - rem
}
