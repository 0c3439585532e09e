// Package subpage implements the 4 KiB record that is the unit of
// compression, I/O, and intra-leaf hash routing throughout ZipCache
// (spec.md §3, §4.3): a header followed by a sorted fingerprint array and
// its parallel value array, with the unused tail always zero-filled so the
// underlying storage gets the best chance to compress sparse pages.
package subpage

import (
	"encoding/binary"
	"sort"

	"github.com/iamNilotpal/zipcache/internal/wordval"
)

// Size is the fixed on-disk/on-wire size of a sub-page.
const Size = 4096

const (
	headerSize = 16 // i32 entries; i32 next_sibling; i32 reserved[2]
	fpBytes    = 4
	valBytes   = 8
	entryBytes = fpBytes + valBytes
)

// Cap is the maximum number of (fingerprint, value) pairs a sub-page holds.
const Cap = (Size - headerSize) / entryBytes

// NoSibling marks the absence of a next sibling.
const NoSibling = -1

// Page is the in-memory form of one sub-page.
type Page struct {
	Entries     int32
	NextSibling int32
	keys        [Cap]uint32
	vals        [Cap]wordval.Word
}

// New returns an empty sub-page with no sibling.
func New() *Page {
	return &Page{NextSibling: NoSibling}
}

// IsFull reports whether the sub-page has no remaining capacity.
func (p *Page) IsFull() bool {
	return int(p.Entries) >= Cap
}

// Search returns the value for fp and true if present.
func (p *Page) Search(fp uint32) (wordval.Word, bool) {
	i := p.lowerBound(fp)
	if i < int(p.Entries) && p.keys[i] == fp {
		return p.vals[i], true
	}
	return 0, false
}

// Insert places (fp, val) in sorted position, overwriting any existing
// entry for fp. Returns false if the sub-page is full and fp is not already
// present (the caller — super-leaf or DRAM leaf — decides how to react:
// needs_split, or a leaf split in the DRAM tier).
func (p *Page) Insert(fp uint32, val wordval.Word) bool {
	i := p.lowerBound(fp)
	if i < int(p.Entries) && p.keys[i] == fp {
		p.vals[i] = val
		return true
	}
	if p.IsFull() {
		return false
	}
	copy(p.keys[i+1:p.Entries+1], p.keys[i:p.Entries])
	copy(p.vals[i+1:p.Entries+1], p.vals[i:p.Entries])
	p.keys[i] = fp
	p.vals[i] = val
	p.Entries++
	return true
}

// Delete removes fp if present, reporting whether anything was removed.
func (p *Page) Delete(fp uint32) bool {
	i := p.lowerBound(fp)
	if i >= int(p.Entries) || p.keys[i] != fp {
		return false
	}
	copy(p.keys[i:p.Entries-1], p.keys[i+1:p.Entries])
	copy(p.vals[i:p.Entries-1], p.vals[i+1:p.Entries])
	p.Entries--
	return true
}

// All returns every (fingerprint, value) pair currently stored, in sorted
// order. Used by super-leaf split's logical phase.
func (p *Page) All() ([]uint32, []wordval.Word) {
	fps := make([]uint32, p.Entries)
	vals := make([]wordval.Word, p.Entries)
	copy(fps, p.keys[:p.Entries])
	copy(vals, p.vals[:p.Entries])
	return fps, vals
}

func (p *Page) lowerBound(fp uint32) int {
	n := int(p.Entries)
	return sort.Search(n, func(i int) bool { return p.keys[i] >= fp })
}

// MarshalBinary renders the sub-page into exactly Size bytes, zero-filling
// every unused key/value slot and the trailing bytes, per spec.md §4.3's
// invariant that unused tail bytes are zero before any persistent write.
func (p *Page) MarshalBinary() []byte {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.Entries))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.NextSibling))

	keyOff := headerSize
	valOff := headerSize + Cap*fpBytes
	for i := 0; i < int(p.Entries); i++ {
		binary.BigEndian.PutUint32(buf[keyOff+i*fpBytes:], p.keys[i])
		binary.BigEndian.PutUint64(buf[valOff+i*valBytes:], uint64(p.vals[i]))
	}
	return buf
}

// Unmarshal parses a Size-byte block produced by MarshalBinary.
func Unmarshal(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, errInvalidSize
	}
	p := &Page{
		Entries:     int32(binary.BigEndian.Uint32(buf[0:4])),
		NextSibling: int32(binary.BigEndian.Uint32(buf[4:8])),
	}
	if int(p.Entries) > Cap || p.Entries < 0 {
		return nil, errInvalidSize
	}
	keyOff := headerSize
	valOff := headerSize + Cap*fpBytes
	for i := 0; i < int(p.Entries); i++ {
		p.keys[i] = binary.BigEndian.Uint32(buf[keyOff+i*fpBytes:])
		p.vals[i] = wordval.Word(binary.BigEndian.Uint64(buf[valOff+i*valBytes:]))
	}
	return p, nil
}
