package dramtree

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/zipcache/internal/codec"
	"github.com/iamNilotpal/zipcache/internal/fingerprint"
	"github.com/iamNilotpal/zipcache/internal/subpage"
	"github.com/iamNilotpal/zipcache/internal/wordval"
	"github.com/iamNilotpal/zipcache/pkg/errors"
)

var errSubPageFull = fmt.Errorf("dramtree: sub-page region is full")

type opKind uint8

const (
	opInsert opKind = iota
	opDelete
)

type bufOp struct {
	fp  uint32
	val wordval.Word
	kind opKind
}

// leafState is one DRAM tree leaf: numSubPages independently compressible
// regions, each a subpage.Page, plus a write buffer that shadows them so a
// hot key doesn't pay a decompress/recompress round trip on every write
// (spec.md §4.2). A buffered delete is recorded as a tombstone bufOp so a
// read against the buffer reports "not found" without touching the
// compressed region underneath.
type leafState struct {
	mu sync.Mutex

	numSubPages int
	pages       []*subpage.Page
	compressed  [][]byte
	// rawStored[slot] marks a region the codec judged incompressible:
	// compressed[slot] holds the raw subpage.Size-byte image as-is rather
	// than a codec-produced stream, and ensureLoaded must not run it
	// through Decompress.
	rawStored []bool
	dirty     []bool

	buffer       []bufOp
	totalEntries int

	// accessed is the second-chance clock's reference bit (spec.md §4.9's
	// eviction sweep). Set by every Get/Put that touches this leaf, cleared
	// the first time the sweep visits it.
	accessed atomic.Bool
}

func newLeafState(numSubPages int) *leafState {
	return &leafState{
		numSubPages: numSubPages,
		pages:       make([]*subpage.Page, numSubPages),
		compressed:  make([][]byte, numSubPages),
		rawStored:   make([]bool, numSubPages),
		dirty:       make([]bool, numSubPages),
	}
}

func (ls *leafState) capacity() int { return ls.numSubPages * subpage.Cap }

// full reports whether the leaf has reached capacity. It counts buffered
// writes conservatively (an overwrite of an already-indexed key still adds
// to the estimate) so fullness is detected promptly without waiting for a
// merge; the split path re-derives the exact entry set regardless.
func (ls *leafState) full() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.totalEntries+len(ls.buffer) >= ls.capacity()
}

func (ls *leafState) ensureLoaded(c codec.Codec, slot int) (*subpage.Page, error) {
	if ls.pages[slot] != nil {
		return ls.pages[slot], nil
	}
	if ls.compressed[slot] == nil {
		p := subpage.New()
		ls.pages[slot] = p
		return p, nil
	}
	var raw []byte
	if ls.rawStored[slot] {
		raw = ls.compressed[slot]
	} else {
		var err error
		raw, err = c.Decompress(ls.compressed[slot], subpage.Size)
		if err != nil {
			return nil, errors.NewCodecCorruptError(err, "", subpage.Size)
		}
	}
	p, err := subpage.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	ls.pages[slot] = p
	return p, nil
}

// searchBuffer scans the write buffer most-recent-first; a tombstone op
// shadows any older value for the same fingerprint.
func (ls *leafState) searchBuffer(fp uint32) (val wordval.Word, found, isTombstone bool) {
	for i := len(ls.buffer) - 1; i >= 0; i-- {
		if ls.buffer[i].fp != fp {
			continue
		}
		if ls.buffer[i].kind == opDelete {
			return 0, true, true
		}
		return ls.buffer[i].val, true, false
	}
	return 0, false, false
}

// get answers fp from the buffer if shadowed there, otherwise from the
// (lazily decompressed) sub-page.
func (ls *leafState) get(c codec.Codec, fp uint32) (wordval.Word, bool, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if val, found, tomb := ls.searchBuffer(fp); found {
		return val, !tomb, nil
	}
	slot := fingerprint.Slot(fp, ls.numSubPages)
	p, err := ls.ensureLoaded(c, slot)
	if err != nil {
		return 0, false, err
	}
	val, ok := p.Search(fp)
	return val, ok, nil
}

// bufferPut appends (or overwrites in place) a buffered insert. It refuses
// when the buffer is already at its configured hard cap, in which case the
// caller must fall back to a synchronous write (syncPut).
func (ls *leafState) bufferPut(fp uint32, val wordval.Word, maxBuffer int) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.bufferPutLocked(fp, val, maxBuffer)
}

func (ls *leafState) bufferPutLocked(fp uint32, val wordval.Word, maxBuffer int) bool {
	for i := range ls.buffer {
		if ls.buffer[i].fp == fp {
			ls.buffer[i] = bufOp{fp: fp, val: val, kind: opInsert}
			return true
		}
	}
	if len(ls.buffer) >= maxBuffer {
		return false
	}
	ls.buffer = append(ls.buffer, bufOp{fp: fp, val: val, kind: opInsert})
	return true
}

func (ls *leafState) bufferDelete(fp uint32, maxBuffer int) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i := range ls.buffer {
		if ls.buffer[i].fp == fp {
			ls.buffer[i] = bufOp{fp: fp, kind: opDelete}
			return true
		}
	}
	if len(ls.buffer) >= maxBuffer {
		return false
	}
	ls.buffer = append(ls.buffer, bufOp{fp: fp, kind: opDelete})
	return true
}

// syncPut applies fp/val directly against the decompressed sub-page,
// bypassing the buffer entirely — the fallback path for when lazy
// compression is disabled or the buffer is already full.
func (ls *leafState) syncPut(c codec.Codec, fp uint32, val wordval.Word) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	slot := fingerprint.Slot(fp, ls.numSubPages)
	p, err := ls.ensureLoaded(c, slot)
	if err != nil {
		return err
	}
	_, existed := p.Search(fp)
	if !p.Insert(fp, val) {
		return errSubPageFull
	}
	if !existed {
		ls.totalEntries++
	}
	return ls.recompressLocked(c, slot, p)
}

func (ls *leafState) syncDelete(c codec.Codec, fp uint32) (bool, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	slot := fingerprint.Slot(fp, ls.numSubPages)
	p, err := ls.ensureLoaded(c, slot)
	if err != nil {
		return false, err
	}
	if !p.Delete(fp) {
		return false, nil
	}
	ls.totalEntries--
	return true, ls.recompressLocked(c, slot, p)
}

func (ls *leafState) recompressLocked(c codec.Codec, slot int, p *subpage.Page) error {
	raw := p.MarshalBinary()
	comp, ok, err := c.Compress(raw)
	if err != nil {
		return err
	}
	if ok {
		ls.compressed[slot] = comp
		ls.rawStored[slot] = false
	} else {
		ls.compressed[slot] = raw
		ls.rawStored[slot] = true
	}
	ls.dirty[slot] = false
	return nil
}

// byteCounts reports this leaf's current uncompressed-vs-compressed
// footprint: every materialized region contributes exactly subpage.Size
// uncompressed bytes (a sub-page always marshals to a fixed 4 KiB image)
// and its current compressed length.
func (ls *leafState) byteCounts() (uncompressed, compressed int64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for slot := 0; slot < ls.numSubPages; slot++ {
		if ls.compressed[slot] == nil {
			continue
		}
		uncompressed += subpage.Size
		compressed += int64(len(ls.compressed[slot]))
	}
	return uncompressed, compressed
}

// merge drains the write buffer into the underlying sub-pages and
// recompresses every region the buffer touched. Called by the background
// flush worker; a full buffer or disabled lazy compression does not merge,
// it applies the write through syncPut/syncDelete instead.
func (ls *leafState) merge(c codec.Codec) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.mergeLocked(c)
}

func (ls *leafState) mergeLocked(c codec.Codec) error {
	touched := make(map[int]bool)
	for _, op := range ls.buffer {
		slot := fingerprint.Slot(op.fp, ls.numSubPages)
		p, err := ls.ensureLoaded(c, slot)
		if err != nil {
			return err
		}
		switch op.kind {
		case opInsert:
			_, existed := p.Search(op.fp)
			if !p.Insert(op.fp, op.val) {
				return errSubPageFull
			}
			if !existed {
				ls.totalEntries++
			}
		case opDelete:
			if p.Delete(op.fp) {
				ls.totalEntries--
			}
		}
		touched[slot] = true
	}
	ls.buffer = ls.buffer[:0]

	for slot := range touched {
		if err := ls.recompressLocked(c, slot, ls.pages[slot]); err != nil {
			return err
		}
	}
	return nil
}

// touch sets the second-chance reference bit. Called on every Get and Put
// that resolves to this leaf.
func (ls *leafState) touch() { ls.accessed.Store(true) }

// sweepCheck is the second-chance clock's single step: if the reference bit
// is set, clear it and give the leaf another rotation; otherwise the leaf is
// cold and the caller evicts it.
func (ls *leafState) sweepCheck() (wasAccessed bool) {
	return ls.accessed.CompareAndSwap(true, false)
}

// drainForEviction merges the buffer, collects every live (fingerprint,
// value) pair for migration into the SSD tree, and resets the leaf to an
// empty state — freeing its backing sub-pages and compressed images exactly
// as spec.md §4.9's eviction step describes.
func (ls *leafState) drainForEviction(c codec.Codec) (pairs []bufOp, freedBytes int64, err error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.mergeLocked(c); err != nil {
		return nil, 0, err
	}
	pairs = make([]bufOp, 0, ls.totalEntries)
	for slot := 0; slot < ls.numSubPages; slot++ {
		if ls.compressed[slot] == nil {
			continue
		}
		freedBytes += int64(len(ls.compressed[slot]))
		p, err := ls.ensureLoaded(c, slot)
		if err != nil {
			return nil, 0, err
		}
		fps, vals := p.All()
		for i := range fps {
			pairs = append(pairs, bufOp{fp: fps[i], val: vals[i], kind: opInsert})
		}
	}

	ls.pages = make([]*subpage.Page, ls.numSubPages)
	ls.compressed = make([][]byte, ls.numSubPages)
	ls.rawStored = make([]bool, ls.numSubPages)
	ls.dirty = make([]bool, ls.numSubPages)
	ls.buffer = nil
	ls.totalEntries = 0
	return pairs, freedBytes, nil
}

// entries decompresses and merges every region, returning every live
// (fingerprint, value) pair. Used only by split.
func (ls *leafState) entries(c codec.Codec) ([]bufOp, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.mergeLocked(c); err != nil {
		return nil, err
	}
	out := make([]bufOp, 0, ls.totalEntries)
	for slot := 0; slot < ls.numSubPages; slot++ {
		p, err := ls.ensureLoaded(c, slot)
		if err != nil {
			return nil, err
		}
		fps, vals := p.All()
		for i := range fps {
			out = append(out, bufOp{fp: fps[i], val: vals[i], kind: opInsert})
		}
	}
	return out, nil
}
