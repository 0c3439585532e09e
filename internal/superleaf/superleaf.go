// Package superleaf implements the super-leaf: the unit that is the leaf of
// the SSD B+tree (spec.md §4.4). A super-leaf owns up to 16 sub-page slots
// sharing one key space, hashes a fingerprint to exactly one slot so a
// lookup touches a single 4 KiB block, and splits by reading every sub-page,
// sorting all entries, and rewriting two fresh super-leaves.
package superleaf

import (
	"math"
	"sort"
	"sync"

	"github.com/iamNilotpal/zipcache/internal/alloc"
	"github.com/iamNilotpal/zipcache/internal/fingerprint"
	"github.com/iamNilotpal/zipcache/internal/subpage"
	"github.com/iamNilotpal/zipcache/internal/wordval"
)

// NumSlots is the fixed number of sub-page slots per super-leaf.
const NumSlots = 16

// Invalid marks an empty (unallocated) slot in blockIDs.
const Invalid = ^uint32(0)

// fullEnoughThreshold is the 90% occupancy spec.md invariant 4 requires
// before a super-leaf is allowed to split.
const fullEnoughThreshold = 0.9

// BlockDevice is the 4 KiB positional store a super-leaf reads and writes
// through. internal/ssdtree implements this over a single fixed-size file.
type BlockDevice interface {
	ReadBlock(id uint32) ([]byte, error)
	WriteBlock(id uint32, data []byte) error
}

// Result is the outcome of Insert.
type Result int

const (
	// OK means the insert was applied.
	OK Result = iota
	// NeedsSplit means the target sub-page is full and the super-leaf is
	// ≥90% full: the caller must Split before retrying.
	NeedsSplit
	// Rejected means the target sub-page is full but the super-leaf is not
	// full enough to split (spec.md §4.4 step 3's "error" branch — the DRAM
	// tier handles fine-grain eviction differently).
	Rejected
)

// SuperLeaf owns up to NumSlots sub-page slots sharing one key space.
type SuperLeaf struct {
	mu    sync.Mutex
	dev   BlockDevice
	alloc *alloc.Allocator

	blockIDs [NumSlots]uint32
	cache    [NumSlots]*subpage.Page
	dirty    [NumSlots]bool

	totalEntries   int
	activeSubPages int

	// Prev/Next are sibling super-leaf identities in scan order, managed by
	// internal/ssdtree; superleaf itself never dereferences them.
	Prev, Next uint64
}

// New returns an empty super-leaf with every slot unallocated.
func New(dev BlockDevice, a *alloc.Allocator) *SuperLeaf {
	sl := &SuperLeaf{dev: dev, alloc: a}
	for i := range sl.blockIDs {
		sl.blockIDs[i] = Invalid
	}
	return sl
}

// TotalEntries returns the number of live (fingerprint, value) pairs.
func (sl *SuperLeaf) TotalEntries() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.totalEntries
}

// FullEnoughToSplit implements invariant 4: entry count ≥ ceil(0.9 × 16 × cap).
func (sl *SuperLeaf) FullEnoughToSplit() bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.fullEnoughLocked()
}

func (sl *SuperLeaf) fullEnoughLocked() bool {
	threshold := int(math.Ceil(fullEnoughThreshold * NumSlots * subpage.Cap))
	return sl.totalEntries >= threshold
}

func (sl *SuperLeaf) loadLocked(slot int) (*subpage.Page, error) {
	if sl.cache[slot] != nil {
		return sl.cache[slot], nil
	}
	if sl.blockIDs[slot] == Invalid {
		return nil, nil
	}
	raw, err := sl.dev.ReadBlock(sl.blockIDs[slot])
	if err != nil {
		return nil, err
	}
	page, err := subpage.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	sl.cache[slot] = page
	return page, nil
}

// Search computes fp's slot and, on a cache miss, reads exactly one 4 KiB
// block to answer. Returns found=false for an unallocated slot or a missing
// key.
func (sl *SuperLeaf) Search(fp uint32) (wordval.Word, bool, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	slot := fingerprint.Slot(fp, NumSlots)
	page, err := sl.loadLocked(slot)
	if err != nil {
		return 0, false, err
	}
	if page == nil {
		return 0, false, nil
	}
	val, ok := page.Search(fp)
	return val, ok, nil
}

// Insert places (fp, val) into fp's slot, allocating a block for the slot on
// first write. See Result's doc for the three possible outcomes.
func (sl *SuperLeaf) Insert(fp uint32, val wordval.Word) (Result, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	slot := fingerprint.Slot(fp, NumSlots)
	if sl.blockIDs[slot] == Invalid {
		id, err := sl.alloc.Allocate()
		if err != nil {
			return Rejected, err
		}
		sl.blockIDs[slot] = id
		sl.cache[slot] = subpage.New()
		sl.dirty[slot] = true
		sl.activeSubPages++
	}

	page, err := sl.loadLocked(slot)
	if err != nil {
		return Rejected, err
	}

	if page.IsFull() {
		if _, present := page.Search(fp); !present {
			if sl.fullEnoughLocked() {
				return NeedsSplit, nil
			}
			return Rejected, nil
		}
	}

	_, hadEntry := page.Search(fp)
	if !page.Insert(fp, val) {
		return Rejected, nil
	}
	sl.dirty[slot] = true
	if !hadEntry {
		sl.totalEntries++
	}
	return OK, nil
}

// Delete removes fp if present.
func (sl *SuperLeaf) Delete(fp uint32) (bool, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	slot := fingerprint.Slot(fp, NumSlots)
	page, err := sl.loadLocked(slot)
	if err != nil {
		return false, err
	}
	if page == nil {
		return false, nil
	}
	if !page.Delete(fp) {
		return false, nil
	}
	sl.dirty[slot] = true
	sl.totalEntries--
	return true, nil
}

// FlushDirty writes every dirty slot's zero-padded 4 KiB image and clears
// its dirty flag. Each write covers exactly 4 KiB (spec.md §4.4).
func (sl *SuperLeaf) FlushDirty() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.flushDirtyLocked()
}

func (sl *SuperLeaf) flushDirtyLocked() error {
	for slot := 0; slot < NumSlots; slot++ {
		if !sl.dirty[slot] {
			continue
		}
		if err := sl.dev.WriteBlock(sl.blockIDs[slot], sl.cache[slot].MarshalBinary()); err != nil {
			return err
		}
		sl.dirty[slot] = false
	}
	return nil
}

// pair is one (fingerprint, value) entry gathered during a split.
type pair struct {
	fp  uint32
	val wordval.Word
}

// Split performs the three-phase super-leaf split (spec.md §4.4): read every
// sub-page into memory, sort all entries and pick the median fingerprint as
// the promoted separator, redistribute pairs into this (left) super-leaf and
// a freshly allocated right super-leaf, then allocate blocks and flush both.
// Any allocation failure during the write phase frees every block allocated
// in this call and leaves the super-leaf in its pre-split state.
func (sl *SuperLeaf) Split() (promoted uint32, right *SuperLeaf, err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	// Phase 1: read.
	all := make([]pair, 0, sl.totalEntries)
	for slot := 0; slot < NumSlots; slot++ {
		page, err := sl.loadLocked(slot)
		if err != nil {
			return 0, nil, err
		}
		if page == nil {
			continue
		}
		fps, vals := page.All()
		for i := range fps {
			all = append(all, pair{fps[i], vals[i]})
		}
	}

	// Phase 2: logical — stable sort, pick median, partition.
	sort.SliceStable(all, func(i, j int) bool { return all[i].fp < all[j].fp })
	medianIdx := len(all) / 2
	promoted = all[medianIdx].fp
	left, rightPairs := splitAt(all, promoted)

	right = New(sl.dev, sl.alloc)

	// Phase 3: write — allocate blocks for every populated right-hand slot,
	// rolling back on any failure, then flush both super-leaves.
	rightSlots := map[int][]pair{}
	for _, p := range rightPairs {
		s := fingerprint.Slot(p.fp, NumSlots)
		rightSlots[s] = append(rightSlots[s], p)
	}

	allocated := make([]uint32, 0, len(rightSlots))
	for slot := range rightSlots {
		id, aerr := sl.alloc.Allocate()
		if aerr != nil {
			sl.alloc.FreeMany(allocated)
			return 0, nil, aerr
		}
		right.blockIDs[slot] = id
		allocated = append(allocated, id)
	}

	// hadBlock[slot] records which slots held pre-split, on-disk content —
	// used below to reclaim a slot whose entire prior content migrated to
	// right, leaving nothing for left to reoccupy.
	var hadBlock [NumSlots]bool
	for slot := 0; slot < NumSlots; slot++ {
		hadBlock[slot] = sl.blockIDs[slot] != Invalid
	}

	// Re-populate both super-leaves' caches from the partitioned pairs —
	// prior cache contents are entirely discarded, per spec.md §4.4 phase 2.
	for i := range sl.cache {
		sl.cache[i] = nil
		sl.dirty[i] = false
	}
	sl.totalEntries = 0
	sl.activeSubPages = 0
	var leftTouched [NumSlots]bool
	for _, p := range left {
		slot := fingerprint.Slot(p.fp, NumSlots)
		leftTouched[slot] = true
		if sl.blockIDs[slot] == Invalid {
			id, aerr := sl.alloc.Allocate()
			if aerr != nil {
				sl.alloc.FreeMany(allocated)
				return 0, nil, aerr
			}
			sl.blockIDs[slot] = id
			allocated = append(allocated, id)
		}
		if sl.cache[slot] == nil {
			sl.cache[slot] = subpage.New()
			sl.activeSubPages++
		}
		sl.cache[slot].Insert(p.fp, p.val)
		sl.dirty[slot] = true
	}
	sl.totalEntries = len(left)

	// A slot whose entire pre-split content moved to right leaves nothing
	// behind for left: reclaim its stale on-disk block so a later
	// Search/Insert/Delete on this slot doesn't resurrect it via
	// loadLocked's ReadBlock.
	for slot := 0; slot < NumSlots; slot++ {
		if hadBlock[slot] && !leftTouched[slot] {
			sl.alloc.Free(sl.blockIDs[slot])
			sl.blockIDs[slot] = Invalid
		}
	}

	right.totalEntries = len(rightPairs)
	for slot, pairs := range rightSlots {
		right.cache[slot] = subpage.New()
		right.activeSubPages++
		for _, p := range pairs {
			right.cache[slot].Insert(p.fp, p.val)
		}
		right.dirty[slot] = true
	}

	if err := sl.flushDirtyLocked(); err != nil {
		return 0, nil, err
	}
	right.mu.Lock()
	ferr := right.flushDirtyLocked()
	right.mu.Unlock()
	if ferr != nil {
		return 0, nil, ferr
	}

	right.Next = sl.Next
	sl.Next = 0 // the caller (ssdtree) assigns right a real identity and links Prev/Next by id.

	return promoted, right, nil
}

func splitAt(all []pair, median uint32) (left, right []pair) {
	i := sort.Search(len(all), func(i int) bool { return all[i].fp >= median })
	return all[:i], all[i:]
}
