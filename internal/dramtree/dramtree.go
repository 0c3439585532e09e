// Package dramtree implements the DRAM-resident compressed B+tree (spec.md
// §4.2): the cache's fastest tier. Each leaf partitions its key space into
// NumSubPages independently compressible regions and fronts them with a
// bounded write buffer so hot keys avoid a decompress/recompress round trip
// on every write; a single background worker drains buffers into their
// compressed regions asynchronously, the same "one dedicated worker thread
// per tree" shape spec.md §9's design notes describe.
//
// A leaf never holds a back-reference to its owning Tree — cyclic
// leaf<->tree pointers make the split/navigation code error-prone to reason
// about. Instead the Tree owns an arena (a slice of *leafState) and each
// leaf-parent node stores arena indices, not pointers into the arena's
// backing array, so the arena can grow freely as leaves split.
package dramtree

import (
	"sort"
	"sync"

	"github.com/iamNilotpal/zipcache/internal/codec"
	"github.com/iamNilotpal/zipcache/internal/wordval"
	"github.com/iamNilotpal/zipcache/pkg/errors"
)

// DefaultOrder is the internal-node fanout.
const DefaultOrder = 64

type node struct {
	isLeafParent bool
	keys         []uint32
	children     []*node
	arenaIdx     []int // valid when isLeafParent
}

func newLeafParent() *node { return &node{isLeafParent: true} }
func newInternal() *node   { return &node{isLeafParent: false} }

func (n *node) childCount() int {
	if n.isLeafParent {
		return len(n.arenaIdx)
	}
	return len(n.children)
}

func findChildIndex(keys []uint32, fp uint32) int {
	return sort.Search(len(keys), func(i int) bool { return fp < keys[i] })
}

// Config configures a new Tree.
type Config struct {
	NumSubPages     int
	Codec           codec.Codec
	MaxBufferEntries int
	LazyCompression bool
	Order           int
}

// Tree is the DRAM compressed B+tree.
type Tree struct {
	mu    sync.RWMutex
	cfg   Config
	root  *node
	arena []*leafState

	queue    *flushQueue
	workerWg sync.WaitGroup
	closed   bool
}

// New constructs an empty tree and starts its background flush worker.
func New(cfg Config) *Tree {
	if cfg.Order <= 0 {
		cfg.Order = DefaultOrder
	}
	if cfg.MaxBufferEntries <= 0 {
		cfg.MaxBufferEntries = 64
	}

	t := &Tree{cfg: cfg, queue: newFlushQueue()}
	t.arena = append(t.arena, newLeafState(cfg.NumSubPages))
	root := newLeafParent()
	root.arenaIdx = []int{0}
	t.root = root

	if cfg.LazyCompression {
		t.workerWg.Add(1)
		go t.flushWorker()
	}
	return t
}

// Close stops the background flush worker after it has drained every
// pending item — nothing buffered is ever silently dropped.
func (t *Tree) Close() {
	t.queue.close()
	t.workerWg.Wait()
}

func (t *Tree) flushWorker() {
	defer t.workerWg.Done()
	for {
		idx, ok := t.queue.pop()
		if !ok {
			return
		}
		t.mu.RLock()
		leaf := t.arena[idx]
		t.mu.RUnlock()
		leaf.merge(t.cfg.Codec)
	}
}

// Get probes the tree for fp.
func (t *Tree) Get(fp uint32) (wordval.Word, bool, error) {
	t.mu.RLock()
	leaf := t.leafFor(fp)
	t.mu.RUnlock()
	leaf.touch()
	return leaf.get(t.cfg.Codec, fp)
}

func (t *Tree) leafFor(fp uint32) *leafState {
	n := t.root
	for !n.isLeafParent {
		n = n.children[findChildIndex(n.keys, fp)]
	}
	idx := n.arenaIdx[findChildIndex(n.keys, fp)]
	return t.arena[idx]
}

// Put inserts or updates fp's value. When lazy compression is enabled and
// the leaf's write buffer has room, the write lands in the buffer and a
// background merge is scheduled; otherwise it applies synchronously against
// the decompressed sub-page.
func (t *Tree) Put(fp uint32, val wordval.Word) error {
	t.mu.RLock()
	leaf, arenaIdx := t.leafForWithIdx(fp)
	t.mu.RUnlock()
	leaf.touch()

	if t.cfg.LazyCompression && leaf.bufferPut(fp, val, t.cfg.MaxBufferEntries) {
		t.queue.push(arenaIdx)
	} else if err := leaf.syncPut(t.cfg.Codec, fp, val); err != nil {
		return err
	}

	if !leaf.full() {
		return nil
	}
	return t.splitLeaf(fp)
}

// Delete removes fp, if present, and reports whether it was present.
func (t *Tree) Delete(fp uint32) (bool, error) {
	t.mu.RLock()
	leaf, arenaIdx := t.leafForWithIdx(fp)
	t.mu.RUnlock()

	if t.cfg.LazyCompression {
		if _, present, err := leaf.get(t.cfg.Codec, fp); err != nil {
			return false, err
		} else if !present {
			return false, nil
		}
		if leaf.bufferDelete(fp, t.cfg.MaxBufferEntries) {
			t.queue.push(arenaIdx)
			return true, nil
		}
	}
	return leaf.syncDelete(t.cfg.Codec, fp)
}

func (t *Tree) leafForWithIdx(fp uint32) (*leafState, int) {
	n := t.root
	for !n.isLeafParent {
		n = n.children[findChildIndex(n.keys, fp)]
	}
	idx := n.arenaIdx[findChildIndex(n.keys, fp)]
	return t.arena[idx], idx
}

// splitLeaf re-navigates to fp's leaf-parent and splits the now-overfull
// leaf, then propagates the split recursively exactly like internal/ssdtree
// — including growing the root if it is the node that overflows.
func (t *Tree) splitLeaf(fp uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	promoted, right, err := t.splitNode(t.root, fp)
	if err != nil {
		return err
	}
	if right != nil {
		newRoot := newInternal()
		newRoot.keys = []uint32{promoted}
		newRoot.children = []*node{t.root, right}
		t.root = newRoot
	}
	return nil
}

func (t *Tree) splitNode(n *node, fp uint32) (uint32, *node, error) {
	if n.isLeafParent {
		return t.splitLeafParent(n, fp)
	}
	i := findChildIndex(n.keys, fp)
	promoted, right, err := t.splitNode(n.children[i], fp)
	if err != nil || right == nil {
		return 0, nil, err
	}
	n.keys = insertKeyAt(n.keys, i, promoted)
	n.children = insertNodeAt(n.children, i+1, right)
	if n.childCount() <= t.cfg.Order {
		return 0, nil, nil
	}
	return t.splitInternal(n)
}

func (t *Tree) splitLeafParent(n *node, fp uint32) (uint32, *node, error) {
	i := findChildIndex(n.keys, fp)
	idx := n.arenaIdx[i]
	leaf := t.arena[idx]
	if !leaf.full() {
		return 0, nil, nil
	}

	pairs, err := leaf.entries(t.cfg.Codec)
	if err != nil {
		return 0, nil, err
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].fp < pairs[b].fp })
	mid := len(pairs) / 2
	promoted := pairs[mid].fp
	splitAt := sort.Search(len(pairs), func(i int) bool { return pairs[i].fp >= promoted })

	newLeft := newLeafState(t.cfg.NumSubPages)
	newRight := newLeafState(t.cfg.NumSubPages)
	for _, p := range pairs[:splitAt] {
		mustInsert(newLeft, t.cfg.Codec, p.fp, p.val)
	}
	for _, p := range pairs[splitAt:] {
		mustInsert(newRight, t.cfg.Codec, p.fp, p.val)
	}

	t.arena[idx] = newLeft
	t.arena = append(t.arena, newRight)
	rightIdx := len(t.arena) - 1

	n.keys = insertKeyAt(n.keys, i, promoted)
	n.arenaIdx = insertIdxAt(n.arenaIdx, i+1, rightIdx)

	if n.childCount() <= t.cfg.Order {
		return 0, nil, nil
	}
	return t.splitInternal(n)
}

func (t *Tree) splitInternal(n *node) (uint32, *node, error) {
	if n.isLeafParent {
		mid := len(n.arenaIdx) / 2
		right := newLeafParent()
		promoted := n.keys[mid-1]
		right.keys = append(right.keys, n.keys[mid:]...)
		right.arenaIdx = append(right.arenaIdx, n.arenaIdx[mid:]...)
		n.keys = n.keys[:mid-1]
		n.arenaIdx = n.arenaIdx[:mid]
		return promoted, right, nil
	}

	mid := len(n.children) / 2
	right := newInternal()
	promoted := n.keys[mid-1]
	right.keys = append(right.keys, n.keys[mid:]...)
	right.children = append(right.children, n.children[mid:]...)
	n.keys = n.keys[:mid-1]
	n.children = n.children[:mid]
	return promoted, right, nil
}

// mustInsert places a pair recovered from a pre-split leaf into a fresh,
// empty leaf; capacity was already checked by the split that produced these
// pairs, so failure here indicates a logic error rather than an expected
// runtime condition.
func mustInsert(ls *leafState, c codec.Codec, fp uint32, val wordval.Word) {
	if err := ls.syncPut(c, fp, val); err != nil {
		panic("dramtree: redistributing split entries into a fresh leaf failed: " + err.Error())
	}
}

// Stats is a point-in-time snapshot of the tree's compression footprint.
type Stats struct {
	UncompressedBytes int64
	CompressedBytes   int64
}

// Scan is a non-goal (spec.md §1, §2): this tree answers point lookups by
// fingerprint only, with no ordering over keys a range query could walk.
func (t *Tree) Scan() error {
	return errors.NewCacheError(nil, errors.ErrorCodeInvalidInput, "range scan is not supported")
}

// Stats sums every leaf's byte counts across the whole tree.
func (t *Tree) Stats() Stats {
	t.mu.RLock()
	arena := append([]*leafState(nil), t.arena...)
	t.mu.RUnlock()

	var s Stats
	for _, leaf := range arena {
		u, c := leaf.byteCounts()
		s.UncompressedBytes += u
		s.CompressedBytes += c
	}
	return s
}

// Migrated is a (fingerprint, value) pair evicted from this tree, destined
// for an ordinary insert into the SSD tree (spec.md §4.9).
type Migrated struct {
	FP  uint32
	Val wordval.Word
}

// Sweep runs one second-chance eviction pass over the leaf arena: a leaf
// whose reference bit is set gets the bit cleared and is skipped; a leaf
// found cold is drained (its entries returned for migration, its backing
// storage freed). The scan stops once targetBytes have been freed or after
// two full rotations over the arena, whichever comes first.
func (t *Tree) Sweep(targetBytes int64) ([]Migrated, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.arena)
	if n == 0 || targetBytes <= 0 {
		return nil, 0, nil
	}

	var migrated []Migrated
	var freed int64
	for round := 0; round < 2 && freed < targetBytes; round++ {
		for i := 0; i < n && freed < targetBytes; i++ {
			leaf := t.arena[i]
			if leaf.sweepCheck() {
				continue
			}
			pairs, bytes, err := leaf.drainForEviction(t.cfg.Codec)
			if err != nil {
				return migrated, freed, err
			}
			for _, p := range pairs {
				migrated = append(migrated, Migrated{FP: p.fp, Val: p.val})
			}
			freed += bytes
		}
	}
	return migrated, freed, nil
}

func insertKeyAt(keys []uint32, i int, key uint32) []uint32 {
	keys = append(keys, 0)
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	return keys
}

func insertNodeAt(children []*node, i int, n *node) []*node {
	children = append(children, nil)
	copy(children[i+1:], children[i:])
	children[i] = n
	return children
}

func insertIdxAt(ids []int, i int, id int) []int {
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
