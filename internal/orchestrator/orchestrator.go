// Package orchestrator implements the tier orchestrator (spec.md §4.9): the
// single entry point that classifies a PUT by size, routes it to the DRAM
// tree, the large-object index, or both, and walks the DRAM -> large-object
// -> SSD probe order on GET. It owns no data structures of its own beyond
// bookkeeping counters — every byte lives in one of internal/dramtree,
// internal/ssdtree, internal/lobjindex, or internal/objectstore.
package orchestrator

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/zipcache/internal/codec"
	"github.com/iamNilotpal/zipcache/internal/dramtree"
	"github.com/iamNilotpal/zipcache/internal/fingerprint"
	"github.com/iamNilotpal/zipcache/internal/lobjindex"
	"github.com/iamNilotpal/zipcache/internal/objectstore"
	"github.com/iamNilotpal/zipcache/internal/ssdtree"
	"github.com/iamNilotpal/zipcache/internal/wordval"
	"github.com/iamNilotpal/zipcache/pkg/errors"
	"github.com/iamNilotpal/zipcache/pkg/filesys"
	"github.com/iamNilotpal/zipcache/pkg/options"
	"go.uber.org/zap"
)

// evictionThreshold is the fraction of dram_capacity_bytes that triggers a
// sweep (spec.md §4.9: "at the threshold (default 90%)").
const evictionThreshold = 0.90

// evictionTarget is the fraction of dram_capacity_bytes a sweep tries to
// free once triggered (spec.md: "default 10% of capacity").
const evictionTarget = 0.10

// evictionInterval is how often the background worker checks DRAM usage
// against capacity.
const evictionInterval = 2 * time.Second

// Orchestrator routes PUT/GET/DELETE across the three tiers and runs the
// background eviction sweep. It holds a reader/writer lock per underlying
// tree (spec.md §5: "the orchestrator holds no global lock across calls") —
// its own mutex here guards only the shutdown flag.
type Orchestrator struct {
	opts *options.Options
	log  *zap.SugaredLogger

	dram  *dramtree.Tree
	ssd   *ssdtree.Tree
	lobj  *lobjindex.Index
	store *objectstore.Store
	codec codec.Codec

	stats stats

	mu      sync.Mutex
	closed  bool
	stopCh  chan struct{}
	evictWg sync.WaitGroup
}

// stats holds every counter atomically so Stats() can be called from any
// goroutine without taking the orchestrator's own mutex.
type stats struct {
	putsTiny   atomic.Int64
	putsMedium atomic.Int64
	putsLarge  atomic.Int64
	tombstones atomic.Int64
	gets       atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

// Stats is a point-in-time, per-tree-consistent snapshot (spec.md §5:
// "no cross-tree snapshot is promised").
type Stats struct {
	PutsTiny   int64
	PutsMedium int64
	PutsLarge  int64
	Tombstones int64
	Gets       int64
	Hits       int64
	Misses     int64
	Evictions  int64

	UncompressedBytes int64
	CompressedBytes   int64
}

// Open builds every tier from opts and starts the background eviction
// worker. ssdPathPrefix's files (<prefix>.ssd, <prefix>.storage) are created
// under opts.DataDir/opts.SSD.Directory, with the stem "zipcache".
func Open(opts *options.Options, log *zap.SugaredLogger) (*Orchestrator, error) {
	dir := filepath.Join(opts.DataDir, opts.SSD.Directory)
	if err := filesys.CreateDir(dir, 0755, true); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to create ssd directory")
	}
	ssdPathPrefix := filepath.Join(dir, "zipcache")

	kind := codec.Fast
	if opts.Dram.Codec == "accelerator" {
		kind = codec.Accelerator
	}
	c, err := codec.New(kind, opts.Dram.CompressionLevel)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to build codec")
	}

	ssdTree, err := ssdtree.Open(ssdtree.Config{
		Path:        ssdPathPrefix + ".ssd",
		TotalBlocks: opts.SSD.Total4KBBlocks,
	})
	if err != nil {
		return nil, err
	}

	store, err := objectstore.Open(ssdPathPrefix+".storage", log)
	if err != nil {
		ssdTree.Close()
		return nil, err
	}

	dram := dramtree.New(dramtree.Config{
		NumSubPages:      opts.Dram.NumSubPages,
		Codec:            c,
		MaxBufferEntries: opts.Dram.MaxBufferEntries,
		LazyCompression:  opts.Dram.EnableLazyCompression,
	})

	o := &Orchestrator{
		opts:   opts,
		log:    log,
		dram:   dram,
		ssd:    ssdTree,
		lobj:   lobjindex.New(),
		store:  store,
		codec:  c,
		stopCh: make(chan struct{}),
	}

	o.evictWg.Add(1)
	go o.evictionWorker()
	return o, nil
}

// Close stops the eviction worker, then the DRAM tree's flush worker, then
// closes the SSD-resident files — mirroring spec.md §5's shutdown order
// (signal, join, drain, then release resources).
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	close(o.stopCh)
	o.evictWg.Wait()
	o.dram.Close()

	if err := o.ssd.Close(); err != nil {
		return err
	}
	return o.store.Close()
}

// classify applies the tiny/medium/large size thresholds (spec.md §4.9).
func (o *Orchestrator) classify(size int) string {
	switch {
	case size <= o.opts.TinyMax:
		return "tiny"
	case size <= o.opts.MediumMax:
		return "medium"
	default:
		return "large"
	}
}

// Put classifies value by size and routes it to the appropriate tier(s).
func (o *Orchestrator) Put(key []byte, value []byte) error {
	size := len(value)
	if size == 0 || size > o.opts.LargeThreshold {
		return errors.NewInvalidSizeError(string(key), size)
	}

	fp := fingerprint.Of(key)
	class := o.classify(size)

	switch class {
	case "tiny", "medium":
		word, err := o.encodeSmall(value)
		if err != nil {
			return err
		}
		if err := o.dram.Put(fp, word); err != nil {
			return errors.NewOutOfMemoryError(string(key)).WithDetail("cause", err.Error())
		}
		o.lobj.Delete(fp)
		if class == "tiny" {
			o.stats.putsTiny.Add(1)
		} else {
			o.stats.putsMedium.Add(1)
		}

	default: // large
		desc, err := o.store.Append(value)
		if err != nil {
			return err
		}
		o.lobj.Put(fp, desc)
		if err := o.dram.Put(fp, wordval.Tombstone); err != nil {
			return errors.NewOutOfMemoryError(string(key)).WithDetail("cause", err.Error())
		}
		o.stats.putsLarge.Add(1)
		o.stats.tombstones.Add(1)
	}

	o.maybeEvict()
	return nil
}

// encodeSmall packs value inline when it fits in a Word, otherwise spills it
// to the object store and returns a reference Word (spec.md §2's "fixed-
// width index values vs. byte payloads" resolution).
func (o *Orchestrator) encodeSmall(value []byte) (wordval.Word, error) {
	if w, ok := wordval.EncodeInline(value); ok {
		return w, nil
	}
	blockID, err := o.store.AppendRef(value)
	if err != nil {
		return 0, err
	}
	return wordval.EncodeRef(blockID), nil
}

// decodeSmall reverses encodeSmall.
func (o *Orchestrator) decodeSmall(w wordval.Word) ([]byte, error) {
	if wordval.IsRef(w) {
		return o.store.ReadRef(wordval.DecodeRef(w))
	}
	return wordval.DecodeInline(w), nil
}

// Get probes DRAM, then the large-object index, then the SSD tree, in that
// order (spec.md §4.9's GET algorithm).
func (o *Orchestrator) Get(key []byte) ([]byte, error) {
	o.stats.gets.Add(1)
	fp := fingerprint.Of(key)

	if w, found, err := o.dram.Get(fp); err != nil {
		return nil, err
	} else if found && !wordval.IsTombstone(w) {
		val, err := o.decodeSmall(w)
		if err != nil {
			return nil, err
		}
		o.stats.hits.Add(1)
		return val, nil
	}

	if desc, found := o.lobj.Get(fp); found {
		data, err := o.store.Read(desc)
		if err != nil {
			return nil, err
		}
		if !lobjindex.Verify(data, desc) {
			return nil, errors.NewIndexCorruptionError("Get", o.lobj.Len(), nil).WithKey(string(key))
		}
		o.stats.hits.Add(1)
		return data, nil
	}

	if w, found, err := o.ssd.Get(fp); err != nil {
		return nil, err
	} else if found {
		val, err := o.decodeSmall(w)
		if err != nil {
			return nil, err
		}
		o.stats.hits.Add(1)
		return val, nil
	}

	o.stats.misses.Add(1)
	return nil, errors.NewKeyNotFoundCacheError(string(key))
}

// Delete removes key from every tier it might live in. Deleting a key that
// no tier holds returns a not_found CacheError (spec.md §4.9).
func (o *Orchestrator) Delete(key []byte) error {
	fp := fingerprint.Of(key)

	dramRemoved, err := o.dram.Delete(fp)
	if err != nil {
		return err
	}
	ssdRemoved, err := o.ssd.Delete(fp)
	if err != nil {
		return err
	}
	lobjRemoved := o.lobj.Delete(fp)

	if !dramRemoved && !ssdRemoved && !lobjRemoved {
		return errors.NewKeyNotFoundCacheError(string(key))
	}
	return nil
}

// Stats returns a point-in-time snapshot of every counter plus the DRAM
// tree's compression footprint.
func (o *Orchestrator) Stats() Stats {
	dramStats := o.dram.Stats()
	return Stats{
		PutsTiny:          o.stats.putsTiny.Load(),
		PutsMedium:        o.stats.putsMedium.Load(),
		PutsLarge:         o.stats.putsLarge.Load(),
		Tombstones:        o.stats.tombstones.Load(),
		Gets:              o.stats.gets.Load(),
		Hits:              o.stats.hits.Load(),
		Misses:            o.stats.misses.Load(),
		Evictions:         o.stats.evictions.Load(),
		UncompressedBytes: dramStats.UncompressedBytes,
		CompressedBytes:   dramStats.CompressedBytes,
	}
}

// Scan is a non-goal (spec.md §1, §2): range queries are not supported by
// any tier.
func (o *Orchestrator) Scan() error {
	return errors.NewCacheError(nil, errors.ErrorCodeInvalidInput, "range scan is not supported")
}

// maybeEvict triggers a synchronous eviction check after a PUT. Eviction
// runs inline here (rather than only from the background ticker) so a burst
// of writes cannot outrun the ticker's interval and blow through capacity
// between ticks.
func (o *Orchestrator) maybeEvict() {
	capacity := o.opts.DramCapacityBytes
	if capacity <= 0 {
		return
	}
	used := o.dram.Stats().CompressedBytes
	if float64(used) < float64(capacity)*evictionThreshold {
		return
	}
	o.sweep(capacity)
}

// evictionWorker periodically checks DRAM usage against capacity, matching
// spec.md §5's "background eviction worker (single thread per cache
// instance)".
func (o *Orchestrator) evictionWorker() {
	defer o.evictWg.Done()
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			capacity := o.opts.DramCapacityBytes
			if capacity <= 0 {
				continue
			}
			used := o.dram.Stats().CompressedBytes
			if float64(used) >= float64(capacity)*evictionThreshold {
				o.sweep(capacity)
			}
		}
	}
}

// sweep runs one second-chance eviction pass, migrating evicted entries into
// the SSD tree as ordinary inserts (spec.md §4.9).
func (o *Orchestrator) sweep(capacity int64) {
	target := int64(float64(capacity) * evictionTarget)
	migrated, _, err := o.dram.Sweep(target)
	if err != nil {
		o.log.Errorw("eviction sweep failed", "error", err)
		return
	}
	for _, m := range migrated {
		if err := o.ssd.Put(m.FP, m.Val); err != nil {
			o.log.Errorw("eviction migration into ssd tree failed", "fp", m.FP, "error", err)
			continue
		}
		o.stats.evictions.Add(1)
	}
	if len(migrated) > 0 {
		o.log.Infow("eviction sweep migrated entries to ssd tier", "count", len(migrated))
	}
}
