// Package zipcache provides a multi-tier compressed key/value cache:
// a DRAM-resident compressed B+tree backed by an SSD-resident super-leaf
// B+tree and a large-object index, so hot data stays cheap to touch while
// cold and oversized data spills to SSD without forcing a re-encode. It
// is designed for embedding inside a process that wants an in-memory-speed
// cache with graceful overflow onto local SSD, rather than a standalone
// database server.
package zipcache

import (
	"github.com/iamNilotpal/zipcache/internal/orchestrator"
	"github.com/iamNilotpal/zipcache/pkg/errors"
	"github.com/iamNilotpal/zipcache/pkg/logger"
	"github.com/iamNilotpal/zipcache/pkg/options"
)

// Instance is a single ZipCache handle: the tier orchestrator plus the
// configuration it was opened with. Instance is the primary entry point for
// interacting with ZipCache, providing methods for setting, getting, and
// deleting key-value pairs.
type Instance struct {
	orch    *orchestrator.Orchestrator
	options *options.Options
}

// Open creates and initializes a new ZipCache instance (spec.md §6.1 `init`
// / `init_ex`): default configuration applied first, then every supplied
// OptionFunc in order. Passing WithSizeThresholds as one of opts implements
// `init_ex`'s threshold-at-creation-time variant.
func Open(service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	cfg := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !(0 < cfg.TinyMax && cfg.TinyMax < cfg.MediumMax && cfg.MediumMax < cfg.LargeThreshold) {
		return nil, errors.NewConfigurationValidationError(
			"tinyMax/mediumMax/largeThreshold",
			"must satisfy 0 < tinyMax < mediumMax < largeThreshold",
		)
	}

	orch, err := orchestrator.Open(&cfg, log)
	if err != nil {
		return nil, err
	}
	return &Instance{orch: orch, options: &cfg}, nil
}

// SetThresholds updates the tiny/medium size-classification boundaries
// (spec.md §6.1 `set_thresholds`). Rejected with `invalid_size` when
// `0 < tinyMax < mediumMax < large_threshold` does not hold; the large
// threshold itself is fixed at creation time.
func (i *Instance) SetThresholds(tinyMax, mediumMax int) error {
	if !(0 < tinyMax && tinyMax < mediumMax && mediumMax < i.options.LargeThreshold) {
		return errors.NewInvalidSizeError("", mediumMax)
	}
	i.options.TinyMax = tinyMax
	i.options.MediumMax = mediumMax
	return nil
}

// GetThresholds returns the current tiny/medium size-classification
// boundaries (spec.md §6.1 `get_thresholds`).
func (i *Instance) GetThresholds() (tinyMax, mediumMax int) {
	return i.options.TinyMax, i.options.MediumMax
}

// Put stores a key-value pair, routed to the DRAM tree, the large-object
// index, or both depending on value's size (spec.md §6.1 `put`).
func (i *Instance) Put(key string, value []byte) error {
	return i.orch.Put([]byte(key), value)
}

// Get retrieves the value associated with key. Returns a `CacheError` coded
// `ErrorCodeCacheKeyNotFound` when no tier holds a live value (spec.md §6.1
// `get`'s `not_found`/`tombstone` outcomes are both folded into this single
// miss — the tombstone case is resolved internally by the orchestrator's
// probe order before it ever reaches this facade).
func (i *Instance) Get(key string) ([]byte, error) {
	return i.orch.Get([]byte(key))
}

// Delete removes key from every tier (spec.md §6.1 `delete`). Idempotent:
// deleting an absent key returns a `not_found` error rather than panicking,
// but is otherwise safe to call repeatedly.
func (i *Instance) Delete(key string) error {
	return i.orch.Delete([]byte(key))
}

// Stats returns a point-in-time snapshot of cache counters and the DRAM
// tier's compression footprint (spec.md §6.1 `stats`).
func (i *Instance) Stats() orchestrator.Stats {
	return i.orch.Stats()
}

// Close shuts down the cache instance (spec.md §6.1 `destroy`): stops the
// background eviction and flush workers, then closes the SSD-resident
// files. Crash recovery is a non-goal (spec.md §6.3); Close is the only
// supported way to leave the on-disk state consistent.
func (i *Instance) Close() error {
	return i.orch.Close()
}
