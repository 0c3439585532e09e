package errors

// CacheError is a specialized error type for tier-orchestrator failures:
// key lookups, size-classification rejections, and out-of-memory
// conditions that occur above the storage and index layers.
type CacheError struct {
	*baseError

	// key identifies which key was being processed, when known.
	key string

	// tier names which cache tier (dram, ssd, large_object) was involved.
	tier string

	// size captures the value size relevant to the error, e.g. for a
	// size-classification rejection.
	size int
}

// NewCacheError creates a new cache-specific error with the provided context.
func NewCacheError(err error, code ErrorCode, msg string) *CacheError {
	return &CacheError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the CacheError type.
func (ce *CacheError) WithMessage(msg string) *CacheError {
	ce.baseError.WithMessage(msg)
	return ce
}

// WithCode sets the error code while preserving the CacheError type.
func (ce *CacheError) WithCode(code ErrorCode) *CacheError {
	ce.baseError.WithCode(code)
	return ce
}

// WithDetail adds contextual information while maintaining the CacheError type.
func (ce *CacheError) WithDetail(key string, value any) *CacheError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithKey records which key was being processed when the error occurred.
func (ce *CacheError) WithKey(key string) *CacheError {
	ce.key = key
	return ce
}

// WithTier records which cache tier was involved.
func (ce *CacheError) WithTier(tier string) *CacheError {
	ce.tier = tier
	return ce
}

// WithSize records the value size relevant to the error.
func (ce *CacheError) WithSize(size int) *CacheError {
	ce.size = size
	return ce
}

// Key returns the key that was being processed when the error occurred.
func (ce *CacheError) Key() string { return ce.key }

// Tier returns the cache tier involved in the error.
func (ce *CacheError) Tier() string { return ce.tier }

// Size returns the value size relevant to the error.
func (ce *CacheError) Size() int { return ce.size }

// NewKeyNotFoundCacheError creates the error every Get returns when no tier
// holds a live value for key.
func NewKeyNotFoundCacheError(key string) *CacheError {
	return NewCacheError(nil, ErrorCodeCacheKeyNotFound, "key not found in any tier").WithKey(key)
}

// NewInvalidSizeError creates the error Put returns when a value's size
// falls outside every tier's configured bounds.
func NewInvalidSizeError(key string, size int) *CacheError {
	return NewCacheError(nil, ErrorCodeCacheInvalidSize, "value size is not accepted by any tier").
		WithKey(key).
		WithSize(size)
}

// NewOutOfMemoryError creates the error Put returns when the DRAM tier
// rejects a write.
func NewOutOfMemoryError(key string) *CacheError {
	return NewCacheError(nil, ErrorCodeCacheOutOfMemory, "dram tier rejected the write").
		WithKey(key).
		WithTier("dram")
}
