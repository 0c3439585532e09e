package errors

// CodecError is a specialized error type for compression/decompression
// failures in any of the core's codec-backed trees.
type CodecError struct {
	*baseError

	// codec names which codec kind was active ("fast", "accelerator").
	codec string

	// expectedLen is the decompressed length the caller required.
	expectedLen int
}

// NewCodecError creates a new codec-specific error with the provided context.
func NewCodecError(err error, code ErrorCode, msg string) *CodecError {
	return &CodecError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the CodecError type.
func (ce *CodecError) WithMessage(msg string) *CodecError {
	ce.baseError.WithMessage(msg)
	return ce
}

// WithCode sets the error code while preserving the CodecError type.
func (ce *CodecError) WithCode(code ErrorCode) *CodecError {
	ce.baseError.WithCode(code)
	return ce
}

// WithDetail adds contextual information while maintaining the CodecError type.
func (ce *CodecError) WithDetail(key string, value any) *CodecError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithCodec records which codec kind was active.
func (ce *CodecError) WithCodec(codec string) *CodecError {
	ce.codec = codec
	return ce
}

// WithExpectedLen records the decompressed length the caller required.
func (ce *CodecError) WithExpectedLen(n int) *CodecError {
	ce.expectedLen = n
	return ce
}

// Codec returns the codec kind involved in the error.
func (ce *CodecError) Codec() string { return ce.codec }

// ExpectedLen returns the decompressed length the caller required.
func (ce *CodecError) ExpectedLen() int { return ce.expectedLen }

// NewCodecCorruptError wraps a codec decode failure with the codec kind and
// the length the caller expected back.
func NewCodecCorruptError(err error, codec string, expectedLen int) *CodecError {
	return NewCodecError(err, ErrorCodeCodecCorrupt, "compressed block failed to decode").
		WithCodec(codec).
		WithExpectedLen(expectedLen)
}
