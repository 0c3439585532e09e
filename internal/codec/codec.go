// Package codec exposes the block-wise compress/decompress primitives the
// rest of the core is built on: a general-purpose fast codec and a
// hardware-accelerator codec that falls back to software (spec.md §4.1).
// Selection happens once per tree at construction; both variants operate on
// a single contiguous byte region and never retry on incompressible input —
// the caller stores the sub-page uncompressed instead.
package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Kind selects which codec a tree is built with.
type Kind int

const (
	// Fast is the general-purpose codec (klauspost/compress/s2).
	Fast Kind = iota
	// Accelerator is the hardware-offload-shaped codec (klauspost/compress/zstd),
	// falling back to its software path when no accelerator is wired in.
	Accelerator
)

func (k Kind) String() string {
	switch k {
	case Fast:
		return "fast"
	case Accelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// Codec compresses and decompresses single contiguous regions. Compress
// returns ok=false (never an error) when the codec judged the input
// incompressible; the caller is responsible for storing the region
// uncompressed in that case (spec.md: "the core never retries on
// incompressible").
type Codec interface {
	Compress(src []byte) (dst []byte, ok bool, err error)
	Decompress(src []byte, expectedLen int) ([]byte, error)
	// ThreadSafe reports whether concurrent calls into this codec are safe
	// without external synchronization. Callers that get false must
	// serialize with their own per-tree mutex (spec.md §4.1, §5).
	ThreadSafe() bool
}

// ErrCorrupt is returned by Decompress when the decoded length does not
// match expectedLen or the underlying codec rejects the stream. The
// orchestrator surfaces this as io_error (spec.md §7).
var ErrCorrupt = fmt.Errorf("codec: corrupt compressed block")

// New builds the codec for kind. level is codec-specific (spec.md §6.4's
// compression_level knob); 0 selects each codec's default.
func New(kind Kind, level int) (Codec, error) {
	switch kind {
	case Fast:
		return newFastCodec(level), nil
	case Accelerator:
		return newAcceleratorCodec(level)
	default:
		return nil, fmt.Errorf("codec: unknown kind %d", kind)
	}
}

// fastCodec wraps s2's stateless Encode/Decode. Both are pure functions over
// their arguments with no shared mutable state, so concurrent calls are safe.
type fastCodec struct {
	level int
}

func newFastCodec(level int) *fastCodec {
	return &fastCodec{level: level}
}

func (c *fastCodec) ThreadSafe() bool { return true }

func (c *fastCodec) Compress(src []byte) ([]byte, bool, error) {
	dst := s2.Encode(nil, src)
	if len(dst) >= len(src) {
		return nil, false, nil
	}
	return dst, true, nil
}

func (c *fastCodec) Decompress(src []byte, expectedLen int) ([]byte, error) {
	dst, err := s2.Decode(nil, src)
	if err != nil {
		return nil, ErrCorrupt
	}
	if len(dst) != expectedLen {
		return nil, ErrCorrupt
	}
	return dst, nil
}

// acceleratorCodec wraps a reused zstd encoder/decoder pair, standing in for
// a hardware-offload engine with a software fallback (spec.md §1 treats the
// offload engine as "one pluggable codec among several"). The encoder and
// decoder are not safe for concurrent use on their own, and internal/dramtree
// shares a single Codec instance across every leaf in its arena behind only
// per-leaf locks, so every call here goes through codecMu rather than relying
// on a caller to serialize access. ThreadSafe still reports false: the
// locking is this type's own implementation detail, not a contract callers
// should depend on.
type acceleratorCodec struct {
	codecMu sync.Mutex
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

func newAcceleratorCodec(level int) (*acceleratorCodec, error) {
	zl := zstd.SpeedDefault
	switch {
	case level <= 1:
		zl = zstd.SpeedFastest
	case level >= 3:
		zl = zstd.SpeedBestCompression
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl))
	if err != nil {
		return nil, fmt.Errorf("codec: init accelerator encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("codec: init accelerator decoder: %w", err)
	}
	return &acceleratorCodec{enc: enc, dec: dec}, nil
}

func (c *acceleratorCodec) ThreadSafe() bool { return false }

func (c *acceleratorCodec) Compress(src []byte) ([]byte, bool, error) {
	c.codecMu.Lock()
	dst := c.enc.EncodeAll(src, nil)
	c.codecMu.Unlock()
	if len(dst) >= len(src) {
		return nil, false, nil
	}
	return dst, true, nil
}

func (c *acceleratorCodec) Decompress(src []byte, expectedLen int) ([]byte, error) {
	c.codecMu.Lock()
	dst, err := c.dec.DecodeAll(src, make([]byte, 0, expectedLen))
	c.codecMu.Unlock()
	if err != nil {
		return nil, ErrCorrupt
	}
	if len(dst) != expectedLen {
		return nil, ErrCorrupt
	}
	return dst, nil
}

// Close releases the accelerator codec's reusable encoder/decoder. The fast
// codec holds no resources and needs no Close.
func (c *acceleratorCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}
