// Package options provides data structures and functions for configuring
// ZipCache. It defines the parameters that control size classification
// between tiers, DRAM compression behavior, and SSD sizing, following the
// same functional-options pattern across every knob.
package options

import "strings"

// dramOptions configures the DRAM compressed B+tree: how many
// independently compressible regions each leaf holds, which codec
// compresses them, and how much buffered writing is allowed before writes
// to a leaf apply synchronously.
type dramOptions struct {
	// NumSubPages is the number of independently compressible regions per
	// DRAM leaf. Must be a power of two — fingerprint.Slot depends on it.
	//
	//  - Default: 8
	NumSubPages int `json:"numSubPages"`

	// Codec selects which compressor backs the DRAM tree: "fast" or
	// "accelerator".
	//
	// Default: "fast"
	Codec string `json:"codec"`

	// CompressionLevel is codec-specific; 0 selects the codec's default.
	CompressionLevel int `json:"compressionLevel"`

	// MaxBufferEntries caps how many buffered writes a single leaf may
	// accumulate; once the buffer is full, further writes to that leaf
	// apply synchronously against the sub-page instead of landing in it.
	//
	//  - Default: 64
	MaxBufferEntries int `json:"maxBufferEntries"`

	// EnableLazyCompression turns on the write-buffer + background-flush
	// path. When false, every write applies synchronously against the
	// decompressed sub-page.
	//
	// Default: true
	EnableLazyCompression bool `json:"enableLazyCompression"`
}

// ssdOptions configures the SSD super-leaf B+tree and the append-only
// object store sharing its backing directory.
type ssdOptions struct {
	// Total4KBBlocks is the fixed number of 4 KiB blocks the SSD tree's
	// backing file is pre-sized to.
	//
	//  - Default: 262144 (1 GiB)
	Total4KBBlocks uint32 `json:"total4kbBlocks"`

	// Directory is where the SSD tree's block file, the object store's
	// file, and any spillover files live, relative to DataDir.
	//
	// Default: "ssd"
	Directory string `json:"directory"`
}

// Options is ZipCache's complete configuration surface.
type Options struct {
	// DataDir is the base path under which every on-disk file (SSD tree,
	// object store) is created.
	//
	// Default: "/var/lib/zipcache"
	DataDir string `json:"dataDir"`

	// TinyMax is the largest value size, in bytes, classified "tiny"
	// rather than "medium" for stats purposes. Both classes are still
	// indexed by the DRAM B+tree and packed inline when they fit within
	// internal/wordval's 7-byte capacity, spilling to the object store
	// otherwise.
	//
	//  - Default: 128
	TinyMax int `json:"tinyMax"`

	// MediumMax is the largest value size routed through the SSD object
	// store via an internal/wordval reference, still indexed by a B+tree.
	//
	//  - Default: 2048
	MediumMax int `json:"mediumMax"`

	// LargeThreshold is the largest value size a PUT accepts; larger values
	// are rejected as invalid. Values above MediumMax, up to this size, are
	// large objects indexed by the large-object index, with a tombstone
	// left in the DRAM tree.
	//
	//  - Default: 65536
	LargeThreshold int `json:"largeThreshold"`

	// DramCapacityBytes bounds the DRAM tier's compressed footprint before
	// the eviction worker starts migrating cold entries into the SSD tier.
	//
	//  - Default: 256 MiB
	DramCapacityBytes int64 `json:"dramCapacityBytes"`

	Dram *dramOptions `json:"dram"`
	SSD  *ssdOptions  `json:"ssd"`
}

// OptionFunc is a function that modifies ZipCache's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies the full set of default configuration values.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		defaults := NewDefaultOptions()
		*o = defaults
	}
}

// WithDataDir sets the base path where ZipCache stores its files.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithSizeThresholds sets the tiny/medium/large size-classification
// boundaries (spec.md §4.9). Values are only applied when tinyMax <
// mediumMax < largeThreshold.
func WithSizeThresholds(tinyMax, mediumMax, largeThreshold int) OptionFunc {
	return func(o *Options) {
		if tinyMax > 0 && tinyMax < mediumMax && mediumMax < largeThreshold {
			o.TinyMax = tinyMax
			o.MediumMax = mediumMax
			o.LargeThreshold = largeThreshold
		}
	}
}

// WithDramCapacity sets the DRAM tier's eviction trigger, in bytes.
func WithDramCapacity(bytes int64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.DramCapacityBytes = bytes
		}
	}
}

// WithNumSubPages sets the DRAM leaf's region count. Must be a power of
// two; non-power-of-two values are ignored.
func WithNumSubPages(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 && n&(n-1) == 0 {
			o.Dram.NumSubPages = n
		}
	}
}

// WithCodec selects the DRAM tree's codec ("fast" or "accelerator") and
// compression level.
func WithCodec(kind string, level int) OptionFunc {
	return func(o *Options) {
		kind = strings.TrimSpace(strings.ToLower(kind))
		if kind == "fast" || kind == "accelerator" {
			o.Dram.Codec = kind
			o.Dram.CompressionLevel = level
		}
	}
}

// WithMaxBufferEntries caps a DRAM leaf's write buffer.
func WithMaxBufferEntries(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.Dram.MaxBufferEntries = n
		}
	}
}

// WithLazyCompression toggles the DRAM tier's buffered-write path.
func WithLazyCompression(enabled bool) OptionFunc {
	return func(o *Options) {
		o.Dram.EnableLazyCompression = enabled
	}
}

// WithSSDBlocks sets the SSD tree's fixed backing-file size, in 4 KiB blocks.
func WithSSDBlocks(totalBlocks uint32) OptionFunc {
	return func(o *Options) {
		if totalBlocks >= MinSSDBlocks && totalBlocks <= MaxSSDBlocks {
			o.SSD.Total4KBBlocks = totalBlocks
		}
	}
}

// WithSSDDirectory sets where the SSD tree and object store files live.
func WithSSDDirectory(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.SSD.Directory = directory
		}
	}
}
