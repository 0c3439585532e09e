package options

const (
	// DefaultDataDir is the base directory ZipCache stores its files in
	// when no other directory is specified.
	DefaultDataDir = "/var/lib/zipcache"

	// DefaultTinyMax is the largest value size classified "tiny" for
	// stats purposes. Tiny and medium values are both routed through
	// encodeSmall, which packs a value inline when it fits within
	// internal/wordval's 7-byte inline capacity regardless of this
	// threshold, and spills it to the object store otherwise.
	DefaultTinyMax = 128

	// DefaultMediumMax is the largest value size still indexed by a
	// B+tree, with its payload spilled to the object store.
	DefaultMediumMax = 2048

	// DefaultLargeThreshold is the largest value size a PUT accepts; values
	// above DefaultMediumMax, up to this size, are stored as large objects.
	DefaultLargeThreshold = 64 * 1024

	// DefaultDramCapacityBytes is the DRAM tier's default eviction trigger.
	DefaultDramCapacityBytes int64 = 256 * 1024 * 1024

	// DefaultNumSubPages is the default DRAM leaf region count.
	DefaultNumSubPages = 8

	// DefaultCodec is the default DRAM tree codec.
	DefaultCodec = "fast"

	// DefaultMaxBufferEntries is the default per-leaf write buffer cap.
	DefaultMaxBufferEntries = 64

	// DefaultSSDDirectory is the default subdirectory for SSD-resident
	// files, relative to DataDir.
	DefaultSSDDirectory = "ssd"

	// DefaultTotal4KBBlocks sizes the SSD tree's backing file to 1 GiB by
	// default.
	DefaultTotal4KBBlocks uint32 = 262144

	// MinSSDBlocks is the smallest backing-file size WithSSDBlocks accepts
	// (4 MiB).
	MinSSDBlocks uint32 = 1024

	// MaxSSDBlocks is the largest backing-file size WithSSDBlocks accepts
	// (1 TiB).
	MaxSSDBlocks uint32 = 1 << 28
)

// defaultOptions holds ZipCache's default configuration.
var defaultOptions = Options{
	DataDir:           DefaultDataDir,
	TinyMax:           DefaultTinyMax,
	MediumMax:         DefaultMediumMax,
	LargeThreshold:    DefaultLargeThreshold,
	DramCapacityBytes: DefaultDramCapacityBytes,
	Dram: &dramOptions{
		NumSubPages:           DefaultNumSubPages,
		Codec:                 DefaultCodec,
		MaxBufferEntries:      DefaultMaxBufferEntries,
		EnableLazyCompression: true,
	},
	SSD: &ssdOptions{
		Total4KBBlocks: DefaultTotal4KBBlocks,
		Directory:      DefaultSSDDirectory,
	},
}

// NewDefaultOptions returns a copy of ZipCache's default configuration.
func NewDefaultOptions() Options {
	opts := defaultOptions
	dram := *defaultOptions.Dram
	ssd := *defaultOptions.SSD
	opts.Dram = &dram
	opts.SSD = &ssd
	return opts
}
