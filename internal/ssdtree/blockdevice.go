package ssdtree

import (
	"fmt"
	"os"

	"github.com/iamNilotpal/zipcache/internal/subpage"
)

// fileBlockDevice implements superleaf.BlockDevice over a single fixed-size
// file: block i lives at byte offset i*4096 (spec.md §6.2). On open, the
// file is grown to totalBlocks*4096 bytes if smaller.
type fileBlockDevice struct {
	f *os.File
}

func openBlockDevice(path string, totalBlocks uint32) (*fileBlockDevice, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("ssdtree: open %s: %w", path, err)
	}

	want := int64(totalBlocks) * subpage.Size
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ssdtree: stat %s: %w", path, err)
	}
	if info.Size() < want {
		if err := f.Truncate(want); err != nil {
			f.Close()
			return nil, fmt.Errorf("ssdtree: grow %s to %d bytes: %w", path, want, err)
		}
	}
	return &fileBlockDevice{f: f}, nil
}

func (d *fileBlockDevice) ReadBlock(id uint32) ([]byte, error) {
	buf := make([]byte, subpage.Size)
	if _, err := d.f.ReadAt(buf, int64(id)*subpage.Size); err != nil {
		return nil, fmt.Errorf("ssdtree: read block %d: %w", id, err)
	}
	return buf, nil
}

func (d *fileBlockDevice) WriteBlock(id uint32, data []byte) error {
	if len(data) != subpage.Size {
		return fmt.Errorf("ssdtree: write block %d: expected %d bytes, got %d", id, subpage.Size, len(data))
	}
	if _, err := d.f.WriteAt(data, int64(id)*subpage.Size); err != nil {
		return fmt.Errorf("ssdtree: write block %d: %w", id, err)
	}
	return nil
}

func (d *fileBlockDevice) Sync() error {
	return d.f.Sync()
}

func (d *fileBlockDevice) Close() error {
	return d.f.Close()
}
