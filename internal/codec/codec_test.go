package codec

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestFastCodecRoundTrip(t *testing.T) {
	c, err := New(Fast, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := bytes.Repeat([]byte("compressible-payload-"), 200)

	dst, ok, err := c.Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !ok {
		t.Fatal("expected highly repetitive input to compress")
	}
	got, err := c.Decompress(dst, len(src))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatal("round trip mismatch")
	}
}

func TestFastCodecRefusesIncompressible(t *testing.T) {
	c, _ := New(Fast, 0)
	// A handful of bytes in a format s2 cannot shrink (empty input already
	// has zero room to save, and s2's frame overhead exceeds tiny inputs).
	src := []byte{0x01}
	_, ok, err := c.Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if ok {
		t.Fatal("expected Compress to refuse a single byte as not worth compressing")
	}
}

func TestFastCodecDecompressCorrupt(t *testing.T) {
	c, _ := New(Fast, 0)
	if _, err := c.Decompress([]byte{0xFF, 0xFF, 0xFF}, 100); err == nil {
		t.Fatal("expected error decompressing garbage bytes")
	}
}

func TestAcceleratorCodecRoundTrip(t *testing.T) {
	c, err := New(Accelerator, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := bytes.Repeat([]byte("zstd-payload-"), 300)

	dst, ok, err := c.Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !ok {
		t.Fatal("expected highly repetitive input to compress")
	}
	got, err := c.Decompress(dst, len(src))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatal("round trip mismatch")
	}
}

// TestAcceleratorCodecConcurrentAccess exercises the same acceleratorCodec
// instance from many goroutines at once, the way internal/dramtree shares
// one Codec across every leaf in its arena. It asserts every goroutine's
// round trip is correct; run with -race to confirm codecMu actually
// serializes the underlying encoder/decoder.
func TestAcceleratorCodecConcurrentAccess(t *testing.T) {
	c, err := New(Accelerator, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const goroutines = 16
	const rounds = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			src := bytes.Repeat([]byte{byte(g)}, 2048)
			for r := 0; r < rounds; r++ {
				dst, ok, err := c.Compress(src)
				if err != nil {
					errs <- err
					return
				}
				if !ok {
					errs <- nil
					continue
				}
				got, err := c.Decompress(dst, len(src))
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(got, src) {
					errs <- fmt.Errorf("round trip mismatch for goroutine %d, round %d", g, r)
					return
				}
			}
			errs <- nil
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent accelerator codec use: %v", err)
		}
	}
}

func TestCodecThreadSafety(t *testing.T) {
	fast, _ := New(Fast, 0)
	if !fast.ThreadSafe() {
		t.Fatal("fast codec must report ThreadSafe() == true")
	}
	accel, _ := New(Accelerator, 0)
	if accel.ThreadSafe() {
		t.Fatal("accelerator codec must report ThreadSafe() == false")
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New(Kind(99), 0); err == nil {
		t.Fatal("expected error for unknown codec kind")
	}
}
