// Package chunk implements content-defined chunking: splitting a byte stream
// into variable-length blocks at boundaries determined by local content
// rather than fixed offsets, so that an insertion or deletion in the middle
// of a file perturbs only the blocks adjacent to the edit instead of every
// block downstream of it.
//
// The boundary test reuses pkg/weakhash's rolling digest as its fingerprint:
// rather than maintaining a second rolling hash (a Gear table, as in the
// FastCDC paper) purely for chunk-boundary detection, this package rolls the
// same two-register checksum already computed for block matching over a
// trailing window and tests its low bits against a mask. This means a single
// rolling hash implementation serves both the per-block weak hash and the
// variable-size chunk cut.
package chunk

import (
	"bufio"
	"io"

	"github.com/tridge-sync/tsync/pkg/stream"
	"github.com/tridge-sync/tsync/pkg/weakhash"
)

const (
	// MinSize is the smallest chunk that will be cut, regardless of content.
	// No boundary test is performed before this many bytes have accumulated.
	MinSize = 2 * 1024
	// AvgSize is the target chunk size. The boundary mask is tuned so that a
	// match occurs, on average, once every AvgSize bytes.
	AvgSize = 8 * 1024
	// MaxSize is the largest chunk that will be cut. If no boundary is found
	// by this point, a cut is forced.
	MaxSize = 64 * 1024

	// fingerprintWindow is the width of the trailing window whose rolling
	// digest is tested against the boundary mask at each position.
	fingerprintWindow = 64
)

// Sizes bounds a single Chunker run: the hard floor and ceiling on chunk
// length and the target average around which the boundary mask is tuned.
// The zero value is not valid; use DefaultSizes or construct explicitly.
type Sizes struct {
	Min int
	Avg int
	Max int
}

// DefaultSizes returns the package's built-in chunk size bounds.
func DefaultSizes() Sizes {
	return Sizes{Min: MinSize, Avg: AvgSize, Max: MaxSize}
}

// SizesFromTarget derives a full Sizes triple from a single target average,
// preserving DefaultSizes' proportions (min = avg/4, max = avg*8). This is
// the mechanism behind the CLI's single-value --blocksize flag, and behind
// reconstructing a zsync pull's rehash bounds from a remote index's
// blocksize alone.
func SizesFromTarget(avg int) Sizes {
	return Sizes{Min: avg / 4, Avg: avg, Max: avg * 8}
}

// maskBits is the number of low bits of the rolling digest that must be zero
// for a boundary to be declared, derived from avg so that a uniform random
// digest matches with probability 1/avg.
func maskBits(avg int) uint {
	var bits uint
	for n := uint64(avg); n > 1; n >>= 1 {
		bits++
	}
	return bits
}

// boundaryMask computes the boundary test mask for avg.
func boundaryMask(avg int) uint32 {
	return uint32(1)<<maskBits(avg) - 1
}

// Chunk describes one content-defined block as emitted by a Chunker: its
// offset and length within the stream it was cut from. The caller is
// responsible for pairing this with the actual bytes (Data), which the
// Chunker delivers alongside it.
type Chunk struct {
	Offset int64
	Data   []byte
}

// Chunker cuts a byte stream into content-defined chunks. It is a one-shot,
// forward-only reader: call Next repeatedly until it returns io.EOF.
type Chunker struct {
	source stream.DualModeReader
	sizes  Sizes
	mask   uint32
	offset int64
	done   bool
}

// NewChunker wraps r for content-defined chunking using the package's
// default size bounds.
func NewChunker(r io.Reader) *Chunker {
	return NewChunkerWithSizes(r, DefaultSizes())
}

// NewChunkerWithSizes wraps r for content-defined chunking using an
// explicit set of size bounds, overriding the package defaults — the
// mechanism behind the CLI's --blocksize flag. If r already performs
// efficient single-byte reads (e.g. it is itself a *bufio.Reader), it is
// used directly rather than wrapped in a second buffering layer.
func NewChunkerWithSizes(r io.Reader, sizes Sizes) *Chunker {
	source, ok := r.(stream.DualModeReader)
	if !ok {
		source = bufio.NewReaderSize(r, sizes.Max)
	}
	return &Chunker{
		source: source,
		sizes:  sizes,
		mask:   boundaryMask(sizes.Avg),
	}
}

// Next reads and returns the next chunk. It returns io.EOF (with a zero
// Chunk) once the stream is exhausted, including when the stream was empty
// from the start.
func (c *Chunker) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}

	buffer := make([]byte, 0, c.sizes.Max)
	var digest weakhash.Digest
	haveDigest := false

	for {
		b, err := c.source.ReadByte()
		if err == io.EOF {
			c.done = true
			break
		} else if err != nil {
			return Chunk{}, err
		}
		buffer = append(buffer, b)

		if len(buffer) < fingerprintWindow {
			continue
		}

		if !haveDigest {
			digest = weakhash.Init(buffer[len(buffer)-fingerprintWindow:])
			haveDigest = true
		} else {
			out := buffer[len(buffer)-fingerprintWindow-1]
			digest = digest.Roll(out, b)
		}

		if len(buffer) < c.sizes.Min {
			continue
		}

		if len(buffer) >= c.sizes.Max {
			break
		}

		if digest.Sum()&c.mask == 0 {
			break
		}
	}

	if len(buffer) == 0 {
		return Chunk{}, io.EOF
	}

	result := Chunk{Offset: c.offset, Data: buffer}
	c.offset += int64(len(buffer))
	return result, nil
}

// All reads every chunk from r, returning them in stream order, using the
// package's default size bounds. It is a convenience wrapper around
// Chunker for small inputs, such as in-memory byte slices passed between
// tests or small files.
func All(r io.Reader) ([]Chunk, error) {
	return AllWithSizes(r, DefaultSizes())
}

// AllWithSizes is All with an explicit set of size bounds.
func AllWithSizes(r io.Reader, sizes Sizes) ([]Chunk, error) {
	chunker := NewChunkerWithSizes(r, sizes)
	var chunks []Chunk
	for {
		next, err := chunker.Next()
		if err == io.EOF {
			return chunks, nil
		} else if err != nil {
			return nil, err
		}
		chunks = append(chunks, next)
	}
}
