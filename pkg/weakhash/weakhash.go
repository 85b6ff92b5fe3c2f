// Package weakhash implements the rolling weak checksum used to probe the
// block store and to drive content-defined chunking. It is a two-register
// Adler-32-class checksum as described on page 55 of Tridgell's rsync thesis
// (https://www.samba.org/~tridge/phd_thesis.pdf): cheap to compute, cheap to
// roll one byte at a time, and deliberately collision-prone. Collisions are
// resolved downstream by a strong hash; this package never claims otherwise.
package weakhash

// m is the modulus for both registers. The classic rsync choice is the
// largest prime less than 2^16, but a plain power of two works just as well
// in practice and is what most reimplementations (including this one's
// teacher) actually ship.
const m = 1 << 16

// Digest holds the two registers of a rolling checksum along with the
// window length they were computed over. A zero-value Digest is not valid;
// construct one with Init.
type Digest struct {
	r1, r2 uint32
	window uint32
}

// Init computes the digest for a window from scratch. It is O(len(window)).
func Init(window []byte) Digest {
	var r1, r2 uint32
	l := uint32(len(window))
	for i, b := range window {
		r1 += uint32(b)
		r2 += (l - uint32(i)) * uint32(b)
	}
	return Digest{r1: r1 % m, r2: r2 % m, window: l}
}

// Roll advances the digest by one byte: out leaves the window, in enters it.
// It is O(1) regardless of window length.
func (d Digest) Roll(out, in byte) Digest {
	r1 := (d.r1 - uint32(out) + uint32(in)) % m
	r2 := (d.r2 - d.window*uint32(out) + r1) % m
	return Digest{r1: r1, r2: r2, window: d.window}
}

// Sum returns the 32-bit checksum formed by concatenating the two registers.
// This is the value that gets probed against the block store and compared
// against the chunker's target bit pattern.
func (d Digest) Sum() uint32 {
	return d.r1 + m*d.r2
}
