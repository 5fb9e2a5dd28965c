// Package tcpseq implements the 32-bit wire sequence number arithmetic used
// by the TCP sender and receiver: absolute (64-bit) stream indices wrap
// around a per-connection initial sequence number (ISN) on the wire.
package tcpseq

// Wrap32 is a 32-bit wire sequence number, offset from an absolute index by
// a per-connection zero point (the ISN).
type Wrap32 struct {
	raw uint32
}

// Wrap32FromRaw constructs a Wrap32 directly from its 32-bit wire value,
// e.g. after parsing a TCP header.
func Wrap32FromRaw(raw uint32) Wrap32 {
	return Wrap32{raw: raw}
}

// Wrap converts an absolute 64-bit sequence index n into the wire sequence
// number offset from zero, i.e. zero + (n mod 2^32).
func Wrap(n uint64, zero Wrap32) Wrap32 {
	return Wrap32{raw: zero.raw + uint32(n)}
}

// Raw returns the 32-bit wire value, e.g. to serialize into a TCP header.
func (w Wrap32) Raw() uint32 {
	return w.raw
}

// Equal reports whether two wire sequence numbers are identical.
func (w Wrap32) Equal(other Wrap32) bool {
	return w.raw == other.raw
}

// Unwrap returns the absolute 64-bit sequence index whose low 32 bits equal
// (w - zero) and which is closest to checkpoint, breaking ties toward the
// smaller absolute value. The result is always non-negative: among the at
// most two 64-bit candidates that share the wrapped value and bracket
// checkpoint, only non-negative ones are considered.
func (w Wrap32) Unwrap(zero Wrap32, checkpoint uint64) uint64 {
	offset := uint64(w.raw - zero.raw) // low 32 bits of (w - zero), zero-extended

	// offset holds the low 32 bits every candidate must share; candidates
	// differ from it by multiples of 2^32. Placing offset in checkpoint's
	// 2^32-sized block gives candidate; only it and its neighbours one block
	// below and one block above can be closest to checkpoint.
	const wrapSpan = uint64(1) << 32

	candidate := offset + (checkpoint &^ (wrapSpan - 1)) // offset + high bits of checkpoint

	above := candidate + wrapSpan
	var below uint64
	haveBelow := false
	if candidate >= wrapSpan {
		below = candidate - wrapSpan
		haveBelow = true
	}

	// Evaluate smallest-to-largest so that a tie in distance is broken
	// toward the smaller absolute value.
	best := candidate
	bestDist := absDiff(candidate, checkpoint)

	if haveBelow {
		best, bestDist = below, absDiff(below, checkpoint)
		if d := absDiff(candidate, checkpoint); d < bestDist {
			best, bestDist = candidate, d
		}
	}

	if d := absDiff(above, checkpoint); d < bestDist {
		best, bestDist = above, d
	}

	return best
}

func absDiff(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return b - a
}
