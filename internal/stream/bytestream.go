// Package stream implements ByteStream, a capacity-bounded, single-producer/
// single-consumer FIFO of bytes with closed/error flags. It has no internal
// locking: a producer and a consumer may operate sequentially, or
// concurrently with external synchronization supplied by the caller.
package stream

// ByteStream is a bounded FIFO of bytes. Capacity is fixed at construction.
// Writers push bytes in; excess bytes beyond available capacity are
// silently dropped, so callers are expected to check AvailableCapacity
// before pushing. Readers peek a contiguous prefix and pop bytes off the
// front independently of how they were pushed.
type ByteStream struct {
	capacity int
	buf      []byte

	pushed int64
	popped int64

	closed bool
	errSet bool
}

// New constructs a ByteStream with the given fixed capacity.
func New(capacity int) *ByteStream {
	return &ByteStream{
		capacity: capacity,
		buf:      make([]byte, 0, capacity),
	}
}

// Push appends up to AvailableCapacity() bytes of data to the stream. Bytes
// beyond that are dropped without error; Push never blocks and never
// returns an error on its own (it is not itself a failure condition — the
// caller is expected to only offer what AvailableCapacity allows).
func (b *ByteStream) Push(data []byte) int {
	if b.closed {
		return 0
	}
	avail := b.AvailableCapacity()
	if avail <= 0 {
		return 0
	}
	n := len(data)
	if n > avail {
		n = avail
	}
	b.buf = append(b.buf, data[:n]...)
	b.pushed += int64(n)
	return n
}

// Close marks the stream closed: no further bytes may be pushed. Idempotent.
func (b *ByteStream) Close() {
	b.closed = true
}

// IsClosed reports whether Close has been called.
func (b *ByteStream) IsClosed() bool {
	return b.closed
}

// SetError marks the stream as errored. Monotone: once set it cannot be
// cleared. Idempotent.
func (b *ByteStream) SetError() {
	b.errSet = true
}

// HasError reports whether SetError has been called.
func (b *ByteStream) HasError() bool {
	return b.errSet
}

// Peek returns a contiguous prefix of the buffered bytes. It is not
// required to return all buffered bytes, but must return at least one byte
// whenever BytesBuffered() > 0. Callers must not retain the returned slice
// across a Pop.
func (b *ByteStream) Peek() []byte {
	return b.buf
}

// Pop discards min(n, BytesBuffered()) bytes from the front of the stream.
func (b *ByteStream) Pop(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.buf) {
		n = len(b.buf)
	}
	copy(b.buf, b.buf[n:])
	b.buf = b.buf[:len(b.buf)-n]
	b.popped += int64(n)
}

// IsFinished reports whether the stream is closed and fully drained.
func (b *ByteStream) IsFinished() bool {
	return b.closed && len(b.buf) == 0
}

// BytesBuffered returns the number of bytes currently held (pushed but not
// yet popped).
func (b *ByteStream) BytesBuffered() int {
	return len(b.buf)
}

// AvailableCapacity returns how many more bytes may be pushed right now.
func (b *ByteStream) AvailableCapacity() int {
	return b.capacity - len(b.buf)
}

// Capacity returns the stream's fixed capacity.
func (b *ByteStream) Capacity() int {
	return b.capacity
}

// BytesPushed returns the total number of bytes ever accepted by Push.
func (b *ByteStream) BytesPushed() uint64 {
	return uint64(b.pushed)
}

// BytesPopped returns the total number of bytes ever removed by Pop.
func (b *ByteStream) BytesPopped() uint64 {
	return uint64(b.popped)
}
