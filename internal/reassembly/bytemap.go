package reassembly

import (
	"sort"

	"github.com/tinyrange/minnow/internal/stream"
)

// ByteMapReassembler is a reference implementation storing one map entry
// per buffered byte rather than merged intervals. It is behaviourally
// equivalent to Reassembler but performs poorly for large out-of-order
// windows; it exists only so tests can assert the two implementations
// agree on every scenario.
type ByteMapReassembler struct {
	output *stream.ByteStream

	nextIndex uint64
	endIndex  uint64
	haveEnd   bool

	buffered map[uint64]byte
}

// NewByteMap constructs a ByteMapReassembler writing into output.
func NewByteMap(output *stream.ByteStream) *ByteMapReassembler {
	return &ByteMapReassembler{
		output:   output,
		buffered: make(map[uint64]byte),
	}
}

// Output returns the underlying ByteStream.
func (r *ByteMapReassembler) Output() *stream.ByteStream {
	return r.output
}

// Insert has the same contract as Reassembler.Insert.
func (r *ByteMapReassembler) Insert(firstIndex uint64, data []byte, isLast bool) {
	if isLast {
		end := firstIndex + uint64(len(data))
		if !r.haveEnd {
			r.endIndex = end
			r.haveEnd = true
		}
	}

	avail := r.output.AvailableCapacity()
	windowEnd := r.nextIndex + uint64(avail)

	for i, b := range data {
		idx := firstIndex + uint64(i)
		if idx < r.nextIndex || idx >= windowEnd {
			continue
		}
		r.buffered[idx] = b
	}

	for {
		b, ok := r.buffered[r.nextIndex]
		if !ok {
			break
		}
		r.output.Push([]byte{b})
		delete(r.buffered, r.nextIndex)
		r.nextIndex++
	}

	if r.haveEnd && r.nextIndex == r.endIndex {
		r.output.Close()
	}
}

// BytesPending returns the number of bytes currently buffered out of order.
func (r *ByteMapReassembler) BytesPending() uint64 {
	return uint64(len(r.buffered))
}

// pendingIndexesSorted is a test helper exposing buffered indices in order.
func (r *ByteMapReassembler) pendingIndexesSorted() []uint64 {
	idx := make([]uint64, 0, len(r.buffered))
	for k := range r.buffered {
		idx = append(idx, k)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}
