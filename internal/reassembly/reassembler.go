// Package reassembly buffers out-of-order byte ranges addressed by absolute
// stream index and drains the in-order prefix into a ByteStream as soon as
// it becomes available.
package reassembly

import (
	"sort"

	"github.com/tinyrange/minnow/internal/stream"
)

// span is a half-open, disjoint buffered byte range [start, end).
type span struct {
	start uint64
	end   uint64
	data  []byte
}

// Reassembler owns an output ByteStream and reorders substrings pushed to
// it via Insert, which may arrive out of order and overlapping. The
// interval-merge implementation here is authoritative; see bytemap.go for a
// behaviourally equivalent reference implementation used only in tests.
type Reassembler struct {
	output *stream.ByteStream

	nextIndex uint64 // N: index of the next byte the stream expects
	endIndex  uint64 // E: first_index + len(data) of the terminal substring
	haveEnd   bool

	// Buffered spans kept sorted and disjoint by start index.
	spans []span
}

// New constructs a Reassembler that writes reassembled bytes into output.
func New(output *stream.ByteStream) *Reassembler {
	return &Reassembler{output: output}
}

// Output returns the underlying ByteStream.
func (r *Reassembler) Output() *stream.ByteStream {
	return r.output
}

// Insert delivers a substring starting at absolute index firstIndex. When
// isLast is true, firstIndex+len(data) is recorded as the stream's end
// index; repeated terminal substrings must agree on that end index (a
// conforming peer never disagrees — no integrity check is attempted here).
func (r *Reassembler) Insert(firstIndex uint64, data []byte, isLast bool) {
	if isLast {
		end := firstIndex + uint64(len(data))
		if !r.haveEnd {
			r.endIndex = end
			r.haveEnd = true
		}
	}

	avail := r.output.AvailableCapacity()
	windowEnd := r.nextIndex + uint64(avail)

	start := firstIndex
	end := firstIndex + uint64(len(data))
	if start < r.nextIndex {
		start = r.nextIndex
	}
	if end > windowEnd {
		end = windowEnd
	}

	if start >= end {
		if !isLast {
			return
		}
		// Empty data (or entirely clipped) that nonetheless marks the end:
		// still fall through to drain/close below.
	} else {
		clipped := data[start-firstIndex : end-firstIndex]
		r.merge(start, end, clipped)
	}

	r.drain()

	if r.haveEnd && r.nextIndex == r.endIndex {
		r.output.Close()
	}
}

// merge inserts [start, end) with the given bytes into the sorted span
// list, coalescing with any overlapping or adjacent spans.
func (r *Reassembler) merge(start, end uint64, data []byte) {
	// Find the first span whose end >= start: only spans at or after this
	// point can possibly overlap or touch [start, end).
	i := sort.Search(len(r.spans), func(i int) bool {
		return r.spans[i].end >= start
	})

	newStart, newEnd := start, end
	var buf []byte

	j := i
	for j < len(r.spans) && r.spans[j].start <= newEnd {
		s := r.spans[j]
		if s.start < newStart {
			newStart = s.start
		}
		if s.end > newEnd {
			newEnd = s.end
		}
		j++
	}

	if j == i {
		// No overlap with any existing span: plain insertion.
		buf = append([]byte(nil), data...)
	} else {
		buf = make([]byte, 0, newEnd-newStart)
		// Bytes before our new data, from the first absorbed span.
		first := r.spans[i]
		if first.start < start {
			buf = append(buf, first.data[:start-first.start]...)
		}
		buf = append(buf, data...)
		last := r.spans[j-1]
		if last.end > end {
			buf = append(buf, last.data[len(last.data)-int(last.end-end):]...)
		}
	}

	merged := span{start: newStart, end: newEnd, data: buf}
	tail := append([]span(nil), r.spans[j:]...)
	r.spans = append(r.spans[:i], merged)
	r.spans = append(r.spans, tail...)
}

// drain pushes every buffered span starting exactly at nextIndex into the
// output stream, advancing nextIndex, until no such span remains.
func (r *Reassembler) drain() {
	for len(r.spans) > 0 && r.spans[0].start == r.nextIndex {
		s := r.spans[0]
		r.output.Push(s.data)
		r.nextIndex += uint64(len(s.data))
		r.spans = r.spans[1:]
	}
}

// BytesPending returns the number of bytes currently buffered but not yet
// written to the output stream.
func (r *Reassembler) BytesPending() uint64 {
	var total uint64
	for _, s := range r.spans {
		total += s.end - s.start
	}
	return total
}
