package transport

import "sort"

// reassembleChunk is one out-of-order fragment held until the gap below it
// closes.
type reassembleChunk struct {
	offset uint64
	data   []byte
	fin    bool
}

// reassembleBuffer is the range-addressed store of out-of-order bytes
// spec.md 3/4.1 calls the Stream's reassembly buffer. Chunks are kept
// sorted by offset; overlapping/duplicate bytes are trimmed away so the
// buffer never holds data already delivered.
type reassembleBuffer struct {
	chunks []reassembleChunk
}

// insert stores (offset, data, fin) for later contiguous delivery. Bytes
// already covered by rxOffset are expected to have been sliced off by the
// caller before calling insert for the out-of-order path (spec.md 4.5); this
// method still clips against existing chunks to keep duplicates out.
func (r *reassembleBuffer) insert(offset uint64, data []byte, fin bool) {
	if len(data) == 0 && !fin {
		return
	}
	end := offset + uint64(len(data))
	i := sort.Search(len(r.chunks), func(i int) bool {
		return r.chunks[i].offset >= offset
	})
	// Trim overlap with the chunk immediately before i.
	if i > 0 {
		prev := &r.chunks[i-1]
		prevEnd := prev.offset + uint64(len(prev.data))
		if prevEnd > offset {
			if prevEnd >= end {
				return // fully covered already
			}
			skip := prevEnd - offset
			offset += skip
			data = data[skip:]
		}
	}
	r.chunks = append(r.chunks, reassembleChunk{})
	copy(r.chunks[i+1:], r.chunks[i:])
	r.chunks[i] = reassembleChunk{offset: offset, data: data, fin: fin}
	r.dedupFrom(i)
}

// dedupFrom trims/removes chunks overlapping the one at index i after an
// insertion.
func (r *reassembleBuffer) dedupFrom(i int) {
	end := r.chunks[i].offset + uint64(len(r.chunks[i].data))
	j := i + 1
	for j < len(r.chunks) {
		c := &r.chunks[j]
		if c.offset >= end {
			break
		}
		cEnd := c.offset + uint64(len(c.data))
		if cEnd <= end {
			// Fully covered by the new chunk; drop it.
			r.chunks = append(r.chunks[:j], r.chunks[j+1:]...)
			continue
		}
		skip := end - c.offset
		c.offset += skip
		c.data = c.data[skip:]
		break
	}
}

// dropBefore discards any stored bytes before offset (the reassembly
// buffer's "drop the prefix" step in spec.md 4.1/4.5).
func (r *reassembleBuffer) dropBefore(offset uint64) {
	i := 0
	for i < len(r.chunks) {
		c := &r.chunks[i]
		end := c.offset + uint64(len(c.data))
		if end <= offset {
			i++
			continue
		}
		if c.offset < offset {
			skip := offset - c.offset
			c.offset += skip
			c.data = c.data[skip:]
		}
		break
	}
	r.chunks = r.chunks[i:]
}

// popContiguous removes and returns the chunk starting exactly at rxOffset,
// if any, so the caller can drain contiguous deliveries one at a time.
func (r *reassembleBuffer) popContiguous(rxOffset uint64) (reassembleChunk, bool) {
	if len(r.chunks) == 0 || r.chunks[0].offset != rxOffset {
		return reassembleChunk{}, false
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return c, true
}

func (r *reassembleBuffer) empty() bool { return len(r.chunks) == 0 }

// hasGapBefore reports whether any stored byte lies below offset (meaning
// delivery is not fully contiguous up to offset yet).
func (r *reassembleBuffer) hasGapBefore(offset uint64) bool {
	for _, c := range r.chunks {
		if c.offset < offset {
			return true
		}
	}
	return false
}
