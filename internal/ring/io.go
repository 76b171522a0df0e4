// {{{ Copyright (c) Paul R. Tagliamonte <paultag@gmail.com> 2020-2021
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package ring

import "io"

// IngestFrom performs exactly one read of up to PayloadMax bytes from fd
// directly into the arena, stamping the new chunk with ts.
//
// Precondition: !IsFull() and fd is read-ready. On success (n > 0) the
// chunk is committed and head advances; on EOF or error (n <= 0) the
// ring is left untouched and the raw result is returned unexamined, so
// the caller can apply the >0/0/<0 convention itself.
func (r *Ring) IngestFrom(fd io.Reader, ts int64) (int, error) {
	payloadOff := r.head + headerSize
	n, err := fd.Read(r.data[payloadOff : payloadOff+PayloadMax])
	if n <= 0 {
		return n, err
	}

	writeHeader(r.data, r.head, header{Timestamp: ts, Length: uint16(n)})
	r.head = payloadOff + uintptr(n)

	r.wrapHead()
	return n, err
}

// DrainTo issues exactly one write of the oldest chunk's payload (or its
// unwritten remainder, after a previous partial write) to fd.
//
// Precondition: !IsEmpty() and fd is write-ready. A full write advances
// tail past the chunk; a partial write (0 < w < length) advances tail by
// w and rewrites the header in place so the chunk's remaining bytes are
// the only thing left referenced, preserving the original timestamp. A
// non-positive result leaves the ring untouched.
func (r *Ring) DrainTo(fd io.Writer) (int, error) {
	h := readHeader(r.data, r.tail)
	payloadOff := r.tail + headerSize

	w, err := fd.Write(r.data[payloadOff : payloadOff+uintptr(h.Length)])
	if w <= 0 {
		return w, err
	}

	if uint16(w) == h.Length {
		r.tail = payloadOff + uintptr(w)
		r.wrapTail()
	} else {
		r.tail += uintptr(w)
		writeHeader(r.data, r.tail, header{Timestamp: h.Timestamp, Length: h.Length - uint16(w)})
	}

	// Re-evaluate head wrap: draining may have moved tail far enough past
	// a stalled head to finally admit the wrap.
	r.wrapHead()
	return w, err
}

// wrapHead resets head to 0 when it has reached capacity and tail sits
// at least one full chunk past offset 0, so a chunk starting at 0 cannot
// overrun tail.
func (r *Ring) wrapHead() {
	if r.head >= r.capacity && r.tail >= ChunkMax {
		r.head = 0
	}
}

// wrapTail resets tail to 0 when it has reached capacity. If head had
// also reached capacity at that instant (only possible when capacity <
// ChunkMax), it is reset too, re-establishing the "both on the same lap"
// canonical empty form.
func (r *Ring) wrapTail() {
	if r.tail >= r.capacity {
		r.tail = 0
		if r.head >= r.capacity {
			r.head = 0
		}
	}
}
