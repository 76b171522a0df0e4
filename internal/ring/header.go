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

import "unsafe"

// PayloadMax is the largest payload a single chunk may carry. Chosen to
// keep one chunk well under typical pipe buffer sizes while still
// amortizing the header cost over a useful amount of data.
const PayloadMax = 4000

// header is the fixed record preceding every chunk's payload in the
// arena. Timestamp is milliseconds since an arbitrary monotonic epoch;
// Length is the payload size in 1..=PayloadMax.
type header struct {
	Timestamp int64
	Length    uint16
}

const (
	headerSize = unsafe.Sizeof(header{})
	// ChunkMax is the maximum footprint (header + payload) of one chunk.
	ChunkMax = headerSize + PayloadMax
)

// readHeader reads the header at byte offset off in data. UNSAFE: off
// must point at a previously-written header; out-of-range or misaligned
// offsets are not checked.
func readHeader(data []byte, off uintptr) header {
	return *(*header)(unsafe.Pointer(&data[off]))
}

// writeHeader writes h at byte offset off in data. UNSAFE: caller must
// ensure off+headerSize does not exceed len(data).
func writeHeader(data []byte, off uintptr, h header) {
	*(*header)(unsafe.Pointer(&data[off])) = h
}
