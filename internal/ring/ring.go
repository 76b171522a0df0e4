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

import (
	"errors"
	"fmt"
)

// ErrAllocFailure is returned by Init when the arena cannot be allocated.
var ErrAllocFailure = errors.New("ring: allocation failure")

// ErrEmpty names the condition of a ring that holds no chunks. No Ring
// method returns it: PeekNextTimestamp on an empty ring is undefined.
var ErrEmpty = errors.New("ring: empty")

// Ring is a fixed-capacity, single-owner FIFO of timestamped byte chunks.
// It has exactly one owner (the scheduler) for its entire lifetime; it
// carries no internal locking, matching that single-threaded contract.
type Ring struct {
	data []byte

	// capacity is the declared logical capacity: the window within which
	// head is allowed to start a new chunk.
	capacity uintptr
	// head is the offset of the next header to be written.
	head uintptr
	// tail is the offset of the oldest unread header.
	tail uintptr
}

// Init allocates a new Ring with the given logical capacity. The arena
// is over-allocated by ChunkMax-1 bytes of tail slack so that any chunk
// starting at an offset in [0, capacity) can always be written
// contiguously, eliminating the need to ever split a chunk across the
// arena boundary.
func Init(capacity uint64) (r *Ring, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("%w: %v", ErrAllocFailure, rec)
		}
	}()

	realCapacity := capacity + uint64(ChunkMax) - 1
	return &Ring{
		data:     make([]byte, realCapacity),
		capacity: uintptr(capacity),
	}, nil
}

// Close releases the arena. The Ring must not be used afterward.
func (r *Ring) Close() {
	r.data = nil
}

// IsEmpty reports whether the ring holds no chunks.
func (r *Ring) IsEmpty() bool {
	return r.head == r.tail
}

// IsFull reports whether no fresh ChunkMax-byte window can currently be
// placed: either head has reached the declared capacity without having
// wrapped yet, or head trails tail too closely on the same lap to fit a
// full chunk.
func (r *Ring) IsFull() bool {
	return r.head >= r.capacity ||
		(r.head < r.tail && r.tail-r.head <= ChunkMax)
}

// PeekNextTimestamp returns the timestamp of the oldest buffered chunk.
// Precondition: !IsEmpty(). Behavior is undefined if violated.
func (r *Ring) PeekNextTimestamp() int64 {
	return readHeader(r.data, r.tail).Timestamp
}
