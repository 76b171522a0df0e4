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

// Package ioready binds *os.File descriptors to the readiness-capable
// fd abstraction the scheduler needs: a way to build unix.PollFd
// entries for a watch set and to invoke the poll readiness primitive,
// with EINTR surfaced (not swallowed) so the caller can retry a whole
// loop iteration rather than just the syscall.
package ioready

import (
	"golang.org/x/sys/unix"
)

// Event is a bitmask of readiness conditions to watch for, mirroring
// POSIX poll(2) event bits.
type Event int16

const (
	EventRead  Event = unix.POLLIN
	EventWrite Event = unix.POLLOUT
	EventHup   Event = unix.POLLHUP
)

// Descriptor adapts a raw file descriptor into poll watch entries.
type Descriptor struct {
	fd int32
}

// New wraps a raw file descriptor.
func New(fd uintptr) Descriptor {
	return Descriptor{fd: int32(fd)}
}

// PollFd returns a unix.PollFd requesting events on this descriptor.
func (d Descriptor) PollFd(events Event) unix.PollFd {
	return unix.PollFd{Fd: d.fd, Events: int16(events)}
}

// Poll blocks until one of fds is ready or timeoutMs elapses (-1 means
// infinite, 0 means return immediately). It is a direct passthrough to
// the OS primitive: callers must check for unix.EINTR themselves and
// retry their iteration, rather than the syscall, since time may need
// re-evaluating before polling again.
func Poll(fds []unix.PollFd, timeoutMs int) (int, error) {
	return unix.Poll(fds, timeoutMs)
}

// Ready reports whether revents on a polled entry indicates progress is
// possible, the peer hung up, or an error condition (POLLERR) is set.
func Ready(pfd unix.PollFd, events Event) bool {
	return pfd.Revents&(int16(events)|int16(EventHup)|unix.POLLERR) != 0
}
