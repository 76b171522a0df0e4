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

// Package clock provides the now() -> time_ms abstraction the scheduler
// needs: milliseconds since an arbitrary epoch, monotonic within one
// process run. A fake implementation is provided for deterministic
// tests of time-sensitive scheduler behavior.
package clock

import "time"

// Clock returns the current time in milliseconds since an arbitrary,
// process-local epoch.
type Clock interface {
	NowMS() int64
}

// System is a Clock backed by the runtime's monotonic clock reading.
// It is monotonic within a process run (time.Since uses the monotonic
// component of time.Time), never across restarts.
type System struct {
	start time.Time
}

// NewSystem returns a System clock with its epoch set to now.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// NowMS implements Clock.
func (c *System) NowMS() int64 {
	return time.Since(c.start).Milliseconds()
}

// Fake is a manually-advanced Clock for tests.
type Fake struct {
	ms int64
}

// NewFake returns a Fake clock starting at ms.
func NewFake(ms int64) *Fake {
	return &Fake{ms: ms}
}

// NowMS implements Clock.
func (c *Fake) NowMS() int64 {
	return c.ms
}

// Advance moves the fake clock forward by d.
func (c *Fake) Advance(d int64) {
	c.ms += d
}

// Set pins the fake clock to ms.
func (c *Fake) Set(ms int64) {
	c.ms = ms
}
