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

// Package scheduler implements the delay loop: a single-threaded event
// loop that owns one ring.Ring, two descriptors (input/output), and a
// configured delay D. Each iteration recomputes which descriptors to
// watch, computes a timeout equal to the time remaining until the
// oldest buffered chunk is due, invokes the readiness primitive, then
// dispatches at most one ingest and one drain.
package scheduler

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/dtdelay/dtdelay/internal/clock"
	"github.com/dtdelay/dtdelay/internal/ioready"
	"github.com/dtdelay/dtdelay/internal/ring"
)

// State is one of the scheduler's three lifecycle states.
type State int

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// InputFile is the subset of *os.File the scheduler needs from the
// input descriptor: a readable stream with an OS file descriptor to
// poll.
type InputFile interface {
	io.Reader
	Fd() uintptr
}

// OutputFile is the subset of *os.File the scheduler needs from the
// output descriptor.
type OutputFile interface {
	io.Writer
	Fd() uintptr
}

// Stats are cumulative byte counters, surfaced for logging only; they
// play no role in the scheduling decision.
type Stats struct {
	InputBytes  int64
	OutputBytes int64
}

// Scheduler drives a ring.Ring between an input and output descriptor,
// enforcing a minimum per-chunk delay of delayMS. It is not safe for
// concurrent use: per spec, it is the Ring's single owner and the only
// execution context touching it.
type Scheduler struct {
	ring    *ring.Ring
	input   InputFile
	output  OutputFile
	delayMS int64
	clock   clock.Clock
	log     *zap.SugaredLogger

	inputDesc  ioready.Descriptor
	outputDesc ioready.Descriptor

	inputClosed  bool
	outputClosed bool
	hasNext      bool
	nextTS       int64

	state State
	stats Stats

	shutdown atomic.Bool
}

// New builds a Scheduler ready to Run. log may be nil, in which case a
// no-op logger is used.
func New(r *ring.Ring, input InputFile, output OutputFile, delayMS int64, clk clock.Clock, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		ring:       r,
		input:      input,
		output:     output,
		delayMS:    delayMS,
		clock:      clk,
		log:        log,
		inputDesc:  ioready.New(input.Fd()),
		outputDesc: ioready.New(output.Fd()),
		state:      Running,
	}
}

// RequestShutdown asks the loop to stop accepting new input and drain
// whatever remains buffered, as if input had reached EOF. Safe to call
// from another goroutine (e.g. a signal handler).
func (s *Scheduler) RequestShutdown() {
	s.shutdown.Store(true)
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// Stats returns a snapshot of cumulative byte counters.
func (s *Scheduler) Stats() Stats { return s.stats }

// Run drives the loop to completion, returning nil on normal
// termination (§4.2.5) or an error if the readiness primitive itself
// fails fatally.
func (s *Scheduler) Run() error {
	s.refreshHasNext()

	for {
		if s.isDone() {
			s.state = Stopped
			s.log.Infow("scheduler stopped", "bytes_in", s.stats.InputBytes, "bytes_out", s.stats.OutputBytes)
			return nil
		}

		if s.shutdown.Load() && !s.inputClosed {
			s.inputClosed = true
			s.log.Infow("graceful shutdown requested, draining remainder")
		}

		now := s.clock.NowMS()
		wantInput := !s.inputClosed && !s.ring.IsFull()
		wantOutput, timeoutMS := s.watchOutput(now)

		var fds []unix.PollFd
		inputIdx, outputIdx := -1, -1
		if wantInput {
			fds = append(fds, s.inputDesc.PollFd(ioready.EventRead))
			inputIdx = len(fds) - 1
		}
		if wantOutput {
			fds = append(fds, s.outputDesc.PollFd(ioready.EventWrite))
			outputIdx = len(fds) - 1
		}

		var ready int
		if len(fds) == 0 {
			// isDone() ruled out the infinite-timeout case, except when a
			// shutdown request has just closed input on an empty ring:
			// timeoutMS is then -1, Sleep returns at once, and the next
			// iteration's isDone() stops the loop.
			time.Sleep(time.Duration(timeoutMS) * time.Millisecond)
			ready = 0
		} else {
			n, err := ioready.Poll(fds, timeoutMS)
			if err != nil {
				if errors.Is(err, unix.EINTR) {
					continue
				}
				return fmt.Errorf("%w: %v", ErrPollFailed, err)
			}
			ready = n
		}

		if ready == 0 {
			if !s.ring.IsEmpty() {
				s.drain()
			}
		} else {
			if outputIdx >= 0 && ioready.Ready(fds[outputIdx], ioready.EventWrite) {
				s.drain()
			}
			if inputIdx >= 0 && ioready.Ready(fds[inputIdx], ioready.EventRead) {
				s.ingest()
			}
		}

		s.refreshHasNext()
		s.updateState()
	}
}

// watchOutput computes whether output should be polled this iteration
// and the timeout to use, per §4.2.2.
func (s *Scheduler) watchOutput(now int64) (watch bool, timeoutMS int) {
	if s.outputClosed || !s.hasNext {
		return false, -1
	}
	due := s.nextTS + s.delayMS
	wait := due - now
	if wait <= 0 {
		return true, -1
	}
	return false, clampTimeout(wait)
}

func (s *Scheduler) isDone() bool {
	return s.outputClosed || (s.inputClosed && !s.hasNext)
}

func (s *Scheduler) ingest() {
	now := s.clock.NowMS()
	n, err := s.ring.IngestFrom(s.input, now)
	if n <= 0 {
		s.inputClosed = true
		s.log.Infow("input closed", "err", err)
		return
	}
	s.stats.InputBytes += int64(n)
}

func (s *Scheduler) drain() {
	w, err := s.ring.DrainTo(s.output)
	if w <= 0 {
		s.outputClosed = true
		s.log.Infow("output closed", "err", err)
		return
	}
	s.stats.OutputBytes += int64(w)
}

func (s *Scheduler) refreshHasNext() {
	s.hasNext = !s.ring.IsEmpty()
	if s.hasNext {
		s.nextTS = s.ring.PeekNextTimestamp()
	}
}

func (s *Scheduler) updateState() {
	switch {
	case s.isDone():
		s.state = Stopped
	case s.inputClosed:
		s.state = Draining
	default:
		s.state = Running
	}
}

// clampTimeout converts a millisecond wait to the int timeoutMs poll(2)
// expects, capping at a value safe on 32-bit platforms.
func clampTimeout(waitMS int64) int {
	if waitMS > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(waitMS)
}
