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

package scheduler

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtdelay/dtdelay/internal/clock"
	"github.com/dtdelay/dtdelay/internal/ring"
)

func newPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func newScheduler(t *testing.T, input *os.File, output *os.File, delayMS int64) *Scheduler {
	t.Helper()
	r, err := ring.Init(1 << 20)
	require.NoError(t, err)
	return New(r, input, output, delayMS, clock.NewSystem(), nil)
}

// TestEchoWithDelay is scenario S1: "hello" fed once, input closed, and
// the whole string reappears on output no sooner than delayMS after it
// was read.
func TestEchoWithDelay(t *testing.T) {
	inR, inW := newPipe(t)
	outR, outW := newPipe(t)
	const delayMS = 150

	sch := newScheduler(t, inR, outW, delayMS)

	_, err := inW.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, inW.Close())

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- sch.Run() }()

	buf := make([]byte, 5)
	_, err = io.ReadFull(outR, buf)
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.Equal(t, "hello", string(buf))
	require.GreaterOrEqual(t, elapsed.Milliseconds(), int64(delayMS-20))

	require.NoError(t, <-done)
	require.Equal(t, Stopped, sch.State())
}

// TestTwoBurstOrdering is scenario S2: two writes separated in time must
// arrive on output in the same order, and the complete output must not
// appear before the delay (less 20 ms of slack) since the first write.
func TestTwoBurstOrdering(t *testing.T) {
	inR, inW := newPipe(t)
	outR, outW := newPipe(t)
	const delayMS = 120

	sch := newScheduler(t, inR, outW, delayMS)

	done := make(chan error, 1)
	go func() { done <- sch.Run() }()

	start := time.Now()
	_, err := inW.Write([]byte("ABC"))
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = inW.Write([]byte("DEF"))
	require.NoError(t, err)
	require.NoError(t, inW.Close())

	out := make([]byte, 6)
	_, err = io.ReadFull(outR, out)
	require.NoError(t, err)

	require.Equal(t, "ABCDEF", string(out))
	require.GreaterOrEqual(t, time.Since(start).Milliseconds(), int64(delayMS-20))

	require.NoError(t, <-done)
}

// TestEmptyInput is scenario S6: input closes immediately, nothing is
// ever written to output, and Run terminates promptly.
func TestEmptyInput(t *testing.T) {
	inR, inW := newPipe(t)
	outR, outW := newPipe(t)
	require.NoError(t, inW.Close())

	sch := newScheduler(t, inR, outW, 100)

	doneCh := make(chan error, 1)
	go func() { doneCh <- sch.Run() }()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not terminate on empty input")
	}

	require.NoError(t, outW.Close())
	rest, err := io.ReadAll(outR)
	require.NoError(t, err)
	require.Empty(t, rest)
}

// TestSinkClosesMidStream is scenario S5: the output reader goes away
// while input keeps producing; the scheduler must notice the write
// failure and stop instead of hanging.
func TestSinkClosesMidStream(t *testing.T) {
	inR, inW := newPipe(t)
	outR, outW := newPipe(t)

	sch := newScheduler(t, inR, outW, 10)

	doneCh := make(chan error, 1)
	go func() { doneCh <- sch.Run() }()

	_, err := inW.Write([]byte("first-chunk"))
	require.NoError(t, err)

	buf := make([]byte, len("first-chunk"))
	_, err = io.ReadFull(outR, buf)
	require.NoError(t, err)
	require.Equal(t, "first-chunk", string(buf))

	// Close the read end: further writes to outW will fail.
	require.NoError(t, outR.Close())

	for i := 0; i < 10; i++ {
		if _, err := inW.Write([]byte("more")); err != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	inW.Close()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not terminate after sink closed")
	}
	require.Equal(t, Stopped, sch.State())
}

// TestGracefulShutdownDrains exercises RequestShutdown: it behaves like
// an input EOF, so buffered data still drains before the loop stops.
func TestGracefulShutdownDrains(t *testing.T) {
	inR, inW := newPipe(t)
	outR, outW := newPipe(t)
	const delayMS = 60

	sch := newScheduler(t, inR, outW, delayMS)

	_, err := inW.Write([]byte("buffered"))
	require.NoError(t, err)

	doneCh := make(chan error, 1)
	go func() { doneCh <- sch.Run() }()

	time.Sleep(10 * time.Millisecond)
	sch.RequestShutdown()

	buf := make([]byte, len("buffered"))
	_, err = io.ReadFull(outR, buf)
	require.NoError(t, err)
	require.Equal(t, "buffered", string(buf))

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after graceful shutdown")
	}

	inW.Close()
}
