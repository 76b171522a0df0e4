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

package ioready

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPollReportsWriteReady(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	d := New(w.Fd())
	fds := []unix.PollFd{d.PollFd(EventWrite)}

	n, err := Poll(fds, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, Ready(fds[0], EventWrite))
}

func TestPollReportsReadReadyAfterWrite(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	d := New(r.Fd())
	fds := []unix.PollFd{d.PollFd(EventRead)}

	n, err := Poll(fds, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, Ready(fds[0], EventRead))
}

func TestPollTimesOutWithNoActivity(t *testing.T) {
	r, _, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	d := New(r.Fd())
	fds := []unix.PollFd{d.PollFd(EventRead)}

	n, err := Poll(fds, 20)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
