//go:build linux || darwin

package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func readable(t *testing.T, fd int, timeout time.Duration) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return n > 0 && fds[0].Revents&unix.POLLIN != 0
	}
}

func TestFilenoReadableWhilePending(t *testing.T) {
	tr, _ := newMemTransport(t)
	fd := tr.Fileno()
	require.GreaterOrEqual(t, fd, 0)

	_, err := tr.Subscribe("F", func(*RecvBuf, string, any) {}, nil)
	require.NoError(t, err)
	assert.False(t, readable(t, fd, 0))

	require.NoError(t, tr.Publish("F", []byte("a")))
	require.NoError(t, tr.Publish("F", []byte("b")))
	waitPending(t, tr, 2)
	assert.True(t, readable(t, fd, time.Second))

	require.NoError(t, tr.HandleOne())
	assert.True(t, readable(t, fd, 0), "one message still pending")
	require.NoError(t, tr.HandleOne())
	assert.False(t, readable(t, fd, 0))
}
