package wl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		lost bool
	}{
		{"broken pipe", &net.OpError{Op: "write", Err: os.NewSyscallError("sendmsg", unix.EPIPE)}, true},
		{"reset", fmt.Errorf("read: %w", unix.ECONNRESET), true},
		{"eof", io.EOF, true},
		{"closed", net.ErrClosed, true},
		{"hangup", errHangup, true},
		{"protocol", errors.New("unknown opcode"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.lost, errors.Is(err, ErrConnectionLost))
			assert.ErrorContains(t, err, tt.err.Error())
		})
	}
}

func TestWords(t *testing.T) {
	b := make([]byte, 12)
	binary.NativeEndian.PutUint32(b[0:], 1)
	binary.NativeEndian.PutUint32(b[4:], 4)
	binary.NativeEndian.PutUint32(b[8:], 0xdeadbeef)

	assert.Equal(t, []uint32{1, 4, 0xdeadbeef}, words(b))
	assert.Empty(t, words(nil))
	assert.Equal(t, []uint32{7}, words(append(binary.NativeEndian.AppendUint32(nil, 7), 0xff)))
}

func TestQueueDrainRunsInOrder(t *testing.T) {
	c := &conn{queues: map[*queue]struct{}{}}
	q := &queue{conn: c, wake: make(chan struct{}, 1)}
	c.queues[q] = struct{}{}

	var got []int
	for i := 0; i < 3; i++ {
		q.post(func() { got = append(got, i) })
	}
	assert.Equal(t, 3, q.drain())
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 0, q.drain())
}

func TestFailWakesQueuesAndSticks(t *testing.T) {
	c := &conn{queues: map[*queue]struct{}{}}
	q := &queue{conn: c, wake: make(chan struct{}, 1)}
	c.queues[q] = struct{}{}

	err := c.fail(unix.EPIPE)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, c.failure(), ErrConnectionLost)
	assert.ErrorIs(t, q.wait(), ErrConnectionLost)

	select {
	case <-q.wake:
	default:
		t.Fatal("queue was not woken")
	}

	assert.ErrorIs(t, c.fail(io.EOF), ErrConnectionLost, "first error wins")
	_, err = c.newQueue(false)
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestClosedQueueDropsEvents(t *testing.T) {
	c := &conn{queues: map[*queue]struct{}{}}
	q, err := c.newQueue(false)
	assert.NoError(t, err)

	assert.NoError(t, q.Close())
	q.post(func() { t.Fatal("ran after close") })
	assert.Equal(t, 0, q.drain())
	assert.ErrorIs(t, q.Dispatch(), ErrClosed)
}
