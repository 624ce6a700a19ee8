package wl

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// readerPoll bounds how long a queue that is not reading the socket sleeps
// before trying to become the reader.
const readerPoll = 2 * time.Millisecond

// conn is one socket shared by every queue created from it.
//
// Exactly one goroutine reads the socket at a time (readMu). The reader
// decodes one message, and the object's handler posts a closure onto the
// queue the object belongs to. Requests that create or destroy objects take
// readMu too, so no event can be decoded for an object before its handlers
// are installed.
//
// A reader blocked on the socket is kicked out by a wl_display.sync on kick,
// a callback registered once. Its id is reused after the server deletes it,
// so at most one kick is in flight.
type conn struct {
	display *client.Display
	ctx     *client.Context

	readMu  sync.Mutex
	writers atomic.Int32
	kick    *client.Callback
	kicking atomic.Bool

	mu     sync.Mutex
	queues map[*queue]struct{}
	err    error
	closed atomic.Bool
}

// queue is a Display view with its own pending events.
type queue struct {
	conn  *conn
	owner bool

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	closed  atomic.Bool
}

func newConn(d *client.Display) *conn {
	c := &conn{
		display: d,
		ctx:     d.Context(),
		queues:  make(map[*queue]struct{}),
	}
	c.kick = client.NewCallback(c.ctx)
	d.SetDeleteIdHandler(func(e client.DisplayDeleteIdEvent) {
		if e.Id == c.kick.ID() {
			c.kicking.Store(false)
		}
	})
	d.SetErrorHandler(func(e client.DisplayErrorEvent) {
		id := uint32(0)
		if e.ObjectId != nil {
			id = e.ObjectId.ID()
		}
		c.fail(fmt.Errorf("%w: object %d: error %d: %s", ErrProtocol, id, e.Code, e.Message))
	})
	return c
}

func (c *conn) newQueue(owner bool) (*queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.err != nil {
		return nil, c.err
	}
	q := &queue{conn: c, owner: owner, wake: make(chan struct{}, 1)}
	c.queues[q] = struct{}{}
	return q, nil
}

func (c *conn) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// fail records the first transport error and wakes every queue so their
// waiters observe it.
func (c *conn) fail(err error) error {
	c.mu.Lock()
	if c.err == nil {
		if c.closed.Load() {
			c.err = ErrClosed
		} else {
			c.err = classify(err)
		}
	}
	err = c.err
	queues := make([]*queue, 0, len(c.queues))
	for q := range c.queues {
		queues = append(queues, q)
	}
	c.mu.Unlock()

	for _, q := range queues {
		q.signal()
	}
	return err
}

// errHangup is what a read of the message header returns on a socket the
// server has closed.
var errHangup = errors.New("server hung up")

func classify(err error) error {
	switch {
	case errors.Is(err, ErrProtocol), errors.Is(err, ErrConnectionLost):
		return err
	case errors.Is(err, errHangup),
		errors.Is(err, unix.EPIPE),
		errors.Is(err, unix.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	default:
		return err
	}
}

// interrupt sends the kick sync unless one is already in flight. It writes
// the request by hand so the object map is left alone while a reader runs.
func (c *conn) interrupt() error {
	if !c.kicking.CAS(false, true) {
		return nil
	}
	var req [12]byte
	client.PutUint32(req[0:4], c.display.ID())
	client.PutUint32(req[4:8], uint32(len(req))<<16)
	client.PutUint32(req[8:12], c.kick.ID())
	if err := c.ctx.WriteMsg(req[:], nil); err != nil {
		c.kicking.Store(false)
		return err
	}
	return nil
}

// dispatchOne reads one message and hands it to its object. Events for
// objects this side already released are dropped along with any fd they
// carry.
func (c *conn) dispatchOne() error {
	sender, opcode, fd, data, err := c.ctx.ReadMsg()
	if err != nil {
		if strings.Contains(err.Error(), "header (n=0)") {
			return errHangup
		}
		return err
	}
	if d, ok := c.ctx.GetProxy(sender).(client.Dispatcher); ok {
		d.Dispatch(opcode, fd, data)
		return nil
	}
	if fd >= 0 {
		unix.Close(fd)
	}
	return nil
}

// exclusive runs fn while no goroutine is decoding events. A reader blocked
// on the socket is kicked out with a sync request whose reply is dropped.
func (c *conn) exclusive(fn func() error) error {
	if err := c.failure(); err != nil {
		return err
	}

	c.writers.Inc()
	for !c.readMu.TryLock() {
		if err := c.interrupt(); err != nil {
			c.writers.Dec()
			return c.fail(err)
		}
		time.Sleep(readerPoll)
	}
	c.writers.Dec()
	defer c.readMu.Unlock()

	if err := fn(); err != nil {
		if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
			return c.fail(err)
		}
		return err
	}
	return nil
}

func (c *conn) close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.display.Destroy()
	if cerr := c.ctx.Close(); err == nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	c.fail(ErrClosed)
	return err
}

func (q *queue) post(fn func()) {
	if q.closed.Load() {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	q.signal()
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) drain() int {
	q.mu.Lock()
	fns := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// wait reads one message from the socket, or sleeps until another reader
// posts something for this queue.
func (q *queue) wait() error {
	c := q.conn
	if err := c.failure(); err != nil {
		return err
	}

	if c.writers.Load() == 0 && c.readMu.TryLock() {
		err := c.dispatchOne()
		c.readMu.Unlock()
		if err != nil {
			return c.fail(err)
		}
		return nil
	}

	t := time.NewTimer(readerPoll)
	defer t.Stop()
	select {
	case <-q.wake:
	case <-t.C:
	}
	return c.failure()
}

func (q *queue) Dispatch() error {
	for {
		if q.closed.Load() {
			return ErrClosed
		}
		if q.drain() > 0 {
			return nil
		}
		if err := q.wait(); err != nil {
			return err
		}
	}
}

// sync sends wl_display.sync and runs fn on this queue when it completes.
func (q *queue) sync(fn func()) error {
	c := q.conn
	return c.exclusive(func() error {
		cb, err := c.display.Sync()
		if err != nil {
			return err
		}
		cb.SetDoneHandler(func(client.CallbackDoneEvent) {
			c.ctx.Unregister(cb)
			q.post(fn)
		})
		return nil
	})
}

func (q *queue) Roundtrip() error {
	if q.closed.Load() {
		return ErrClosed
	}

	done := false
	if err := q.sync(func() { done = true }); err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}
	for {
		q.drain()
		if done {
			return nil
		}
		if err := q.wait(); err != nil {
			return fmt.Errorf("roundtrip: %w", err)
		}
	}
}

// Wake posts an empty event and kicks the reader, in case this queue's
// Dispatch is the one blocked on the socket.
func (q *queue) Wake() error {
	if q.closed.Load() {
		return ErrClosed
	}
	q.post(func() {})
	if err := q.conn.interrupt(); err != nil {
		return q.conn.fail(err)
	}
	return nil
}

func (q *queue) NewQueue() (Display, error) {
	return q.conn.newQueue(false)
}

func (q *queue) Handle() any {
	return q.conn.display
}

func (q *queue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	q.conn.mu.Lock()
	delete(q.conn.queues, q)
	q.conn.mu.Unlock()

	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
	q.signal()

	if q.owner {
		return q.conn.close()
	}
	return nil
}
