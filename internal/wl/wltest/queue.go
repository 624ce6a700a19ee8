package wltest

import (
	"github.com/bnema/emuwl/internal/wl"
)

// Queue is one event queue on a fake connection. The queue returned by
// Server.Connect owns the connection.
type Queue struct {
	srv   *Server
	owner bool

	// guarded by srv.mu
	pending []func()
	closed  bool

	wake chan struct{}
}

func (q *Queue) post(fn func()) {
	if q.closed {
		return
	}
	q.pending = append(q.pending, fn)
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) drain() int {
	q.srv.mu.Lock()
	fns := q.pending
	q.pending = nil
	q.srv.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (q *Queue) state() error {
	q.srv.mu.Lock()
	defer q.srv.mu.Unlock()
	if q.closed {
		return wl.ErrClosed
	}
	return q.srv.lost
}

func (q *Queue) Registry(l wl.RegistryListener) (wl.Registry, error) {
	s := q.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost != nil {
		return nil, s.lost
	}
	o := s.create(q, "wl_registry", 1, l)
	s.ops = append(s.ops, "wl_display.get_registry")
	for _, n := range s.order {
		g := s.globals[n]
		name, iface, version := g.name, g.iface, g.version
		q.post(func() { l.Global(name, iface, version) })
	}
	return &registry{srv: s, obj: o}, nil
}

// Roundtrip handles events until none are left, including events produced
// by handlers along the way.
func (q *Queue) Roundtrip() error {
	s := q.srv
	s.mu.Lock()
	s.ops = append(s.ops, "roundtrip")
	if err := s.failures["roundtrip"]; err != nil {
		delete(s.failures, "roundtrip")
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := q.state(); err != nil {
		return err
	}
	for q.drain() > 0 {
		if err := q.state(); err != nil {
			return err
		}
	}
	return q.state()
}

func (q *Queue) Dispatch() error {
	for {
		if err := q.state(); err != nil {
			return err
		}
		if q.drain() > 0 {
			return nil
		}
		<-q.wake
	}
}

func (q *Queue) NewQueue() (wl.Display, error) {
	s := q.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost != nil {
		return nil, s.lost
	}
	nq := &Queue{srv: s, wake: make(chan struct{}, 1)}
	s.queues = append(s.queues, nq)
	return nq, nil
}

func (q *Queue) Wake() error {
	q.srv.mu.Lock()
	q.post(func() {})
	q.srv.mu.Unlock()
	return nil
}

// Handle returns the server.
func (q *Queue) Handle() any { return q.srv }

// Close releases the queue. Objects created from it that are still alive
// are reported as leaks; closing the owning queue checks every object.
func (q *Queue) Close() error {
	s := q.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.closed {
		return nil
	}
	for _, o := range s.objects {
		if o.destroyed {
			continue
		}
		if q.owner || o.queue == q {
			s.violate("queue closed with live %s", o)
		}
	}
	if q.owner {
		s.ops = append(s.ops, "disconnect")
		for _, other := range s.queues {
			other.closed = true
			other.pending = nil
			other.signal()
		}
	} else {
		s.ops = append(s.ops, "queue.close")
	}
	q.closed = true
	q.pending = nil
	q.signal()
	return nil
}
