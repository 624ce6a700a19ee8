package platform

import "sync"

// Jobs is a queue of functions other goroutines hand to the main loop.
type Jobs struct {
	mu      sync.Mutex
	pending []func()
}

// Post queues fn. It never blocks.
func (j *Jobs) Post(fn func()) {
	j.mu.Lock()
	j.pending = append(j.pending, fn)
	j.mu.Unlock()
}

// Run runs every job queued so far, in order, and returns how many ran.
// Jobs posted while running wait for the next call.
func (j *Jobs) Run() int {
	j.mu.Lock()
	fns := j.pending
	j.pending = nil
	j.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Len is the number of queued jobs.
func (j *Jobs) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}
