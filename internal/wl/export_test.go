package wl

// ProxyCount reports how many objects with an id up to max are registered
// on the connection behind a ConnectGo display, or -1 for other displays.
func ProxyCount(d Display, max uint32) int {
	q, ok := d.(*queue)
	if !ok {
		return -1
	}
	c := q.conn
	c.readMu.Lock()
	defer c.readMu.Unlock()
	n := 0
	for id := uint32(1); id <= max; id++ {
		if c.ctx.GetProxy(id) != nil {
			n++
		}
	}
	return n
}
