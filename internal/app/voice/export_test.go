package voice

// connectionCount returns the number of open connections. Since it is answered by the
// coordinator, every event submitted before the call has been handled when it returns.
func (r *Room) connectionCount() int {
	var n int
	r.do(func() {
		n = len(r.clients)
	})
	return n
}

// stateOf returns the lifecycle state of the connection with the given id.
func (r *Room) stateOf(connectionID string) ConnState {
	state := StateClosed
	r.do(func() {
		if c, ok := r.clients[connectionID]; ok {
			state = c.state
		}
	})
	return state
}
