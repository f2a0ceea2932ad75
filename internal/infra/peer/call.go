package peer

import (
	"context"
	"sync/atomic"
)

// State of a single notification. Succeeded and Unreachable are final.
type State int32

const (
	StatePending State = iota
	StateSucceeded
	StateUnreachable
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Response is the decoded body of a 2xx reply. Payload is nil for 204 or
// an empty body.
type Response struct {
	Status  int
	Payload any
}

// Call is the handle of an in-flight notification. The result is written
// once, before done is closed.
type Call struct {
	peer   string
	method string
	path   string

	state atomic.Int32
	done  chan struct{}
	resp  Response
	err   error
}

func newCall(peer, method, path string) *Call {
	return &Call{peer: peer, method: method, path: path, done: make(chan struct{})}
}

// Completed returns a call that has already resolved. A nil err means success.
func Completed(peer string, resp Response, err error) *Call {
	c := newCall(peer, "", "")
	c.resolve(resp, err)
	return c
}

func (c *Call) resolve(resp Response, err error) {
	c.resp, c.err = resp, err
	if err != nil {
		c.state.Store(int32(StateUnreachable))
	} else {
		c.state.Store(int32(StateSucceeded))
	}
	close(c.done)
}

func (c *Call) Peer() string   { return c.peer }
func (c *Call) Method() string { return c.method }
func (c *Call) Path() string   { return c.path }

func (c *Call) State() State {
	return State(c.state.Load())
}

// Done is closed when the call reaches a final state.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Await blocks until the call resolves or ctx ends. Giving up on ctx does
// not cancel the call itself.
func (c *Call) Await(ctx context.Context) (Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
