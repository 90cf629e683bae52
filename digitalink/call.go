package digitalink

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Call is one multi-step operation. Responses arrive on Responses() until
// the terminal one, after which the channel is closed.
type Call struct {
	ID string
	Op string

	mu       sync.Mutex
	queue    []Response
	finished bool
	wake     chan struct{}
	out      chan Response
}

func newCall(op string) *Call {
	c := &Call{
		ID:   uuid.NewString(),
		Op:   op,
		wake: make(chan struct{}, 1),
		out:  make(chan Response),
	}
	go c.forward()
	return c
}

func (c *Call) Responses() <-chan Response {
	return c.out
}

// Collect drains the call until it finishes or ctx is done.
func (c *Call) Collect(ctx context.Context) ([]Response, error) {
	var all []Response
	for {
		select {
		case r, ok := <-c.out:
			if !ok {
				return all, nil
			}
			all = append(all, r)
		case <-ctx.Done():
			return all, ctx.Err()
		}
	}
}

// emit queues a non-terminal response. It never blocks.
func (c *Call) emit(r Response) {
	c.push(r, false)
}

// finish queues the terminal response. Anything emitted later is dropped.
func (c *Call) finish(r Response) {
	c.push(withDone(r, true), true)
}

func (c *Call) push(r Response, last bool) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, r)
	c.finished = last
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Call) forward() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			if c.finished {
				c.mu.Unlock()
				close(c.out)
				return
			}
			c.mu.Unlock()
			<-c.wake
			continue
		}
		r := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.out <- r
	}
}
