package rmq

import (
	"sync"
)

// Reply is the outcome of one remote transcode call.
type Reply struct {
	Body []byte
	Err  error
}

// PendingCalls maps correlation ids to the callers waiting on them.
type PendingCalls struct {
	mu    sync.Mutex
	calls map[string]chan Reply
}

func NewPendingCalls() *PendingCalls {
	return &PendingCalls{calls: make(map[string]chan Reply)}
}

// Register returns the channel the reply for corrID will be delivered on.
func (pc *PendingCalls) Register(corrID string) <-chan Reply {
	ch := make(chan Reply, 1)

	pc.mu.Lock()
	pc.calls[corrID] = ch
	pc.mu.Unlock()

	return ch
}

// Resolve delivers r to the waiter of corrID. It reports false when nobody
// waits for it (late or unknown reply).
func (pc *PendingCalls) Resolve(corrID string, r Reply) bool {
	pc.mu.Lock()
	ch, ok := pc.calls[corrID]
	delete(pc.calls, corrID)
	pc.mu.Unlock()

	if !ok {
		return false
	}
	ch <- r
	return true
}

// Cancel forgets corrID. Safe to call after Resolve.
func (pc *PendingCalls) Cancel(corrID string) {
	pc.mu.Lock()
	delete(pc.calls, corrID)
	pc.mu.Unlock()
}

// Len -.
func (pc *PendingCalls) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.calls)
}
