package recorder

import (
	"sync"
	"time"
)

// notify wakes every waiter when a request has been matched.
type notify struct {
	notify chan struct{}
	mu     sync.Mutex
}

func newNotify() *notify {
	return &notify{
		notify: make(chan struct{}),
	}
}

func (n *notify) Wait(timeout time.Duration) {
	n.mu.Lock()
	notify := n.notify
	n.mu.Unlock()

	select {
	case <-notify:
	case <-time.After(timeout):
	}
}

func (n *notify) Notify() {
	n.mu.Lock()
	close(n.notify)
	n.notify = make(chan struct{})
	n.mu.Unlock()
}
