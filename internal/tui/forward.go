package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// forwarder queues messages without blocking and hands them to send from
// its own goroutine, in push order.
type forwarder struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

func newForwarder() *forwarder {
	return &forwarder{wake: make(chan struct{}, 1)}
}

func (f *forwarder) push(msg tea.Msg) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *forwarder) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}

		f.mu.Lock()
		batch := f.queue
		f.queue = nil
		f.mu.Unlock()

		for _, msg := range batch {
			send(msg)
		}
	}
}
