package eventbus

import (
	"context"
	"sync"
)

var _ Bus = (*InMem)(nil)

type envelope struct {
	topic string
	msg   Message
}

// InMem delivers messages on a single dispatcher goroutine, in publish order
type InMem struct {
	mu      sync.RWMutex
	subs    map[string][]MessageReceiver
	ch      chan envelope
	done    chan struct{}
	stopped chan struct{}

	// closed is set under sendMu; no send reaches ch once the drain starts
	sendMu sync.RWMutex
	closed bool
}

func NewInMemBus(buffer int) *InMem {
	if buffer < 1 {
		buffer = 100
	}
	b := &InMem{
		subs:    make(map[string][]MessageReceiver),
		ch:      make(chan envelope, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *InMem) dispatch() {
	defer close(b.stopped)
	for {
		select {
		case env := <-b.ch:
			b.deliver(env)
		case <-b.done:
			// drain what was accepted before Close
			for {
				select {
				case env := <-b.ch:
					b.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (b *InMem) deliver(env envelope) {
	b.mu.RLock()
	handlers := b.subs[env.topic]
	b.mu.RUnlock()
	for _, h := range handlers {
		h.Receive(context.Background(), env.msg)
	}
}

// Publish queues msg, blocking while the buffer is full. A nil error means
// msg will be delivered, even when Close runs concurrently.
func (b *InMem) Publish(topic string, msg Message) error {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	b.ch <- envelope{topic: topic, msg: msg}
	return nil
}

func (b *InMem) Subscribe(topic string, handler MessageReceiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], handler)
	return nil
}

// Close stops the dispatcher after delivering buffered messages
func (b *InMem) Close() error {
	b.sendMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	b.sendMu.Unlock()
	<-b.stopped
	return nil
}
