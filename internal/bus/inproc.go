package bus

import (
	"context"
	"sync"

	"github.com/nadzzz/roundhouse/internal/message"
)

// Inproc is an in-process bus backed by a subscription table. Every delivery
// happens on its own goroutine so a slow handler never stalls publishers or
// other subscribers.
type Inproc struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewInproc creates an in-process bus.
func NewInproc() *Inproc {
	ctx, cancel := context.WithCancel(context.Background())
	return &Inproc{
		handlers: map[string][]Handler{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe registers a handler for a message type.
func (b *Inproc) Subscribe(msgType string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[msgType] = append(b.handlers[msgType], h)
	return nil
}

// Publish delivers a copy of the message to every subscriber of its type.
func (b *Inproc) Publish(ctx context.Context, msg *message.Message) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[msg.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.wg.Add(1)
		go func(h Handler, msg *message.Message) {
			defer b.wg.Done()
			h(b.ctx, msg)
		}(h, msg.Copy())
	}
	return nil
}

// Close stops the bus and waits for in-flight deliveries to finish.
func (b *Inproc) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}
