// Package bus defines the publish/subscribe boundary for roundhouse.
//
// Two implementations ship with the daemon: an in-process bus for embedded
// and test use, and an MQTT bus for deployments where producers (voice
// frontends, CLIs, skills) live in other processes. The dispatcher doesn't
// care how events arrive — it only works with the Bus contract.
package bus

import (
	"context"

	"github.com/nadzzz/roundhouse/internal/message"
)

// Handler processes one delivered message. Each delivery runs on its own
// goroutine; handlers must be safe for concurrent invocation.
type Handler func(ctx context.Context, msg *message.Message)

// Publisher is the write side of the bus, passed to components that only
// need to emit events.
type Publisher interface {
	// Publish emits a message to all subscribers of its type.
	Publish(ctx context.Context, msg *message.Message) error
}

// Bus is the full pub/sub contract.
type Bus interface {
	Publisher

	// Subscribe registers a handler for all messages of the given type.
	// Subscriptions are made once at startup, before traffic flows.
	Subscribe(msgType string, h Handler) error

	// Close shuts the bus down, draining in-flight deliveries.
	Close() error
}
