package eventstream

import "context"

// TopicFilter decides whether a subscriber wants events for a topic.
type TopicFilter[Topic any] func(Topic) bool

// Event pairs a topic with a payload as delivered to subscribers.
type Event[Topic any, Payload any] struct {
	Topic   Topic
	Payload Payload
}

// SyncStreamer is a generic, lockless interface for in-process event
// fan-out. Channels keep subscribers independent: a slow or failing
// subscriber can never block a publisher.
//
// Example usage:
//
//	streamer := memory.NewInMemorySyncStreamer[string, MyEvent]()
//	events, _ := streamer.Subscribe(ctx, nil)
//	streamer.Publish("tasks", MyEvent{ID: 1})
//	defer streamer.Shutdown()
type SyncStreamer[Topic any, Payload any] interface {
	// Subscribe returns a read-only channel for receiving events matching
	// the filter (nil means all). The channel is closed when the context is
	// cancelled or the streamer shuts down.
	Subscribe(ctx context.Context, filter TopicFilter[Topic]) (<-chan Event[Topic, Payload], error)

	// Publish sends payloads under a topic to all matching subscribers.
	// Non-blocking: events are dropped if a subscriber's buffer is full.
	Publish(topic Topic, payloads ...Payload)

	// Shutdown gracefully closes all subscriber channels.
	Shutdown()
}
