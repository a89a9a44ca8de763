package eventstream

import "context"

// Consume bridges a SyncStreamer to a handler function. It handles the
// subscription and the continuous receive loop, so subscribers do not repeat
// the select/case dance. Handler errors are reported through onError (may be
// nil) and never stop the loop.
func Consume[Topic any, Payload any](
	ctx context.Context,
	streamer SyncStreamer[Topic, Payload],
	filter TopicFilter[Topic],
	handle func(Event[Topic, Payload]) error,
	onError func(error),
) error {
	events, err := streamer.Subscribe(ctx, filter)
	if err != nil {
		return err
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := handle(evt); err != nil && onError != nil {
				onError(err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
