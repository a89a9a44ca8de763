package mutation

import (
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/eventstream"
)

// StreamPublisher fans committed events into the event stream, one publish
// per event under its entity topic so subscribers can filter by entity.
type StreamPublisher struct {
	streamer eventstream.SyncStreamer[event.Entity, event.Event]
}

func NewStreamPublisher(streamer eventstream.SyncStreamer[event.Entity, event.Event]) StreamPublisher {
	return StreamPublisher{streamer: streamer}
}

func (p StreamPublisher) PublishAll(events []event.Event) {
	for _, e := range events {
		p.streamer.Publish(e.Entity, e)
	}
}
