package status

import (
	"context"
	"sync"
)

// RecordedMessage is a message together with the channel it was sent on.
type RecordedMessage struct {
	Channel string
	Message
}

// Recorder is an in-memory Publisher. It backs local runs and tests.
type Recorder struct {
	mu       sync.Mutex
	messages []RecordedMessage
	onRecord func(RecordedMessage)
}

func NewRecorder(onRecord func(RecordedMessage)) *Recorder {
	return &Recorder{onRecord: onRecord}
}

func (r *Recorder) Publish(_ context.Context, channel string, msg Message) error {
	recorded := RecordedMessage{Channel: channel, Message: msg}

	r.mu.Lock()
	r.messages = append(r.messages, recorded)
	r.mu.Unlock()

	if r.onRecord != nil {
		r.onRecord(recorded)
	}

	return nil
}

func (r *Recorder) Messages() []RecordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]RecordedMessage(nil), r.messages...)
}

// Statuses returns the statuses recorded for nodeID in publish order.
func (r *Recorder) Statuses(nodeID string) []Status {
	statuses := make([]Status, 0)

	for _, msg := range r.Messages() {
		if msg.NodeID == nodeID {
			statuses = append(statuses, msg.Status)
		}
	}

	return statuses
}
