package domain

import "time"

const (
	EventTokenWasCreated = "auth.token.wasCreated"
	EventTokenWasUsed    = "auth.token.wasUsed"

	EventActionRequestWasCreated       = "auth.actionRequest.wasCreated"
	EventActionRequestStatusWasUpdated = "auth.actionRequest.statusWasUpdated"

	EventUserWasCreated       = "auth.user.wasCreated"
	EventUserWasUpdated       = "auth.user.wasUpdated"
	EventUserEmailWasVerified = "auth.user.emailWasVerified"
	EventUserPasswordWasReset = "auth.user.passwordWasReset"
)

// Event is an immutable fact about a state change. RequestID is empty until
// the event is published.
type Event struct {
	Name       string         `json:"eventName"`
	EntityID   string         `json:"entityId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data"`
	Snapshot   any            `json:"snapshot"`
	RequestID  string         `json:"requestId,omitempty"`
}

// Recorder buffers the events an aggregate raises until they are pulled.
// Embed it in an aggregate.
type Recorder struct {
	pending []Event
}

func (r *Recorder) record(e Event) {
	r.pending = append(r.pending, e)
}

// PullEvents returns the buffered events in the order they were raised and
// clears the buffer.
func (r *Recorder) PullEvents() []Event {
	out := r.pending
	r.pending = nil
	return out
}
