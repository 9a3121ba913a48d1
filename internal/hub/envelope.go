package hub

// Envelope is the unit of delivery on a channel: a named event plus its
// payload. Clients receive envelopes serialized as JSON text frames.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func NewEnvelope(event string, data any) *Envelope {
	return &Envelope{Event: event, Data: data}
}
