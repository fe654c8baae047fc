package domain

// StreamMessage is a single entry read back from a durable event stream.
// Payload is the JSON document that was appended.
type StreamMessage struct {
	ID      string
	Payload []byte
}
