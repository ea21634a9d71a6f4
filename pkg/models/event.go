package models

// ResponseType tags each event on the streaming chat surface.
type ResponseType string

const (
	ResponseBOS   ResponseType = "bos"
	ResponseDelta ResponseType = "delta"
	ResponseEOS   ResponseType = "eos"
	ResponseError ResponseType = "error"
	ResponseDone  ResponseType = "done"
)

// StreamEvent is one element of the event stream a turn produces.
//
// Per message the order is BOS(role), one or more Delta carrying a partial
// message, then EOS. After the last message a single Done closes the
// stream. Failures surface as Error followed by Done.
type StreamEvent struct {
	ResponseType ResponseType `json:"response_type"`
	// Role is set on BOS events.
	Role Role `json:"role,omitempty"`
	// Message is the partial payload of a Delta event.
	Message *Message `json:"message,omitempty"`
	// Error is the human-readable failure of an Error event.
	Error string `json:"error,omitempty"`
}

// BOSEvent starts a new message of the given role.
func BOSEvent(role Role) StreamEvent {
	return StreamEvent{ResponseType: ResponseBOS, Role: role}
}

// DeltaEvent carries a partial message.
func DeltaEvent(msg *Message) StreamEvent {
	return StreamEvent{ResponseType: ResponseDelta, Message: msg}
}

// EOSEvent terminates the current message.
func EOSEvent() StreamEvent {
	return StreamEvent{ResponseType: ResponseEOS}
}

// ErrorEvent reports a turn failure to the consumer.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{ResponseType: ResponseError, Error: msg}
}

// DoneEvent is the stream-closing sentinel.
func DoneEvent() StreamEvent {
	return StreamEvent{ResponseType: ResponseDone}
}
