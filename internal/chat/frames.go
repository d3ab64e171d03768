package chat

// Outbound frame types.
const (
	TypeNewMessage     = "new_message"
	TypeMessageDeleted = "message_deleted"
	TypeError          = "error"
	TypeAck            = "ack"
)

// Envelope is the JSON shape of every frame pushed to a client. Ref echoes the
// client's correlation id for acks and errors.
type Envelope struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload"`
}

// MessageDeleted is the payload of a message_deleted frame.
type MessageDeleted struct {
	ID int64 `json:"id"`
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckPayload is the payload of an ack frame.
type AckPayload struct {
	ID int64 `json:"id,omitempty"`
}
