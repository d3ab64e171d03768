package websocket

import "encoding/json"

// Inbound frame types.
const (
	ActionSendMessage   = "send_message"
	ActionDeleteMessage = "delete_message"
)

// Inbound is a frame received from a client. Ref is echoed on the ack or error
// frame that answers it.
type Inbound struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// SendMessagePayload is the payload of send_message.
type SendMessagePayload struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// DeleteMessagePayload is the payload of delete_message.
type DeleteMessagePayload struct {
	ID int64 `json:"id"`
}
