package testutils

import (
	"encoding/json"
	"sync"
)

// Frame is a decoded outbound frame.
type Frame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// RecordingSink collects every frame sent to it.
type RecordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	Closed bool
}

// Send implements session.Sink.
func (s *RecordingSink) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

// Frames returns the decoded frames received so far.
func (s *RecordingSink) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Frame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f Frame
		if err := json.Unmarshal(raw, &f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// OfType returns the received frames of the given type.
func (s *RecordingSink) OfType(typ string) []Frame {
	var out []Frame
	for _, f := range s.Frames() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}
