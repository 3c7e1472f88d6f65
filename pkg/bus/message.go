// Package bus is the websocket command channel between terminal clients and
// the daemon's /ws endpoint.
package bus

type Kind string

const (
	KindCommand Kind = "command"
	KindReply   Kind = "reply"
	KindError   Kind = "error"
)

// Message is one JSON frame. Intent is set on replies.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
	Intent  string `json:"intent,omitempty"`
}

// ReplyTo builds the answer frame for m.
func (m Message) ReplyTo(from, content string) Message {
	return Message{From: from, To: m.From, Kind: KindReply, Content: content}
}

// ErrorTo builds the error frame for m.
func (m Message) ErrorTo(from, reason string) Message {
	return Message{From: from, To: m.From, Kind: KindError, Content: reason}
}
