// ABOUTME: Outbound message types for the LINE Messaging API.
// ABOUTME: Text and flex messages marshal to the platform's JSON shapes.

package line

import "encoding/json"

// SendMessage is an outbound message. Exactly one concrete type
// implements it per platform message kind we send.
type SendMessage interface {
	messageType() string
}

// TextMessage is a plain text outbound message.
type TextMessage struct {
	Text string
}

func (TextMessage) messageType() string { return "text" }

// MarshalJSON emits the platform wire shape {"type":"text","text":...}.
func (m TextMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "text", Text: m.Text})
}

// FlexMessage is a rich-card outbound message. Contents is the raw bubble
// payload; the builders in internal/flex produce these.
type FlexMessage struct {
	AltText  string
	Contents json.RawMessage
}

func (FlexMessage) messageType() string { return "flex" }

// MarshalJSON emits the platform wire shape for a flex message.
func (m FlexMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string          `json:"type"`
		AltText  string          `json:"altText"`
		Contents json.RawMessage `json:"contents"`
	}{Type: "flex", AltText: m.AltText, Contents: m.Contents})
}

// NewText is a convenience constructor for a single text message.
func NewText(text string) TextMessage {
	return TextMessage{Text: text}
}
