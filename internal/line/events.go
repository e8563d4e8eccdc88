// ABOUTME: Wire types for inbound LINE webhook deliveries.
// ABOUTME: One delivery carries a batch of events tagged by kind.

package line

import "encoding/json"

// EventType identifies the kind of a webhook event. Unknown kinds are
// routed to a default arm that logs and no-ops.
type EventType string

const (
	EventTypeMessage  EventType = "message"
	EventTypePostback EventType = "postback"
	EventTypeFollow   EventType = "follow"
	EventTypeUnfollow EventType = "unfollow"
)

// MessageType identifies the kind of a message event's payload.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypeAudio MessageType = "audio"
	MessageTypeVideo MessageType = "video"
)

// WebhookBody is the JSON body of a webhook delivery.
type WebhookBody struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is one unit of a webhook delivery batch. WebhookEventID is
// stable across platform redeliveries of the same event.
type Event struct {
	Type           EventType `json:"type"`
	WebhookEventID string    `json:"webhookEventId,omitempty"`
	ReplyToken     string    `json:"replyToken,omitempty"`
	Source         Source    `json:"source"`
	Timestamp      int64     `json:"timestamp,omitempty"`
	Message        *Message  `json:"message,omitempty"`
	Postback       *Postback `json:"postback,omitempty"`
}

// Source identifies who the event came from.
type Source struct {
	Type    string `json:"type,omitempty"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// Message is the payload of a message event.
type Message struct {
	ID       string      `json:"id,omitempty"`
	Type     MessageType `json:"type"`
	Text     string      `json:"text,omitempty"`
	FileName string      `json:"fileName,omitempty"`
	FileSize int64       `json:"fileSize,omitempty"`
}

// Postback is the payload of a postback event, carrying the flat
// key=value&key=value data string attached to a rich-card control.
type Postback struct {
	Data string `json:"data"`
}

// ParseWebhookBody decodes a webhook delivery. A body without an events
// array (or with a malformed one) decodes to an empty batch rather than
// failing the whole delivery.
func ParseWebhookBody(raw []byte) (*WebhookBody, error) {
	var body WebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return &body, nil
}
