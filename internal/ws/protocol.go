package ws

import (
	"github.com/proctorhub/backend/internal/session"
)

type MessageType string

const (
	MsgAlert        MessageType = "alert"
	MsgSubscribed   MessageType = "subscribed"
	MsgUnsubscribed MessageType = "unsubscribed"
	MsgError        MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type AlertPayload struct {
	SessionID string         `json:"sessionId"`
	Event     *session.Event `json:"event"`
}

type SubscriptionPayload struct {
	SessionID string `json:"sessionId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// clientCommand is what subscribers send over the socket.
type clientCommand struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
}
