// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines the frames written to connected clients.
package ws

import "time"

// MsgType identifies hub-level frames. Event frames carry the event name
// (e.g. "bid.placed") in Type instead.
type MsgType string

const (
	MsgTypeSubscribed MsgType = "subscribed"
)

// EventMessage is the frame for every published event.
type EventMessage struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscribedMessage is sent once, right after the upgrade. An empty Channel
// means the client receives every channel.
type SubscribedMessage struct {
	Type      MsgType   `json:"type"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}
