// Package server defines the JSON envelope exchanged over the WebSocket and
// the payload of every named event.
package server

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound event names.
const (
	EventCreateRoom    = "create_room"
	EventMatchingQueue = "matching_queue"
	EventCancelMatch   = "cancel_match"
	EventRematch       = "rematch"
	EventGetUsers      = "getUsers"
	EventMove          = "move"
	EventGameOver      = "gameover"
	EventResign        = "resign"
)

// Outbound event names.
const (
	EventAck                 = "ack"
	EventHello               = "hello"
	EventUpdateOnlinePlayers = "updateOnlinePlayers"
	EventUserConnected       = "userconnected"
	EventGameFound           = "game_found"
	EventSendRematch         = "sendrematch"
	EventOpponentMoved       = "opponentMoved"
	EventSendResign          = "sendresign"
)

// Reason tags carried by sendresign.
const (
	ResignTypeResigned = "Resigned"
	ResignTypeLeft     = "Left"
)

// Acknowledgment messages.
const (
	msgRoomFull       = "Room is full"
	msgRoomNotFound   = "Room not found"
	msgWaiting        = "Waiting for opponent..."
	msgCancelled      = "Matchmaking cancelled"
	msgNotQueued      = "Not in queue"
	msgInvalidPayload = "Invalid payload"
	msgUnknownEvent   = "Unknown event"
	msgRateLimited    = "Rate limited"
)

// Envelope is one WebSocket frame. A non-zero ID on an inbound envelope asks
// for an acknowledgment, which comes back as an "ack" envelope with the same ID.
type Envelope struct {
	Event string          `json:"event"`
	ID    int64           `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CreateRoomRequest is the payload of create_room.
type CreateRoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
	Name   string `json:"name" validate:"max=64"`
}

// MatchRequest is the payload of matching_queue. ID is accepted for client
// compatibility and ignored; the connection id is authoritative.
type MatchRequest struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Seconds *float64        `json:"seconds" validate:"required,gte=0,lte=2147483647"`
}

// timeControl returns Seconds as a whole number of seconds. 300 and 300.0
// are the same time control; 300.5 is rejected.
func (r MatchRequest) timeControl() (int, bool) {
	if r.Seconds == nil || *r.Seconds != math.Trunc(*r.Seconds) {
		return 0, false
	}
	return int(*r.Seconds), true
}

// RoomRequest is the payload of rematch, getUsers and gameover.
type RoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

// MoveRequest is the payload of move. Move is relayed untouched.
type MoveRequest struct {
	Move   json.RawMessage `json:"move"`
	RoomID string          `json:"roomId" validate:"required,max=128"`
}

// ResignRequest is the payload of resign.
type ResignRequest struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
	Side   string `json:"side" validate:"required,oneof=white black"`
}

// Ack is the generic acknowledgment payload.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// JoinAck acknowledges a successful create_room.
type JoinAck struct {
	Success     bool   `json:"success"`
	RoomID      string `json:"roomId"`
	Side        string `json:"side"`
	Name        string `json:"name"`
	UsersInRoom int    `json:"usersInRoom"`
}

// PlayersPayload is used by userconnected and the getUsers acknowledgment.
type PlayersPayload struct {
	Success bool         `json:"success"`
	Players []playerView `json:"players"`
}

type playerView struct {
	ID   string `json:"id"`
	Side string `json:"side"`
	Name string `json:"name"`
}

// GameFound is sent to both sides of a match.
type GameFound struct {
	RoomID  string `json:"roomId"`
	Seconds int    `json:"seconds"`
}

// ResignNotice is the payload of sendresign.
type ResignNotice struct {
	Side string `json:"side"`
	Type string `json:"type"`
}

// Hello tells a new connection its id.
type Hello struct {
	ID string `json:"id"`
}

// decodePayload unmarshals raw into dst and validates its tags. A missing
// payload decodes as an empty object.
func decodePayload(v *validator.Validate, raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return v.Struct(dst)
}

// encodeEnvelope marshals an outbound envelope. data may be nil.
func encodeEnvelope(event string, id int64, data interface{}) ([]byte, error) {
	env := Envelope{Event: event, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
