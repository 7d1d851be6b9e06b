// Package game holds the in-memory state of the relay: rooms of up to two
// participants and the matchmaking queue that pairs anonymous players.
//
// Nothing in this package locks. The server hub owns a single RoomStore and a
// single Matchmaker and serializes every call through its event loop.
package game

import "errors"

// Side is the chess color a participant plays.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// RoomCapacity is the number of participants a room can hold.
const RoomCapacity = 2

var (
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotQueued          = errors.New("connection has no waiting ticket")
	ErrInvalidTimeControl = errors.New("time control must not be negative")
)

// Participant is one connection seated in a room.
type Participant struct {
	ID   string `json:"id"`
	Side Side   `json:"side"`
	Name string `json:"name"`
}

// sideFor returns the side assigned to the next arrival given the current
// occupancy: the first participant plays white, the second black.
func sideFor(occupancy int) Side {
	if occupancy == 0 {
		return SideWhite
	}
	return SideBlack
}
