package game

import "github.com/google/uuid"

// NewRoomKey returns a fresh random room key.
func NewRoomKey() string {
	return uuid.NewString()
}

// UniqueRoomKey draws keys until one is not used by a live room in rooms.
func UniqueRoomKey(rooms *RoomStore) func() string {
	return func() string {
		for {
			key := NewRoomKey()
			if !rooms.Exists(key) {
				return key
			}
		}
	}
}
