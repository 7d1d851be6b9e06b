package game

// Room is a session container keyed by a caller-supplied string.
type Room struct {
	Key          string
	Participants []Participant
}

func (r *Room) indexOf(id string) int {
	for i, p := range r.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// MemberIDs returns the connection ids seated in the room, in join order.
func (r *Room) MemberIDs() []string {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// JoinResult describes the outcome of RoomStore.Join.
type JoinResult struct {
	RoomKey      string
	Side         Side
	Participants []Participant
	// Duplicate is set when the connection was already seated in the room.
	// Nothing changed and callers should stay silent.
	Duplicate bool
}

// Departure describes a participant removed from a room.
type Departure struct {
	RoomKey     string
	Participant Participant
	Remaining   []Participant
	RoomDeleted bool
}

// RoomStore maps room keys to rooms. Rooms are created on first join and
// deleted as soon as their last participant leaves.
type RoomStore struct {
	rooms map[string]*Room
}

// NewRoomStore returns an empty store.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*Room)}
}

// Join seats id in the room under key. The room is created when absent.
func (s *RoomStore) Join(key, id, name string) (JoinResult, error) {
	room, ok := s.rooms[key]
	if ok {
		if i := room.indexOf(id); i >= 0 {
			return JoinResult{
				RoomKey:      key,
				Side:         room.Participants[i].Side,
				Participants: copyParticipants(room.Participants),
				Duplicate:    true,
			}, nil
		}
		if len(room.Participants) >= RoomCapacity {
			return JoinResult{}, ErrRoomFull
		}
	} else {
		room = &Room{Key: key, Participants: make([]Participant, 0, RoomCapacity)}
		s.rooms[key] = room
	}

	side := sideFor(len(room.Participants))
	room.Participants = append(room.Participants, Participant{ID: id, Side: side, Name: name})

	return JoinResult{
		RoomKey:      key,
		Side:         side,
		Participants: copyParticipants(room.Participants),
	}, nil
}

// Participants returns a copy of the participant list of the room under key.
func (s *RoomStore) Participants(key string) ([]Participant, error) {
	room, ok := s.rooms[key]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return copyParticipants(room.Participants), nil
}

// Get returns the room under key.
func (s *RoomStore) Get(key string) (*Room, bool) {
	room, ok := s.rooms[key]
	return room, ok
}

// Exists reports whether a room is stored under key.
func (s *RoomStore) Exists(key string) bool {
	_, ok := s.rooms[key]
	return ok
}

// Leave removes id from the room under key and deletes the room once it is
// empty. The boolean is false when id was not seated there.
func (s *RoomStore) Leave(key, id string) (Departure, bool) {
	room, ok := s.rooms[key]
	if !ok {
		return Departure{}, false
	}
	i := room.indexOf(id)
	if i < 0 {
		return Departure{}, false
	}

	p := room.Participants[i]
	room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)

	d := Departure{
		RoomKey:     key,
		Participant: p,
		Remaining:   copyParticipants(room.Participants),
	}
	if len(room.Participants) == 0 {
		delete(s.rooms, key)
		d.RoomDeleted = true
	}
	return d, true
}

// Len returns the number of live rooms.
func (s *RoomStore) Len() int {
	return len(s.rooms)
}

func copyParticipants(in []Participant) []Participant {
	out := make([]Participant, len(in))
	copy(out, in)
	return out
}
