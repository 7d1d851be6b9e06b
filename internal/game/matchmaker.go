package game

import "time"

// TicketState is the lifecycle of a matchmaking ticket.
type TicketState int

const (
	TicketWaiting TicketState = iota
	TicketPaired
	TicketCancelled
)

func (s TicketState) String() string {
	switch s {
	case TicketWaiting:
		return "waiting"
	case TicketPaired:
		return "paired"
	case TicketCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Ticket is one connection waiting for an opponent at a time control.
type Ticket struct {
	ConnID     string
	Seconds    int
	State      TicketState
	EnqueuedAt time.Time
}

// Match pairs the ticket that completed the match (Requester) with the
// ticket that was already waiting (Opponent).
type Match struct {
	RoomKey   string
	Requester *Ticket
	Opponent  *Ticket
}

// Matchmaker keeps one FIFO of waiting tickets per time control. A request
// pairs with the oldest waiting ticket of equal seconds.
type Matchmaker struct {
	buckets map[int][]*Ticket
	byConn  map[string]*Ticket
	newKey  func() string
	now     func() time.Time
}

// NewMatchmaker returns an empty matchmaker. newKey produces the room key
// handed to both sides of a match.
func NewMatchmaker(newKey func() string) *Matchmaker {
	if newKey == nil {
		newKey = NewRoomKey
	}
	return &Matchmaker{
		buckets: make(map[int][]*Ticket),
		byConn:  make(map[string]*Ticket),
		newKey:  newKey,
		now:     time.Now,
	}
}

// Request files a ticket for connID. When another connection waits at the
// same time control both tickets are paired and a Match is returned;
// otherwise the ticket stays queued and the Match is nil. A connection that
// is already waiting has its previous ticket cancelled first.
func (m *Matchmaker) Request(connID string, seconds int) (*Ticket, *Match, error) {
	if seconds < 0 {
		return nil, nil, ErrInvalidTimeControl
	}
	if _, ok := m.byConn[connID]; ok {
		_ = m.Cancel(connID)
	}

	ticket := &Ticket{
		ConnID:     connID,
		Seconds:    seconds,
		State:      TicketWaiting,
		EnqueuedAt: m.now(),
	}

	if opponent := m.popWaiting(seconds, connID); opponent != nil {
		ticket.State = TicketPaired
		opponent.State = TicketPaired
		delete(m.byConn, opponent.ConnID)
		return ticket, &Match{RoomKey: m.newKey(), Requester: ticket, Opponent: opponent}, nil
	}

	m.buckets[seconds] = append(m.buckets[seconds], ticket)
	m.byConn[connID] = ticket
	return ticket, nil, nil
}

// Cancel withdraws the waiting ticket of connID.
func (m *Matchmaker) Cancel(connID string) error {
	ticket, ok := m.byConn[connID]
	if !ok {
		return ErrNotQueued
	}
	delete(m.byConn, connID)
	ticket.State = TicketCancelled

	bucket := m.buckets[ticket.Seconds]
	for i, t := range bucket {
		if t == ticket {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	m.setBucket(ticket.Seconds, bucket)
	return nil
}

// Waiting returns the waiting ticket of connID, if any.
func (m *Matchmaker) Waiting(connID string) (*Ticket, bool) {
	t, ok := m.byConn[connID]
	return t, ok
}

// Len returns the number of waiting tickets.
func (m *Matchmaker) Len() int {
	return len(m.byConn)
}

func (m *Matchmaker) popWaiting(seconds int, exclude string) *Ticket {
	bucket := m.buckets[seconds]
	for i, t := range bucket {
		if t.ConnID == exclude {
			continue
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		m.setBucket(seconds, bucket)
		return t
	}
	return nil
}

func (m *Matchmaker) setBucket(seconds int, bucket []*Ticket) {
	if len(bucket) == 0 {
		delete(m.buckets, seconds)
		return
	}
	m.buckets[seconds] = bucket
}
