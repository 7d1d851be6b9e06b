package game

import (
	"errors"
	"fmt"
	"testing"
)

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("room-%d", n)
	}
}

// TestRequestWaitsWithoutOpponent tests that a lone ticket stays queued.
func TestRequestWaitsWithoutOpponent(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())

	ticket, match, err := m.Request("a", 300)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if match != nil {
		t.Fatalf("Expected no match, got %+v", match)
	}
	if ticket.State != TicketWaiting {
		t.Errorf("Expected waiting ticket, got %s", ticket.State)
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 queued ticket, got %d", m.Len())
	}
}

// TestRequestPairsEqualTimeControl tests pairing of two equal tickets.
// Both tickets leave the queue and share one room key.
func TestRequestPairsEqualTimeControl(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())

	first, _, _ := m.Request("a", 300)
	second, match, err := m.Request("b", 300)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if match == nil {
		t.Fatal("Expected a match")
	}
	if match.RoomKey != "room-1" {
		t.Errorf("Expected room-1, got %q", match.RoomKey)
	}
	if match.Requester != second || match.Opponent != first {
		t.Error("Match sides not reported as requester/opponent")
	}
	if first.State != TicketPaired || second.State != TicketPaired {
		t.Errorf("Expected both paired, got %s and %s", first.State, second.State)
	}
	if m.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", m.Len())
	}
	if _, ok := m.Waiting("a"); ok {
		t.Error("Paired connection still reported waiting")
	}
}

// TestRequestIgnoresDifferentTimeControl tests that unequal tickets never pair.
func TestRequestIgnoresDifferentTimeControl(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())

	m.Request("a", 60)
	_, match, _ := m.Request("b", 300)
	if match != nil {
		t.Fatalf("Expected no match across time controls, got %+v", match)
	}
	if m.Len() != 2 {
		t.Errorf("Expected 2 queued tickets, got %d", m.Len())
	}
}

// TestRequestOldestWins tests that a request pairs with the waiting ticket of
// its own time control and leaves other buckets alone.
func TestRequestOldestWins(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())

	m.Request("a", 180)
	m.Request("x", 60)
	_, match, _ := m.Request("c", 180)
	if match == nil || match.Opponent.ConnID != "a" {
		t.Fatalf("Expected c to pair with a, got %+v", match)
	}
	if _, ok := m.Waiting("x"); !ok {
		t.Error("Unrelated ticket should still wait")
	}
}

// TestRequestTwiceReplacesTicket tests that a connection never holds two
// tickets and cannot pair with itself.
func TestRequestTwiceReplacesTicket(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())

	old, _, _ := m.Request("a", 300)
	renewed, match, err := m.Request("a", 300)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if match != nil {
		t.Fatal("Connection paired with itself")
	}
	if old.State != TicketCancelled {
		t.Errorf("Expected old ticket cancelled, got %s", old.State)
	}
	if renewed.State != TicketWaiting {
		t.Errorf("Expected renewed ticket waiting, got %s", renewed.State)
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 queued ticket, got %d", m.Len())
	}
}

// TestCancel tests explicit withdrawal from the queue.
func TestCancel(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())

	ticket, _, _ := m.Request("a", 300)
	if err := m.Cancel("a"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ticket.State != TicketCancelled {
		t.Errorf("Expected cancelled, got %s", ticket.State)
	}
	if err := m.Cancel("a"); !errors.Is(err, ErrNotQueued) {
		t.Errorf("Expected ErrNotQueued on second cancel, got %v", err)
	}

	_, match, _ := m.Request("b", 300)
	if match != nil {
		t.Error("Cancelled ticket must not be paired")
	}
}

// TestRequestRejectsNegativeSeconds tests time-control validation.
func TestRequestRejectsNegativeSeconds(t *testing.T) {
	m := NewMatchmaker(sequentialKeys())
	if _, _, err := m.Request("a", -1); !errors.Is(err, ErrInvalidTimeControl) {
		t.Errorf("Expected ErrInvalidTimeControl, got %v", err)
	}
}

// TestUniqueRoomKeySkipsLiveRooms tests that generated keys never collide
// with an active room.
func TestUniqueRoomKeySkipsLiveRooms(t *testing.T) {
	rooms := NewRoomStore()
	gen := UniqueRoomKey(rooms)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key := gen()
		if key == "" {
			t.Fatal("Generated empty key")
		}
		if seen[key] {
			t.Fatalf("Generated duplicate key %q", key)
		}
		seen[key] = true
		mustJoin(t, rooms, key, fmt.Sprintf("conn-%d", i))
	}
}
