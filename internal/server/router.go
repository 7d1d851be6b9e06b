package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Tyrowin/chessrelay/internal/game"
)

// dispatch routes one inbound envelope. Handlers never inspect move payloads
// or game state; they mutate hub state and relay.
func (h *Hub) dispatch(c *Client, env Envelope) {
	s, ok := h.sessions[c]
	if !ok {
		return
	}

	switch env.Event {
	case EventCreateRoom:
		h.handleCreateRoom(s, env)
	case EventMatchingQueue:
		h.handleMatchingQueue(s, env)
	case EventCancelMatch:
		h.handleCancelMatch(s, env)
	case EventRematch:
		h.handleRematch(s, env)
	case EventGetUsers:
		h.handleGetUsers(s, env)
	case EventMove:
		h.handleMove(s, env)
	case EventGameOver:
		h.handleGameOver(s, env)
	case EventResign:
		h.handleResign(s, env)
	default:
		h.logger.Debug("unknown_event", zap.String("conn", c.id), zap.String("event", env.Event))
		h.ack(c, env.ID, Ack{Success: false, Message: msgUnknownEvent})
	}
}

// ack answers an envelope that asked for acknowledgment.
func (h *Hub) ack(c *Client, id int64, data interface{}) {
	if id == 0 {
		return
	}
	h.sendTo(c, EventAck, id, data)
}

func (h *Hub) decode(s *session, env Envelope, dst interface{}) bool {
	if err := decodePayload(h.validate, env.Data, dst); err != nil {
		h.logger.Warn("invalid_payload",
			zap.String("conn", s.client.id),
			zap.String("event", env.Event),
			zap.Error(err))
		h.ack(s.client, env.ID, Ack{Success: false, Message: msgInvalidPayload})
		return false
	}
	return true
}

func (h *Hub) handleCreateRoom(s *session, env Envelope) {
	var req CreateRoomRequest
	if !h.decode(s, env, &req) {
		return
	}
	c := s.client

	res, err := h.rooms.Join(req.RoomID, c.id, req.Name)
	if err != nil {
		h.logger.Info("room_join_rejected",
			zap.String("room", req.RoomID),
			zap.String("conn", c.id),
			zap.Error(err))
		h.ack(c, env.ID, Ack{Success: false, Message: errorMessage(err)})
		return
	}
	if res.Duplicate {
		return
	}

	if s.room != "" && s.room != req.RoomID {
		h.leaveRoom(s)
	}
	s.room = req.RoomID

	h.logger.Info("room_join",
		zap.String("room", req.RoomID),
		zap.String("conn", c.id),
		zap.String("side", string(res.Side)),
		zap.Int("users", len(res.Participants)))

	h.broadcastRoom(req.RoomID, EventUserConnected, PlayersPayload{
		Success: true,
		Players: playerViews(res.Participants),
	}, nil)

	h.ack(c, env.ID, JoinAck{
		Success:     true,
		RoomID:      req.RoomID,
		Side:        string(res.Side),
		Name:        req.Name,
		UsersInRoom: len(res.Participants),
	})
}

func (h *Hub) handleMatchingQueue(s *session, env Envelope) {
	var req MatchRequest
	if !h.decode(s, env, &req) {
		return
	}
	c := s.client

	seconds, ok := req.timeControl()
	if !ok {
		h.logger.Warn("invalid_payload",
			zap.String("conn", c.id),
			zap.String("event", env.Event),
			zap.Float64("seconds", *req.Seconds))
		h.ack(c, env.ID, Ack{Success: false, Message: msgInvalidPayload})
		return
	}

	ticket, match, err := h.queue.Request(c.id, seconds)
	if err != nil {
		h.ack(c, env.ID, Ack{Success: false, Message: errorMessage(err)})
		return
	}

	if match == nil {
		s.ticket = ticket
		h.logger.Info("match_waiting", zap.String("conn", c.id), zap.Int("seconds", ticket.Seconds))
		h.ack(c, env.ID, Ack{Success: true, Message: msgWaiting})
		return
	}

	s.ticket = nil
	h.logger.Info("match_found",
		zap.String("room", match.RoomKey),
		zap.String("requester", match.Requester.ConnID),
		zap.String("opponent", match.Opponent.ConnID),
		zap.Int("seconds", match.Requester.Seconds))

	h.sendTo(c, EventGameFound, 0, GameFound{RoomID: match.RoomKey, Seconds: match.Requester.Seconds})

	if opp, ok := h.byID[match.Opponent.ConnID]; ok {
		opp.ticket = nil
		h.sendTo(opp.client, EventGameFound, 0, GameFound{RoomID: match.RoomKey, Seconds: match.Opponent.Seconds})
	}
}

func (h *Hub) handleCancelMatch(s *session, env Envelope) {
	c := s.client
	if err := h.queue.Cancel(c.id); err != nil {
		h.ack(c, env.ID, Ack{Success: false, Message: errorMessage(err)})
		return
	}
	s.ticket = nil
	h.logger.Info("match_cancelled", zap.String("conn", c.id))
	h.ack(c, env.ID, Ack{Success: true, Message: msgCancelled})
}

func (h *Hub) handleRematch(s *session, env Envelope) {
	var req RoomRequest
	if !h.decode(s, env, &req) {
		return
	}
	h.broadcastRoom(req.RoomID, EventSendRematch, nil, nil)
}

// handleGetUsers answers with the room's participants and also pushes the
// list to the other members, which existing clients rely on to refresh the
// opponent's name.
func (h *Hub) handleGetUsers(s *session, env Envelope) {
	var req RoomRequest
	if !h.decode(s, env, &req) {
		return
	}
	c := s.client

	players, err := h.rooms.Participants(req.RoomID)
	if err != nil {
		h.ack(c, env.ID, Ack{Success: false, Message: errorMessage(err)})
		return
	}

	payload := PlayersPayload{Success: true, Players: playerViews(players)}
	h.broadcastRoom(req.RoomID, EventUserConnected, payload, c)
	h.ack(c, env.ID, payload)
}

func (h *Hub) handleMove(s *session, env Envelope) {
	var req MoveRequest
	if !h.decode(s, env, &req) {
		return
	}
	h.broadcastRoom(req.RoomID, EventOpponentMoved, req.Move, s.client)
}

func (h *Hub) handleGameOver(s *session, env Envelope) {
	var req RoomRequest
	if !h.decode(s, env, &req) {
		return
	}
	h.broadcastRoom(req.RoomID, EventGameOver, nil, s.client)
}

func (h *Hub) handleResign(s *session, env Envelope) {
	var req ResignRequest
	if !h.decode(s, env, &req) {
		return
	}
	h.logger.Info("resign", zap.String("room", req.RoomID), zap.String("side", req.Side))
	h.broadcastRoom(req.RoomID, EventSendResign, ResignNotice{Side: req.Side, Type: ResignTypeResigned}, nil)
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomFull):
		return msgRoomFull
	case errors.Is(err, game.ErrRoomNotFound):
		return msgRoomNotFound
	case errors.Is(err, game.ErrNotQueued):
		return msgNotQueued
	default:
		return err.Error()
	}
}

func playerViews(participants []game.Participant) []playerView {
	out := make([]playerView, 0, len(participants))
	for _, p := range participants {
		out = append(out, playerView{ID: p.ID, Side: string(p.Side), Name: p.Name})
	}
	return out
}
