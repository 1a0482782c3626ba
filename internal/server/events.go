package server

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Tyrowin/roomchat/internal/domain"
	"github.com/Tyrowin/roomchat/internal/log"
)

// handleFrame decodes one inbound frame and dispatches it. It runs on the
// client's read pump, so a connection's events are handled in arrival order.
func (h *Hub) handleFrame(c *Client, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug().Err(err).Msg("malformed frame")
		c.sendError(domain.MsgInvalidEvent)
		return
	}

	switch env.Event {
	case domain.EventJoinRoom:
		var req domain.JoinRoomRequest
		if !decodePayload(c, env, &req) {
			return
		}
		h.handleJoin(c, req)
	case domain.EventSendMessage:
		var req domain.SendMessageRequest
		if !decodePayload(c, env, &req) {
			return
		}
		h.handleSend(c, req)
	case domain.EventLeaveRoom:
		var req domain.LeaveRoomRequest
		if !decodePayload(c, env, &req) {
			return
		}
		h.handleLeave(c, req)
	default:
		c.logger.Debug().Str(log.FieldEvent, env.Event).Msg("unknown event")
		c.sendError(domain.MsgInvalidEvent)
	}
}

// decodePayload unmarshals the event data into dst, answering Invalid event
// on failure.
func decodePayload(c *Client, env domain.Envelope, dst any) bool {
	data := env.Data
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Debug().Err(err).Str(log.FieldEvent, env.Event).Msg("malformed payload")
		c.sendError(domain.MsgInvalidEvent)
		return false
	}
	return true
}

func (h *Hub) handleJoin(c *Client, req domain.JoinRoomRequest) {
	if err := req.Validate(); err != nil {
		c.sendError(domain.MsgRoomNotFound)
		return
	}
	ctx := log.WithLogger(h.ctx, c.logger)

	// A connection is in at most one room at a time.
	if prev, ok := h.registry.Lookup(c.id); ok && prev.RoomID != req.RoomID {
		if err := h.rooms.Leave(ctx, prev.RoomID, c.id); err != nil {
			c.logger.Error().Err(err).Str(log.FieldRoomID, prev.RoomID).Msg("failed to leave previous room")
		}
		h.registry.Unbind(c.id)
	}

	if _, err := h.rooms.Join(ctx, req.RoomID, c.id, req.Nickname); err != nil {
		if !errors.Is(err, domain.ErrRoomFull) && !errors.Is(err, domain.ErrRoomNotFound) && !errors.Is(err, domain.ErrInvalidNickname) {
			c.logger.Error().Err(err).Str(log.FieldRoomID, req.RoomID).Msg("join failed")
		}
		c.sendError(domain.UserMessage(err))
		return
	}
	h.registry.Bind(c.id, req.RoomID, req.Nickname)
}

func (h *Hub) handleSend(c *Client, req domain.SendMessageRequest) {
	if err := req.Validate(); err != nil {
		c.logger.Debug().Err(err).Msg("rejected message")
		c.sendError(domain.MsgInvalidEvent)
		return
	}
	ctx := log.WithLogger(h.ctx, c.logger)

	_, err := h.rooms.Send(ctx, req.RoomID, c.id, req.Content, req.Type)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotJoined):
		c.logger.Debug().Str(log.FieldRoomID, req.RoomID).Msg("dropped message from non-member")
	case errors.Is(err, domain.ErrRoomNotFound):
		h.registry.Unbind(c.id)
		c.sendError(domain.MsgRoomNotFound)
	case errors.Is(err, domain.ErrInvalidMessage):
		c.sendError(domain.MsgInvalidEvent)
	default:
		c.sendError(domain.MsgSendFailed)
	}
}

func (h *Hub) handleLeave(c *Client, req domain.LeaveRoomRequest) {
	entry, ok := h.registry.Lookup(c.id)
	if !ok || entry.RoomID != req.RoomID {
		return
	}
	h.registry.Unbind(c.id)
	if err := h.rooms.Leave(log.WithLogger(h.ctx, c.logger), entry.RoomID, c.id); err != nil {
		c.logger.Error().Err(err).Str(log.FieldRoomID, entry.RoomID).Msg("failed to leave room")
	}
}
