package relay

import (
	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

// chat relays a message to the whole room, sender included, then queues it
// for storage. Both happen under chatMu so stored order matches live order.
func (h *Hub) chat(c *Client, roomID string, e *models.ChatMessage) {
	user := e.User
	if user == "" {
		if p, ok := h.participant(roomID, c.id); ok {
			user = p.Label()
		}
	}
	out := models.ChatOut{
		Message:   e.Message,
		User:      user,
		Timestamp: h.opts.Now().UTC(),
		SocketID:  c.id,
	}

	h.chatMu.Lock()
	defer h.chatMu.Unlock()

	h.broadcast(roomID, "", models.EventChatMessage, out)

	if h.store == nil || h.persistClosed {
		return
	}
	job := persistJob{roomID: roomID, record: models.ChatRecord{
		User:      out.User,
		Message:   out.Message,
		Timestamp: out.Timestamp,
		SocketID:  out.SocketID,
	}}
	select {
	case h.persist <- job:
	default:
		h.metrics.chatFailures.Inc()
		c.log.Error().Str("room", roomID).Msg("chat persistence queue full, message not stored")
	}
}

func (h *Hub) typing(c *Client, roomID string, e *models.Typing) {
	name := e.DisplayName
	if name == "" {
		if p, ok := h.participant(roomID, c.id); ok {
			name = p.Label()
		}
	}
	h.broadcast(roomID, c.id, models.EventUserTyping, models.UserTyping{SocketID: c.id, DisplayName: name})
}

func (h *Hub) stopTyping(c *Client, roomID string) {
	h.broadcast(roomID, c.id, models.EventUserStopTyping, models.UserTyping{SocketID: c.id})
}

func (h *Hub) participant(roomID, connID string) (models.Participant, bool) {
	for _, p := range h.registry.Participants(roomID) {
		if p.SocketID == connID {
			return p, true
		}
	}
	return models.Participant{}, false
}
