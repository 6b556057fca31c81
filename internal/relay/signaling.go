package relay

import (
	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

func (h *Hub) joinCall(c *Client, roomID string, e *models.JoinCall) {
	h.broadcast(roomID, c.id, models.EventUserJoinedCall, models.CallJoined{SocketID: c.id, Type: e.Type})
}

func (h *Hub) leaveCall(c *Client, roomID string) {
	h.broadcast(roomID, c.id, models.EventUserLeftCall, models.CallLeft{SocketID: c.id})
}

func (h *Hub) mediaStatus(c *Client, roomID string, e *models.MediaStatus) {
	h.broadcast(roomID, c.id, models.EventMediaStatus, models.MediaStatusOut{
		From:       c.id,
		IsMuted:    e.IsMuted,
		IsVideoOff: e.IsVideoOff,
	})
}

// signal forwards an offer, answer or candidate to its target only, stamped
// with the sender's connection id.
func (h *Hub) signal(c *Client, roomID string, e *models.Signal) {
	out := models.SignalOut{From: c.id, Type: e.Type}
	switch e.Event {
	case models.EventOffer:
		out.Offer = e.Offer
	case models.EventAnswer:
		out.Answer = e.Answer
	case models.EventICECandidate:
		out.Candidate = e.Candidate
	}
	h.unicast(roomID, e.To, e.Event, out)
}
