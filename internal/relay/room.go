package relay

import (
	"context"
	"errors"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/mossy-p/whiteboard-signaling/internal/session"
	"github.com/mossy-p/whiteboard-signaling/internal/store"
)

const systemUser = "System"

func (h *Hub) joinRoom(c *Client, e *models.JoinRoom) {
	p := models.Participant{
		UserID:      e.UserID,
		Email:       e.Email,
		DisplayName: e.DisplayName,
	}
	// A verified identity fixes who the user is. The shown name stays the
	// client's pick since update-profile can change it anyway.
	if id := c.identity; id != nil {
		p.UserID = id.UserID
		p.Email = id.Email
		if p.DisplayName == "" {
			p.DisplayName = id.DisplayName
		}
	}

	h.registry.Join(e.RoomID, c, p, h.rosterChanged)
	h.metrics.relayed.WithLabelValues(string(models.EventJoinRoom), fanoutRoom).Inc()
	c.log.Info().Str("room", e.RoomID).Str("user", p.UserID).Msg("joined room")
}

func (h *Hub) updateProfile(c *Client, e *models.UpdateProfile) {
	name := e.DisplayName
	if h.registry.Patch(c.id, session.IdentityPatch{DisplayName: &name}, h.rosterChanged) {
		h.metrics.relayed.WithLabelValues(string(models.EventUpdateProfile), fanoutRoom).Inc()
	}
}

// updateTitle relays a rename to the whole room. When both the room record
// and the caller's identity are known, only the host may rename.
func (h *Hub) updateTitle(c *Client, roomID string, e *models.UpdateTitle) {
	if h.store != nil && c.identity != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.PersistTimeout)
		room, err := h.store.GetRoom(ctx, roomID)
		cancel()

		switch {
		case err == nil && room.HostID != "" && room.HostID != c.identity.UserID:
			h.metrics.rejected.WithLabelValues("not_host").Inc()
			c.log.Warn().Str("room", roomID).Str("user", c.identity.UserID).Msg("title update by non-host dropped")
			h.sendError(c, "only the host can change the title")
			return
		case err != nil && !errors.Is(err, store.ErrRoomNotFound):
			c.log.Error().Err(err).Str("room", roomID).Msg("host lookup failed, relaying title")
		}
	}

	h.broadcast(roomID, "", models.EventUpdateTitle, models.TitleUpdate{Title: e.Title})
}

// rosterChanged runs under the registry lock for every join, leave and
// profile patch: it sends the full roster to the room, plus a system notice
// for joins and leaves.
func (h *Hub) rosterChanged(ch session.Change[*Client]) {
	switch {
	case ch.RoomCreated:
		h.metrics.rooms.Inc()
	case ch.RoomRemoved:
		h.metrics.rooms.Dec()
	}

	if len(ch.Members) == 0 {
		h.log.Debug().Str("room", ch.RoomID).Msg("room removed")
		return
	}

	frames := make([][]byte, 0, 2)
	users, err := models.Encode(models.EventUpdateUsers, models.UsersUpdate{List: ch.Roster})
	if err != nil {
		h.log.Error().Err(err).Msg("encode roster")
		return
	}
	frames = append(frames, users)

	var notice string
	switch ch.Kind {
	case session.Joined:
		notice = ch.Participant.Label() + " joined the session"
	case session.Left:
		notice = ch.Participant.Label() + " left the session"
	}
	if notice != "" {
		sys, err := models.Encode(models.EventChatMessage, models.ChatOut{
			Message:   notice,
			User:      systemUser,
			Timestamp: h.opts.Now().UTC(),
			IsSystem:  true,
		})
		if err == nil {
			frames = append(frames, sys)
		}
	}

	for _, m := range ch.Members {
		for _, f := range frames {
			m.enqueue(f)
		}
	}
}

// AnnounceTitle pushes a title change made outside the socket, such as
// through the REST API, to everyone in the room.
func (h *Hub) AnnounceTitle(roomID, title string) {
	if !h.registry.Has(roomID) {
		return
	}
	h.broadcast(roomID, "", models.EventUpdateTitle, models.TitleUpdate{Title: title})
}
