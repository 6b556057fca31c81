package relay

import (
	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

// Whiteboard events go to everyone else in the room. The sender already
// applied the change locally.

func (h *Hub) draw(c *Client, roomID string, e *models.Draw) {
	h.broadcast(roomID, c.id, models.EventDraw, e.Raw)
}

func (h *Hub) clear(c *Client, roomID string) {
	h.broadcast(roomID, c.id, models.EventClear, nil)
}

func (h *Hub) undo(c *Client, roomID string, e *models.Undo) {
	h.broadcast(roomID, c.id, models.EventUndo, models.UndoOut{CanvasData: e.CanvasData})
}

func (h *Hub) switchPage(c *Client, roomID string, e *models.SwitchPage) {
	h.broadcast(roomID, c.id, models.EventSwitchPage, models.PageSwitch{PageIndex: *e.PageIndex})
}
