package handlers

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/whiteboard-signaling/internal/middleware"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/mossy-p/whiteboard-signaling/internal/store"
	"github.com/rs/zerolog"
)

const (
	roomCodeLength = 8
	codeChars      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // Removed ambiguous chars
	createAttempts = 5
)

// TitleNotifier pushes title changes to live participants.
type TitleNotifier interface {
	AnnounceTitle(roomID, title string)
}

// Rooms serves the room REST endpoints over a persistence store.
type Rooms struct {
	store  store.Store
	notify TitleNotifier
	log    zerolog.Logger
}

func NewRooms(st store.Store, notify TitleNotifier, log zerolog.Logger) *Rooms {
	return &Rooms{store: st, notify: notify, log: log.With().Str("mod", "rooms").Logger()}
}

// CreateRoom creates a room hosted by the caller with one empty page.
func (r *Rooms) CreateRoom(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreateRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Title == "" {
		req.Title = models.DefaultTitle
	}

	ctx := c.Request.Context()
	room := models.RoomMetadata{
		HostID:    id.UserID,
		Title:     req.Title,
		CreatedAt: time.Now().UTC(),
	}

	var err error
	for range createAttempts {
		room.ID = generateRoomCode()
		err = r.store.CreateRoom(ctx, room)
		if !errors.Is(err, store.ErrRoomExists) {
			break
		}
	}
	if err != nil {
		r.log.Error().Err(err).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	if err := r.store.SavePages(ctx, room.ID, []models.Page{{PageIndex: 0}}); err != nil {
		r.log.Error().Err(err).Str("room", room.ID).Msg("failed to save initial page")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	r.log.Info().Str("room", room.ID).Str("host", room.HostID).Msg("room created")

	c.JSON(http.StatusCreated, models.CreateRoomResponse{
		RoomID: room.ID,
		HostID: room.HostID,
	})
}

// JoinRoom returns the saved state a client needs before it opens the
// socket: title, host, pages and chat history.
func (r *Rooms) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")

	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		r.storeError(c, roomID, err)
		return
	}

	pages, err := r.store.Pages(ctx, roomID)
	if err != nil {
		r.storeError(c, roomID, err)
		return
	}
	if len(pages) == 0 {
		pages = []models.Page{{PageIndex: 0}}
	}

	messages, err := r.store.Chat(ctx, roomID)
	if err != nil {
		r.storeError(c, roomID, err)
		return
	}

	c.JSON(http.StatusOK, models.JoinRoomResponse{
		RoomID:   room.ID,
		HostID:   room.HostID,
		Title:    room.Title,
		Pages:    pages,
		Messages: messages,
	})
}

// SavePages replaces the room's ordered page list.
func (r *Rooms) SavePages(c *gin.Context) {
	roomID := c.Param("roomId")

	var req models.SavePagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := r.store.SavePages(c.Request.Context(), roomID, req.Pages); err != nil {
		r.storeError(c, roomID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": len(req.Pages)})
}

// UpdateTitle renames a room. Only the host may do it.
func (r *Rooms) UpdateTitle(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	roomID := c.Param("roomId")

	var req models.UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		r.storeError(c, roomID, err)
		return
	}
	if room.HostID != id.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the host can change the title"})
		return
	}

	if err := r.store.SetTitle(ctx, roomID, req.Title); err != nil {
		r.storeError(c, roomID, err)
		return
	}
	if r.notify != nil {
		r.notify.AnnounceTitle(roomID, req.Title)
	}
	c.JSON(http.StatusOK, gin.H{"title": req.Title})
}

func (r *Rooms) storeError(c *gin.Context, roomID string, err error) {
	if errors.Is(err, store.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	r.log.Error().Err(err).Str("room", roomID).Msg("store failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

// generateRoomCode generates a random room code
func generateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}
