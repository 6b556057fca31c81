package models

import (
	"strings"
	"time"
)

// Participant is one live connection in a room
type Participant struct {
	SocketID    string `json:"socketId"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Label is the name shown in system notices: display name, then the local
// part of the email, then "Unknown".
func (p Participant) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email != "" {
		local, _, _ := strings.Cut(p.Email, "@")
		if local != "" {
			return local
		}
	}
	return "Unknown"
}

// Identity is a verified (userId, email, displayName) triple attached to a
// connection before it may join.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// DefaultTitle is given to rooms that were never renamed
const DefaultTitle = "Untitled Session"

// RoomMetadata is the durable room record kept by the persistence store
type RoomMetadata struct {
	ID        string    `json:"id"`
	HostID    string    `json:"hostId"` // user id of the creator
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Page is one whiteboard page; CanvasData is an opaque raster snapshot
type Page struct {
	PageIndex  int    `json:"pageIndex"`
	CanvasData string `json:"canvasData"`
}

// ChatRecord is a persisted user chat message
type ChatRecord struct {
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	SocketID  string    `json:"socketId"`
}

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	Title string `json:"title" binding:"max=120"`
}

// CreateRoomResponse is the response for creating a room
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	HostID string `json:"hostId"`
}

// JoinRoomResponse carries everything a client needs to render a room
type JoinRoomResponse struct {
	RoomID   string       `json:"roomId"`
	HostID   string       `json:"hostId"`
	Title    string       `json:"title"`
	Pages    []Page       `json:"pages"`
	Messages []ChatRecord `json:"messages"`
}

// SavePagesRequest replaces the ordered page list of a room
type SavePagesRequest struct {
	Pages []Page `json:"pages" binding:"required,min=1"`
}

// UpdateTitleRequest renames a room (host only)
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required,max=120"`
}
