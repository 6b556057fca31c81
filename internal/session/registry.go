package session

import (
	"sync"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

// Member is a live connection handle stored next to its participant record.
type Member interface {
	ID() string
}

// ChangeKind tells observers what happened to a roster
type ChangeKind int

const (
	Joined ChangeKind = iota
	Left
	Patched
)

func (k ChangeKind) String() string {
	switch k {
	case Joined:
		return "joined"
	case Left:
		return "left"
	case Patched:
		return "patched"
	}
	return "unknown"
}

// Change describes one roster mutation together with the roster that
// resulted from it.
type Change[M Member] struct {
	Kind        ChangeKind
	RoomID      string
	Participant models.Participant
	Roster      []models.Participant
	Members     []M
	// RoomCreated is set when a join brought the room into existence.
	RoomCreated bool
	// RoomRemoved is set when the change emptied the room and it was dropped.
	RoomRemoved bool
}

// Emit is called while the registry lock is held, so every room observes its
// changes in the order they were applied. It must not block or call back into
// the registry.
type Emit[M Member] func(Change[M])

// IdentityPatch lists the participant fields a profile update may change
type IdentityPatch struct {
	DisplayName *string
	Email       *string
}

type entry[M Member] struct {
	member      M
	participant models.Participant
}

type room[M Member] struct {
	id      string
	entries []entry[M]
}

func (r *room[M]) index(connID string) int {
	for i, e := range r.entries {
		if e.member.ID() == connID {
			return i
		}
	}
	return -1
}

func (r *room[M]) snapshot() ([]models.Participant, []M) {
	ps := make([]models.Participant, len(r.entries))
	ms := make([]M, len(r.entries))
	for i, e := range r.entries {
		ps[i] = e.participant
		ms[i] = e.member
	}
	return ps, ms
}

// Registry is the Connection Registry and Room Session State: which
// connections are in which room, and who they are. Rooms exist only while
// they have participants.
type Registry[M Member] struct {
	mu     sync.RWMutex
	rooms  map[string]*room[M]
	byConn map[string]string // conn id -> room id
}

func NewRegistry[M Member]() *Registry[M] {
	return &Registry[M]{
		rooms:  make(map[string]*room[M]),
		byConn: make(map[string]string),
	}
}

// Join places m in roomID, creating the room on first join. A connection that
// is already in another room leaves it first; one already in roomID has its
// stale entry replaced. The participant's SocketID is set to m.ID().
func (g *Registry[M]) Join(roomID string, m M, p models.Participant, emit Emit[M]) []models.Participant {
	g.mu.Lock()
	defer g.mu.Unlock()

	connID := m.ID()
	p.SocketID = connID

	if prev, ok := g.byConn[connID]; ok && prev != roomID {
		g.removeLocked(connID, emit)
	}

	r, ok := g.rooms[roomID]
	if !ok {
		r = &room[M]{id: roomID}
		g.rooms[roomID] = r
	}
	created := !ok
	if i := r.index(connID); i >= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
	}
	r.entries = append(r.entries, entry[M]{member: m, participant: p})
	g.byConn[connID] = roomID

	ps, ms := r.snapshot()
	if emit != nil {
		emit(Change[M]{Kind: Joined, RoomID: roomID, Participant: p, Roster: ps, Members: ms, RoomCreated: created})
	}
	return ps
}

// Leave removes connID from whichever room it is in. It reports false when
// the connection never joined.
func (g *Registry[M]) Leave(connID string, emit Emit[M]) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeLocked(connID, emit)
}

func (g *Registry[M]) removeLocked(connID string, emit Emit[M]) bool {
	roomID, ok := g.byConn[connID]
	if !ok {
		return false
	}
	delete(g.byConn, connID)

	r, ok := g.rooms[roomID]
	if !ok {
		return false
	}
	i := r.index(connID)
	if i < 0 {
		return false
	}
	p := r.entries[i].participant
	r.entries = append(r.entries[:i], r.entries[i+1:]...)

	removed := len(r.entries) == 0
	if removed {
		delete(g.rooms, roomID)
	}

	ps, ms := r.snapshot()
	if emit != nil {
		emit(Change[M]{Kind: Left, RoomID: roomID, Participant: p, Roster: ps, Members: ms, RoomRemoved: removed})
	}
	return true
}

// Patch updates identity fields in place. No new record is created.
func (g *Registry[M]) Patch(connID string, patch IdentityPatch, emit Emit[M]) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	roomID, ok := g.byConn[connID]
	if !ok {
		return false
	}
	r, ok := g.rooms[roomID]
	if !ok {
		return false
	}
	i := r.index(connID)
	if i < 0 {
		return false
	}

	e := &r.entries[i]
	if patch.DisplayName != nil {
		e.participant.DisplayName = *patch.DisplayName
	}
	if patch.Email != nil {
		e.participant.Email = *patch.Email
	}

	ps, ms := r.snapshot()
	if emit != nil {
		emit(Change[M]{Kind: Patched, RoomID: roomID, Participant: e.participant, Roster: ps, Members: ms})
	}
	return true
}

// RoomOf returns the room connID is in.
func (g *Registry[M]) RoomOf(connID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byConn[connID]
	return id, ok
}

// Participants returns a copy of the roster of roomID in join order.
func (g *Registry[M]) Participants(roomID string) []models.Participant {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil
	}
	ps, _ := r.snapshot()
	return ps
}

// Member looks up one connection inside roomID.
func (g *Registry[M]) Member(roomID, connID string) (M, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var zero M
	r, ok := g.rooms[roomID]
	if !ok {
		return zero, false
	}
	if i := r.index(connID); i >= 0 {
		return r.entries[i].member, true
	}
	return zero, false
}

// Each calls fn for every member of roomID except the one with excludeID,
// holding the read lock. fn must not block.
func (g *Registry[M]) Each(roomID, excludeID string, fn func(M)) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range r.entries {
		if e.member.ID() == excludeID {
			continue
		}
		fn(e.member)
		n++
	}
	return n
}

// Has reports whether a session for roomID currently exists.
func (g *Registry[M]) Has(roomID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[roomID]
	return ok
}

// Len returns the number of live rooms.
func (g *Registry[M]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
