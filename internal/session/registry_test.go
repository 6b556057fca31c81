package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

type conn string

func (c conn) ID() string { return string(c) }

type recorder struct {
	changes []Change[conn]
}

func (r *recorder) emit(c Change[conn]) { r.changes = append(r.changes, c) }

func (r *recorder) last() Change[conn] { return r.changes[len(r.changes)-1] }

func ids(ps []models.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.SocketID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestJoinLeaveRoster(t *testing.T) {
	g := NewRegistry[conn]()
	rec := &recorder{}

	g.Join("r1", "A", models.Participant{DisplayName: "A"}, rec.emit)
	g.Join("r1", "B", models.Participant{DisplayName: "B"}, rec.emit)
	if got := ids(rec.last().Roster); !equal(got, []string{"A", "B"}) {
		t.Fatalf("after joins: %v", got)
	}

	g.Leave("A", rec.emit)
	c := rec.last()
	if c.Kind != Left || c.Participant.SocketID != "A" {
		t.Fatalf("unexpected change %+v", c)
	}
	if got := ids(c.Roster); !equal(got, []string{"B"}) {
		t.Fatalf("after leave: %v", got)
	}
	if len(c.Members) != 1 || c.Members[0] != "B" {
		t.Fatalf("members = %v", c.Members)
	}
}

func TestRejoinReplacesStaleEntry(t *testing.T) {
	g := NewRegistry[conn]()

	g.Join("r1", "A", models.Participant{DisplayName: "old"}, nil)
	got := g.Join("r1", "A", models.Participant{DisplayName: "new"}, nil)

	if len(got) != 1 || got[0].DisplayName != "new" {
		t.Fatalf("roster = %+v", got)
	}
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	g := NewRegistry[conn]()
	rec := &recorder{}

	g.Join("r1", "A", models.Participant{}, rec.emit)
	g.Join("r2", "A", models.Participant{}, rec.emit)

	if g.Has("r1") {
		t.Fatal("r1 should be removed once empty")
	}
	if room, _ := g.RoomOf("A"); room != "r2" {
		t.Fatalf("A is in %q", room)
	}
	if len(rec.changes) != 3 || rec.changes[1].Kind != Left || !rec.changes[1].RoomRemoved {
		t.Fatalf("changes = %+v", rec.changes)
	}
}

func TestLastLeaveRemovesRoom(t *testing.T) {
	g := NewRegistry[conn]()
	rec := &recorder{}

	g.Join("r1", "X", models.Participant{}, nil)
	g.Leave("X", rec.emit)

	if !rec.last().RoomRemoved || g.Has("r1") || g.Len() != 0 {
		t.Fatal("room should be removed")
	}

	got := g.Join("r1", "Z", models.Participant{}, nil)
	if !equal(ids(got), []string{"Z"}) {
		t.Fatalf("fresh room roster = %v", ids(got))
	}
}

func TestLeaveUnknownConnection(t *testing.T) {
	g := NewRegistry[conn]()
	called := false
	if g.Leave("ghost", func(Change[conn]) { called = true }) {
		t.Fatal("leave of unknown connection reported true")
	}
	if called {
		t.Fatal("emit called for unknown connection")
	}
}

func TestPatchInPlace(t *testing.T) {
	g := NewRegistry[conn]()
	rec := &recorder{}

	g.Join("r1", "A", models.Participant{UserID: "u1", DisplayName: "before"}, nil)
	g.Join("r1", "B", models.Participant{}, nil)

	name := "after"
	if !g.Patch("A", IdentityPatch{DisplayName: &name}, rec.emit) {
		t.Fatal("patch failed")
	}

	c := rec.last()
	if c.Kind != Patched || len(c.Roster) != 2 {
		t.Fatalf("unexpected change %+v", c)
	}
	if c.Roster[0].DisplayName != "after" || c.Roster[0].UserID != "u1" {
		t.Fatalf("patched roster = %+v", c.Roster)
	}
}

func TestEachExcludesSender(t *testing.T) {
	g := NewRegistry[conn]()
	for _, id := range []conn{"A", "B", "C"} {
		g.Join("r1", id, models.Participant{}, nil)
	}

	var got []string
	n := g.Each("r1", "B", func(c conn) { got = append(got, string(c)) })
	if n != 2 || !equal(got, []string{"A", "C"}) {
		t.Fatalf("each = %v", got)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	g := NewRegistry[conn]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := conn(fmt.Sprintf("c%d", i))
			g.Join("r1", c, models.Participant{}, nil)
			if i%2 == 0 {
				g.Leave(c.ID(), nil)
			}
		}(i)
	}
	wg.Wait()

	got := g.Participants("r1")
	if len(got) != 25 {
		t.Fatalf("expected 25 participants, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p.SocketID] {
			t.Fatalf("duplicate %s", p.SocketID)
		}
		seen[p.SocketID] = true
	}
}
