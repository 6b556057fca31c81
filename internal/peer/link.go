package peer

import (
	"sync"
	"time"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

// Key identifies a link: one remote connection and one media kind.
type Key struct {
	RemoteID string
	Kind     models.MediaKind
}

func (k Key) String() string { return k.RemoteID + "-" + string(k.Kind) }

// Link is one peer connection to a remote participant for one media kind.
type Link struct {
	key Key
	tr  Transport
	now func() time.Time

	// negotiate serializes description and candidate work on tr.
	negotiate sync.Mutex

	// remoteSet is guarded by the orchestrator lock; it flips once, when the
	// pending candidate queue is drained.
	remoteSet bool

	mu      sync.Mutex
	state   LinkState
	history []Transition
}

func newLink(key Key, tr Transport, now func() time.Time) *Link {
	return &Link{key: key, tr: tr, now: now}
}

func (l *Link) Key() Key { return l.key }

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History returns every transition fired on the link, oldest first.
func (l *Link) History() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transition(nil), l.history...)
}

func (l *Link) fire(t Trigger) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	to, err := next(l.state, t)
	if err != nil {
		return Transition{}, err
	}
	tr := Transition{From: l.state, To: to, Trigger: t, At: l.now()}
	l.state = to
	l.history = append(l.history, tr)
	return tr, nil
}
