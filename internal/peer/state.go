package peer

import (
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
)

// LinkState is the lifecycle of one peer link.
type LinkState int

const (
	StateNew LinkState = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

var stateNames = [...]string{
	StateNew:             "new",
	StateHaveLocalOffer:  "have-local-offer",
	StateHaveRemoteOffer: "have-remote-offer",
	StateConnected:       "connected",
	StateDisconnected:    "disconnected",
	StateFailed:          "failed",
	StateClosed:          "closed",
}

func (s LinkState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal states remove the link.
func (s LinkState) Terminal() bool {
	return s == StateDisconnected || s == StateFailed || s == StateClosed
}

// Trigger is a discrete event that may move a link between states.
type Trigger int

const (
	TriggerLocalOffer Trigger = iota
	TriggerRemoteOffer
	TriggerLocalAnswer
	TriggerRemoteAnswer
	TriggerConnected
	TriggerDisconnected
	TriggerFailed
	TriggerClosed
)

var triggerNames = [...]string{
	TriggerLocalOffer:   "local-offer",
	TriggerRemoteOffer:  "remote-offer",
	TriggerLocalAnswer:  "local-answer",
	TriggerRemoteAnswer: "remote-answer",
	TriggerConnected:    "connected",
	TriggerDisconnected: "disconnected",
	TriggerFailed:       "failed",
	TriggerClosed:       "closed",
}

func (t Trigger) String() string {
	if int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// Transition is one recorded step of a link's history.
type Transition struct {
	From    LinkState
	To      LinkState
	Trigger Trigger
	At      time.Time
}

// next returns the state after t fires in s. Offers and answers on a
// connected link are renegotiation and keep it connected.
func next(s LinkState, t Trigger) (LinkState, error) {
	if s.Terminal() {
		return s, ErrLinkClosed
	}

	switch t {
	case TriggerDisconnected:
		return StateDisconnected, nil
	case TriggerFailed:
		return StateFailed, nil
	case TriggerClosed:
		return StateClosed, nil
	case TriggerConnected:
		return StateConnected, nil
	}

	if s == StateConnected {
		return s, nil
	}

	switch t {
	case TriggerLocalOffer:
		return StateHaveLocalOffer, nil
	case TriggerRemoteOffer:
		return StateHaveRemoteOffer, nil
	case TriggerLocalAnswer, TriggerRemoteAnswer:
		return s, nil
	}
	return s, fmt.Errorf("unknown trigger %v", t)
}

// connectionTrigger maps a transport connection state to a trigger. States
// that do not affect the lifecycle return false.
func connectionTrigger(s webrtc.PeerConnectionState) (Trigger, bool) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		return TriggerConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return TriggerDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return TriggerFailed, true
	case webrtc.PeerConnectionStateClosed:
		return TriggerClosed, true
	}
	return 0, false
}
