package peer

import (
	"encoding/json"
	"fmt"

	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/pion/webrtc/v4"
)

// Route applies one relay event to the orchestrator. Events that do not
// concern peer links are ignored.
func (o *Orchestrator) Route(env models.Envelope) error {
	switch env.Event {
	case models.EventConnected:
		var m models.Connected
		if err := decode(env, &m); err != nil {
			return err
		}
		o.SetSelf(m.SocketID)

	case models.EventUpdateUsers:
		var m models.UsersUpdate
		if err := decode(env, &m); err != nil {
			return err
		}
		o.UpdateRoster(m.List)

	case models.EventUserJoinedCall:
		var m models.CallJoined
		if err := decode(env, &m); err != nil {
			return err
		}
		if m.Type == "" {
			m.Type = models.MediaKindMedia
		}
		_, err := o.CreatePeerLink(m.SocketID, m.Type)
		return err

	case models.EventUserLeftCall:
		var m models.CallLeft
		if err := decode(env, &m); err != nil {
			return err
		}
		o.RemoteParticipantLeft(m.SocketID)

	case models.EventMediaStatus:
		var m models.MediaStatusOut
		if err := decode(env, &m); err != nil {
			return err
		}
		o.HandleMediaStatus(m.From, m.IsMuted, m.IsVideoOff)

	case models.EventOffer, models.EventAnswer:
		var m models.SignalOut
		if err := decode(env, &m); err != nil {
			return err
		}
		body := m.Offer
		if env.Event == models.EventAnswer {
			body = m.Answer
		}
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(body, &desc); err != nil {
			return fmt.Errorf("%w: %s description: %v", models.ErrMalformedEvent, env.Event, err)
		}
		if env.Event == models.EventOffer {
			return o.HandleOffer(m.From, kindOrMedia(m.Type), desc)
		}
		return o.HandleAnswer(m.From, kindOrMedia(m.Type), desc)

	case models.EventICECandidate:
		var m models.SignalOut
		if err := decode(env, &m); err != nil {
			return err
		}
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal(m.Candidate, &c); err != nil {
			return fmt.Errorf("%w: candidate: %v", models.ErrMalformedEvent, err)
		}
		return o.HandleICECandidate(m.From, kindOrMedia(m.Type), c)
	}
	return nil
}

func decode(env models.Envelope, out any) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrMalformedEvent, env.Event, err)
	}
	return nil
}

func kindOrMedia(k models.MediaKind) models.MediaKind {
	if k == "" {
		return models.MediaKindMedia
	}
	return k
}
