package peer

import (
	"github.com/pion/webrtc/v4"
)

// Transport is the peer connection behind one link.
type Transport interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error

	// AddTrack starts sending t. HasTrack reports whether a track with this
	// id is already being sent.
	AddTrack(t *Track) error
	HasTrack(id string) bool

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnNegotiationNeeded(func())
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	OnTrack(func(RemoteTrack))

	Close() error
}

// RemoteTrack is the part of a received track the orchestrator reads.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

// TransportFactory opens a fresh transport for a new link.
type TransportFactory interface {
	NewTransport() (Transport, error)
}
