package peer

import (
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// PionFactory opens pion peer connections sharing one API instance.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewPionFactory configures default codecs and interceptors. stunServer may
// be empty for host-only candidates; no TURN relay is ever configured.
func NewPionFactory(stunServer string, lf logging.LoggerFactory) (*PionFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}

	s := webrtc.SettingEngine{}
	if lf != nil {
		s.LoggerFactory = lf
	}

	conf := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	if stunServer != "" {
		conf.ICEServers = append(conf.ICEServers, webrtc.ICEServer{URLs: []string{stunServer}})
	}

	return &PionFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		config: conf,
	}, nil
}

func (f *PionFactory) NewTransport() (Transport, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return &pionTransport{pc: pc}, nil
}

type pionTransport struct {
	pc *webrtc.PeerConnection
}

func (t *pionTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

func (t *pionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *pionTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(d)
}

func (t *pionTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(d)
}

func (t *pionTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(c)
}

func (t *pionTransport) AddTrack(tr *Track) error {
	sender, err := t.pc.AddTrack(tr.TrackLocal)
	if err != nil {
		return err
	}

	// Read and discard RTCP packets
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (t *pionTransport) HasTrack(id string) bool {
	for _, s := range t.pc.GetSenders() {
		if tr := s.Track(); tr != nil && tr.ID() == id {
			return true
		}
	}
	return false
}

func (t *pionTransport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

func (t *pionTransport) OnNegotiationNeeded(fn func()) { t.pc.OnNegotiationNeeded(fn) }

func (t *pionTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(fn)
}

func (t *pionTransport) OnTrack(fn func(RemoteTrack)) {
	t.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) { fn(tr) })
}

func (t *pionTransport) Close() error { return t.pc.Close() }
