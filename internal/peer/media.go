package peer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Track is a local track shared by every link of its kind. Disabling it
// keeps it negotiated but stops samples from flowing.
type Track struct {
	webrtc.TrackLocal

	enabled atomic.Bool
	stopped atomic.Bool
}

func NewTrack(t webrtc.TrackLocal) *Track {
	tr := &Track{TrackLocal: t}
	tr.enabled.Store(true)
	return tr
}

func (t *Track) Enabled() bool      { return t.enabled.Load() }
func (t *Track) SetEnabled(on bool) { t.enabled.Store(on) }
func (t *Track) Stop()              { t.stopped.Store(true) }
func (t *Track) Stopped() bool      { return t.stopped.Load() }

// WriteSample forwards s when the track is live and enabled. Disabled and
// stopped tracks drop samples silently.
func (t *Track) WriteSample(s media.Sample) error {
	if t.Stopped() || !t.Enabled() {
		return nil
	}
	w, ok := t.TrackLocal.(interface{ WriteSample(media.Sample) error })
	if !ok {
		return fmt.Errorf("track %s does not accept samples", t.ID())
	}
	return w.WriteSample(s)
}

// Stream is the local capture for one media kind.
type Stream struct {
	Kind   models.MediaKind
	Tracks []*Track

	ended   chan struct{}
	endOnce sync.Once
}

func NewStream(kind models.MediaKind, tracks ...*Track) *Stream {
	return &Stream{Kind: kind, Tracks: tracks, ended: make(chan struct{})}
}

// Stop stops every track.
func (s *Stream) Stop() {
	for _, t := range s.Tracks {
		t.Stop()
	}
}

// End reports that the source stopped on its own, for example the user
// ended a screen share from the OS. Safe to call more than once.
func (s *Stream) End() {
	s.endOnce.Do(func() { close(s.ended) })
}

func (s *Stream) Ended() <-chan struct{} { return s.ended }

func (s *Stream) tracksOf(kind webrtc.RTPCodecType) []*Track {
	var out []*Track
	for _, t := range s.Tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// MediaSource captures local streams. Acquire blocks until the device or
// user answers; a refusal should wrap ErrMediaDenied.
type MediaSource interface {
	Acquire(ctx context.Context, kind models.MediaKind) (*Stream, error)
}

// SampleSource builds sample-driven tracks: opus+VP8 for camera capture,
// VP8 for screen capture. The caller feeds samples through Track.WriteSample.
type SampleSource struct {
	// Deny makes every Acquire fail, as a user refusing permission would.
	Deny bool
}

func (s SampleSource) Acquire(ctx context.Context, kind models.MediaKind) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Deny {
		return nil, fmt.Errorf("%w: %s capture refused", ErrMediaDenied, kind)
	}

	streamID := fmt.Sprintf("%s-%s", kind, uuid.NewString())
	var tracks []*Track

	if kind == models.MediaKindMedia {
		audio, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio-"+streamID, streamID)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, NewTrack(audio))
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video-"+streamID, streamID)
	if err != nil {
		return nil, err
	}
	tracks = append(tracks, NewTrack(video))

	return NewStream(kind, tracks...), nil
}
