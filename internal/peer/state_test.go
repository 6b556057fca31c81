package peer

import (
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    LinkState
		trigger Trigger
		want    LinkState
		err     error
	}{
		{StateNew, TriggerLocalOffer, StateHaveLocalOffer, nil},
		{StateNew, TriggerRemoteOffer, StateHaveRemoteOffer, nil},
		{StateHaveLocalOffer, TriggerRemoteAnswer, StateHaveLocalOffer, nil},
		{StateHaveRemoteOffer, TriggerLocalAnswer, StateHaveRemoteOffer, nil},
		{StateHaveLocalOffer, TriggerConnected, StateConnected, nil},
		{StateConnected, TriggerLocalOffer, StateConnected, nil},
		{StateConnected, TriggerRemoteOffer, StateConnected, nil},
		{StateConnected, TriggerDisconnected, StateDisconnected, nil},
		{StateNew, TriggerFailed, StateFailed, nil},
		{StateHaveRemoteOffer, TriggerClosed, StateClosed, nil},
		{StateFailed, TriggerConnected, StateFailed, ErrLinkClosed},
		{StateClosed, TriggerLocalOffer, StateClosed, ErrLinkClosed},
		{StateDisconnected, TriggerClosed, StateDisconnected, ErrLinkClosed},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.trigger.String(), func(t *testing.T) {
			got, err := next(tt.from, tt.trigger)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnectionTrigger(t *testing.T) {
	if tr, ok := connectionTrigger(webrtc.PeerConnectionStateFailed); !ok || tr != TriggerFailed {
		t.Errorf("failed -> %v %v", tr, ok)
	}
	for _, s := range []webrtc.PeerConnectionState{webrtc.PeerConnectionStateNew, webrtc.PeerConnectionStateConnecting} {
		if _, ok := connectionTrigger(s); ok {
			t.Errorf("%v should not trigger", s)
		}
	}
}

func TestLinkRecordsHistory(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLink(Key{"r1", "media"}, nil, func() time.Time { return at })

	l.fire(TriggerRemoteOffer)
	l.fire(TriggerLocalAnswer)
	l.fire(TriggerConnected)
	if _, err := l.fire(TriggerClosed); err != nil {
		t.Fatal(err)
	}
	if _, err := l.fire(TriggerConnected); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("err = %v", err)
	}

	hist := l.History()
	if len(hist) != 4 {
		t.Fatalf("history = %+v", hist)
	}
	last := hist[3]
	if last.From != StateConnected || last.To != StateClosed || !last.At.Equal(at) {
		t.Errorf("last = %+v", last)
	}
	if l.State() != StateClosed {
		t.Errorf("state = %v", l.State())
	}
}
