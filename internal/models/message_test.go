package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeDrawKeepsRawPayload(t *testing.T) {
	frame := []byte(`{"event":"draw","data":{"roomId":"r1","type":"pencil","x":10,"y":10,"lastX":0,"lastY":0,"color":"#000","size":4}}`)

	in, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	d, ok := in.(*Draw)
	if !ok {
		t.Fatalf("expected *Draw, got %T", in)
	}
	if d.Type != "pencil" || d.Room() != "r1" {
		t.Fatalf("unexpected draw %+v", d)
	}

	var got, want map[string]any
	_ = json.Unmarshal(d.Raw, &got)
	_ = json.Unmarshal([]byte(`{"roomId":"r1","type":"pencil","x":10,"y":10,"lastX":0,"lastY":0,"color":"#000","size":4}`), &want)
	if len(got) != len(want) {
		t.Fatalf("raw payload changed: %s", d.Raw)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s: got %v, want %v", k, got[k], v)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `{`, ErrMalformedEvent},
		{"no event", `{"data":{}}`, ErrMalformedEvent},
		{"unknown", `{"event":"teleport"}`, ErrUnknownEvent},
		{"join without room", `{"event":"join-room","data":{"userId":"u"}}`, ErrMalformedEvent},
		{"draw without type", `{"event":"draw","data":{"roomId":"r"}}`, ErrMalformedEvent},
		{"negative page", `{"event":"switch-page","data":{"pageIndex":-1}}`, ErrMalformedEvent},
		{"missing page", `{"event":"switch-page","data":{"roomId":"r"}}`, ErrMalformedEvent},
		{"offer without target", `{"event":"offer","data":{"offer":{"type":"offer","sdp":"x"},"type":"media"}}`, ErrMalformedEvent},
		{"offer with bad kind", `{"event":"offer","data":{"offer":{},"to":"b","type":"audio"}}`, ErrMalformedEvent},
		{"answer without body", `{"event":"answer","data":{"to":"b","type":"media"}}`, ErrMalformedEvent},
		{"empty chat", `{"event":"chat-message","data":{"roomId":"r","message":""}}`, ErrMalformedEvent},
		{"wrong field type", `{"event":"media-status","data":{"isMuted":"yes"}}`, ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeClearForms(t *testing.T) {
	for _, frame := range []string{
		`{"event":"clear","data":"r1"}`,
		`{"event":"clear","data":{"roomId":"r1"}}`,
	} {
		in, err := Decode([]byte(frame))
		if err != nil {
			t.Fatalf("decode %s: %v", frame, err)
		}
		if in.Room() != "r1" {
			t.Errorf("%s: room %q", frame, in.Room())
		}
	}
}

func TestDecodeJoinCallDefaultsToMedia(t *testing.T) {
	in, err := Decode([]byte(`{"event":"join-call","data":{"roomId":"r1"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind := in.(*JoinCall).Type; kind != MediaKindMedia {
		t.Fatalf("kind = %q", kind)
	}
}

func TestDecodeSignalBody(t *testing.T) {
	in, err := Decode([]byte(`{"event":"ice-candidate","data":{"candidate":{"candidate":"c1"},"to":"b","type":"screen"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s := in.(*Signal)
	if s.Name() != EventICECandidate || s.To != "b" || s.Type != MediaKindScreen {
		t.Fatalf("unexpected signal %+v", s)
	}
	if string(s.Body()) != `{"candidate":"c1"}` {
		t.Fatalf("body = %s", s.Body())
	}
}

func TestEncodeWithoutPayload(t *testing.T) {
	frame, err := Encode(EventClear, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(frame) != `{"event":"clear"}` {
		t.Fatalf("frame = %s", frame)
	}
}

func TestParticipantLabel(t *testing.T) {
	tests := []struct {
		p    Participant
		want string
	}{
		{Participant{DisplayName: "Ada", Email: "ada@example.com"}, "Ada"},
		{Participant{Email: "grace@example.com"}, "grace"},
		{Participant{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.Label(); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
