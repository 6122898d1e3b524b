package valkey

import (
	"testing"
	"time"

	"github.com/Xombi17/MEETease/internal/core/ports"
)

var _ ports.SessionDocumentStore = (*SessionStore)(nil)

func TestSessionKey(t *testing.T) {
	if got := SessionKey("ABCDEF"); got != "meetease:session:ABCDEF" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]string{
		"createdAt":      created.Format(time.RFC3339Nano),
		"active":         "true",
		"meetingPoint":   `{"lat":19.05,"lng":72.85,"address":"Cafe Madras"}`,
		"location:p1":    `{"lat":19.0,"lng":72.8,"timestamp":1700000000000}`,
		"participant:p1": `{"id":"p1","name":"Asha","isSharing":true,"joinedAt":"2026-03-01T12:01:00Z"}`,
		"location:p2":    `{"lat":19.1,"lng":72.9}`,
		"participant:p3": `{"id":"p3","name":"Ravi"}`,
		"location:bad":   `{"lat":200,"lng":0}`,
		"participant:x":  `not json`,
	}

	snap, err := DecodeSnapshot("ABCDEF", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.CreatedAt.Equal(created) || !snap.Active {
		t.Errorf("unexpected header %+v", snap)
	}
	if snap.MeetingPoint == nil || snap.MeetingPoint.Address != "Cafe Madras" {
		t.Errorf("unexpected meeting point %+v", snap.MeetingPoint)
	}
	if snap.Destination != nil {
		t.Errorf("destination should be absent")
	}

	p1 := snap.Participants["p1"]
	if p1.Name != "Asha" || p1.Location == nil || !p1.IsReady || !p1.IsSharing {
		t.Errorf("p1 not merged from both fields: %+v", p1)
	}
	if p1.Location.Timestamp != 1700000000000 {
		t.Errorf("timestamp lost: %+v", p1.Location)
	}

	p2 := snap.Participants["p2"]
	if p2.ID != "p2" || p2.Location == nil {
		t.Errorf("location-only participant should be present: %+v", p2)
	}

	p3 := snap.Participants["p3"]
	if p3.IsReady || p3.Location != nil {
		t.Errorf("p3 has no location: %+v", p3)
	}

	if _, ok := snap.Participants["bad"]; ok {
		t.Error("invalid coordinates should be skipped")
	}
	if _, ok := snap.Participants["x"]; ok {
		t.Error("malformed participant should be skipped")
	}
}

func TestDecodeSnapshot_BadCreatedAt(t *testing.T) {
	if _, err := DecodeSnapshot("X", map[string]string{"createdAt": "yesterday"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeSnapshot_RemovedParticipants(t *testing.T) {
	fields := map[string]string{
		"createdAt":      "2026-03-01T12:00:00Z",
		"participant:p1": `{"id":"p1","name":"Asha"}`,
		"participant:p2": `{"id":"p2","name":"Bob"}`,
		"location:p2":    `{"lat":19.1,"lng":72.9}`,
		"removed:p2":     "2026-03-01T12:05:00Z",
		"removed:p9":     "garbage",
	}

	snap, err := DecodeSnapshot("ABCDEF", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := snap.Participants["p2"]; ok {
		t.Error("removed participant should not be listed")
	}
	if _, ok := snap.Participants["p1"]; !ok {
		t.Error("p1 should be listed")
	}
	if _, ok := snap.Removed["p2"]; !ok || len(snap.Removed) != 1 {
		t.Errorf("unexpected removals %v", snap.Removed)
	}
}
