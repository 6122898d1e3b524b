package natsadapter

import (
	"testing"

	"github.com/Xombi17/MEETease/internal/core/ports"
)

var _ ports.SessionFeed = (*Feed)(nil)

func TestSubject(t *testing.T) {
	if got := Subject("QWERTY"); got != "meetease.sessions.QWERTY" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestDecodeUpdate(t *testing.T) {
	u, err := DecodeUpdate([]byte(`{"origin":"a1","snapshot":{"code":"QWERTY","active":true,
		"participants":{"p1":{"id":"p1","name":"Asha","location":{"lat":1,"lng":2}}},
		"destination":{"lat":3,"lng":4,"address":"Airport"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Origin != "a1" || u.Snapshot.Code != "QWERTY" {
		t.Errorf("unexpected update %+v", u)
	}
	if p := u.Snapshot.Participants["p1"]; p.Location == nil || p.Location.Lng != 2 {
		t.Errorf("participant location not decoded: %+v", p)
	}
	if u.Snapshot.Destination == nil || u.Snapshot.Destination.Address != "Airport" {
		t.Errorf("destination not decoded")
	}
}

func TestDecodeUpdate_EmptyParticipants(t *testing.T) {
	u, err := DecodeUpdate([]byte(`{"origin":"a1","snapshot":{"code":"X"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Snapshot.Participants == nil {
		t.Error("participants map should be initialised")
	}
}

func TestDecodeUpdate_Malformed(t *testing.T) {
	if _, err := DecodeUpdate([]byte(`{`)); err == nil {
		t.Fatal("expected error")
	}
}
