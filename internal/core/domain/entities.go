package domain

import (
	"time"
)

// ProviderID names a geocoding backend.
type ProviderID string

const (
	ProviderOpen       ProviderID = "open"
	ProviderCommercial ProviderID = "commercial"
)

// DirectionsSummary is route-duration data attached to a participant.
// The core stores it but never interprets it.
type DirectionsSummary struct {
	DurationSeconds int    `json:"durationSeconds"`
	DistanceMeters  int    `json:"distanceMeters"`
	Text            string `json:"text,omitempty"`
}

// Participant is one person taking part in a meeting.
type Participant struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Location   *Location          `json:"location,omitempty"`
	IsReady    bool               `json:"isReady"` // true iff Location != nil
	IsSharing  bool               `json:"isSharing"`
	Directions *DirectionsSummary `json:"directions,omitempty"`
}

// Clone returns a deep copy.
func (p Participant) Clone() Participant {
	c := p
	c.Location = cloneLocation(p.Location)
	if p.Directions != nil {
		d := *p.Directions
		c.Directions = &d
	}
	return c
}

// Settings are per-session user preferences.
type Settings struct {
	PreferOpenProvider bool `json:"preferOpenProvider"`
}

// ProviderOrder returns the geocoding provider order implied by the settings.
func (s Settings) ProviderOrder() []ProviderID {
	if s.PreferOpenProvider {
		return []ProviderID{ProviderOpen, ProviderCommercial}
	}
	return []ProviderID{ProviderCommercial, ProviderOpen}
}

// DefaultSettings prefers the open provider.
func DefaultSettings() Settings {
	return Settings{PreferOpenProvider: true}
}

// MeetingState is the root aggregate of a session.
type MeetingState struct {
	Participants []Participant `json:"participants"`
	MeetingPoint *Location     `json:"meetingPoint,omitempty"`
	Destination  *Location     `json:"destination,omitempty"`
	Settings     Settings      `json:"settings"`
}

// ReadyParticipants returns participants that have a location, in insertion order.
func (s MeetingState) ReadyParticipants() []Participant {
	var ready []Participant
	for _, p := range s.Participants {
		if p.Location != nil {
			ready = append(ready, p)
		}
	}
	return ready
}

// Clone returns a deep copy.
func (s MeetingState) Clone() MeetingState {
	c := MeetingState{
		Participants: make([]Participant, len(s.Participants)),
		MeetingPoint: cloneLocation(s.MeetingPoint),
		Destination:  cloneLocation(s.Destination),
		Settings:     s.Settings,
	}
	for i, p := range s.Participants {
		c.Participants[i] = p.Clone()
	}
	return c
}

// RemoteParticipant is a participant entry in the remote session document.
type RemoteParticipant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  *Location `json:"location,omitempty"`
	IsReady   bool      `json:"isReady"`
	IsSharing bool      `json:"isSharing"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// SessionSnapshot is the remote session document. It mirrors MeetingState
// with participants keyed by id.
type SessionSnapshot struct {
	Code         string                       `json:"code"`
	CreatedAt    time.Time                    `json:"createdAt"`
	Active       bool                         `json:"active"`
	Participants map[string]RemoteParticipant `json:"participants"`
	MeetingPoint *Location                    `json:"meetingPoint,omitempty"`
	Destination  *Location                    `json:"destination,omitempty"`

	// Removed maps participant ids dropped from the session to when.
	Removed map[string]time.Time `json:"removed,omitempty"`
}

// SessionUpdate is a snapshot as published on the change feed. Origin
// identifies the publishing bridge so it can drop its own echoes.
type SessionUpdate struct {
	Origin   string          `json:"origin"`
	Snapshot SessionSnapshot `json:"snapshot"`
}
