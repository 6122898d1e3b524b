package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Xombi17/MEETease/internal/core/domain"
)

// Resolver is the part of MeetingPointResolver the store depends on.
type Resolver interface {
	Resolve(
		ctx context.Context,
		participants []domain.Participant,
		destination *domain.Location,
		providerOrder []domain.ProviderID,
		onProvisional func(domain.Location),
	) (domain.Location, error)
}

// ChangeKind identifies which part of the state a mutation replaced.
type ChangeKind string

const (
	ChangeParticipantAdded   ChangeKind = "participant_added"
	ChangeParticipantRemoved ChangeKind = "participant_removed"
	ChangeLocation           ChangeKind = "location"
	ChangeSharing            ChangeKind = "sharing"
	ChangeDirections         ChangeKind = "directions"
	ChangeMeetingPoint       ChangeKind = "meeting_point"
	ChangeDestination        ChangeKind = "destination"
	ChangeSettings           ChangeKind = "settings"
)

// Origin tells local mutations apart from ones merged from the remote session.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// Change describes one applied mutation. Participant and Location are copies.
type Change struct {
	Kind          ChangeKind
	Origin        Origin
	ParticipantID string
	Participant   *domain.Participant
	Location      *domain.Location
}

// MeetingStore is the authoritative in-memory MeetingState of one session.
// Every mutation replaces a whole field under the lock and is visible to the
// next read. Listeners run after the state lock is released, one mutation at
// a time and in mutation order; they must not mutate the store.
type MeetingStore struct {
	mu       sync.RWMutex
	state    domain.MeetingState
	resolver Resolver
	queued   []Change

	emitMu    sync.Mutex
	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

// NewMeetingStore creates an empty store. A nil resolver falls back to one
// without providers, which always yields the approximate center.
func NewMeetingStore(resolver Resolver, settings domain.Settings) *MeetingStore {
	if resolver == nil {
		resolver = NewMeetingPointResolver(nil, ResolverConfig{})
	}
	return &MeetingStore{
		state:     domain.MeetingState{Participants: []domain.Participant{}, Settings: settings},
		resolver:  resolver,
		listeners: make(map[int]func(Change)),
	}
}

// Subscribe registers a change listener and returns its cancel func.
func (s *MeetingStore) Subscribe(fn func(Change)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// Snapshot returns a deep copy of the current state.
func (s *MeetingStore) Snapshot() domain.MeetingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Participant returns a copy of one participant.
func (s *MeetingStore) Participant(id string) (domain.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.state.Participants[i].Clone(), true
	}
	return domain.Participant{}, false
}

// AddParticipant appends a participant. An empty id gets a fresh UUID.
// Adding a name that is already present, or an id that already exists, is a
// no-op returning the existing participant.
func (s *MeetingStore) AddParticipant(name, id string) domain.Participant {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	for _, p := range s.state.Participants {
		if p.Name == name || (id != "" && p.ID == id) {
			existing := p.Clone()
			s.mu.Unlock()
			return existing
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	p := domain.Participant{ID: id, Name: name}
	s.state.Participants = append(s.state.Participants, p)

	c := p.Clone()
	s.commit(Change{Kind: ChangeParticipantAdded, ParticipantID: id, Participant: &c})
	return p
}

// RemoveParticipant drops a participant.
func (s *MeetingStore) RemoveParticipant(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, domain.ErrParticipantNotFound)
	}
	removed := s.state.Participants[i].Clone()
	s.state.Participants = append(s.state.Participants[:i:i], s.state.Participants[i+1:]...)

	s.commit(Change{Kind: ChangeParticipantRemoved, ParticipantID: id, Participant: &removed})
	return nil
}

// UpdateParticipantLocation replaces the participant's location with loc,
// stamped with the current time, and marks the participant ready. Fields
// absent from loc are absent afterwards.
func (s *MeetingStore) UpdateParticipantLocation(id string, loc domain.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	loc.Timestamp = time.Now().UnixMilli()

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("update location of %q: %w", id, domain.ErrParticipantNotFound)
	}
	s.state.Participants[i].Location = &loc
	s.state.Participants[i].IsReady = true

	c := s.state.Participants[i].Clone()
	s.commit(Change{Kind: ChangeLocation, ParticipantID: id, Participant: &c, Location: c.Location})
	return nil
}

// ToggleSharing flips the participant's live-sharing flag and returns the new value.
func (s *MeetingStore) ToggleSharing(id string) (bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false, fmt.Errorf("toggle sharing of %q: %w", id, domain.ErrParticipantNotFound)
	}
	s.state.Participants[i].IsSharing = !s.state.Participants[i].IsSharing
	sharing := s.state.Participants[i].IsSharing

	c := s.state.Participants[i].Clone()
	s.commit(Change{Kind: ChangeSharing, ParticipantID: id, Participant: &c})
	return sharing, nil
}

// UpdateDirections stores an opaque route summary on a participant.
func (s *MeetingStore) UpdateDirections(id string, summary domain.DirectionsSummary) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("update directions of %q: %w", id, domain.ErrParticipantNotFound)
	}
	s.state.Participants[i].Directions = &summary

	c := s.state.Participants[i].Clone()
	s.commit(Change{Kind: ChangeDirections, ParticipantID: id, Participant: &c})
	return nil
}

// SetMeetingPoint replaces the meeting point.
func (s *MeetingStore) SetMeetingPoint(loc domain.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	s.setLocationField(ChangeMeetingPoint, OriginLocal, loc)
	return nil
}

// SetDestination replaces the destination.
func (s *MeetingStore) SetDestination(loc domain.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	s.setLocationField(ChangeDestination, OriginLocal, loc)
	return nil
}

// UpdateSettings replaces the session settings.
func (s *MeetingStore) UpdateSettings(settings domain.Settings) {
	s.mu.Lock()
	s.state.Settings = settings
	s.commit(Change{Kind: ChangeSettings})
}

// CalculateMeetingPoint resolves a meeting point from the current snapshot.
// The provisional center is stored first, then replaced by the resolved
// location. With no located participant it returns
// ErrInsufficientParticipants and leaves the state untouched.
func (s *MeetingStore) CalculateMeetingPoint(ctx context.Context) (domain.Location, error) {
	snap := s.Snapshot()

	loc, err := s.resolver.Resolve(ctx,
		snap.ReadyParticipants(),
		snap.Destination,
		snap.Settings.ProviderOrder(),
		func(provisional domain.Location) {
			s.setLocationField(ChangeMeetingPoint, OriginLocal, provisional)
		},
	)
	if err != nil {
		return domain.Location{}, err
	}

	s.setLocationField(ChangeMeetingPoint, OriginLocal, loc)
	return loc, nil
}

// ApplyRemoteMeetingPoint replaces the meeting point with a remote value.
func (s *MeetingStore) ApplyRemoteMeetingPoint(loc domain.Location) {
	s.setLocationField(ChangeMeetingPoint, OriginRemote, loc)
}

// ApplyRemoteDestination replaces the destination with a remote value.
func (s *MeetingStore) ApplyRemoteDestination(loc domain.Location) {
	s.setLocationField(ChangeDestination, OriginRemote, loc)
}

// ApplyRemoteRemoval drops a participant removed on another replica.
func (s *MeetingStore) ApplyRemoteRemoval(id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.commit(Change{})
		return
	}
	removed := s.state.Participants[i].Clone()
	s.state.Participants = append(s.state.Participants[:i:i], s.state.Participants[i+1:]...)

	s.commit(Change{Kind: ChangeParticipantRemoved, Origin: OriginRemote, ParticipantID: id, Participant: &removed})
}

// ApplyRemoteParticipant adds an unknown remote participant and replaces the
// participant's location with the remote one when present. The remote
// timestamp is kept as is. A remote location older than the local one is
// ignored, so a snapshot read before a local update still in flight cannot
// roll it back.
func (s *MeetingStore) ApplyRemoteParticipant(rp domain.RemoteParticipant) {
	s.mu.Lock()
	i := s.indexOf(rp.ID)
	if i < 0 {
		s.state.Participants = append(s.state.Participants, domain.Participant{ID: rp.ID, Name: rp.Name})
		i = len(s.state.Participants) - 1

		c := s.state.Participants[i].Clone()
		s.commitLocked(Change{Kind: ChangeParticipantAdded, Origin: OriginRemote, ParticipantID: rp.ID, Participant: &c})
	}

	cur := s.state.Participants[i].Location
	if rp.Location == nil || rp.Location.Validate() != nil || (cur != nil && (*cur == *rp.Location || rp.Location.Timestamp < cur.Timestamp)) {
		s.commit(Change{})
		return
	}
	loc := *rp.Location
	s.state.Participants[i].Location = &loc
	s.state.Participants[i].IsReady = true

	c := s.state.Participants[i].Clone()
	s.commit(Change{Kind: ChangeLocation, Origin: OriginRemote, ParticipantID: rp.ID, Participant: &c, Location: c.Location})
}

func (s *MeetingStore) setLocationField(kind ChangeKind, origin Origin, loc domain.Location) {
	s.mu.Lock()
	field := &s.state.MeetingPoint
	if kind == ChangeDestination {
		field = &s.state.Destination
	}
	if origin == OriginRemote && *field != nil && **field == loc {
		s.commit(Change{})
		return
	}
	*field = &loc

	c := loc
	s.commit(Change{Kind: kind, Origin: origin, Location: &c})
}

func (s *MeetingStore) indexOf(id string) int {
	for i, p := range s.state.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// commitLocked queues a change while s.mu is still held; it is delivered by
// the commit that ends the mutation.
func (s *MeetingStore) commitLocked(c Change) {
	s.queued = append(s.queued, c)
}

// commit ends a mutation: it must be called with s.mu held and releases it.
// A zero Change only flushes queued changes. Delivery is serialised by
// emitMu, taken before the state lock is released, so listeners observe
// changes in the order they were applied.
func (s *MeetingStore) commit(c Change) {
	changes := s.queued
	s.queued = nil
	if c.Kind != "" {
		changes = append(changes, c)
	}

	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	if len(changes) == 0 {
		return
	}

	s.lmu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
