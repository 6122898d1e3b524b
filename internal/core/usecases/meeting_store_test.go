package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/usecases"
)

type recorder struct {
	mu      sync.Mutex
	changes []usecases.Change
}

func (r *recorder) record(c usecases.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) kinds() []usecases.ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]usecases.ChangeKind, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Kind)
	}
	return out
}

func newStore() *usecases.MeetingStore {
	return usecases.NewMeetingStore(nil, domain.DefaultSettings())
}

func TestMeetingStore_AddParticipant(t *testing.T) {
	s := newStore()

	alice := s.AddParticipant("Alice", "")
	require.NotEmpty(t, alice.ID)
	assert.Equal(t, "Alice", alice.Name)
	assert.False(t, alice.IsReady)

	again := s.AddParticipant("  Alice ", "")
	assert.Equal(t, alice.ID, again.ID, "duplicate name returns the existing participant")

	bob := s.AddParticipant("Bob", "fixed-id")
	assert.Equal(t, "fixed-id", bob.ID)

	sameID := s.AddParticipant("Robert", "fixed-id")
	assert.Equal(t, "Bob", sameID.Name)

	snap := s.Snapshot()
	require.Len(t, snap.Participants, 2)
	assert.Equal(t, "Alice", snap.Participants[0].Name)
	assert.Equal(t, "Bob", snap.Participants[1].Name)
}

func TestMeetingStore_UpdateParticipantLocation(t *testing.T) {
	s := newStore()
	p := s.AddParticipant("Alice", "")

	before := time.Now().UnixMilli()
	require.NoError(t, s.UpdateParticipantLocation(p.ID, domain.Location{Lat: 19.07, Lng: 72.87, Address: "Home"}))
	after := time.Now().UnixMilli()

	got, ok := s.Participant(p.ID)
	require.True(t, ok)
	require.NotNil(t, got.Location)
	assert.True(t, got.IsReady)
	assert.Equal(t, 19.07, got.Location.Lat)
	assert.Equal(t, "Home", got.Location.Address)
	assert.GreaterOrEqual(t, got.Location.Timestamp, before)
	assert.LessOrEqual(t, got.Location.Timestamp, after)

	// Whole-record replace: the address is gone when the new record lacks one.
	require.NoError(t, s.UpdateParticipantLocation(p.ID, domain.Location{Lat: 19.1, Lng: 72.9}))
	got, _ = s.Participant(p.ID)
	assert.Empty(t, got.Location.Address)
}

func TestMeetingStore_UpdateParticipantLocationErrors(t *testing.T) {
	s := newStore()
	p := s.AddParticipant("Alice", "")

	err := s.UpdateParticipantLocation("missing", domain.Location{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	err = s.UpdateParticipantLocation(p.ID, domain.Location{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinates)

	got, _ := s.Participant(p.ID)
	assert.Nil(t, got.Location)
	assert.False(t, got.IsReady)
}

func TestMeetingStore_RemoveParticipant(t *testing.T) {
	s := newStore()
	a := s.AddParticipant("Alice", "")
	b := s.AddParticipant("Bob", "")

	require.NoError(t, s.RemoveParticipant(a.ID))
	assert.ErrorIs(t, s.RemoveParticipant(a.ID), domain.ErrParticipantNotFound)

	snap := s.Snapshot()
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, b.ID, snap.Participants[0].ID)
}

func TestMeetingStore_SharingAndDirections(t *testing.T) {
	s := newStore()
	p := s.AddParticipant("Alice", "")

	on, err := s.ToggleSharing(p.ID)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := s.ToggleSharing(p.ID)
	require.NoError(t, err)
	assert.False(t, off)

	require.NoError(t, s.UpdateDirections(p.ID, domain.DirectionsSummary{DurationSeconds: 600, DistanceMeters: 4200}))
	got, _ := s.Participant(p.ID)
	require.NotNil(t, got.Directions)
	assert.Equal(t, 600, got.Directions.DurationSeconds)

	_, err = s.ToggleSharing("nope")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestMeetingStore_SnapshotIsACopy(t *testing.T) {
	s := newStore()
	p := s.AddParticipant("Alice", "")
	require.NoError(t, s.UpdateParticipantLocation(p.ID, domain.Location{Lat: 1, Lng: 2}))

	snap := s.Snapshot()
	snap.Participants[0].Location.Lat = 50
	snap.Participants[0].Name = "Mallory"

	got, _ := s.Participant(p.ID)
	assert.Equal(t, 1.0, got.Location.Lat)
	assert.Equal(t, "Alice", got.Name)
}

func TestMeetingStore_SetMeetingPointAndDestination(t *testing.T) {
	s := newStore()
	rec := &recorder{}
	s.Subscribe(rec.record)

	require.NoError(t, s.SetMeetingPoint(domain.Location{Lat: 1, Lng: 1, Address: "Here"}))
	require.NoError(t, s.SetDestination(domain.Location{Lat: 2, Lng: 2, Address: "There"}))
	assert.ErrorIs(t, s.SetDestination(domain.Location{Lat: 0, Lng: 200}), domain.ErrInvalidCoordinates)

	snap := s.Snapshot()
	require.NotNil(t, snap.MeetingPoint)
	require.NotNil(t, snap.Destination)
	assert.Equal(t, "Here", snap.MeetingPoint.Address)
	assert.Equal(t, "There", snap.Destination.Address)
	assert.Equal(t, []usecases.ChangeKind{usecases.ChangeMeetingPoint, usecases.ChangeDestination}, rec.kinds())
}

func TestMeetingStore_CalculateMeetingPoint(t *testing.T) {
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			return &domain.Location{Lat: c.Lat, Lng: c.Lng, Address: "Kala Ghoda Cafe"}, nil
		},
	}
	resolver := usecases.NewMeetingPointResolver(providers(open), usecases.ResolverConfig{})
	s := usecases.NewMeetingStore(resolver, domain.DefaultSettings())

	var addresses []string
	s.Subscribe(func(c usecases.Change) {
		if c.Kind == usecases.ChangeMeetingPoint {
			addresses = append(addresses, c.Location.Address)
		}
	})

	a := s.AddParticipant("A", "")
	b := s.AddParticipant("B", "")
	require.NoError(t, s.UpdateParticipantLocation(a.ID, domain.Location{Lat: 19.0, Lng: 72.8}))
	require.NoError(t, s.UpdateParticipantLocation(b.ID, domain.Location{Lat: 19.1, Lng: 72.9}))

	loc, err := s.CalculateMeetingPoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Kala Ghoda Cafe", loc.Address)
	assert.InDelta(t, 19.05, loc.Lat, 1e-9)
	assert.Equal(t, []string{domain.AddressCalculating, "Kala Ghoda Cafe"}, addresses)

	snap := s.Snapshot()
	require.NotNil(t, snap.MeetingPoint)
	assert.Equal(t, "Kala Ghoda Cafe", snap.MeetingPoint.Address)
}

func TestMeetingStore_CalculateWithoutLocations(t *testing.T) {
	s := newStore()
	s.AddParticipant("A", "")

	_, err := s.CalculateMeetingPoint(context.Background())
	assert.ErrorIs(t, err, domain.ErrInsufficientParticipants)
	assert.Nil(t, s.Snapshot().MeetingPoint)
}

func TestMeetingStore_CalculateUsesSettingsOrder(t *testing.T) {
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			return &domain.Location{Lat: 1, Lng: 1, Address: "open"}, nil
		},
	}
	commercial := &mockProvider{
		id: domain.ProviderCommercial,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			return &domain.Location{Lat: 1, Lng: 1, Address: "commercial"}, nil
		},
	}
	resolver := usecases.NewMeetingPointResolver(providers(open, commercial), usecases.ResolverConfig{})
	s := usecases.NewMeetingStore(resolver, domain.DefaultSettings())
	p := s.AddParticipant("A", "")
	require.NoError(t, s.UpdateParticipantLocation(p.ID, domain.Location{Lat: 1, Lng: 1}))

	s.UpdateSettings(domain.Settings{PreferOpenProvider: false})
	loc, err := s.CalculateMeetingPoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "commercial", loc.Address)
}

func TestMeetingStore_ApplyRemoteParticipant(t *testing.T) {
	s := newStore()
	rec := &recorder{}
	s.Subscribe(rec.record)

	remoteLoc := domain.Location{Lat: 3, Lng: 4, Timestamp: 1234}
	s.ApplyRemoteParticipant(domain.RemoteParticipant{ID: "r1", Name: "Remote", Location: &remoteLoc})

	got, ok := s.Participant("r1")
	require.True(t, ok)
	assert.Equal(t, "Remote", got.Name)
	require.NotNil(t, got.Location)
	assert.Equal(t, int64(1234), got.Location.Timestamp, "remote timestamp is kept")
	assert.True(t, got.IsReady)

	// Same value again produces no change.
	s.ApplyRemoteParticipant(domain.RemoteParticipant{ID: "r1", Name: "Remote", Location: &remoteLoc})
	assert.Equal(t, []usecases.ChangeKind{usecases.ChangeParticipantAdded, usecases.ChangeLocation}, rec.kinds())

	for _, c := range rec.changes {
		assert.Equal(t, usecases.OriginRemote, c.Origin)
	}
}

func TestMeetingStore_ApplyRemoteParticipantIgnoresOlderLocation(t *testing.T) {
	s := newStore()
	a := s.AddParticipant("A", "a")
	require.NoError(t, s.UpdateParticipantLocation(a.ID, domain.Location{Lat: 2, Lng: 2}))
	local, _ := s.Participant(a.ID)

	stale := domain.Location{Lat: 1, Lng: 1, Timestamp: local.Location.Timestamp - 1000}
	s.ApplyRemoteParticipant(domain.RemoteParticipant{ID: a.ID, Name: "A", Location: &stale})

	got, _ := s.Participant(a.ID)
	assert.Equal(t, 2.0, got.Location.Lat)

	newer := domain.Location{Lat: 3, Lng: 3, Timestamp: local.Location.Timestamp + 1000}
	s.ApplyRemoteParticipant(domain.RemoteParticipant{ID: a.ID, Name: "A", Location: &newer})

	got, _ = s.Participant(a.ID)
	assert.Equal(t, 3.0, got.Location.Lat)
}

func TestMeetingStore_ApplyRemoteRemoval(t *testing.T) {
	s := newStore()
	s.AddParticipant("Bob", "bob")
	rec := &recorder{}
	s.Subscribe(rec.record)

	s.ApplyRemoteRemoval("bob")
	s.ApplyRemoteRemoval("bob")

	_, ok := s.Participant("bob")
	assert.False(t, ok)
	require.Len(t, rec.changes, 1)
	assert.Equal(t, usecases.ChangeParticipantRemoved, rec.changes[0].Kind)
	assert.Equal(t, usecases.OriginRemote, rec.changes[0].Origin)
}

func TestMeetingStore_ApplyRemoteMeetingPointDeduplicates(t *testing.T) {
	s := newStore()
	rec := &recorder{}
	s.Subscribe(rec.record)

	mp := domain.Location{Lat: 1, Lng: 1, Address: "Gateway"}
	s.ApplyRemoteMeetingPoint(mp)
	s.ApplyRemoteMeetingPoint(mp)
	s.ApplyRemoteDestination(domain.Location{Lat: 2, Lng: 2})

	assert.Equal(t, []usecases.ChangeKind{usecases.ChangeMeetingPoint, usecases.ChangeDestination}, rec.kinds())
	assert.Equal(t, "Gateway", s.Snapshot().MeetingPoint.Address)
}

func TestMeetingStore_Unsubscribe(t *testing.T) {
	s := newStore()
	rec := &recorder{}
	cancel := s.Subscribe(rec.record)

	s.AddParticipant("A", "")
	cancel()
	s.AddParticipant("B", "")

	assert.Len(t, rec.kinds(), 1)
}

func TestMeetingStore_ConcurrentWrites(t *testing.T) {
	s := newStore()
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = s.AddParticipant(string(rune('A'+i)), "").ID
	}

	var count int
	var mu sync.Mutex
	s.Subscribe(func(usecases.Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = s.UpdateParticipantLocation(id, domain.Location{Lat: float64(i), Lng: float64(j)})
				_ = s.Snapshot()
			}
		}(i, id)
	}
	wg.Wait()

	assert.Equal(t, 200, count)
	assert.Len(t, s.Snapshot().ReadyParticipants(), 10)
}
