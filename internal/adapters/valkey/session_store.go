package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/Xombi17/MEETease/internal/core/domain"
)

const (
	fieldCreatedAt    = "createdAt"
	fieldActive       = "active"
	fieldMeetingPoint = "meetingPoint"
	fieldDestination  = "destination"
	participantPrefix = "participant:"
	locationPrefix    = "location:"
	removedPrefix     = "removed:"
)

// SessionKey is the hash holding a session document.
func SessionKey(code string) string {
	return "meetease:session:" + code
}

// SessionStore implements ports.SessionDocumentStore as one hash per
// session. Every write refreshes the TTL.
type SessionStore struct {
	client valkey.Client
	ttl    time.Duration
}

func NewSessionStore(client valkey.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, code string, createdAt time.Time) error {
	return s.hset(ctx, code,
		fieldCreatedAt, createdAt.UTC().Format(time.RFC3339Nano),
		fieldActive, "true",
	)
}

func (s *SessionStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(SessionKey(code)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", code, err)
	}
	return n > 0, nil
}

// PutParticipant stores the profile only; the location lives in its own field.
func (s *SessionStore) PutParticipant(ctx context.Context, code string, p domain.RemoteParticipant) error {
	p.Location = nil
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.hdel(ctx, code, removedPrefix+p.ID); err != nil {
		return err
	}
	return s.hset(ctx, code, participantPrefix+p.ID, string(data))
}

// RemoveParticipant writes the removal marker before dropping the fields, so
// a concurrent read never sees the participant gone without the marker.
func (s *SessionStore) RemoveParticipant(ctx context.Context, code, participantID string, removedAt time.Time) error {
	if err := s.hset(ctx, code, removedPrefix+participantID, removedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return s.hdel(ctx, code, participantPrefix+participantID, locationPrefix+participantID)
}

func (s *SessionStore) PutLocation(ctx context.Context, code, participantID string, loc domain.Location) error {
	return s.putLocation(ctx, code, locationPrefix+participantID, loc)
}

func (s *SessionStore) PutMeetingPoint(ctx context.Context, code string, loc domain.Location) error {
	return s.putLocation(ctx, code, fieldMeetingPoint, loc)
}

func (s *SessionStore) PutDestination(ctx context.Context, code string, loc domain.Location) error {
	return s.putLocation(ctx, code, fieldDestination, loc)
}

// Snapshot reads the whole document. A missing session yields (nil, nil).
func (s *SessionStore) Snapshot(ctx context.Context, code string) (*domain.SessionSnapshot, error) {
	fields, err := s.client.Do(ctx, s.client.B().Hgetall().Key(SessionKey(code)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", code, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return DecodeSnapshot(code, fields)
}

func (s *SessionStore) putLocation(ctx context.Context, code, field string, loc domain.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.hset(ctx, code, field, string(data))
}

func (s *SessionStore) hset(ctx context.Context, code string, kv ...string) error {
	key := SessionKey(code)
	cmd := s.client.B().Hset().Key(key).FieldValue()
	for i := 0; i+1 < len(kv); i += 2 {
		cmd = cmd.FieldValue(kv[i], kv[i+1])
	}

	for _, resp := range s.client.DoMulti(ctx,
		cmd.Build(),
		s.client.B().Expire().Key(key).Seconds(int64(s.ttl/time.Second)).Build(),
	) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("hset %s: %w", code, err)
		}
	}
	return nil
}

func (s *SessionStore) hdel(ctx context.Context, code string, fields ...string) error {
	cmd := s.client.B().Hdel().Key(SessionKey(code)).Field(fields...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("hdel %s: %w", code, err)
	}
	return nil
}

// DecodeSnapshot builds a SessionSnapshot from the raw hash fields.
// Malformed entries are skipped.
func DecodeSnapshot(code string, fields map[string]string) (*domain.SessionSnapshot, error) {
	snap := &domain.SessionSnapshot{
		Code:         code,
		Participants: make(map[string]domain.RemoteParticipant),
	}

	for field, value := range fields {
		switch {
		case field == fieldCreatedAt:
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("session %s: createdAt: %w", code, err)
			}
			snap.CreatedAt = t
		case field == fieldActive:
			snap.Active, _ = strconv.ParseBool(value)
		case field == fieldMeetingPoint:
			snap.MeetingPoint = decodeLocation(value)
		case field == fieldDestination:
			snap.Destination = decodeLocation(value)
		case strings.HasPrefix(field, participantPrefix):
			id := strings.TrimPrefix(field, participantPrefix)
			var p domain.RemoteParticipant
			if err := json.Unmarshal([]byte(value), &p); err != nil {
				continue
			}
			cur := snap.Participants[id]
			p.ID = id
			p.Location, p.IsReady = cur.Location, cur.IsReady
			snap.Participants[id] = p
		case strings.HasPrefix(field, locationPrefix):
			id := strings.TrimPrefix(field, locationPrefix)
			loc := decodeLocation(value)
			if loc == nil {
				continue
			}
			p := snap.Participants[id]
			p.ID = id
			p.Location = loc
			p.IsReady = true
			snap.Participants[id] = p
		case strings.HasPrefix(field, removedPrefix):
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				continue
			}
			if snap.Removed == nil {
				snap.Removed = make(map[string]time.Time)
			}
			snap.Removed[strings.TrimPrefix(field, removedPrefix)] = t
		}
	}
	for id := range snap.Removed {
		delete(snap.Participants, id)
	}
	return snap, nil
}

func decodeLocation(value string) *domain.Location {
	var loc domain.Location
	if err := json.Unmarshal([]byte(value), &loc); err != nil {
		return nil
	}
	if loc.Validate() != nil {
		return nil
	}
	return &loc
}
