package usecases

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/ports"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
	"github.com/Xombi17/MEETease/internal/pkg/metrics"
	"github.com/Xombi17/MEETease/internal/pkg/telemetry"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 6
	codeAttempts = 5

	outboxSize  = 256
	pushTimeout = 10 * time.Second
)

// SyncBridge mirrors local Store mutations to a remote session document and
// merges remote snapshots back. With no remote backend configured every
// operation is a no-op and the Store keeps working locally.
type SyncBridge struct {
	docs   ports.SessionDocumentStore
	feed   ports.SessionFeed
	origin string
	tracer trace.Tracer
}

// NewSyncBridge creates a bridge. Either dependency may be nil, which
// disables remote sync.
func NewSyncBridge(docs ports.SessionDocumentStore, feed ports.SessionFeed) *SyncBridge {
	return &SyncBridge{
		docs:   docs,
		feed:   feed,
		origin: uuid.NewString(),
		tracer: telemetry.Tracer(telemetry.ScopeSync),
	}
}

// Enabled reports whether a remote backend is configured.
func (b *SyncBridge) Enabled() bool {
	return b != nil && b.docs != nil && b.feed != nil
}

// Origin is the id stamped on every update this bridge publishes.
func (b *SyncBridge) Origin() string { return b.origin }

// CreateSession allocates a fresh session code and creates its remote
// document. When sync is disabled the code is still returned for local use.
func (b *SyncBridge) CreateSession(ctx context.Context) (string, error) {
	if !b.Enabled() {
		return GenerateSessionCode()
	}

	ctx, span := b.tracer.Start(ctx, "sync.CreateSession")
	defer span.End()

	for i := 0; i < codeAttempts; i++ {
		code, err := GenerateSessionCode()
		if err != nil {
			return "", err
		}
		exists, err := b.docs.Exists(ctx, code)
		if err != nil {
			return "", b.fail(span, "create", err)
		}
		if exists {
			continue
		}
		if err := b.docs.Create(ctx, code, time.Now().UTC()); err != nil {
			return "", b.fail(span, "create", err)
		}
		span.SetAttributes(attribute.String("session", code))
		metrics.SyncPushes.WithLabelValues("create", "ok").Inc()
		return code, b.publish(ctx, code)
	}
	return "", fmt.Errorf("create session: no free code after %d attempts", codeAttempts)
}

// Exists reports whether a remote session document exists for code.
func (b *SyncBridge) Exists(ctx context.Context, code string) (bool, error) {
	if !b.Enabled() {
		return false, domain.ErrSyncUnreachable
	}
	ok, err := b.docs.Exists(ctx, code)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrSyncUnreachable, err)
	}
	return ok, nil
}

// Fetch reads the current remote session document.
func (b *SyncBridge) Fetch(ctx context.Context, code string) (*domain.SessionSnapshot, error) {
	if !b.Enabled() {
		return nil, domain.ErrSyncUnreachable
	}
	snap, err := b.docs.Snapshot(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSyncUnreachable, err)
	}
	return snap, nil
}

// JoinSession writes the participant's profile into the remote document.
func (b *SyncBridge) JoinSession(ctx context.Context, code, id, name string) error {
	return b.push(ctx, "join", code, func(ctx context.Context) error {
		return b.docs.PutParticipant(ctx, code, domain.RemoteParticipant{
			ID:       id,
			Name:     name,
			JoinedAt: time.Now().UTC(),
		})
	})
}

// PushRemoval drops a participant from the remote document.
func (b *SyncBridge) PushRemoval(ctx context.Context, code, id string) error {
	return b.push(ctx, "remove", code, func(ctx context.Context) error {
		return b.docs.RemoveParticipant(ctx, code, id, time.Now().UTC())
	})
}

// PushLocation writes a participant's location into the remote document.
func (b *SyncBridge) PushLocation(ctx context.Context, code, id string, loc domain.Location) error {
	loc.ParticipantID = id
	return b.push(ctx, "location", code, func(ctx context.Context) error {
		return b.docs.PutLocation(ctx, code, id, loc)
	})
}

// PushMeetingPoint writes the meeting point into the remote document.
func (b *SyncBridge) PushMeetingPoint(ctx context.Context, code string, loc domain.Location) error {
	return b.push(ctx, "meeting_point", code, func(ctx context.Context) error {
		return b.docs.PutMeetingPoint(ctx, code, loc)
	})
}

// PushDestination writes the destination into the remote document.
func (b *SyncBridge) PushDestination(ctx context.Context, code string, loc domain.Location) error {
	return b.push(ctx, "destination", code, func(ctx context.Context) error {
		return b.docs.PutDestination(ctx, code, loc)
	})
}

// Subscribe delivers every remote snapshot of the session that was not
// published by this bridge.
func (b *SyncBridge) Subscribe(ctx context.Context, code string, onRemoteChange func(domain.SessionSnapshot)) (func(), error) {
	if !b.Enabled() {
		return func() {}, domain.ErrSyncUnreachable
	}
	unsub, err := b.feed.Subscribe(ctx, code, func(u domain.SessionUpdate) {
		if u.Origin == b.origin {
			return
		}
		onRemoteChange(u.Snapshot)
	})
	if err != nil {
		return func() {}, fmt.Errorf("%w: %v", domain.ErrSyncUnreachable, err)
	}
	return unsub, nil
}

// Attach binds a Store to the remote session. Local mutations are pushed by
// a single worker in mutation order; remote snapshots are merged with
// ApplySnapshot. selfID names the local user whose location is never
// overwritten from remote; it may be empty. The returned detach func stops
// both directions and waits for the worker to drain.
func (b *SyncBridge) Attach(ctx context.Context, code string, store *MeetingStore, selfID string) (func(), error) {
	logger := logging.FromContext(ctx).With("session", code)
	if !b.Enabled() {
		logger.Debug("remote sync disabled", "error", domain.ErrSyncUnreachable)
		return func() {}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	outbox := make(chan Change, outboxSize)

	var mu sync.Mutex
	closed := false
	cancelStore := store.Subscribe(func(c Change) {
		if c.Origin == OriginRemote {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case outbox <- c:
		default:
			logger.Warn("sync outbox full, dropping change", "kind", c.Kind)
			metrics.SyncPushes.WithLabelValues(string(c.Kind), "dropped").Inc()
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range outbox {
			if err := b.pushChange(ctx, code, c); err != nil {
				logger.Warn("sync push failed", "kind", c.Kind, "error", err)
			}
		}
	}()

	if snap, err := b.Fetch(ctx, code); err != nil {
		logger.Warn("initial session fetch failed", "error", err)
	} else if snap != nil {
		ApplySnapshot(store, *snap, selfID)
	}

	unsub, err := b.Subscribe(ctx, code, func(snap domain.SessionSnapshot) {
		ApplySnapshot(store, snap, selfID)
	})
	if err != nil {
		logger.Warn("session feed unavailable, continuing local-only", "error", err)
	}

	return func() {
		unsub()
		cancelStore()
		mu.Lock()
		closed = true
		close(outbox)
		mu.Unlock()
		<-done
		cancel()
	}, nil
}

// ApplySnapshot merges a remote snapshot into store: meeting point and
// destination overwrite when present, removed participants are dropped, and
// every other participant except selfID has its location overwritten, being
// added first if unknown.
func ApplySnapshot(store *MeetingStore, snap domain.SessionSnapshot, selfID string) {
	if snap.MeetingPoint != nil {
		store.ApplyRemoteMeetingPoint(*snap.MeetingPoint)
	}
	if snap.Destination != nil {
		store.ApplyRemoteDestination(*snap.Destination)
	}

	for id := range snap.Removed {
		if id != selfID {
			store.ApplyRemoteRemoval(id)
		}
	}

	remote := make([]domain.RemoteParticipant, 0, len(snap.Participants))
	for id, rp := range snap.Participants {
		if _, removed := snap.Removed[id]; removed || id == selfID {
			continue
		}
		if rp.ID == "" {
			rp.ID = id
		}
		remote = append(remote, rp)
	}
	sort.Slice(remote, func(i, j int) bool {
		if !remote[i].JoinedAt.Equal(remote[j].JoinedAt) {
			return remote[i].JoinedAt.Before(remote[j].JoinedAt)
		}
		return remote[i].ID < remote[j].ID
	})
	for _, rp := range remote {
		store.ApplyRemoteParticipant(rp)
	}
	metrics.SyncSnapshotsApplied.Inc()
}

func (b *SyncBridge) pushChange(ctx context.Context, code string, c Change) error {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	switch c.Kind {
	case ChangeParticipantAdded:
		return b.JoinSession(ctx, code, c.ParticipantID, c.Participant.Name)
	case ChangeParticipantRemoved:
		return b.PushRemoval(ctx, code, c.ParticipantID)
	case ChangeLocation:
		return b.PushLocation(ctx, code, c.ParticipantID, *c.Location)
	case ChangeMeetingPoint:
		return b.PushMeetingPoint(ctx, code, *c.Location)
	case ChangeDestination:
		return b.PushDestination(ctx, code, *c.Location)
	}
	return nil
}

func (b *SyncBridge) push(ctx context.Context, kind, code string, write func(context.Context) error) error {
	if !b.Enabled() {
		return domain.ErrSyncUnreachable
	}

	ctx, span := b.tracer.Start(ctx, "sync.push", trace.WithAttributes(
		attribute.String("session", code),
		attribute.String("kind", kind),
	))
	defer span.End()

	if err := write(ctx); err != nil {
		return b.fail(span, kind, err)
	}
	metrics.SyncPushes.WithLabelValues(kind, "ok").Inc()
	return b.publish(ctx, code)
}

// publish reads the document back and broadcasts it on the change feed.
func (b *SyncBridge) publish(ctx context.Context, code string) error {
	snap, err := b.docs.Snapshot(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: read back: %v", domain.ErrSyncUnreachable, err)
	}
	if snap == nil {
		return nil
	}
	if err := b.feed.Publish(ctx, code, domain.SessionUpdate{Origin: b.origin, Snapshot: *snap}); err != nil {
		return fmt.Errorf("%w: publish: %v", domain.ErrSyncUnreachable, err)
	}
	return nil
}

func (b *SyncBridge) fail(span trace.Span, kind string, err error) error {
	metrics.SyncPushes.WithLabelValues(kind, "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, domain.ErrSyncUnreachable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrSyncUnreachable, kind, err)
}

// GenerateSessionCode returns a random six-letter session code.
func GenerateSessionCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
