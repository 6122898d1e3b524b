package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Xombi17/MEETease/internal/app"
	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/usecases"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session and print its code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := connect()
		if err != nil {
			return err
		}
		defer b.Close()

		code, err := b.Bridge(loaded).CreateSession(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	},
}

var joinOpts struct {
	code      string
	name      string
	id        string
	lat, lng  float64
	calculate bool
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a session, share a location and follow updates",
	Long: `
join adds you to a session, publishes your location and prints the merged
meeting state as JSON after every change until interrupted.

$ meetease join --code KQMTRA --name Asha --lat 19.0760 --lng 72.8777
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		loc := domain.Location{Lat: joinOpts.lat, Lng: joinOpts.lng}
		if err := loc.Validate(); err != nil {
			return err
		}

		b, err := connect()
		if err != nil {
			return err
		}
		defer b.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bridge := b.Bridge(loaded)
		code := usecases.NormalizeSessionCode(joinOpts.code)
		exists, err := bridge.Exists(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("session %s: %w", code, domain.ErrSessionNotFound)
		}

		selfID := joinOpts.id
		if selfID == "" {
			selfID = uuid.NewString()
		}

		resolver := app.Resolver(loaded, app.Providers(loaded, b.CacheService()))
		store := usecases.NewMeetingStore(resolver, app.DefaultSettings(loaded))

		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")
		updates := make(chan struct{}, 1)
		unsubscribe := store.Subscribe(func(usecases.Change) {
			select {
			case updates <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		detach, err := bridge.Attach(ctx, code, store, selfID)
		if err != nil {
			return err
		}
		defer detach()

		if err := joinAs(store, joinOpts.name, selfID, loc); err != nil {
			return fmt.Errorf("session %s: %w", code, err)
		}

		if joinOpts.calculate {
			if _, err := store.CalculateMeetingPoint(ctx); err != nil && !errors.Is(err, domain.ErrInsufficientParticipants) {
				return err
			}
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-updates:
				if err := out.Encode(store.Snapshot()); err != nil {
					return err
				}
			}
		}
	},
}

var errNameTaken = errors.New("name is already taken")

// joinAs adds the local user under selfID and publishes their location. A
// name held by another participant id is refused; rejoining with the same id
// is allowed.
func joinAs(store *usecases.MeetingStore, name, selfID string, loc domain.Location) error {
	me := store.AddParticipant(name, selfID)
	if me.ID != selfID {
		return fmt.Errorf("%q: %w", name, errNameTaken)
	}
	return store.UpdateParticipantLocation(selfID, loc)
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&joinOpts.code, "code", "", "session code")
	f.StringVar(&joinOpts.name, "name", "", "display name")
	f.StringVar(&joinOpts.id, "id", "", "participant id (default: random)")
	f.Float64Var(&joinOpts.lat, "lat", 0, "latitude")
	f.Float64Var(&joinOpts.lng, "lng", 0, "longitude")
	f.BoolVar(&joinOpts.calculate, "calculate", false, "resolve a meeting point after joining")
	for _, name := range []string{"code", "name", "lat", "lng"} {
		_ = joinCmd.MarkFlagRequired(name)
	}
}
