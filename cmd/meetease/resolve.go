package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Xombi17/MEETease/internal/app"
	"github.com/Xombi17/MEETease/internal/core/domain"
)

var resolveOpts struct {
	points      []string
	destination string
	commercial  bool
	cache       bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a meeting point for a set of coordinates",
	Long: `
resolve runs meeting point resolution without a session. Each --point is a
"lat,lng" pair.

$ meetease resolve --point 19.0760,72.8777 --point 19.1136,72.8697
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		participants := make([]domain.Participant, 0, len(resolveOpts.points))
		for i, raw := range resolveOpts.points {
			p, err := parsePoint(raw)
			if err != nil {
				return fmt.Errorf("--point %q: %w", raw, err)
			}
			loc := domain.LocationAt(p)
			participants = append(participants, domain.Participant{
				ID:       strconv.Itoa(i + 1),
				Location: &loc,
				IsReady:  true,
			})
		}

		var destination *domain.Location
		if resolveOpts.destination != "" {
			p, err := parsePoint(resolveOpts.destination)
			if err != nil {
				return fmt.Errorf("--destination %q: %w", resolveOpts.destination, err)
			}
			loc := domain.LocationAt(p)
			destination = &loc
		}

		var backends *app.Backends
		if resolveOpts.cache {
			backends = app.ConnectBackends(loaded, serviceName)
			defer backends.Close()
		} else {
			backends = &app.Backends{}
		}

		resolver := app.Resolver(loaded, app.Providers(loaded, backends.CacheService()))
		settings := domain.Settings{PreferOpenProvider: !resolveOpts.commercial}

		loc, err := resolver.Resolve(cmd.Context(), participants, destination, settings.ProviderOrder(), nil)
		if err != nil {
			return err
		}

		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")
		return out.Encode(loc)
	},
}

func init() {
	f := resolveCmd.Flags()
	f.StringArrayVar(&resolveOpts.points, "point", nil, "participant location as lat,lng (repeatable)")
	f.StringVar(&resolveOpts.destination, "destination", "", "common destination as lat,lng")
	f.BoolVar(&resolveOpts.commercial, "commercial-first", false, "try the commercial provider before the open one")
	f.BoolVar(&resolveOpts.cache, "cache", false, "use the Valkey geocode cache")
	_ = resolveCmd.MarkFlagRequired("point")
}

// parsePoint reads a "lat,lng" pair.
func parsePoint(raw string) (domain.Point, error) {
	latStr, lngStr, ok := strings.Cut(raw, ",")
	if !ok {
		return domain.Point{}, fmt.Errorf("%w: expected lat,lng", domain.ErrInvalidCoordinates)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinates, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("%w: %v", domain.ErrInvalidCoordinates, err)
	}
	p := domain.Point{Lat: lat, Lng: lng}
	return p, p.Validate()
}
