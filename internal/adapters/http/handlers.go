package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/usecases"
)

// minReadyForCalculation is how many located participants a client-triggered
// calculation needs.
const minReadyForCalculation = 2

type addParticipantRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	ID   string `json:"id" validate:"omitempty,max=64"`
}

type locationRequest struct {
	Lat     *float64 `json:"lat" validate:"required,latitude"`
	Lng     *float64 `json:"lng" validate:"required,longitude"`
	Address string   `json:"address" validate:"max=256"`
}

func (r locationRequest) location() domain.Location {
	return domain.Location{Lat: *r.Lat, Lng: *r.Lng, Address: strings.TrimSpace(r.Address)}
}

type directionsRequest struct {
	DurationSeconds int    `json:"durationSeconds" validate:"gte=0"`
	DistanceMeters  int    `json:"distanceMeters" validate:"gte=0"`
	Text            string `json:"text" validate:"max=256"`
}

type settingsRequest struct {
	PreferOpenProvider *bool `json:"preferOpenProvider" validate:"required"`
}

// bind parses and validates a JSON body. When it reports false the 400
// response has already been written and the handler must return err.
func bind(c *fiber.Ctx, deps *Dependencies, out any) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, errBadRequest(c, "invalid request body")
	}
	if err := deps.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return false, errBadRequest(c, fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()))
		}
		return false, errBadRequest(c, err.Error())
	}
	return true, nil
}

func lookupSession(c *fiber.Ctx, deps *Dependencies) (*usecases.MeetingStore, error) {
	return deps.Sessions.Get(c.UserContext(), c.Params("code"))
}

// CreateSessionHandler allocates a new session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code, store, err := deps.Sessions.Create(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/sessions/" + code)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"code":  code,
			"state": store.Snapshot(),
		})
	}
}

// GetSessionHandler returns the full MeetingState.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(store.Snapshot())
	}
}

// AddParticipantHandler adds a participant; a duplicate name returns the
// existing one.
func AddParticipantHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req addParticipantRequest
		if ok, err := bind(c, deps, &req); !ok {
			return err
		}
		if strings.TrimSpace(req.Name) == "" {
			return errBadRequest(c, "name must not be blank")
		}
		p := store.AddParticipant(req.Name, req.ID)
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// RemoveParticipantHandler drops a participant.
func RemoveParticipantHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := store.RemoveParticipant(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// UpdateLocationHandler replaces a participant's location.
func UpdateLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req locationRequest
		if ok, err := bind(c, deps, &req); !ok {
			return err
		}
		id := c.Params("id")
		if err := store.UpdateParticipantLocation(id, req.location()); err != nil {
			return errFromDomain(c, err)
		}
		p, _ := store.Participant(id)
		return c.JSON(p)
	}
}

// ToggleSharingHandler flips live location sharing.
func ToggleSharingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		sharing, err := store.ToggleSharing(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"isSharing": sharing})
	}
}

// UpdateDirectionsHandler stores a route summary for a participant.
func UpdateDirectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req directionsRequest
		if ok, err := bind(c, deps, &req); !ok {
			return err
		}
		id := c.Params("id")
		summary := domain.DirectionsSummary{
			DurationSeconds: req.DurationSeconds,
			DistanceMeters:  req.DistanceMeters,
			Text:            req.Text,
		}
		if err := store.UpdateDirections(id, summary); err != nil {
			return errFromDomain(c, err)
		}
		p, _ := store.Participant(id)
		return c.JSON(p)
	}
}

// SetDestinationHandler sets the common destination.
func SetDestinationHandler(deps *Dependencies) fiber.Handler {
	return setLocationField(deps, (*usecases.MeetingStore).SetDestination)
}

// SetMeetingPointHandler sets the meeting point by hand.
func SetMeetingPointHandler(deps *Dependencies) fiber.Handler {
	return setLocationField(deps, (*usecases.MeetingStore).SetMeetingPoint)
}

func setLocationField(deps *Dependencies, set func(*usecases.MeetingStore, domain.Location) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req locationRequest
		if ok, err := bind(c, deps, &req); !ok {
			return err
		}
		if err := set(store, req.location()); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(store.Snapshot())
	}
}

// CalculateMeetingPointHandler runs meeting point resolution.
func CalculateMeetingPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		if n := len(store.Snapshot().ReadyParticipants()); n < minReadyForCalculation {
			return errUnprocessable(c, "insufficient_participants",
				fmt.Sprintf("need at least %d participants with a location, have %d", minReadyForCalculation, n))
		}

		loc, err := store.CalculateMeetingPoint(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"meetingPoint": loc,
			"approximate":  loc.Address == domain.AddressApproximate,
		})
	}
}

// UpdateSettingsHandler replaces the session settings.
func UpdateSettingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req settingsRequest
		if ok, err := bind(c, deps, &req); !ok {
			return err
		}
		settings := domain.Settings{PreferOpenProvider: *req.PreferOpenProvider}
		store.UpdateSettings(settings)
		return c.JSON(settings)
	}
}
