package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/Xombi17/MEETease/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the session manager.
// Field names follow the JSON tags of the domain types so the default
// resolver can read them directly.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"lat":           &graphql.Field{Type: graphql.Float},
			"lng":           &graphql.Field{Type: graphql.Float},
			"address":       &graphql.Field{Type: graphql.String},
			"timestamp":     &graphql.Field{Type: graphql.Float, Description: "Epoch milliseconds"},
			"participantId": &graphql.Field{Type: graphql.String},
		},
	})

	directionsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DirectionsSummary",
		Fields: graphql.Fields{
			"durationSeconds": &graphql.Field{Type: graphql.Int},
			"distanceMeters":  &graphql.Field{Type: graphql.Int},
			"text":            &graphql.Field{Type: graphql.String},
		},
	})

	participantType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Participant",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"location":   &graphql.Field{Type: locationType},
			"isReady":    &graphql.Field{Type: graphql.Boolean},
			"isSharing":  &graphql.Field{Type: graphql.Boolean},
			"directions": &graphql.Field{Type: directionsType},
		},
	})

	settingsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Settings",
		Fields: graphql.Fields{
			"preferOpenProvider": &graphql.Field{Type: graphql.Boolean},
		},
	})

	stateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MeetingState",
		Fields: graphql.Fields{
			"participants": &graphql.Field{Type: graphql.NewList(participantType)},
			"meetingPoint": &graphql.Field{Type: locationType},
			"destination":  &graphql.Field{Type: locationType},
			"settings":     &graphql.Field{Type: settingsType},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"code":  &graphql.Field{Type: graphql.String},
			"state": &graphql.Field{Type: stateType},
		},
	})

	codeArg := graphql.FieldConfigArgument{
		"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        stateType,
				Description: "Current state of a session",
				Args:        codeArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					store, err := deps.Sessions.Get(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					return store.Snapshot(), nil
				},
			},
			"sessionCodes": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Codes of the sessions held by this instance",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Codes(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createSession": &graphql.Field{
				Type: sessionType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					code, store, err := deps.Sessions.Create(p.Context)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{"code": code, "state": store.Snapshot()}, nil
				},
			},
			"addParticipant": &graphql.Field{
				Type: participantType,
				Args: graphql.FieldConfigArgument{
					"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"id":   &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					store, err := deps.Sessions.Get(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					name := p.Args["name"].(string)
					if name == "" {
						return nil, fmt.Errorf("name must not be empty")
					}
					id, _ := p.Args["id"].(string)
					return store.AddParticipant(name, id), nil
				},
			},
			"updateLocation": &graphql.Field{
				Type: participantType,
				Args: graphql.FieldConfigArgument{
					"code":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"id":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"address": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					store, err := deps.Sessions.Get(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					id := p.Args["id"].(string)
					address, _ := p.Args["address"].(string)
					loc := domain.Location{
						Lat:     p.Args["lat"].(float64),
						Lng:     p.Args["lng"].(float64),
						Address: address,
					}
					if err := store.UpdateParticipantLocation(id, loc); err != nil {
						return nil, err
					}
					participant, _ := store.Participant(id)
					return participant, nil
				},
			},
			"calculateMeetingPoint": &graphql.Field{
				Type:        locationType,
				Description: "Resolve a meeting point for the located participants",
				Args:        codeArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					store, err := deps.Sessions.Get(p.Context, p.Args["code"].(string))
					if err != nil {
						return nil, err
					}
					if n := len(store.Snapshot().ReadyParticipants()); n < minReadyForCalculation {
						return nil, fmt.Errorf("%w: need at least %d, have %d",
							domain.ErrInsufficientParticipants, minReadyForCalculation, n)
					}
					return store.CalculateMeetingPoint(p.Context)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			loggerFor(c).Debug("graphql errors", "errors", result.Errors)
		}
		return c.JSON(result)
	}
}
