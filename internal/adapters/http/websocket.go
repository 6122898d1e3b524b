package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Xombi17/MEETease/internal/core/usecases"
	"github.com/Xombi17/MEETease/internal/pkg/metrics"
)

const (
	wsStoreKey   = "ws_session_store"
	wsPingPeriod = 30 * time.Second
)

// wsMessage is an optional client request.
type wsMessage struct {
	Action string `json:"action"` // "refresh"
}

// wsEnvelope wraps every server frame.
type wsEnvelope struct {
	Type  string `json:"type"` // "state" | "error"
	Code  string `json:"code,omitempty"`
	State any    `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// SessionWebSocketGuard resolves the session before the upgrade so unknown
// codes get a regular 404.
func SessionWebSocketGuard(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Locals(wsStoreKey, store)
		return c.Next()
	}
}

// SessionWebSocketHandler pushes the MeetingState after every store change.
// Bursts of changes are coalesced into one frame carrying the latest state.
func SessionWebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		store, ok := c.Locals(wsStoreKey).(*usecases.MeetingStore)
		if !ok {
			return
		}
		code := usecases.NormalizeSessionCode(c.Params("code"))
		log := slog.Default().With("session", code, "remote", c.RemoteAddr().String())
		log.Debug("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		dirty := make(chan struct{}, 1)
		markDirty := func() {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
		unsubscribe := store.Subscribe(func(usecases.Change) { markDirty() })
		defer unsubscribe()

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(wsPingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-dirty:
					if err := writeJSON(wsEnvelope{Type: "state", Code: code, State: store.Snapshot()}); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		markDirty()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEnvelope{Type: "error", Error: "invalid JSON"})
				continue
			}
			switch m.Action {
			case "refresh":
				markDirty()
			default:
				_ = writeJSON(wsEnvelope{Type: "error", Error: "unknown action: " + m.Action})
			}
		}

		close(done)
		wg.Wait()
		log.Debug("ws client disconnected")
	}
}
