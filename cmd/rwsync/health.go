package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
	"github.com/rickgao/rainwave-sync/internal/poller"
	"github.com/rickgao/rainwave-sync/internal/version"
	"github.com/rickgao/rainwave-sync/internal/writer"
)

// healthReport is the body of the health endpoint.
type healthReport struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	Components map[string]any `json:"components"`
}

// components are the parts of the daemon that report health. Writer and
// poller are nil when disabled.
type components struct {
	manager *connection.Manager
	bus     *events.Bus
	writer  *writer.EventWriter
	poller  *poller.Poller
}

func (c components) report() healthReport {
	stats := c.manager.Stats()
	h := healthReport{
		Status:  statusFor(stats.State),
		Version: version.String(),
		Components: map[string]any{
			"connection": map[string]any{
				"state":             stats.State.String(),
				"queued":            stats.Queued,
				"in_flight":         stats.InFlight,
				"last_message_id":   stats.LastMessageID,
				"schedule_id":       stats.ScheduleID,
				"connects":          stats.Connects,
				"messages_received": stats.MessagesReceived,
			},
		},
	}

	bs := c.bus.Stats()
	h.Components["bus"] = map[string]any{
		"subscribers": bs.Subscribers,
		"delivered":   bs.Delivered,
	}

	if c.writer != nil {
		ws := c.writer.Stats()
		h.Components["writer"] = map[string]any{
			"inserts":   ws.Inserts,
			"conflicts": ws.Conflicts,
			"errors":    ws.Errors,
			"flushes":   ws.Flushes,
		}
		if ws.Errors > 0 && h.Status == "healthy" {
			h.Status = "degraded"
		}
	}
	if c.poller != nil {
		ps := c.poller.Stats()
		h.Components["poller"] = map[string]any{
			"cycles":  ps.Cycles,
			"fetched": ps.Fetched,
			"errors":  ps.Errors,
		}
	}
	return h
}

// statusFor maps engine state to a health status. Reconnecting is
// degraded, not down: the engine recovers on its own.
func statusFor(s connection.State) string {
	switch s {
	case connection.StateReady:
		return "healthy"
	case connection.StateConnecting, connection.StateAuthenticating, connection.StateReconnecting:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// createHealthHandler routes the full report at path and a single
// component at path/:component.
func createHealthHandler(path string, report func() healthReport) http.Handler {
	router := httprouter.New()

	router.GET(path, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h := report()

		w.Header().Set("Content-Type", "application/json")
		if h.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})

	router.GET(strings.TrimSuffix(path, "/")+"/:component", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		c, ok := report().Components[ps.ByName("component")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c)
	})

	return router
}
