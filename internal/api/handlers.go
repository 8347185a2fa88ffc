package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/analytics"
	"github.com/savegress/investdash/internal/dashboard"
	"github.com/savegress/investdash/internal/logger"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *dashboard.Registry
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandlers creates new handlers
func NewHandlers(registry *dashboard.Registry, hub *Hub, log zerolog.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are enforced by the CORS layer and the token
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "investdash",
		"sessions": h.registry.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// session returns the caller's controller, creating and loading it on the
// first request of the user.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*dashboard.Controller, bool) {
	c, _, ok := h.openSession(w, r)
	return c, ok
}

// openSession is session that also reports whether the controller was created,
// and therefore loaded, by this request.
func (h *Handlers) openSession(w http.ResponseWriter, r *http.Request) (*dashboard.Controller, bool, bool) {
	profile, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthenticated")
		return nil, false, false
	}
	c, created := h.registry.GetOrCreate(profile.ID)
	if created {
		h.hub.Watch(profile.ID, c)
		log := logger.FromContext(r.Context())
		log.Info().Str("user_id", profile.ID).Msg("dashboard session created")
	}
	c.SetUser(r.Context(), &profile)
	return c, created, true
}

// Session handlers

// GetSnapshot returns the session state and summary figures
func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, c.Snapshot())
}

// Refresh reloads the caller's records from the backend
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	c, created, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if created {
		respond(w, http.StatusOK, c.Snapshot())
		return
	}
	snap, err := c.Refresh(r.Context())
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respond(w, http.StatusOK, snap)
}

// SetDate selects the chart reference day. An empty date selects today.
func (h *Handlers) SetDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	c, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, c.SetDate(date))
}

// SetTimeline selects the distribution timeline
func (h *Handlers) SetTimeline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timeline string `json:"timeline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tl, err := analytics.ParseTimeline(req.Timeline)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, c.SetTimeline(tl))
}

// Logout resets and drops the caller's session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	profile, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	existed := h.registry.Drop(profile.ID)
	h.hub.Unwatch(profile.ID)
	respond(w, http.StatusOK, map[string]interface{}{
		"status":  "logged_out",
		"session": existed,
	})
}

// Spend handlers

// GetSpend returns successful investment spend for a month. Year and month
// default to the selected date.
func (h *Handlers) GetSpend(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	ref := c.Reference()

	year, err := intParam(r, "year", ref.Year())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := intParam(r, "month", int(ref.Month()))
	if err != nil || month < 1 || month > 12 {
		respondError(w, http.StatusBadRequest, "Invalid month")
		return
	}

	snap := c.Snapshot()
	records := snap.Records()
	respond(w, http.StatusOK, map[string]interface{}{
		"year":      year,
		"month":     month,
		"spent":     analytics.SpendForMonth(records, year, time.Month(month), ref.Location()),
		"withdrawn": analytics.WithdrawnForMonth(records, year, time.Month(month), ref.Location()),
	})
}

// GetSpendChange returns the month-over-month spend change in percent
func (h *Handlers) GetSpendChange(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	ref := c.Reference()
	respond(w, http.StatusOK, map[string]interface{}{
		"reference":     ref.Format("2006-01-02"),
		"percentChange": analytics.PercentChange(c.Snapshot().Records(), ref),
	})
}

// GetSpendTrend returns the trailing monthly spend series
func (h *Handlers) GetSpendTrend(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	months, err := intParam(r, "months", c.TrailingMonths())
	if err != nil || months < 1 || months > 120 {
		respondError(w, http.StatusBadRequest, "Invalid months")
		return
	}
	respond(w, http.StatusOK, analytics.TrailingMonths(c.Snapshot().Records(), c.Reference(), months))
}

// Revenue handlers

// GetWeeklyRevenue returns the weekly investments, withdrawals and ROI chart
func (h *Handlers) GetWeeklyRevenue(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	weeks, err := intParam(r, "weeks", c.WeeklyWindow())
	if err != nil || weeks < 1 || weeks > 104 {
		respondError(w, http.StatusBadRequest, "Invalid weeks")
		return
	}
	snap := c.Snapshot()
	respond(w, http.StatusOK, analytics.WeeklySeries(snap.Records(), snap.ROI, c.Reference(), weeks))
}

// Distribution handlers

// GetDistribution returns the portfolio share per company for the selected
// timeline with legend visibility.
func (h *Handlers) GetDistribution(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	snap := c.Snapshot()
	shares := analytics.Distribution(snap.Records(), snap.Timeline, c.Reference())
	respond(w, http.StatusOK, map[string]interface{}{
		"timeline": snap.Timeline,
		"entries":  c.Legend().Entries(shares),
	})
}

// ToggleLegend flips the visibility of one company in the distribution legend
func (h *Handlers) ToggleLegend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "Missing name")
		return
	}
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"visible": c.Legend().Toggle(name),
	})
}

// Websocket

// ServeWS upgrades the connection and streams the caller's snapshots
func (h *Handlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	profile, _ := UserFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString(), profile.ID, c)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	// the request context ends with the handler, the pumps outlive it
	go client.WritePump(h.hub.context())
	go client.ReadPump(h.hub.context())
}

// Helper functions

func intParam(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
