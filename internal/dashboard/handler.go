// Package dashboard serves the store overview: summary cards and call trend.
package dashboard

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/chart"
	"github.com/fixline-ai/fixline/internal/platform/httpx"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

const screenName = "dashboard"

// Backend loads the dashboard counters.
type Backend interface {
	StoreSummary(ctx context.Context, storeID int64, rangeKey string) (backend.StoreSummary, error)
	CallTrends(ctx context.Context, storeID int64, rangeKey string) (backend.CallTrends, error)
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

// Overview is everything the dashboard shows for one store and range.
type Overview struct {
	Summary backend.StoreSummary `json:"summary"`
	Trends  backend.CallTrends   `json:"trends"`
}

// RangeOption is one entry of the range picker.
type RangeOption struct {
	Value string
	Label string
}

// Ranges accepted by the backend, first is the default.
var Ranges = []RangeOption{
	{Value: "today", Label: "Today"},
	{Value: "this-week", Label: "This Week"},
	{Value: "this-month", Label: "This Month"},
	{Value: "this-year", Label: "This Year"},
}

// Handler wires dashboard endpoints.
type Handler struct {
	logger    *slog.Logger
	connect   Connector
	responder *view.Responder
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, connect Connector, responder *view.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, connect: connect, responder: responder}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showDashboard)
	r.Get("/summary.json", h.summaryJSON)
}

type card struct {
	Field string
	Title string
	Value string
	Tone  string
}

type pageData struct {
	Range      RangeOption
	Ranges     []RangeOption
	Loaded     bool
	Cards      []card
	TotalCalls int64
	Trend      template.HTML
	Outcomes   template.HTML
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	rng := parseRange(r.URL.Query().Get("range"))
	snap, err := h.open(r, storeID, rng.Value)
	if err != nil {
		h.responder.Fail(w, r, err, "/stores")
		return
	}
	if snap.Err != nil && !h.responder.Toast(w, r, snap.Err) {
		return
	}
	data := pageData{Range: rng, Ranges: Ranges, Loaded: snap.HasData}
	if snap.HasData {
		h.decorate(&data, snap.Data)
	}
	h.responder.Render(w, r, "pages/dashboard.html", "Dashboard", data, http.StatusOK)
}

type summaryResponse struct {
	Status string    `json:"status"`
	Range  string    `json:"range"`
	Store  int64     `json:"store_id"`
	Data   *Overview `json:"data,omitempty"`
	Error  string    `json:"error,omitempty"`
}

func (h *Handler) summaryJSON(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	rng := parseRange(r.URL.Query().Get("range"))
	snap, err := h.open(r, storeID, rng.Value)
	if err != nil {
		h.responder.Fail(w, r, err, "/dashboard")
		return
	}
	if snap.Err != nil && !snap.HasData {
		h.responder.Fail(w, r, snap.Err, "/dashboard")
		return
	}
	resp := summaryResponse{Status: string(snap.Status), Range: rng.Value, Store: storeID}
	if snap.HasData {
		resp.Data = &snap.Data
	}
	if snap.Err != nil {
		resp.Error = view.Message(snap.Err)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) open(r *http.Request, storeID int64, rangeKey string) (screen.Snapshot[screen.Key, Overview], error) {
	be := h.connect(state.FromContext(r.Context()))
	return screen.Open(r.Context(), screenName, screen.Key{StoreID: storeID, Params: rangeKey}, func(ctx context.Context, key screen.Key) (Overview, error) {
		return load(ctx, be, key)
	})
}

// load fetches the summary and the trend concurrently.
func load(ctx context.Context, be Backend, key screen.Key) (Overview, error) {
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := be.StoreSummary(gctx, key.StoreID, key.Params)
		out.Summary = summary
		return err
	})
	g.Go(func() error {
		trends, err := be.CallTrends(gctx, key.StoreID, key.Params)
		out.Trends = trends
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, shared.NewSafeError("Failed to load dashboard data", err)
	}
	return out, nil
}

func (h *Handler) decorate(data *pageData, o Overview) {
	s := o.Summary
	avg := s.AvgCallDuration.String()
	if avg == "" {
		avg = "0"
	}
	data.Cards = []card{
		{Field: "total_calls", Title: "Total Calls", Value: view.Count(s.TotalCalls), Tone: "blue"},
		{Field: "ai_handled", Title: "AI-Handled Calls", Value: view.Count(s.AIHandled), Tone: "green"},
		{Field: "warm_transfers", Title: "Warm Transfers", Value: view.Count(s.WarmTransfers), Tone: "amber"},
		{Field: "appointments_booked", Title: "Appointments Booked", Value: view.Count(s.AppointmentsBooked), Tone: "violet"},
		{Field: "missed_calls", Title: "Missed Calls", Value: view.Count(s.MissedCalls), Tone: "red"},
		{Field: "avg_call_duration", Title: "Avg Call Duration", Value: avg, Tone: "cyan"},
	}
	data.TotalCalls = o.Trends.TotalCalls

	if len(o.Trends.Trend) > 0 {
		points := make([]chart.Point, 0, len(o.Trends.Trend))
		for _, p := range o.Trends.Trend {
			points = append(points, chart.Point{Label: p.Label, Value: float64(p.Calls)})
		}
		trend, err := chart.Line(points, chart.Opts{Title: "Call Trends", Description: "Calls per period for " + data.Range.Label})
		if err != nil {
			h.logger.Warn("render call trend", slog.Any("error", err))
		}
		data.Trend = trend
	}

	outcomes, err := chart.Bars([]chart.Point{
		{Label: "AI Handled", Value: float64(s.AIHandled)},
		{Label: "Transferred", Value: float64(s.WarmTransfers)},
		{Label: "Booked", Value: float64(s.AppointmentsBooked)},
		{Label: "Missed", Value: float64(s.MissedCalls)},
	}, chart.Opts{Title: "Call Outcomes", Height: 200})
	if err != nil {
		h.logger.Warn("render outcomes", slog.Any("error", err))
	}
	data.Outcomes = outcomes
}

func parseRange(value string) RangeOption {
	for _, opt := range Ranges {
		if opt.Value == value {
			return opt
		}
	}
	return Ranges[0]
}
