// Package calls serves the call log screen.
package calls

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Backend lists call logs.
type Backend interface {
	CallLogs(ctx context.Context, storeID int64, filter backend.CallLogFilter) ([]backend.CallLog, error)
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

// Option is a filter choice.
type Option struct {
	Value string
	Label string
}

// Filter choices offered by the call log screen.
var (
	TypeOptions = []Option{
		{Value: "all", Label: "All Type"},
		{Value: "ai-resolved", Label: "AI Resolved"},
		{Value: "warm-transfer", Label: "Warm Transfer"},
		{Value: "dropped", Label: "Dropped"},
	}
	IssueOptions = []Option{
		{Value: "all", Label: "All Issues"},
		{Value: "screen", Label: "Screen"},
		{Value: "battery", Label: "Battery"},
		{Value: "software", Label: "Software"},
	}
	DateOptions = []Option{
		{Value: "", Label: "Any Date"},
		{Value: "today", Label: "Today"},
		{Value: "week", Label: "Past Week"},
		{Value: "month", Label: "Monthly"},
	}
)

// Handler wires the call log screen.
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

// MountRoutes registers call routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCalls)
}

type filterForm struct {
	Search   string
	CallType string
	Issue    string
	Date     string
}

func parseFilter(q url.Values) filterForm {
	f := filterForm{
		Search:   strings.TrimSpace(q.Get("search")),
		CallType: pick(TypeOptions, q.Get("call_type"), "all"),
		Issue:    pick(IssueOptions, q.Get("issue"), "all"),
		Date:     pick(DateOptions, q.Get("date"), ""),
	}
	return f
}

// backendFilter drops the "all" choices, which the backend expects absent.
func (f filterForm) backendFilter() backend.CallLogFilter {
	out := backend.CallLogFilter{Search: f.Search, Date: f.Date}
	if f.CallType != "all" {
		out.CallType = f.CallType
	}
	if f.Issue != "all" {
		out.Issue = f.Issue
	}
	return out
}

func (f filterForm) key() string {
	v := url.Values{}
	v.Set("search", f.Search)
	v.Set("call_type", f.CallType)
	v.Set("issue", f.Issue)
	v.Set("date", f.Date)
	return v.Encode()
}

type pageData struct {
	Filter   filterForm
	Types    []Option
	Issues   []Option
	Dates    []Option
	Loaded   bool
	Calls    []Call
	Selected *Call
	Query    template.URL
}

func (h *Handler) listCalls(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	filter := parseFilter(r.URL.Query())
	be := h.connect(state.FromContext(r.Context()))
	snap, err := screen.Open(r.Context(), "calls", screen.Key{StoreID: storeID, Params: filter.key()}, func(ctx context.Context, key screen.Key) ([]Call, error) {
		list, err := be.CallLogs(ctx, key.StoreID, filter.backendFilter())
		if err != nil {
			return nil, shared.NewSafeError("Failed to load call logs", err)
		}
		out := make([]Call, 0, len(list))
		for _, c := range list {
			out = append(out, Adapt(c))
		}
		return out, nil
	})
	if err != nil {
		h.responder.Fail(w, r, err, "/dashboard")
		return
	}
	if snap.Err != nil && !h.responder.Toast(w, r, snap.Err) {
		return
	}

	data := pageData{
		Filter: filter,
		Types:  TypeOptions,
		Issues: IssueOptions,
		Dates:  DateOptions,
		Loaded: snap.HasData,
		Calls:  snap.Data,
		Query:  template.URL(filter.key()),
	}
	data.Selected = selectCall(snap.Data, r.URL.Query().Get("call"))
	h.responder.Render(w, r, "pages/calls.html", "Call Logs", data, http.StatusOK)
}

// selectCall returns the call named by id, falling back to the first call.
func selectCall(list []Call, id string) *Call {
	if len(list) == 0 {
		return nil
	}
	if want, err := strconv.ParseInt(id, 10, 64); err == nil {
		for i := range list {
			if list[i].ID == want {
				return &list[i]
			}
		}
	}
	return &list[0]
}

func pick(options []Option, value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, opt := range options {
		if opt.Value == value {
			return value
		}
	}
	return def
}
