// Package appointments serves the store's booked appointments.
package appointments

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Backend lists appointments.
type Backend interface {
	Appointments(ctx context.Context, storeID int64) ([]backend.Appointment, error)
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

// Display statuses. Unknown backend values count as pending.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// Filters offered above the list.
var Filters = []string{"all", StatusPending, StatusConfirmed, StatusCanceled}

// Appointment is a booking shaped for display.
type Appointment struct {
	ID      int64
	Phone   string
	Service string
	Status  string
	Date    string
	Time    string
}

// Adapt converts a backend appointment.
func Adapt(a backend.Appointment) Appointment {
	out := Appointment{ID: a.ID, Phone: a.CustomerPhone, Service: a.ServiceName, Status: StatusPending, Date: "-", Time: "-"}
	switch strings.ToUpper(a.Status) {
	case "CONFIRMED":
		out.Status = StatusConfirmed
	case "CANCELED", "CANCELLED":
		out.Status = StatusCanceled
	}
	if a.ScheduledAt != nil && !a.ScheduledAt.IsZero() {
		out.Date = a.ScheduledAt.Format("Jan 2, 2006")
		out.Time = a.ScheduledAt.Format("03:04 PM")
	}
	return out
}

// Stats are the counters above the list.
type Stats struct {
	Total     int
	Pending   int
	Confirmed int
}

// Summarize counts every appointment regardless of the active filter.
func Summarize(list []Appointment) Stats {
	s := Stats{Total: len(list)}
	for _, a := range list {
		switch a.Status {
		case StatusPending:
			s.Pending++
		case StatusConfirmed:
			s.Confirmed++
		}
	}
	return s
}

// Handler wires the appointments screen.
type Handler struct {
	logger      *slog.Logger
	connect     Connector
	responder   *view.Responder
	bookingHost string
}

// NewHandler constructs a Handler. bookingHost is the public booking site,
// for example "book.fixline.ai".
func NewHandler(logger *slog.Logger, connect Connector, responder *view.Responder, bookingHost string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	host := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(bookingHost, "https://"), "http://"), "/")
	return &Handler{logger: logger, connect: connect, responder: responder, bookingHost: host}
}

// MountRoutes registers appointment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAppointments)
}

type pageData struct {
	Filter       string
	Filters      []string
	Loaded       bool
	Stats        Stats
	Appointments []Appointment
	BookingURL   string
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	be := h.connect(state.FromContext(r.Context()))
	snap, err := screen.Open(r.Context(), "appointments", screen.Key{StoreID: storeID}, func(ctx context.Context, key screen.Key) ([]Appointment, error) {
		list, err := be.Appointments(ctx, key.StoreID)
		if err != nil {
			return nil, shared.NewSafeError("Failed to load appointments", err)
		}
		out := make([]Appointment, 0, len(list))
		for _, a := range list {
			out = append(out, Adapt(a))
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

	filter := strings.ToLower(r.URL.Query().Get("status"))
	if !validFilter(filter) {
		filter = "all"
	}
	data := pageData{
		Filter:     filter,
		Filters:    Filters,
		Loaded:     snap.HasData,
		Stats:      Summarize(snap.Data),
		BookingURL: fmt.Sprintf("https://%s/book?store=%d", h.bookingHost, storeID),
	}
	for _, a := range snap.Data {
		if filter == "all" || a.Status == filter {
			data.Appointments = append(data.Appointments, a)
		}
	}
	h.responder.Render(w, r, "pages/appointments.html", "Appointments", data, http.StatusOK)
}

func validFilter(f string) bool {
	for _, v := range Filters {
		if v == f {
			return true
		}
	}
	return false
}
