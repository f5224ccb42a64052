package appointments_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/appointments"
	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/platform/webtest"
	"github.com/fixline-ai/fixline/internal/state"
)

type fakeBackend struct {
	list  []backend.Appointment
	calls int
}

func (f *fakeBackend) Appointments(ctx context.Context, storeID int64) ([]backend.Appointment, error) {
	f.calls++
	return f.list, nil
}

var bookings = []backend.Appointment{
	{ID: 1, CustomerPhone: "+1 555 0101", ServiceName: "Screen repair", Status: "PENDING"},
	{ID: 2, CustomerPhone: "+1 555 0102", ServiceName: "Battery swap", Status: "CONFIRMED"},
	{ID: 3, CustomerPhone: "+1 555 0103", ServiceName: "Water damage", Status: "CANCELED"},
	{ID: 4, CustomerPhone: "+1 555 0104", ServiceName: "Diagnostics", Status: "RESCHEDULED"},
}

func newRouter(t *testing.T, be appointments.Backend) (http.Handler, *webtest.Env) {
	t.Helper()
	env := webtest.New(t)
	h := appointments.NewHandler(env.Logger, func(*state.Provider) appointments.Backend { return be }, env.Responder, "https://book.fixline.test/")
	r := chi.NewRouter()
	r.Route("/appointments", h.MountRoutes)
	return r, env
}

func TestSummarizeTreatsUnknownAsPending(t *testing.T) {
	list := make([]appointments.Appointment, 0, len(bookings))
	for _, b := range bookings {
		list = append(list, appointments.Adapt(b))
	}
	assert.Equal(t, appointments.Stats{Total: 4, Pending: 2, Confirmed: 1}, appointments.Summarize(list))
	assert.Equal(t, "-", list[0].Date)
}

func TestAppointmentsFilterKeepsStats(t *testing.T) {
	be := &fakeBackend{list: bookings}
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.Staff(12))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/appointments?status=confirmed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Battery swap")
	assert.NotContains(t, body, "Screen repair")
	assert.Contains(t, body, "https://book.fixline.test/book?store=12")
	assert.Contains(t, body, `<strong class="card-value">4</strong>`)
}

func TestAppointmentsEmptyFilter(t *testing.T) {
	router, env := newRouter(t, &fakeBackend{list: bookings[:1]})
	b := env.Browser(t, webtest.Staff(12))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/appointments?status=canceled", nil))
	assert.Contains(t, rec.Body.String(), "No appointments found")
}

func TestAppointmentsBlockWithoutStore(t *testing.T) {
	be := &fakeBackend{list: bookings}
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/appointments", nil))
	assert.Contains(t, rec.Body.String(), "Please select a store")
	assert.Zero(t, be.calls)
}
