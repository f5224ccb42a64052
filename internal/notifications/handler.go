// Package notifications serves the store notification inbox and the unread
// badge of the top bar.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// PerPage is the inbox page size.
const PerPage = 10

// Backend is the notification surface of the backend API.
type Backend interface {
	Notifications(ctx context.Context, storeID int64, filter backend.NotificationFilter) ([]backend.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, storeID int64) error
	DeleteNotification(ctx context.Context, id int64) error
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

var categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// Filter is the inbox tab: all, read, unread or a lower case category.
type Filter string

// ParseFilter normalises the filter query value.
func ParseFilter(raw string) Filter {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "", raw == "all":
		return "all"
	case raw == "read", raw == "unread", categoryPattern.MatchString(raw):
		return Filter(raw)
	}
	return "all"
}

// Backend maps a tab onto the backend query. Category tabs ask for every
// status.
func (f Filter) Backend() backend.NotificationFilter {
	switch f {
	case "all":
		return backend.NotificationFilter{Status: "all"}
	case "read", "unread":
		return backend.NotificationFilter{Status: string(f)}
	}
	return backend.NotificationFilter{Status: "all", Category: strings.ToUpper(string(f))}
}

// Item is a notification shaped for display.
type Item struct {
	backend.Notification
	Unread   bool
	Category string
}

// Counts are the tab badges over the loaded list.
type Counts struct {
	All    int
	Read   int
	Unread int
}

// Handler wires notification endpoints.
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

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listNotifications)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
	r.Post("/{id}/dismiss", h.dismiss)
}

type pageData struct {
	Filter     Filter
	Categories []string
	Counts     Counts
	Loaded     bool
	Items      []Item
	Pagination shared.Pagination
	PagerBase  string
	Return     string
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	filter := ParseFilter(r.URL.Query().Get("filter"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	be := h.connect(state.FromContext(r.Context()))
	snap, err := screen.Open(r.Context(), "notifications", screen.Key{StoreID: storeID, Params: string(filter)}, func(ctx context.Context, key screen.Key) ([]Item, error) {
		list, err := be.Notifications(ctx, key.StoreID, Filter(key.Params).Backend())
		if err != nil {
			return nil, shared.NewSafeError("Failed to load notifications", err)
		}
		out := make([]Item, 0, len(list))
		for _, n := range list {
			out = append(out, Item{Notification: n, Unread: !n.IsRead, Category: strings.ToLower(n.Category)})
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

	items, pagination := shared.Paginate(snap.Data, page, PerPage)
	data := pageData{
		Filter:     filter,
		Categories: categories(snap.Data, filter),
		Counts:     count(snap.Data),
		Loaded:     snap.HasData,
		Items:      items,
		Pagination: pagination,
		PagerBase:  "/notifications?filter=" + string(filter) + "&",
		Return:     "/notifications?filter=" + string(filter) + "&page=" + strconv.Itoa(pagination.Page),
	}
	h.responder.Render(w, r, "pages/notifications.html", "Notifications", data, http.StatusOK)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Failed to mark as read", func(ctx context.Context, be Backend, _ int64, id int64) error {
		return be.MarkNotificationRead(ctx, id)
	})
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Delete failed", func(ctx context.Context, be Backend, _ int64, id int64) error {
		// already gone is dismissed
		if err := be.DeleteNotification(ctx, id); err != nil && !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		return nil
	})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Failed to mark notifications as read", func(ctx context.Context, be Backend, storeID int64, _ int64) error {
		return be.MarkAllNotificationsRead(ctx, storeID)
	})
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, failure string, fn func(ctx context.Context, be Backend, storeID, id int64) error) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	var id int64
	if raw := chi.URLParam(r, "id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			http.NotFound(w, r)
			return
		}
		id = parsed
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := r.PostFormValue("return")
	if !strings.HasPrefix(back, "/notifications") {
		back = "/notifications"
	}
	ctx := r.Context()
	if err := fn(ctx, h.connect(state.FromContext(ctx)), storeID, id); err != nil {
		h.responder.Fail(w, r, shared.NewSafeError(failure, err), back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func count(items []Item) Counts {
	c := Counts{All: len(items)}
	for _, it := range items {
		if it.Unread {
			c.Unread++
		} else {
			c.Read++
		}
	}
	return c
}

// categories lists the category tabs seen in items, keeping the active one.
func categories(items []Item, active Filter) []string {
	seen := map[string]bool{}
	for _, it := range items {
		if it.Category != "" {
			seen[it.Category] = true
		}
	}
	switch active {
	case "all", "read", "unread":
	default:
		seen[string(active)] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
