// Package stores serves the super admin store picker.
package stores

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Backend lists the stores visible to the signed in user.
type Backend interface {
	Stores(ctx context.Context) ([]state.Store, error)
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

// Auditor records store switches.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires the store picker.
type Handler struct {
	logger    *slog.Logger
	connect   Connector
	responder *view.Responder
	audit     Auditor
}

// NewHandler constructs a Handler. audit may be nil.
func NewHandler(logger *slog.Logger, connect Connector, responder *view.Responder, audit Auditor) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, connect: connect, responder: responder, audit: audit}
}

// MountRoutes registers store routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showStores)
	r.Post("/select", h.selectStore)
}

type storesPageData struct {
	Stores   []state.Store
	Selected int64
	Next     string
}

func (h *Handler) showStores(w http.ResponseWriter, r *http.Request) {
	p := state.FromContext(r.Context())
	list, err := h.connect(p).Stores(r.Context())
	if err != nil {
		if !h.responder.Toast(w, r, err) {
			return
		}
	}
	data := storesPageData{Stores: list, Next: safeNext(r.URL.Query().Get("next"))}
	if store := p.SelectedStore(); store != nil {
		data.Selected = store.ID
	}
	h.responder.Render(w, r, "pages/stores.html", "Select Store Location", data, http.StatusOK)
}

func (h *Handler) selectStore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	p := state.FromContext(ctx)
	id, err := strconv.ParseInt(r.PostFormValue("store_id"), 10, 64)
	if err != nil || id <= 0 {
		h.responder.Redirect(w, r, "/stores", shared.FlashError, "Choose a store from the list")
		return
	}
	list, err := h.connect(p).Stores(ctx)
	if err != nil {
		h.responder.Fail(w, r, err, "/stores")
		return
	}
	var chosen *state.Store
	for i := range list {
		if list[i].ID == id {
			chosen = &list[i]
			break
		}
	}
	if chosen == nil {
		h.responder.Redirect(w, r, "/stores", shared.FlashError, "That store is no longer available")
		return
	}

	var from *int64
	if prev, ok := p.ActiveStoreID(); ok {
		from = &prev
	}
	if err := p.SelectStore(ctx, *chosen); err != nil {
		h.logger.Error("select store", slog.Any("error", err))
	}
	h.record(ctx, p, chosen.ID, from)

	target := safeNext(r.PostFormValue("next"))
	if target == "" {
		target = "/dashboard"
	}
	h.responder.Redirect(w, r, target, shared.FlashSuccess, "Now managing "+chosen.Name)
}

func (h *Handler) record(ctx context.Context, p *state.Provider, storeID int64, from *int64) {
	if h.audit == nil {
		return
	}
	user := p.User()
	if user == nil {
		return
	}
	meta := map[string]any{}
	if from != nil {
		meta["from_store"] = *from
	}
	if err := h.audit.Record(ctx, shared.AuditLog{
		ActorID:   user.ID,
		ActorRole: string(p.Role()),
		Action:    shared.AuditStoreSelect,
		StoreID:   &storeID,
		Meta:      meta,
	}); err != nil {
		h.logger.Warn("audit store switch", slog.Any("error", err))
	}
}

func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
