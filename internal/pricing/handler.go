// Package pricing serves the store price list and its catalog filters.
package pricing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/rbac"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Price statuses.
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

const idempotencyScope = "pricing.create"

// Backend is the pricing surface of the backend API.
type Backend interface {
	CatalogSource
	PriceList(ctx context.Context, storeID int64, filter backend.PriceFilter) ([]backend.PriceItem, error)
	CreatePrice(ctx context.Context, storeID int64, price backend.NewPrice) error
	UpdatePrice(ctx context.Context, storeID, priceID int64, patch backend.PricePatch) error
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

// Idempotency guards form submissions against replays.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler wires price list endpoints.
type Handler struct {
	logger    *slog.Logger
	connect   Connector
	responder *view.Responder
	catalog   *Catalog
	idem      Idempotency
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler. idem may be nil.
func NewHandler(logger *slog.Logger, connect Connector, responder *view.Responder, catalog *Catalog, idem Idempotency, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		connect:   connect,
		responder: responder,
		catalog:   catalog,
		idem:      idem,
		rbac:      rbacMW,
		validator: validator.New(),
	}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles())
		r.Get("/", h.listPrices)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(rbac.Admins...))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createPrice)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(rbac.Managers...))
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.updatePrice)
		r.Post("/{id}/toggle", h.toggleStatus)
	})
}

// Row is one price list row shaped for display.
type Row struct {
	ID       int64
	Category string
	Brand    string
	Model    string
	Repair   string
	Price    string
	RawPrice string
	Status   string
	Active   bool
	Updated  string
}

func toRow(p backend.PriceItem) Row {
	row := Row{
		ID:       p.ID,
		Category: p.CategoryName,
		Brand:    p.BrandName,
		Model:    p.DeviceModelName,
		Repair:   p.RepairTypeName,
		Price:    view.Money(p.Price),
		RawPrice: p.Price.String(),
		Status:   p.Status,
		Active:   p.Status == StatusActive,
		Updated:  "-",
	}
	if p.UpdatedAt != nil && !p.UpdatedAt.IsZero() {
		row.Updated = p.UpdatedAt.UTC().Format("2006-01-02")
	}
	return row
}

type catalogView struct {
	Categories  []backend.Category
	Brands      []backend.Brand
	Models      []backend.DeviceModel
	RepairTypes []backend.RepairType
}

// loadCatalog fills the filter dropdowns and applies the cascade. Catalog
// failures are reported once and leave the dropdowns empty.
func (h *Handler) loadCatalog(w http.ResponseWriter, r *http.Request, src CatalogSource, f Filter) (catalogView, Filter, bool) {
	ctx := r.Context()
	var cv catalogView
	var errs []error
	var err error
	if cv.Categories, err = h.catalog.Categories(ctx, src); err != nil {
		errs = append(errs, err)
	}
	if cv.RepairTypes, err = h.catalog.RepairTypes(ctx, src); err != nil {
		errs = append(errs, err)
	}
	if cv.Brands, err = h.catalog.Brands(ctx, src, f.Category); err != nil {
		errs = append(errs, err)
	}
	f = f.Cascade(cv.Brands, nil)
	if cv.Models, err = h.catalog.Models(ctx, src, f.Brand); err != nil {
		errs = append(errs, err)
	} else if cv.Models == nil {
		cv.Models = []backend.DeviceModel{}
	}
	f = f.Cascade(cv.Brands, cv.Models)
	if len(errs) > 0 {
		if !h.responder.Toast(w, r, shared.NewSafeError("Failed to load the repair catalog", errors.Join(errs...))) {
			return cv, f, false
		}
	}
	return cv, f, true
}

type listPageData struct {
	Filter     Filter
	Catalog    catalogView
	Loaded     bool
	Rows       []Row
	Pagination shared.Pagination
	PagerBase  string
	CanAdd     bool
	CanEdit    bool
}

func (h *Handler) listPrices(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	p := state.FromContext(r.Context())
	be := h.connect(p)
	cv, filter, ok := h.loadCatalog(w, r, be, ParseFilter(r.URL.Query()))
	if !ok {
		return
	}
	snap, err := screen.Open(r.Context(), "pricing", screen.Key{StoreID: storeID, Params: filter.Query()}, func(ctx context.Context, key screen.Key) ([]backend.PriceItem, error) {
		list, err := be.PriceList(ctx, key.StoreID, filter.Backend())
		if err != nil {
			return nil, shared.NewSafeError("Failed to load pricing", err)
		}
		return list, nil
	})
	if err != nil {
		h.responder.Fail(w, r, err, "/dashboard")
		return
	}
	if snap.Err != nil && !h.responder.Toast(w, r, snap.Err) {
		return
	}

	items, pagination := shared.Paginate(snap.Data, filter.Page, PerPage)
	data := listPageData{
		Filter:     filter,
		Catalog:    cv,
		Loaded:     snap.HasData,
		Pagination: pagination,
		PagerBase:  "/pricing?" + withAmp(filter.Query()),
		CanAdd:     rbac.Allowed(p.Role(), rbac.Admins...),
		CanEdit:    rbac.Allowed(p.Role(), rbac.Managers...),
	}
	for _, item := range items {
		data.Rows = append(data.Rows, toRow(item))
	}
	h.responder.Render(w, r, "pages/pricing.html", "Pricing List", data, http.StatusOK)
}

type priceForm struct {
	Model      int64  `validate:"required,gt=0"`
	RepairType int64  `validate:"required,gt=0"`
	Price      string `validate:"required,numeric,excludesall=+-"`
	Status     string `validate:"oneof=ACTIVE DISABLED"`
}

var priceMessages = map[string]string{
	"Model.required":      "Select a device model",
	"Model.gt":            "Select a device model",
	"RepairType.required": "Select a repair type",
	"RepairType.gt":       "Select a repair type",
	"Price.required":      "Price is required",
	"Price.numeric":       "Price must be a number",
	"Price.excludesall":   "Price cannot be negative",
	"Status.oneof":        "Choose a valid status",
}

type formPageData struct {
	Filter         Filter
	Catalog        catalogView
	Form           priceForm
	Errors         map[string]string
	IdempotencyKey string
	Item           *Row
	Action         string
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.responder.ActiveStore(w, r); !ok {
		return
	}
	h.renderCreateForm(w, r, ParseFilter(r.URL.Query()), priceForm{Status: StatusActive}, nil, http.StatusOK)
}

func (h *Handler) renderCreateForm(w http.ResponseWriter, r *http.Request, f Filter, form priceForm, errs map[string]string, status int) {
	be := h.connect(state.FromContext(r.Context()))
	cv, f, ok := h.loadCatalog(w, r, be, f)
	if !ok {
		return
	}
	if form.Model == 0 {
		form.Model = f.Model
	}
	if form.RepairType == 0 {
		form.RepairType = f.RepairType
	}
	h.responder.Render(w, r, "pages/price_form.html", "Add Price", formPageData{
		Filter:         f,
		Catalog:        cv,
		Form:           form,
		Errors:         errs,
		IdempotencyKey: uuid.NewString(),
		Action:         "/pricing",
	}, status)
}

func (h *Handler) createPrice(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	filter := ParseFilter(r.PostForm)
	form := priceForm{
		Model:      parseID(r.PostFormValue("model")),
		RepairType: parseID(r.PostFormValue("repair_type")),
		Price:      strings.TrimSpace(r.PostFormValue("price")),
		Status:     strings.ToUpper(strings.TrimSpace(r.PostFormValue("status"))),
	}
	if form.Status == "" {
		form.Status = StatusActive
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.renderCreateForm(w, r, filter, form, errs, http.StatusBadRequest)
		return
	}

	key := strings.TrimSpace(r.PostFormValue(shared.IdempotencyFormField))
	if h.idem != nil && key != "" {
		if err := h.idem.CheckAndInsert(ctx, key, idempotencyScope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				h.responder.Redirect(w, r, "/pricing", shared.FlashInfo, "This price was already submitted")
				return
			}
			h.logger.Warn("idempotency check", slog.Any("error", err))
			key = ""
		}
	}

	err := h.connect(state.FromContext(ctx)).CreatePrice(ctx, storeID, backend.NewPrice{
		DeviceModel: form.Model,
		RepairType:  form.RepairType,
		Price:       form.Price,
		Status:      form.Status,
	})
	if err != nil {
		if h.idem != nil && key != "" {
			if derr := h.idem.Delete(ctx, key); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.responder.Fail(w, r, shared.NewSafeError("Failed to add price", err), "/pricing/new?"+filter.Query())
		return
	}
	h.responder.Redirect(w, r, "/pricing", shared.FlashSuccess, "Price added successfully")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	row, err := h.findRow(r, storeID)
	if err != nil {
		h.responder.Fail(w, r, err, "/pricing")
		return
	}
	h.responder.Render(w, r, "pages/price_form.html", "Edit Price", formPageData{
		Form:   priceForm{Price: row.RawPrice, Status: row.Status},
		Item:   &row,
		Action: "/pricing/" + strconv.FormatInt(row.ID, 10),
	}, http.StatusOK)
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	patch := backend.PricePatch{
		Price:  strings.TrimSpace(r.PostFormValue("price")),
		Status: strings.ToUpper(strings.TrimSpace(r.PostFormValue("status"))),
	}
	errs := h.validate(priceForm{Model: 1, RepairType: 1, Price: patch.Price, Status: patch.Status})
	if len(errs) > 0 {
		row, err := h.findRow(r, storeID)
		if err != nil {
			h.responder.Fail(w, r, err, "/pricing")
			return
		}
		h.responder.Render(w, r, "pages/price_form.html", "Edit Price", formPageData{
			Form:   priceForm{Price: patch.Price, Status: patch.Status},
			Errors: errs,
			Item:   &row,
			Action: "/pricing/" + strconv.FormatInt(row.ID, 10),
		}, http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if err := h.connect(state.FromContext(ctx)).UpdatePrice(ctx, storeID, id, patch); err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to update price", err), "/pricing")
		return
	}
	h.responder.Redirect(w, r, "/pricing", shared.FlashSuccess, "Price updated successfully")
}

func (h *Handler) toggleStatus(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	next := StatusActive
	if strings.EqualFold(r.PostFormValue("status"), StatusActive) {
		next = StatusDisabled
	}
	back := "/pricing"
	if q := r.PostFormValue("return"); strings.HasPrefix(q, "/pricing") {
		back = q
	}
	ctx := r.Context()
	if err := h.connect(state.FromContext(ctx)).UpdatePrice(ctx, storeID, id, backend.PricePatch{Status: next}); err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to update price status", err), back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// findRow looks the price up in the unfiltered store list; the backend has
// no single item endpoint.
func (h *Handler) findRow(r *http.Request, storeID int64) (Row, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return Row{}, backend.ErrNotFound
	}
	list, err := h.connect(state.FromContext(r.Context())).PriceList(r.Context(), storeID, backend.PriceFilter{})
	if err != nil {
		return Row{}, err
	}
	for _, item := range list {
		if item.ID == id {
			return toRow(item), nil
		}
	}
	return Row{}, backend.ErrNotFound
}

func (h *Handler) validate(form priceForm) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs[fe.Field()] = priceMessages[fe.Field()+"."+fe.Tag()]
			}
		}
	}
	return errs
}

func withAmp(q string) string {
	if q == "" {
		return ""
	}
	return q + "&"
}
