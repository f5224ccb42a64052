package pricing

import (
	"net/url"
	"strconv"

	"github.com/fixline-ai/fixline/internal/backend"
)

// PerPage is the price list page size.
const PerPage = 10

// Filter is the price list query. Zero ids mean no constraint.
type Filter struct {
	Category   int64
	Brand      int64
	Model      int64
	RepairType int64
	Page       int
}

// ParseFilter reads a Filter from query values.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Category:   parseID(q.Get("category")),
		Brand:      parseID(q.Get("brand")),
		Model:      parseID(q.Get("model")),
		RepairType: parseID(q.Get("repair_type")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Category == 0 {
		f.Brand = 0
	}
	if f.Brand == 0 {
		f.Model = 0
	}
	return f
}

// Cascade clears a brand that does not belong to the chosen category and a
// model that does not belong to the chosen brand. A nil models list means the
// models are not loaded yet and leaves the model alone.
func (f Filter) Cascade(brands []backend.Brand, models []backend.DeviceModel) Filter {
	if f.Brand != 0 && !containsBrand(brands, f.Brand) {
		f.Brand = 0
		f.Model = 0
	}
	if f.Model != 0 && models != nil && !containsModel(models, f.Model) {
		f.Model = 0
	}
	return f
}

// Backend returns the backend filter.
func (f Filter) Backend() backend.PriceFilter {
	return backend.PriceFilter{Category: f.Category, Brand: f.Brand, DeviceModel: f.Model, RepairType: f.RepairType}
}

// Query encodes the filter without the page, for links that add one.
func (f Filter) Query() string {
	v := url.Values{}
	setID(v, "category", f.Category)
	setID(v, "brand", f.Brand)
	setID(v, "model", f.Model)
	setID(v, "repair_type", f.RepairType)
	return v.Encode()
}

func containsBrand(list []backend.Brand, id int64) bool {
	for _, b := range list {
		if b.ID == id {
			return true
		}
	}
	return false
}

func containsModel(list []backend.DeviceModel, id int64) bool {
	for _, m := range list {
		if m.ID == id {
			return true
		}
	}
	return false
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func setID(v url.Values, key string, id int64) {
	if id > 0 {
		v.Set(key, strconv.FormatInt(id, 10))
	}
}
