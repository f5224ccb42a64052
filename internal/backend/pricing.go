package backend

import (
	"context"
	"net/http"
	"net/url"
)

// Categories lists the repair categories.
func (c *Conn) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.do(ctx, request{name: "services.categories", method: http.MethodGet, path: "/api/v1/services/categories/"}, &out)
	return out, err
}

// Brands lists brands, narrowed to a category when categoryID is set.
func (c *Conn) Brands(ctx context.Context, categoryID int64) ([]Brand, error) {
	q := url.Values{}
	if categoryID > 0 {
		q.Set("category", formatID(categoryID))
	}
	var out []Brand
	err := c.do(ctx, request{name: "services.brands", method: http.MethodGet, path: "/api/v1/services/brands/", query: q}, &out)
	return out, err
}

// DeviceModels lists models, narrowed to a brand when brandID is set.
func (c *Conn) DeviceModels(ctx context.Context, brandID int64) ([]DeviceModel, error) {
	q := url.Values{}
	if brandID > 0 {
		q.Set("brand", formatID(brandID))
	}
	var out []DeviceModel
	err := c.do(ctx, request{name: "services.device_models", method: http.MethodGet, path: "/api/v1/services/device-models/", query: q}, &out)
	return out, err
}

// RepairTypes lists the repair types.
func (c *Conn) RepairTypes(ctx context.Context) ([]RepairType, error) {
	var out []RepairType
	err := c.do(ctx, request{name: "services.repair_types", method: http.MethodGet, path: "/api/v1/services/repair-types/"}, &out)
	return out, err
}

// PriceList lists the prices of a store.
func (c *Conn) PriceList(ctx context.Context, storeID int64, filter PriceFilter) ([]PriceItem, error) {
	q := url.Values{"store": {formatID(storeID)}}
	for key, id := range map[string]int64{
		"category":     filter.Category,
		"brand":        filter.Brand,
		"device_model": filter.DeviceModel,
		"repair_type":  filter.RepairType,
	} {
		if id > 0 {
			q.Set(key, formatID(id))
		}
	}
	var out []PriceItem
	err := c.do(ctx, request{name: "services.price_list", method: http.MethodGet, path: "/api/v1/services/price-list/", query: q}, &out)
	return out, err
}

// CreatePrice adds a price row to a store's list.
func (c *Conn) CreatePrice(ctx context.Context, storeID int64, price NewPrice) error {
	q := url.Values{"store": {formatID(storeID)}}
	return c.do(ctx, request{name: "services.price_create", method: http.MethodPost, path: "/api/v1/services/price-list/", query: q, body: price}, nil)
}

// UpdatePrice patches one price row.
func (c *Conn) UpdatePrice(ctx context.Context, storeID, priceID int64, patch PricePatch) error {
	q := url.Values{"store": {formatID(storeID)}}
	return c.do(ctx, request{
		name:   "services.price_update",
		method: http.MethodPatch,
		path:   idPath("/api/v1/services/price-list/%d/", priceID),
		query:  q,
		body:   patch,
	}, nil)
}
