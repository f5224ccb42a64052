package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/fixline-ai/fixline/internal/backend"
)

const (
	catalogVersionKey = "fixline:catalog:version"
	catalogPrefix     = "fixline:catalog"
	// BumpChannel carries catalog version bumps between instances.
	BumpChannel = "fixline.catalog.bump"
)

// CatalogSource loads the repair catalog from the backend.
type CatalogSource interface {
	Categories(ctx context.Context) ([]backend.Category, error)
	Brands(ctx context.Context, categoryID int64) ([]backend.Brand, error)
	DeviceModels(ctx context.Context, brandID int64) ([]backend.DeviceModel, error)
	RepairTypes(ctx context.Context) ([]backend.RepairType, error)
}

// Catalog caches the repair catalog in Redis under a global version so a
// single bump invalidates every entry. Concurrent misses share one backend
// call.
type Catalog struct {
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

// NewCatalog instantiates the cache. A nil client disables caching.
func NewCatalog(client redis.UniversalClient, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Catalog{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Catalog) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, catalogVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, catalogVersionKey).Int64()
	}
	return ver, err
}

// Categories lists every category.
func (c *Catalog) Categories(ctx context.Context, src CatalogSource) ([]backend.Category, error) {
	var out []backend.Category
	err := c.fetch(ctx, &out, func(ctx context.Context) (any, error) { return src.Categories(ctx) }, "categories")
	return out, err
}

// Brands lists the brands of a category. Entries the backend returns for
// other categories are dropped.
func (c *Catalog) Brands(ctx context.Context, src CatalogSource, categoryID int64) ([]backend.Brand, error) {
	if categoryID <= 0 {
		return nil, nil
	}
	var all []backend.Brand
	err := c.fetch(ctx, &all, func(ctx context.Context) (any, error) { return src.Brands(ctx, categoryID) }, "brands", strconv.FormatInt(categoryID, 10))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.Category.Int64() == categoryID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Models lists the device models of a brand, dropping strays.
func (c *Catalog) Models(ctx context.Context, src CatalogSource, brandID int64) ([]backend.DeviceModel, error) {
	if brandID <= 0 {
		return nil, nil
	}
	var all []backend.DeviceModel
	err := c.fetch(ctx, &all, func(ctx context.Context) (any, error) { return src.DeviceModels(ctx, brandID) }, "models", strconv.FormatInt(brandID, 10))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if m.Brand.Int64() == brandID {
			out = append(out, m)
		}
	}
	return out, nil
}

// RepairTypes lists every repair type.
func (c *Catalog) RepairTypes(ctx context.Context, src CatalogSource) ([]backend.RepairType, error) {
	var out []backend.RepairType
	err := c.fetch(ctx, &out, func(ctx context.Context) (any, error) { return src.RepairTypes(ctx) }, "repair-types")
	return out, err
}

func (c *Catalog) fetch(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := c.buildKey(ctx, parts...)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	raw, err, _ := c.sf().Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if c != nil && c.client != nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				return nil, err
			}
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

var nopGroup singleflight.Group

func (c *Catalog) sf() *singleflight.Group {
	if c == nil {
		return &nopGroup
	}
	return &c.group
}

func (c *Catalog) buildKey(ctx context.Context, parts ...string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d", catalogPrefix, strings.Join(parts, ":"), ver), nil
}

// Bump invalidates the cache by incrementing the version and announcing it.
func (c *Catalog) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, catalogVersionKey).Result()
	if err != nil {
		return 0, err
	}
	return ver, c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}
