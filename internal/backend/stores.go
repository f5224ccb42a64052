package backend

import (
	"context"
	"net/http"

	"github.com/fixline-ai/fixline/internal/state"
)

// Stores lists every store visible to the signed in user.
func (c *Conn) Stores(ctx context.Context) ([]state.Store, error) {
	var out []state.Store
	err := c.do(ctx, request{name: "stores.list", method: http.MethodGet, path: "/api/v1/stores/"}, &out)
	return out, err
}

// AIBehavior loads a store's voice agent configuration. ErrNotFound means the
// store has none yet.
func (c *Conn) AIBehavior(ctx context.Context, storeID int64) (AIBehavior, error) {
	var out AIBehavior
	err := c.do(ctx, request{name: "stores.ai_behavior", method: http.MethodGet, path: idPath("/api/v1/stores/%d/ai-behavior/", storeID)}, &out)
	return out, err
}

// CreateAIBehavior stores the first configuration of a store.
func (c *Conn) CreateAIBehavior(ctx context.Context, storeID int64, cfg AIBehavior) error {
	return c.do(ctx, request{name: "stores.ai_behavior_create", method: http.MethodPost, path: idPath("/api/v1/stores/%d/ai-behavior/", storeID), body: cfg}, nil)
}

// UpdateAIBehavior replaces the configuration of a store.
func (c *Conn) UpdateAIBehavior(ctx context.Context, storeID int64, cfg AIBehavior) error {
	return c.do(ctx, request{name: "stores.ai_behavior_update", method: http.MethodPatch, path: idPath("/api/v1/stores/%d/ai-behavior/", storeID), body: cfg}, nil)
}

// APIConfig loads a store's model and speech settings.
func (c *Conn) APIConfig(ctx context.Context, storeID int64) (APIConfig, error) {
	var out APIConfig
	err := c.do(ctx, request{name: "stores.api_config", method: http.MethodGet, path: idPath("/api/v1/stores/%d/api-config/", storeID)}, &out)
	return out, err
}

// UpdateAPIConfig patches a store's model and speech settings. Nil sections
// are left unchanged.
func (c *Conn) UpdateAPIConfig(ctx context.Context, storeID int64, cfg APIConfig) error {
	return c.do(ctx, request{name: "stores.api_config_update", method: http.MethodPatch, path: idPath("/api/v1/stores/%d/api-config/", storeID), body: cfg}, nil)
}
