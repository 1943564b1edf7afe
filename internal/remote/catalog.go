package remote

import (
	"context"
	"net/http"
	"strconv"

	"consign-review-api/internal/model"
)

// createMasterItemBody is the platform payload for a new master item.
type createMasterItemBody struct {
	model.CreateMasterItemInput
	ShopID string `json:"shopId"`
}

// ListMasterItems returns one page of the shop's master items.
func (c *Client) ListMasterItems(ctx context.Context, q model.MasterItemQuery) (*model.Page[model.MasterItem], error) {
	query := map[string]string{
		"shopId":   q.ShopID,
		"page":     strconv.Itoa(q.Page),
		"pageSize": strconv.Itoa(q.PageSize),
	}
	if q.Search != "" {
		query["searchTerm"] = q.Search
	}

	return do[*model.Page[model.MasterItem]](ctx, c, call{
		op:      "list_master_items",
		circuit: CircuitMasterItems,
		method:  http.MethodGet,
		path:    "/master-items",
		query:   query,
	})
}

// CreateMasterItem creates a catalog template owned by shopID.
func (c *Client) CreateMasterItem(ctx context.Context, shopID string, in model.CreateMasterItemInput) (*model.MasterItem, error) {
	return do[*model.MasterItem](ctx, c, call{
		op:      "create_master_item",
		circuit: CircuitMasterItems,
		method:  http.MethodPost,
		path:    "/master-items",
		body:    createMasterItemBody{CreateMasterItemInput: in, ShopID: shopID},
	})
}

// GetCategoryTree returns the root categories with their children.
func (c *Client) GetCategoryTree(ctx context.Context) ([]model.Category, error) {
	return do[[]model.Category](ctx, c, call{
		op:      "get_category_tree",
		circuit: CircuitCategories,
		method:  http.MethodGet,
		path:    "/categories/tree",
	})
}
