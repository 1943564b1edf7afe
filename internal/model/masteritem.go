package model

// MasterItem is a catalog template an individual consigned item is attached to.
type MasterItem struct {
	ID             string   `json:"masterItemId"`
	MasterItemCode string   `json:"masterItemCode"`
	Name           string   `json:"name"`
	Brand          string   `json:"brand"`
	Description    string   `json:"description"`
	CategoryID     string   `json:"categoryId"`
	Gender         string   `json:"gender"`
	Images         []string `json:"images"`
	IsConsignment  bool     `json:"isConsignment"`
	ShopID         string   `json:"shopId"`
	StockCount     int      `json:"stockCount"`
}

// CreateMasterItemInput holds the fields for creating a master item inline.
type CreateMasterItemInput struct {
	MasterItemCode string   `json:"masterItemCode" validate:"required,max=32"`
	Name           string   `json:"name" validate:"required,max=200"`
	Brand          string   `json:"brand" validate:"required,max=100"`
	Description    string   `json:"description" validate:"max=2000"`
	CategoryID     string   `json:"categoryId" validate:"required"`
	Gender         string   `json:"gender" validate:"required,oneof=Male Female"`
	Images         []string `json:"images" validate:"required,min=1,dive,url"`
	IsConsignment  bool     `json:"isConsignment"`
}

// MasterItemQuery filters the shop-scoped master item list.
type MasterItemQuery struct {
	ShopID   string
	Page     int
	PageSize int
	Search   string
}

// Page is a page of results as returned by the platform API.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
