package model

import "github.com/shopspring/decimal"

// IndividualItem is the sellable inventory item a finalized line item becomes.
type IndividualItem struct {
	ID           string          `json:"itemId"`
	ItemCode     string          `json:"itemCode"`
	MasterItemID string          `json:"masterItemId"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Status       string          `json:"status"`
}
