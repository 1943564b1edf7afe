package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsignSaleLineItem is one physical item a shop received for consignment.
// The record is owned by the platform API; this service only reads it and
// dispatches mutations against it.
type ConsignSaleLineItem struct {
	ID               string              `json:"consignSaleLineItemId"`
	ConsignSaleID    string              `json:"consignSaleId"`
	ConsignSaleCode  string              `json:"consignSaleCode"`
	ItemCode         string              `json:"itemCode"`
	ProductName      string              `json:"productName"`
	Brand            string              `json:"brand"`
	Color            string              `json:"color"`
	Size             string              `json:"size"`
	Gender           string              `json:"gender"`
	Condition        string              `json:"condition"`
	ExpectedPrice    decimal.Decimal     `json:"expectedPrice"`
	DealPrice        decimal.NullDecimal `json:"dealPrice"`
	ConfirmedPrice   decimal.NullDecimal `json:"confirmedPrice"`
	IsApproved       *bool               `json:"isApproved"`
	ShopResponse     *string             `json:"shopResponse"`
	Images           []string            `json:"images"`
	Note             string              `json:"note"`
	IndividualItemID *string             `json:"individualItemId"`
	ShopID           string              `json:"shopId"`
	Status           string              `json:"status"`
	CreatedDate      time.Time           `json:"createdDate"`
}

// HasShopResponse reports whether a negotiation round already happened.
func (li *ConsignSaleLineItem) HasShopResponse() bool {
	return li.ShopResponse != nil && *li.ShopResponse != ""
}

// IsFinalized reports whether the line item was already converted into inventory.
func (li *ConsignSaleLineItem) IsFinalized() bool {
	return li.IndividualItemID != nil && *li.IndividualItemID != ""
}
