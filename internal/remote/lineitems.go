package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"consign-review-api/internal/model"
)

// CreateIndividualRequest finalizes a line item at its unchanged price.
type CreateIndividualRequest struct {
	MasterItemID string      `json:"masterItemId"`
	DealPrice    json.Number `json:"dealPrice"`
}

// CreateIndividualAfterNegotiationRequest finalizes a line item whose price
// was already recorded on the platform. No price is sent.
type CreateIndividualAfterNegotiationRequest struct {
	MasterItemID string `json:"masterItemId"`
}

// NegotiateRequest records a counter-offer with the shop's explanation.
type NegotiateRequest struct {
	DealPrice        json.Number `json:"dealPrice"`
	ResponseFromShop string      `json:"responseFromShop"`
}

func lineItemPath(id string, suffix string) string {
	return "/consign-line-items/" + url.PathEscape(id) + suffix
}

// GetConsignLineItem fetches a line item by id.
func (c *Client) GetConsignLineItem(ctx context.Context, id string) (*model.ConsignSaleLineItem, error) {
	return do[*model.ConsignSaleLineItem](ctx, c, call{
		op:      "get_line_item",
		circuit: CircuitLineItems,
		method:  http.MethodGet,
		path:    lineItemPath(id, ""),
	})
}

// CreateIndividual converts the line item into inventory at the unchanged price.
func (c *Client) CreateIndividual(ctx context.Context, lineItemID string, req CreateIndividualRequest) (*model.IndividualItem, error) {
	return do[*model.IndividualItem](ctx, c, call{
		op:      "create_individual",
		circuit: CircuitLineItems,
		method:  http.MethodPost,
		path:    lineItemPath(lineItemID, "/create-individual"),
		body:    req,
	})
}

// CreateIndividualAfterNegotiation converts the line item into inventory using
// the price the platform already holds.
func (c *Client) CreateIndividualAfterNegotiation(ctx context.Context, lineItemID string, req CreateIndividualAfterNegotiationRequest) (*model.IndividualItem, error) {
	return do[*model.IndividualItem](ctx, c, call{
		op:      "create_individual_after_negotiation",
		circuit: CircuitLineItems,
		method:  http.MethodPost,
		path:    lineItemPath(lineItemID, "/create-individual-after-negotiation"),
		body:    req,
	})
}

// NegotiateItem records a counter-offer. No inventory is created.
func (c *Client) NegotiateItem(ctx context.Context, lineItemID string, req NegotiateRequest) (*model.ConsignSaleLineItem, error) {
	return do[*model.ConsignSaleLineItem](ctx, c, call{
		op:      "negotiate_item",
		circuit: CircuitLineItems,
		method:  http.MethodPut,
		path:    lineItemPath(lineItemID, "/negotiate"),
		body:    req,
	})
}
