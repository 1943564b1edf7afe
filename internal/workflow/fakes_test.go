package workflow

import (
	"context"
	"sync"

	"consign-review-api/internal/model"
	"consign-review-api/internal/remote"

	"github.com/shopspring/decimal"
)

type fakeMutator struct {
	mu sync.Mutex

	createReqs []remote.CreateIndividualRequest
	afterReqs  []remote.CreateIndividualAfterNegotiationRequest
	negReqs    []remote.NegotiateRequest

	err error
}

func (f *fakeMutator) CreateIndividual(ctx context.Context, lineItemID string, req remote.CreateIndividualRequest) (*model.IndividualItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createReqs = append(f.createReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.IndividualItem{ID: "IND-1", MasterItemID: req.MasterItemID}, nil
}

func (f *fakeMutator) CreateIndividualAfterNegotiation(ctx context.Context, lineItemID string, req remote.CreateIndividualAfterNegotiationRequest) (*model.IndividualItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterReqs = append(f.afterReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.IndividualItem{ID: "IND-2", MasterItemID: req.MasterItemID}, nil
}

func (f *fakeMutator) NegotiateItem(ctx context.Context, lineItemID string, req remote.NegotiateRequest) (*model.ConsignSaleLineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negReqs = append(f.negReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	resp := req.ResponseFromShop
	price, _ := decimal.NewFromString(req.DealPrice.String())
	return &model.ConsignSaleLineItem{
		ID:            lineItemID,
		ConsignSaleID: "CS-1",
		ExpectedPrice: decimal.NewFromInt(100000),
		DealPrice:     decimal.NewNullDecimal(price),
		ShopResponse:  &resp,
	}, nil
}

func (f *fakeMutator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createReqs) + len(f.afterReqs) + len(f.negReqs)
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// pendingItem has expectedPrice 100000 and no deal price.
func pendingItem() *model.ConsignSaleLineItem {
	return &model.ConsignSaleLineItem{
		ID:            "LI-1",
		ConsignSaleID: "CS-1",
		ExpectedPrice: decimal.NewFromInt(100000),
		ShopID:        "SHOP-1",
	}
}

func approvedItem() *model.ConsignSaleLineItem {
	li := pendingItem()
	li.DealPrice = decimal.NewNullDecimal(decimal.NewFromInt(90000))
	li.ShopResponse = strPtr("customer negotiated discount")
	li.IsApproved = boolPtr(true)
	return li
}
