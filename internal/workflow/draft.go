package workflow

import (
	"consign-review-api/internal/model"
)

// Modal is the follow-up dialog a price submission opened.
type Modal string

const (
	ModalNone             Modal = ""
	ModalCreateIndividual Modal = "create_individual"
	ModalNegotiation      Modal = "negotiation"
)

// Draft is the operator's in-progress review of one line item. It is seeded
// from the platform record and only reaches the platform through the
// dispatcher.
type Draft struct {
	LineItem               model.ConsignSaleLineItem `json:"line_item"`
	DealPrice              string                    `json:"deal_price"`
	IsPriceChanged         bool                      `json:"is_price_changed"`
	PriceChangeExplanation string                    `json:"price_change_explanation"`
	SelectedMasterItemID   string                    `json:"selected_master_item_id"`
	Modal                  Modal                     `json:"modal"`
}

// NewDraft seeds a draft from the fetched line item. The price input starts at
// the recorded deal price when there is one, else at the expected price.
func NewDraft(li *model.ConsignSaleLineItem) *Draft {
	d := &Draft{LineItem: *li}
	if li.DealPrice.Valid {
		d.DealPrice = li.DealPrice.Decimal.String()
	} else {
		d.DealPrice = li.ExpectedPrice.String()
	}
	d.IsPriceChanged = d.DealPrice != d.expectedPrice()
	return d
}

func (d *Draft) expectedPrice() string {
	return d.LineItem.ExpectedPrice.String()
}

// State returns the state of the underlying line item.
func (d *Draft) State() State {
	return StateOf(&d.LineItem)
}

// PriceEditable reports whether the price input is still open.
func (d *Draft) PriceEditable() bool {
	return PriceEditable(&d.LineItem)
}

// Phase names where the operator is in the review, including the client-local
// phases opened by a price submission.
func (d *Draft) Phase() string {
	switch d.Modal {
	case ModalCreateIndividual:
		return "awaiting_master_item_selection"
	case ModalNegotiation:
		return "awaiting_explanation"
	}
	return d.State().String()
}

// SetDealPrice replaces the price input. The change flag compares the raw
// input with the expected price's text, so typing the original value back
// clears it.
func (d *Draft) SetDealPrice(value string) error {
	if !d.PriceEditable() {
		return notAllowedErr("deal price is already recorded and can no longer be edited")
	}
	d.DealPrice = value
	d.IsPriceChanged = value != d.expectedPrice()
	return nil
}

// SubmitPrice opens the dialog that follows a price submission: the
// create-individual dialog when the price is accepted as-is, the negotiation
// dialog when it changed.
func (d *Draft) SubmitPrice() (Modal, error) {
	state := d.State()
	if !state.CanCreateItem() {
		return ModalNone, notAllowedErr("line item is " + state.String() + "; no price action is available")
	}
	if state == StatePending && d.IsPriceChanged {
		d.Modal = ModalNegotiation
	} else {
		d.Modal = ModalCreateIndividual
	}
	return d.Modal, nil
}

// CloseModal dismisses the open dialog and keeps every input.
func (d *Draft) CloseModal() {
	d.Modal = ModalNone
}

// SelectMasterItem records the chosen master item. Emptiness is checked at dispatch.
func (d *Draft) SelectMasterItem(id string) {
	d.SelectedMasterItemID = id
}

// SetExplanation records the reason for a changed price.
func (d *Draft) SetExplanation(text string) {
	d.PriceChangeExplanation = text
}
