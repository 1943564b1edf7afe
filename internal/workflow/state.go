package workflow

import (
	"encoding/json"

	"consign-review-api/internal/model"
)

// State is the negotiation state of a line item, derived from the platform
// record alone.
type State int

const (
	// StatePending has no deal price and no negotiation yet.
	StatePending State = iota
	// StateConfirmed has a deal price recorded without a negotiation round.
	StateConfirmed
	// StateNegotiated has a counter-offer awaiting the approver's answer.
	StateNegotiated
	// StateNegotiationApproved has an approved counter-offer.
	StateNegotiationApproved
	// StateNegotiationRejected has a rejected counter-offer.
	StateNegotiationRejected
	// StateFinalized was already converted into inventory.
	StateFinalized
)

var stateNames = map[State]string{
	StatePending:             "pending",
	StateConfirmed:           "confirmed",
	StateNegotiated:          "negotiated",
	StateNegotiationApproved: "negotiation_approved",
	StateNegotiationRejected: "negotiation_rejected",
	StateFinalized:           "finalized",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// StateOf derives the state of a line item. A refusal only counts as a
// rejected negotiation when a shop response exists; without one nothing is
// pending and the item stays creatable.
func StateOf(li *model.ConsignSaleLineItem) State {
	switch {
	case li.IsFinalized():
		return StateFinalized
	case li.IsApproved != nil && *li.IsApproved:
		return StateNegotiationApproved
	case li.HasShopResponse() && li.IsApproved != nil:
		return StateNegotiationRejected
	case li.HasShopResponse():
		return StateNegotiated
	case li.DealPrice.Valid:
		return StateConfirmed
	default:
		return StatePending
	}
}

// PriceEditable reports whether the deal price input may still be edited. It
// depends on the recorded deal price only.
func PriceEditable(li *model.ConsignSaleLineItem) bool {
	return !li.DealPrice.Valid
}

// CanCreateItem reports whether the line item may be turned into inventory:
// no negotiation is pending, or the negotiation was approved.
func (s State) CanCreateItem() bool {
	switch s {
	case StatePending, StateConfirmed, StateNegotiationApproved:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further action is possible in this workflow.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateNegotiationRejected
}
