package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"consign-review-api/internal/model"
	"consign-review-api/internal/remote"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Intent is what the operator asked for.
type Intent string

const (
	IntentFinalize  Intent = "finalize"
	IntentNegotiate Intent = "negotiate"
)

// Action is the platform mutation a dispatch resolves to.
type Action string

const (
	ActionCreateIndividual                 Action = "create_individual"
	ActionCreateIndividualAfterNegotiation Action = "create_individual_after_negotiation"
	ActionNegotiate                        Action = "negotiate"
)

// LineItemMutator is the part of the platform client the dispatcher needs.
type LineItemMutator interface {
	CreateIndividual(ctx context.Context, lineItemID string, req remote.CreateIndividualRequest) (*model.IndividualItem, error)
	CreateIndividualAfterNegotiation(ctx context.Context, lineItemID string, req remote.CreateIndividualAfterNegotiationRequest) (*model.IndividualItem, error)
	NegotiateItem(ctx context.Context, lineItemID string, req remote.NegotiateRequest) (*model.ConsignSaleLineItem, error)
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Action         Action                     `json:"action"`
	IndividualItem *model.IndividualItem      `json:"individual_item,omitempty"`
	LineItem       *model.ConsignSaleLineItem `json:"line_item,omitempty"`
	Redirect       string                     `json:"redirect"`
}

// Plan decides which mutation an intent maps to, or why none may be sent.
// It never touches the network.
func Plan(d *Draft, intent Intent) (Action, error) {
	state := d.State()

	switch intent {
	case IntentFinalize:
		if !state.CanCreateItem() {
			return "", notAllowedErr("line item is " + state.String() + " and cannot be turned into an item")
		}
		if d.Modal != ModalCreateIndividual {
			return "", notAllowedErr("submit the price before creating the item")
		}
		if strings.TrimSpace(d.SelectedMasterItemID) == "" {
			return "", validationErr("master_item_id", "select a master item first")
		}
		if state == StatePending {
			if d.IsPriceChanged {
				return "", notAllowedErr("a changed price must be negotiated before the item is created")
			}
			return ActionCreateIndividual, nil
		}
		return ActionCreateIndividualAfterNegotiation, nil

	case IntentNegotiate:
		if state != StatePending {
			return "", notAllowedErr("line item is " + state.String() + " and cannot be negotiated")
		}
		if d.Modal != ModalNegotiation {
			return "", notAllowedErr("submit the changed price before negotiating")
		}
		if !d.IsPriceChanged {
			return "", validationErr("deal_price", "deal price equals the expected price; create the item instead")
		}
		if strings.TrimSpace(d.PriceChangeExplanation) == "" {
			return "", validationErr("explanation", "explain the price change")
		}
		if _, err := parsePrice(d.DealPrice); err != nil {
			return "", err
		}
		return ActionNegotiate, nil
	}

	return "", validationErr("intent", "unknown intent "+string(intent))
}

func parsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, validationErr("deal_price", "deal price must be a number")
	}
	if !price.IsPositive() {
		return decimal.Zero, validationErr("deal_price", "deal price must be greater than zero")
	}
	return price, nil
}

// Dispatcher sends exactly one platform mutation per dispatch.
type Dispatcher struct {
	mutator LineItemMutator
	logger  *log.Entry
}

// NewDispatcher creates a dispatcher over the given platform client.
func NewDispatcher(mutator LineItemMutator) *Dispatcher {
	return &Dispatcher{
		mutator: mutator,
		logger:  log.WithField("component", "Dispatcher"),
	}
}

// Dispatch plans the intent and, when allowed, sends the mutation. The draft
// is not modified; on failure it is still valid for a retry.
func (p *Dispatcher) Dispatch(ctx context.Context, d *Draft, intent Intent) (*Result, error) {
	action, err := Plan(d, intent)
	if err != nil {
		p.logger.WithFields(log.Fields{
			"line_item_id": d.LineItem.ID,
			"intent":       intent,
		}).WithError(err).Info("Dispatch blocked")
		return nil, err
	}

	li := &d.LineItem
	result := &Result{
		Action:   action,
		Redirect: "/consign-sales/" + li.ConsignSaleID,
	}

	switch action {
	case ActionCreateIndividual:
		item, err := p.mutator.CreateIndividual(ctx, li.ID, remote.CreateIndividualRequest{
			MasterItemID: d.SelectedMasterItemID,
			DealPrice:    json.Number(li.ExpectedPrice.String()),
		})
		if err != nil {
			return nil, FromRemote("failed to create individual item", err)
		}
		result.IndividualItem = item

	case ActionCreateIndividualAfterNegotiation:
		item, err := p.mutator.CreateIndividualAfterNegotiation(ctx, li.ID, remote.CreateIndividualAfterNegotiationRequest{
			MasterItemID: d.SelectedMasterItemID,
		})
		if err != nil {
			return nil, FromRemote("failed to create individual item after negotiation", err)
		}
		result.IndividualItem = item

	case ActionNegotiate:
		price, _ := parsePrice(d.DealPrice)
		updated, err := p.mutator.NegotiateItem(ctx, li.ID, remote.NegotiateRequest{
			DealPrice:        json.Number(price.String()),
			ResponseFromShop: strings.TrimSpace(d.PriceChangeExplanation),
		})
		if err != nil {
			return nil, FromRemote("failed to negotiate item", err)
		}
		result.LineItem = updated
	}

	p.logger.WithFields(log.Fields{
		"line_item_id":   li.ID,
		"action":         action,
		"master_item_id": d.SelectedMasterItemID,
	}).Info("Dispatched line item mutation")

	return result, nil
}
