package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"consign-review-api/internal/remote"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioA_UnchangedPriceCreatesIndividual(t *testing.T) {
	m := &fakeMutator{}
	p := NewDispatcher(m)

	d := NewDraft(pendingItem())
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SelectMasterItem("M1")

	result, err := p.Dispatch(context.Background(), d, IntentFinalize)
	require.NoError(t, err)

	require.Len(t, m.createReqs, 1)
	assert.Empty(t, m.afterReqs)
	assert.Empty(t, m.negReqs)
	assert.Equal(t, "M1", m.createReqs[0].MasterItemID)
	assert.Equal(t, json.Number("100000"), m.createReqs[0].DealPrice)

	body, err := json.Marshal(m.createReqs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"masterItemId":"M1","dealPrice":100000}`, string(body))

	assert.Equal(t, ActionCreateIndividual, result.Action)
	assert.Equal(t, "/consign-sales/CS-1", result.Redirect)
	require.NotNil(t, result.IndividualItem)
}

func TestScenarioB_ChangedPriceNegotiates(t *testing.T) {
	m := &fakeMutator{}
	p := NewDispatcher(m)

	d := NewDraft(pendingItem())
	require.NoError(t, d.SetDealPrice("90000"))
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SetExplanation("customer negotiated discount")

	result, err := p.Dispatch(context.Background(), d, IntentNegotiate)
	require.NoError(t, err)

	require.Len(t, m.negReqs, 1)
	assert.Empty(t, m.createReqs)
	assert.Empty(t, m.afterReqs)

	body, err := json.Marshal(m.negReqs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"dealPrice":90000,"responseFromShop":"customer negotiated discount"}`, string(body))

	assert.Equal(t, ActionNegotiate, result.Action)
	require.NotNil(t, result.LineItem)
	assert.Equal(t, StateNegotiated, StateOf(result.LineItem))
}

func TestScenarioC_ApprovedCreatesAfterNegotiation(t *testing.T) {
	m := &fakeMutator{}
	p := NewDispatcher(m)

	d := NewDraft(approvedItem())
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SelectMasterItem("M2")

	result, err := p.Dispatch(context.Background(), d, IntentFinalize)
	require.NoError(t, err)

	require.Len(t, m.afterReqs, 1)
	assert.Empty(t, m.createReqs)
	assert.Empty(t, m.negReqs)

	body, err := json.Marshal(m.afterReqs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"masterItemId":"M2"}`, string(body))
	assert.Equal(t, ActionCreateIndividualAfterNegotiation, result.Action)
}

func TestUnchangedPriceNeverNegotiates(t *testing.T) {
	m := &fakeMutator{}
	p := NewDispatcher(m)

	d := NewDraft(pendingItem())
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SetExplanation("no reason")

	_, err = p.Dispatch(context.Background(), d, IntentNegotiate)
	require.Error(t, err)
	assert.Zero(t, m.calls())
}

func TestChangedPriceNeverCreatesDirectly(t *testing.T) {
	m := &fakeMutator{}
	p := NewDispatcher(m)

	d := NewDraft(pendingItem())
	require.NoError(t, d.SetDealPrice("90000"))
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SelectMasterItem("M1")

	_, err = p.Dispatch(context.Background(), d, IntentFinalize)
	require.Error(t, err)
	assert.Zero(t, m.calls())

	// Forcing the create dialog open does not bypass the price check.
	d.Modal = ModalCreateIndividual
	_, err = p.Dispatch(context.Background(), d, IntentFinalize)
	require.Error(t, err)
	assert.Equal(t, KindNotAllowed, KindOf(err))
	assert.Zero(t, m.calls())
}

func TestFinalizeWithoutMasterItemIsBlocked(t *testing.T) {
	for _, id := range []string{"", "   "} {
		m := &fakeMutator{}
		p := NewDispatcher(m)

		d := NewDraft(pendingItem())
		_, err := d.SubmitPrice()
		require.NoError(t, err)
		d.SelectMasterItem(id)

		_, err = p.Dispatch(context.Background(), d, IntentFinalize)
		require.Error(t, err)

		var we *Error
		require.True(t, errors.As(err, &we))
		assert.Equal(t, KindValidation, we.Kind)
		assert.Equal(t, "master_item_id", we.Field)
		assert.Zero(t, m.calls())
	}
}

func TestNegotiateWithBlankExplanationIsBlocked(t *testing.T) {
	for _, text := range []string{"", " \t\n"} {
		m := &fakeMutator{}
		p := NewDispatcher(m)

		d := NewDraft(pendingItem())
		require.NoError(t, d.SetDealPrice("90000"))
		_, err := d.SubmitPrice()
		require.NoError(t, err)
		d.SetExplanation(text)

		_, err = p.Dispatch(context.Background(), d, IntentNegotiate)
		require.Error(t, err)

		var we *Error
		require.True(t, errors.As(err, &we))
		assert.Equal(t, KindValidation, we.Kind)
		assert.Equal(t, "explanation", we.Field)
		assert.Zero(t, m.calls())
	}
}

func TestNegotiateRejectsBadPrice(t *testing.T) {
	for _, price := range []string{"abc", "0", "-5"} {
		m := &fakeMutator{}
		p := NewDispatcher(m)

		d := NewDraft(pendingItem())
		require.NoError(t, d.SetDealPrice(price))
		_, err := d.SubmitPrice()
		require.NoError(t, err)
		d.SetExplanation("reason")

		_, err = p.Dispatch(context.Background(), d, IntentNegotiate)
		require.Error(t, err, price)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Zero(t, m.calls())
	}
}

func TestDispatchRequiresOpenDialog(t *testing.T) {
	m := &fakeMutator{}
	p := NewDispatcher(m)

	d := NewDraft(pendingItem())
	d.SelectMasterItem("M1")

	_, err := p.Dispatch(context.Background(), d, IntentFinalize)
	require.Error(t, err)
	assert.Equal(t, KindNotAllowed, KindOf(err))
	assert.Zero(t, m.calls())
}

func TestPlanClosedStates(t *testing.T) {
	rejected := approvedItem()
	rejected.IsApproved = boolPtr(false)
	finalized := approvedItem()
	finalized.IndividualItemID = strPtr("IND-1")

	for name, d := range map[string]*Draft{
		"rejected":  NewDraft(rejected),
		"finalized": NewDraft(finalized),
	} {
		d.Modal = ModalCreateIndividual
		d.SelectMasterItem("M1")
		_, err := Plan(d, IntentFinalize)
		require.Error(t, err, name)
		assert.Equal(t, KindNotAllowed, KindOf(err), name)

		_, err = Plan(d, IntentNegotiate)
		require.Error(t, err, name)
	}
}

func TestConfirmedFinalizesAfterNegotiation(t *testing.T) {
	li := pendingItem()
	li.DealPrice = decimal.NewNullDecimal(decimal.NewFromInt(100000))
	d := NewDraft(li)
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SelectMasterItem("M3")

	action, err := Plan(d, IntentFinalize)
	require.NoError(t, err)
	assert.Equal(t, ActionCreateIndividualAfterNegotiation, action)
}

func TestRemoteFailureKeepsDraft(t *testing.T) {
	m := &fakeMutator{err: &remote.Error{Op: "create_individual", StatusCode: http.StatusBadRequest, Messages: []string{"master item inactive"}}}
	p := NewDispatcher(m)

	d := NewDraft(pendingItem())
	_, err := d.SubmitPrice()
	require.NoError(t, err)
	d.SelectMasterItem("M1")
	before := *d

	_, err = p.Dispatch(context.Background(), d, IntentFinalize)
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Contains(t, err.Error(), "master item inactive")
	assert.Equal(t, before, *d)
	assert.Equal(t, 1, m.calls())
}

func TestFromRemoteClassification(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{context.Canceled, KindCanceled},
		{remote.ErrCircuitOpen, KindUnavailable},
		{remote.ErrBulkheadFull, KindUnavailable},
		{&remote.Error{StatusCode: http.StatusNotFound}, KindNotFound},
		{&remote.Error{StatusCode: http.StatusConflict}, KindConflict},
		{&remote.Error{StatusCode: http.StatusForbidden}, KindForbidden},
		{&remote.Error{StatusCode: http.StatusUnprocessableEntity}, KindRejected},
		{&remote.Error{StatusCode: http.StatusBadGateway}, KindRemote},
		{errors.New("connection refused"), KindRemote},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromRemote("call failed", tt.err).Kind, "%v", tt.err)
	}
	assert.Nil(t, FromRemote("noop", nil))
}
