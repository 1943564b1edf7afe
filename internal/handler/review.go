package handler

import (
	"net/http"
	"strconv"

	"consign-review-api/internal/model"
	"consign-review-api/internal/service"
	"consign-review-api/pkg/apierror"
	"consign-review-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ReviewHandler exposes the line item review workflow.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// OpenReviewRequest is the body of POST /reviews.
type OpenReviewRequest struct {
	LineItemID string `json:"line_item_id" validate:"required,max=64"`
}

// DealPriceRequest is the body of PUT /reviews/{session_id}/price.
type DealPriceRequest struct {
	DealPrice string `json:"deal_price" validate:"max=32"`
}

// MasterItemRequest is the body of PUT /reviews/{session_id}/master-item.
type MasterItemRequest struct {
	MasterItemID string `json:"master_item_id" validate:"max=64"`
}

// NegotiateRequest is the body of POST /reviews/{session_id}/negotiate.
type NegotiateRequest struct {
	Explanation string `json:"explanation" validate:"max=2000"`
}

// Open handles POST /api/v1/reviews
func (h *ReviewHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req OpenReviewRequest
	if apiErr := decode(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	sess, err := h.reviews.Open(r.Context(), actor, req.LineItemID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.Created(w, sess.View())
}

// Get handles GET /api/v1/reviews/{session_id}
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	sess, err := h.reviews.Get(r.Context(), actor, chi.URLParam(r, "session_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, sess.View())
}

// Close handles DELETE /api/v1/reviews/{session_id}
func (h *ReviewHandler) Close(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	if err := h.reviews.Close(r.Context(), actor, chi.URLParam(r, "session_id")); err != nil {
		writeErr(w, r, err)
		return
	}
	response.NoContent(w)
}

// SetDealPrice handles PUT /api/v1/reviews/{session_id}/price
func (h *ReviewHandler) SetDealPrice(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req DealPriceRequest
	if apiErr := decode(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	sess, err := h.reviews.SetDealPrice(r.Context(), actor, chi.URLParam(r, "session_id"), req.DealPrice)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, sess.View())
}

// SubmitPrice handles POST /api/v1/reviews/{session_id}/submit-price
func (h *ReviewHandler) SubmitPrice(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	sess, err := h.reviews.SubmitPrice(r.Context(), actor, chi.URLParam(r, "session_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, sess.View())
}

// CloseModal handles POST /api/v1/reviews/{session_id}/close-modal
func (h *ReviewHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	sess, err := h.reviews.CloseModal(r.Context(), actor, chi.URLParam(r, "session_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, sess.View())
}

// SelectMasterItem handles PUT /api/v1/reviews/{session_id}/master-item
func (h *ReviewHandler) SelectMasterItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req MasterItemRequest
	if apiErr := decode(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	sess, err := h.reviews.SelectMasterItem(r.Context(), actor, chi.URLParam(r, "session_id"), req.MasterItemID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, sess.View())
}

// ListMasterItems handles GET /api/v1/reviews/{session_id}/master-items
func (h *ReviewHandler) ListMasterItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	result, err := h.reviews.ListMasterItems(r.Context(), actor, chi.URLParam(r, "session_id"), page, pageSize, q.Get("search"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, result.Items, result.Page, result.PageSize, int64(result.TotalCount))
}

// CreateMasterItem handles POST /api/v1/reviews/{session_id}/master-items
func (h *ReviewHandler) CreateMasterItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var in model.CreateMasterItemInput
	if apiErr := decode(r, &in); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	item, sess, err := h.reviews.CreateMasterItem(r.Context(), actor, chi.URLParam(r, "session_id"), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.Created(w, map[string]interface{}{
		"master_item": item,
		"review":      sess.View(),
	})
}

// Finalize handles POST /api/v1/reviews/{session_id}/finalize
func (h *ReviewHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	result, err := h.reviews.Finalize(r.Context(), actor, chi.URLParam(r, "session_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, result)
}

// Negotiate handles POST /api/v1/reviews/{session_id}/negotiate
func (h *ReviewHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req NegotiateRequest
	if apiErr := decode(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	result, err := h.reviews.Negotiate(r.Context(), actor, chi.URLParam(r, "session_id"), req.Explanation)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, result)
}

// Categories handles GET /api/v1/categories
func (h *ReviewHandler) Categories(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	tree, err := h.reviews.Categories(r.Context(), actor)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.OK(w, tree)
}
