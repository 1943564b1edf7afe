package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"consign-review-api/internal/cache"
	"consign-review-api/internal/metrics"
	"consign-review-api/internal/model"
	"consign-review-api/internal/remote"
	"consign-review-api/internal/repository"
	"consign-review-api/internal/workflow"
	"consign-review-api/pkg/uid"

	log "github.com/sirupsen/logrus"
)

const (
	sessionKeyPrefix = "session:"
	lockKeyPrefix    = "lock:"
)

// LineItemReader fetches line items from the platform.
type LineItemReader interface {
	GetConsignLineItem(ctx context.Context, id string) (*model.ConsignSaleLineItem, error)
}

// Session is one operator's open review of one line item.
type Session struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	ShopID    string         `json:"shop_id"`
	Draft     workflow.Draft `json:"draft"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionView is the client-facing rendering of a session.
type SessionView struct {
	ID                     string                    `json:"id"`
	State                  workflow.State            `json:"state"`
	Phase                  string                    `json:"phase"`
	Modal                  workflow.Modal            `json:"modal,omitempty"`
	PriceEditable          bool                      `json:"price_editable"`
	CanCreateItem          bool                      `json:"can_create_item"`
	DealPrice              string                    `json:"deal_price"`
	IsPriceChanged         bool                      `json:"is_price_changed"`
	PriceChangeExplanation string                    `json:"price_change_explanation,omitempty"`
	SelectedMasterItemID   string                    `json:"selected_master_item_id,omitempty"`
	LineItem               model.ConsignSaleLineItem `json:"line_item"`
	UpdatedAt              time.Time                 `json:"updated_at"`
}

// View renders the session for clients.
func (s *Session) View() SessionView {
	d := &s.Draft
	state := d.State()
	return SessionView{
		ID:                     s.ID,
		State:                  state,
		Phase:                  d.Phase(),
		Modal:                  d.Modal,
		PriceEditable:          d.PriceEditable(),
		CanCreateItem:          state.CanCreateItem(),
		DealPrice:              d.DealPrice,
		IsPriceChanged:         d.IsPriceChanged,
		PriceChangeExplanation: d.PriceChangeExplanation,
		SelectedMasterItemID:   d.SelectedMasterItemID,
		LineItem:               d.LineItem,
		UpdatedAt:              s.UpdatedAt,
	}
}

// ReviewConfig holds review session settings.
type ReviewConfig struct {
	SessionTTL time.Duration
	LockTTL    time.Duration
}

// ReviewService hosts review sessions: it seeds drafts from the platform,
// applies operator edits and hands submissions to the dispatcher, one at a
// time per session.
type ReviewService struct {
	lineItems   LineItemReader
	dispatcher  *workflow.Dispatcher
	masterItems *workflow.MasterItems
	cache       cache.Cache
	audit       repository.AuditRepository
	cfg         ReviewConfig
	logger      *log.Entry
}

// NewReviewService creates a review service. audit may be nil.
func NewReviewService(
	lineItems LineItemReader,
	dispatcher *workflow.Dispatcher,
	masterItems *workflow.MasterItems,
	c cache.Cache,
	audit repository.AuditRepository,
	cfg ReviewConfig,
) *ReviewService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &ReviewService{
		lineItems:   lineItems,
		dispatcher:  dispatcher,
		masterItems: masterItems,
		cache:       c,
		audit:       audit,
		cfg:         cfg,
		logger:      log.WithField("component", "ReviewService"),
	}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func lockKey(id string) string { return lockKeyPrefix + id }

// CountSessions returns the number of live review sessions.
func (s *ReviewService) CountSessions(ctx context.Context) (int64, error) {
	return s.cache.Count(ctx, sessionKeyPrefix)
}

// Open fetches the line item and starts a review session for it.
func (s *ReviewService) Open(ctx context.Context, actor model.Actor, lineItemID string) (*Session, error) {
	lineItemID = strings.TrimSpace(lineItemID)
	if lineItemID == "" {
		return nil, &workflow.Error{Kind: workflow.KindValidation, Field: "line_item_id", Message: "line item is required"}
	}

	li, err := s.lineItems.GetConsignLineItem(remote.WithAccessToken(ctx, actor.AccessToken), lineItemID)
	if err != nil {
		return nil, workflow.FromRemote("failed to load line item", err)
	}
	if li == nil {
		return nil, workflow.NotFound("line item not found")
	}

	shopID := li.ShopID
	if actor.Role == model.RoleStaff {
		if shopID != "" && shopID != actor.ShopID {
			return nil, workflow.Forbidden("line item belongs to another shop")
		}
		shopID = actor.ShopID
	}
	if shopID == "" {
		shopID = actor.ShopID
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        uid.NewSortable(),
		AccountID: actor.AccountID,
		ShopID:    shopID,
		Draft:     *workflow.NewDraft(li),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.WithFields(log.Fields{
		"session_id":   sess.ID,
		"line_item_id": li.ID,
		"state":        sess.Draft.State().String(),
		"account_id":   actor.AccountID,
	}).Info("Review session opened")

	return sess, nil
}

// Get returns the actor's session.
func (s *ReviewService) Get(ctx context.Context, actor model.Actor, sessionID string) (*Session, error) {
	return s.load(ctx, actor, sessionID)
}

// Close discards the session and its draft.
func (s *ReviewService) Close(ctx context.Context, actor model.Actor, sessionID string) error {
	if _, err := s.load(ctx, actor, sessionID); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		return &workflow.Error{Kind: workflow.KindRemote, Message: "failed to close session", Err: err}
	}
	return nil
}

// SetDealPrice edits the price input.
func (s *ReviewService) SetDealPrice(ctx context.Context, actor model.Actor, sessionID, price string) (*Session, error) {
	return s.mutate(ctx, actor, sessionID, func(d *workflow.Draft) error {
		return d.SetDealPrice(price)
	})
}

// SubmitPrice opens the follow-up dialog for the current price.
func (s *ReviewService) SubmitPrice(ctx context.Context, actor model.Actor, sessionID string) (*Session, error) {
	return s.mutate(ctx, actor, sessionID, func(d *workflow.Draft) error {
		_, err := d.SubmitPrice()
		return err
	})
}

// CloseModal dismisses the open dialog.
func (s *ReviewService) CloseModal(ctx context.Context, actor model.Actor, sessionID string) (*Session, error) {
	return s.mutate(ctx, actor, sessionID, func(d *workflow.Draft) error {
		d.CloseModal()
		return nil
	})
}

// SelectMasterItem records the chosen master item.
func (s *ReviewService) SelectMasterItem(ctx context.Context, actor model.Actor, sessionID, masterItemID string) (*Session, error) {
	return s.mutate(ctx, actor, sessionID, func(d *workflow.Draft) error {
		d.SelectMasterItem(strings.TrimSpace(masterItemID))
		return nil
	})
}

// ListMasterItems lists master items of the session's shop.
func (s *ReviewService) ListMasterItems(ctx context.Context, actor model.Actor, sessionID string, page, pageSize int, search string) (*model.Page[model.MasterItem], error) {
	sess, err := s.load(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	return s.masterItems.List(remote.WithAccessToken(ctx, actor.AccessToken), model.MasterItemQuery{
		ShopID:   sess.ShopID,
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(search),
	})
}

// CreateMasterItem creates a master item for the session's shop and selects it.
func (s *ReviewService) CreateMasterItem(ctx context.Context, actor model.Actor, sessionID string, in model.CreateMasterItemInput) (*model.MasterItem, *Session, error) {
	sess, err := s.load(ctx, actor, sessionID)
	if err != nil {
		return nil, nil, err
	}

	item, err := s.masterItems.Create(remote.WithAccessToken(ctx, actor.AccessToken), sess.ShopID, in)
	if err != nil {
		return nil, nil, err
	}

	sess, err = s.mutate(ctx, actor, sessionID, func(d *workflow.Draft) error {
		d.SelectMasterItem(item.ID)
		return nil
	})
	if err != nil {
		return item, nil, err
	}
	return item, sess, nil
}

// Categories returns the category tree for the master item form.
func (s *ReviewService) Categories(ctx context.Context, actor model.Actor) ([]model.Category, error) {
	return s.masterItems.Categories(remote.WithAccessToken(ctx, actor.AccessToken))
}

// Finalize turns the line item into an inventory item.
func (s *ReviewService) Finalize(ctx context.Context, actor model.Actor, sessionID string) (*workflow.Result, error) {
	return s.dispatch(ctx, actor, sessionID, workflow.IntentFinalize, nil)
}

// Negotiate sends the changed price with the operator's explanation.
func (s *ReviewService) Negotiate(ctx context.Context, actor model.Actor, sessionID, explanation string) (*workflow.Result, error) {
	return s.dispatch(ctx, actor, sessionID, workflow.IntentNegotiate, func(d *workflow.Draft) {
		d.SetExplanation(explanation)
	})
}

// dispatch sends one mutation under the session's dispatch lock. Blocked
// intents never reach the lock or the network. Once the lock is held the
// session is read again, so a submission that waited behind another one acts
// on what that one left. On failure the draft is written back unless the
// session was closed meanwhile; on success the session ends.
func (s *ReviewService) dispatch(ctx context.Context, actor model.Actor, sessionID string, intent workflow.Intent, prepare func(*workflow.Draft)) (*workflow.Result, error) {
	sess, _, err := s.plan(ctx, actor, sessionID, intent, prepare)
	if err != nil {
		return nil, err
	}

	holder := []byte(uid.NewSortable())
	locked, err := s.cache.SetNX(ctx, lockKey(sessionID), holder, s.cfg.LockTTL)
	if err != nil {
		return nil, &workflow.Error{Kind: workflow.KindRemote, Message: "failed to acquire dispatch lock", Err: err}
	}
	if !locked {
		return nil, workflow.Conflict("a submission for this review is already in progress")
	}
	defer s.unlock(ctx, sessionID, holder)

	sess, action, err := s.plan(ctx, actor, sessionID, intent, prepare)
	if err != nil {
		if workflow.KindOf(err) == workflow.KindNotFound {
			return nil, workflow.Conflict("review session was already submitted or closed")
		}
		return nil, err
	}

	start := time.Now()
	result, dispatchErr := s.dispatcher.Dispatch(remote.WithAccessToken(ctx, actor.AccessToken), &sess.Draft, intent)
	s.record(ctx, actor, sess, action, time.Since(start), dispatchErr)

	if dispatchErr != nil {
		metrics.DispatchesTotal.WithLabelValues(string(action), "failed").Inc()
		s.saveIfOpen(context.WithoutCancel(ctx), sess)
		return nil, dispatchErr
	}

	metrics.DispatchesTotal.WithLabelValues(string(action), "success").Inc()
	if result.LineItem == nil {
		li, err := s.lineItems.GetConsignLineItem(remote.WithAccessToken(context.WithoutCancel(ctx), actor.AccessToken), sess.Draft.LineItem.ID)
		if err != nil {
			s.logger.WithError(err).WithField("line_item_id", sess.Draft.LineItem.ID).Warn("Failed to refetch line item")
		} else {
			result.LineItem = li
		}
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), sessionKey(sessionID)); err != nil {
		s.logger.WithError(err).Warn("Failed to end review session")
	}
	return result, nil
}

// plan loads the session, applies prepare and decides the mutation. A blocked
// intent keeps the prepared draft.
func (s *ReviewService) plan(ctx context.Context, actor model.Actor, sessionID string, intent workflow.Intent, prepare func(*workflow.Draft)) (*Session, workflow.Action, error) {
	sess, err := s.load(ctx, actor, sessionID)
	if err != nil {
		return nil, "", err
	}
	if prepare != nil {
		prepare(&sess.Draft)
	}

	action, err := workflow.Plan(&sess.Draft, intent)
	if err != nil {
		s.saveIfOpen(ctx, sess)
		metrics.DispatchesTotal.WithLabelValues(string(intent), "blocked").Inc()
		return nil, "", err
	}
	return sess, action, nil
}

// unlock releases the dispatch lock if this request still holds it.
func (s *ReviewService) unlock(ctx context.Context, sessionID string, holder []byte) {
	released, err := s.cache.CompareAndDelete(context.WithoutCancel(ctx), lockKey(sessionID), holder)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to release dispatch lock")
		return
	}
	if !released {
		s.logger.WithField("session_id", sessionID).Warn("Dispatch lock expired before release")
	}
}

// record writes the audit entry for an attempted mutation.
func (s *ReviewService) record(ctx context.Context, actor model.Actor, sess *Session, action workflow.Action, took time.Duration, err error) {
	if s.audit == nil {
		return
	}

	rec := &model.DispatchRecord{
		ID:           uid.New(),
		SessionID:    sess.ID,
		RequestID:    actor.RequestID,
		Action:       string(action),
		LineItemID:   sess.Draft.LineItem.ID,
		MasterItemID: sess.Draft.SelectedMasterItemID,
		AccountID:    actor.AccountID,
		ShopID:       sess.ShopID,
		Outcome:      model.OutcomeSuccess,
		DurationMs:   took.Milliseconds(),
	}
	switch action {
	case workflow.ActionNegotiate:
		rec.DealPrice = strings.TrimSpace(sess.Draft.DealPrice)
		rec.MasterItemID = ""
	case workflow.ActionCreateIndividual:
		rec.DealPrice = sess.Draft.LineItem.ExpectedPrice.String()
	}
	if err != nil {
		rec.Outcome = model.OutcomeFailed
		rec.ErrorKind = string(workflow.KindOf(err))
		rec.ErrorMessage = err.Error()
	}

	if err := s.audit.InsertDispatch(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.WithError(err).WithField("session_id", sess.ID).Warn("Failed to record dispatch")
	}
}

// mutate applies fn to the session's draft and stores the result. Edits are
// refused while a submission is in flight.
func (s *ReviewService) mutate(ctx context.Context, actor model.Actor, sessionID string, fn func(*workflow.Draft) error) (*Session, error) {
	sess, err := s.load(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	busy, err := s.cache.Exists(ctx, lockKey(sessionID))
	if err != nil {
		return nil, &workflow.Error{Kind: workflow.KindRemote, Message: "failed to check dispatch lock", Err: err}
	}
	if busy {
		return nil, workflow.Conflict("a submission for this review is in progress")
	}

	if err := fn(&sess.Draft); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *ReviewService) load(ctx context.Context, actor model.Actor, sessionID string) (*Session, error) {
	data, err := s.cache.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, workflow.NotFound("review session not found or expired")
	}
	if err != nil {
		return nil, &workflow.Error{Kind: workflow.KindRemote, Message: "failed to load session", Err: err}
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindRemote, Message: "corrupt session", Err: err}
	}
	if sess.AccountID != actor.AccountID {
		return nil, workflow.NotFound("review session not found or expired")
	}
	return &sess, nil
}

func (s *ReviewService) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return &workflow.Error{Kind: workflow.KindRemote, Message: "failed to encode session", Err: err}
	}
	if err := s.cache.Set(ctx, sessionKey(sess.ID), data, s.cfg.SessionTTL); err != nil {
		return &workflow.Error{Kind: workflow.KindRemote, Message: "failed to store session", Err: err}
	}
	return nil
}

// saveIfOpen writes the draft back only while the session still exists, so a
// submission finishing after the operator left cannot resurrect it.
func (s *ReviewService) saveIfOpen(ctx context.Context, sess *Session) {
	open, err := s.cache.Exists(ctx, sessionKey(sess.ID))
	if err != nil || !open {
		return
	}
	if err := s.save(ctx, sess); err != nil {
		s.logger.WithError(err).WithField("session_id", sess.ID).Warn("Failed to keep draft")
	}
}
