package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"consign-review-api/internal/cache"
	"consign-review-api/internal/handler"
	"consign-review-api/internal/metrics"
	"consign-review-api/internal/middleware"
	"consign-review-api/internal/remote"
	"consign-review-api/internal/repository"
	"consign-review-api/internal/service"
	"consign-review-api/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// platform is a fake of the remote REST API.
type platform struct {
	mu    sync.Mutex
	calls map[string]int
	last  map[string]json.RawMessage
	query map[string]string
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	p.mu.Lock()
	p.calls[key]++
	p.last[key] = body
	p.query[key] = r.URL.RawQuery
	p.mu.Unlock()

	reply := func(status int, data interface{}, ok bool, messages ...string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": data, "isSuccessful": ok, "messages": messages, "resultStatus": "Success",
		})
	}

	switch key {
	case "POST /auth/login":
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		switch req["email"] {
		case "staff@example.com":
			reply(http.StatusOK, map[string]interface{}{"id": "ACC-1", "email": req["email"], "role": "Staff", "shopId": "SHOP-1", "accessToken": "jwt-staff"}, true)
		case "admin@example.com":
			reply(http.StatusOK, map[string]interface{}{"id": "ACC-9", "email": req["email"], "role": "Admin", "accessToken": "jwt-admin"}, true)
		case "member@example.com":
			reply(http.StatusOK, map[string]interface{}{"id": "ACC-5", "email": req["email"], "role": "Member", "accessToken": "jwt-member"}, true)
		default:
			reply(http.StatusUnauthorized, nil, false, "Invalid credentials")
		}
	case "GET /consign-line-items/LI-1":
		reply(http.StatusOK, map[string]interface{}{
			"consignSaleLineItemId": "LI-1", "consignSaleId": "CS-1", "expectedPrice": 100000,
			"dealPrice": nil, "isApproved": nil, "shopResponse": nil, "individualItemId": nil, "shopId": "SHOP-1",
		}, true)
	case "GET /consign-line-items/LI-2":
		reply(http.StatusOK, map[string]interface{}{
			"consignSaleLineItemId": "LI-2", "consignSaleId": "CS-2", "expectedPrice": 100000,
			"dealPrice": 90000, "isApproved": true, "shopResponse": "discount", "individualItemId": nil, "shopId": "SHOP-1",
		}, true)
	case "POST /consign-line-items/LI-1/create-individual", "POST /consign-line-items/LI-2/create-individual-after-negotiation":
		reply(http.StatusOK, map[string]interface{}{"itemId": "IND-1"}, true)
	case "PUT /consign-line-items/LI-1/negotiate":
		reply(http.StatusOK, map[string]interface{}{
			"consignSaleLineItemId": "LI-1", "consignSaleId": "CS-1", "expectedPrice": 100000,
			"dealPrice": 90000, "shopResponse": "customer negotiated discount",
		}, true)
	case "GET /master-items":
		reply(http.StatusOK, map[string]interface{}{
			"items": []map[string]interface{}{{"masterItemId": "M1", "name": "Coat", "shopId": r.URL.Query().Get("shopId")}},
			"page":  1, "pageSize": 10, "totalCount": 1,
		}, true)
	case "POST /master-items":
		reply(http.StatusOK, map[string]interface{}{"masterItemId": "M-NEW", "name": "Wool coat"}, true)
	case "GET /categories/tree":
		reply(http.StatusOK, []map[string]interface{}{{"categoryId": "C1", "name": "Outerwear"}}, true)
	default:
		reply(http.StatusNotFound, nil, false, "not found")
	}
}

func (p *platform) rawQuery(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query[key]
}

func (p *platform) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[key]
}

func (p *platform) body(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.last[key])
}

type testServer struct {
	t        *testing.T
	router   http.Handler
	platform *platform
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	p := &platform{calls: map[string]int{}, last: map[string]json.RawMessage{}, query: map[string]string{}}
	upstream := httptest.NewServer(p)
	t.Cleanup(upstream.Close)

	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	audit, err := repository.NewSQLiteAuditRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	client := remote.New(remote.Config{
		BaseURL:      upstream.URL,
		Timeout:      2 * time.Second,
		BulkheadSize: 4,
		BulkheadWait: time.Second,
		Breaker:      remote.BreakerSettings{MinRequests: 50, FailureRatio: 0.9, Interval: time.Minute, Timeout: time.Minute},
	})

	reviews := service.NewReviewService(client, workflow.NewDispatcher(client),
		workflow.NewMasterItems(client, c, workflow.MasterItemsConfig{}), c, audit, service.ReviewConfig{})
	metrics.SetSessionCounter(reviews.CountSessions)
	tokens := service.NewTokenService(c, time.Hour)

	r := New(Config{
		Handler:       handler.New("test", nil),
		ReviewHandler: handler.NewReviewHandler(reviews),
		AuthHandler:   handler.NewAuthHandler(tokens, client),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Sessions:  reviews,
			AuditRepo: audit,
			Breakers:  client.BreakerStates,
			DBType:    "sqlite",
			CacheType: "memory",
		}),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{Tokens: tokens, PublicPaths: PublicPaths}),
	})

	return &testServer{t: t, router: r, platform: p}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Token", token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret"})
	require.Equal(s.t, http.StatusOK, code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func (s *testServer) open(token, lineItemID string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/reviews", token, map[string]string{"line_item_id": lineItemID})
	require.Equal(s.t, http.StatusCreated, code)
	var view struct {
		ID string `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &view))
	return view.ID
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, code)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "review_sessions_open")
}

func TestOpenSessionsGaugeReadsStore(t *testing.T) {
	s := newTestServer(t)
	token := s.login("staff@example.com")
	s.open(token, "LI-1")
	s.open(token, "LI-1")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "review_sessions_open 2")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/reviews", "", map[string]string{"line_item_id": "LI-1"})
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, _ = s.do(http.MethodPost, "/api/v1/reviews", service.TokenPrefix+"bogus", map[string]string{"line_item_id": "LI-1"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginRoles(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "member@example.com", "password": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	require.NotEmpty(t, env.Error.Details)
	assert.Equal(t, "email", env.Error.Details[0].Field)

	token := s.login("staff@example.com")
	code, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/v1/categories", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestScenarioAOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.login("staff@example.com")
	id := s.open(token, "LI-1")

	code, env := s.do(http.MethodPost, "/api/v1/reviews/"+id+"/submit-price", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"phase":"awaiting_master_item_selection"`)

	code, env = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/finalize", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Zero(t, s.platform.count("POST /consign-line-items/LI-1/create-individual"))

	code, _ = s.do(http.MethodPut, "/api/v1/reviews/"+id+"/master-item", token, map[string]string{"master_item_id": "M1"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/finalize", token, nil)
	require.Equal(t, http.StatusOK, code, string(env.Data))
	assert.Contains(t, string(env.Data), `"redirect":"/consign-sales/CS-1"`)
	assert.Equal(t, 1, s.platform.count("POST /consign-line-items/LI-1/create-individual"))
	assert.JSONEq(t, `{"masterItemId":"M1","dealPrice":100000}`, s.platform.body("POST /consign-line-items/LI-1/create-individual"))
	assert.Zero(t, s.platform.count("PUT /consign-line-items/LI-1/negotiate"))

	code, _ = s.do(http.MethodGet, "/api/v1/reviews/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestScenarioBOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.login("staff@example.com")
	id := s.open(token, "LI-1")

	code, env := s.do(http.MethodPut, "/api/v1/reviews/"+id+"/price", token, map[string]string{"deal_price": "90000"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"is_price_changed":true`)

	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/submit-price", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/negotiate", token, map[string]string{"explanation": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Zero(t, s.platform.count("PUT /consign-line-items/LI-1/negotiate"))

	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/negotiate", token, map[string]string{"explanation": "customer negotiated discount"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, s.platform.count("PUT /consign-line-items/LI-1/negotiate"))
	assert.JSONEq(t, `{"dealPrice":90000,"responseFromShop":"customer negotiated discount"}`, s.platform.body("PUT /consign-line-items/LI-1/negotiate"))
	assert.Zero(t, s.platform.count("POST /consign-line-items/LI-1/create-individual"))
	assert.Zero(t, s.platform.count("POST /consign-line-items/LI-1/create-individual-after-negotiation"))
}

func TestScenarioCOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.login("staff@example.com")
	id := s.open(token, "LI-2")

	code, env := s.do(http.MethodPut, "/api/v1/reviews/"+id+"/price", token, map[string]string{"deal_price": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, "price is read-only once recorded")
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_ALLOWED", env.Error.Code)

	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/submit-price", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPut, "/api/v1/reviews/"+id+"/master-item", token, map[string]string{"master_item_id": "M2"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/finalize", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, s.platform.count("POST /consign-line-items/LI-2/create-individual-after-negotiation"))
	assert.JSONEq(t, `{"masterItemId":"M2"}`, s.platform.body("POST /consign-line-items/LI-2/create-individual-after-negotiation"))
}

func TestMasterItemEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.login("staff@example.com")
	id := s.open(token, "LI-1")

	code, env := s.do(http.MethodGet, "/api/v1/reviews/"+id+"/master-items?page=1&pageSize=7&search=coat", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	forwarded := s.platform.rawQuery("GET /master-items")
	assert.Contains(t, forwarded, "pageSize=7")
	assert.Contains(t, forwarded, "searchTerm=coat")
	assert.Equal(t, int64(1), env.Meta.Total)
	assert.Contains(t, string(env.Data), `"shopId":"SHOP-1"`)

	code, env = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/master-items", token, map[string]interface{}{
		"masterItemCode": "MI-1", "name": "Wool coat", "brand": "Acme", "categoryId": "C1",
		"gender": "Female", "images": []string{"https://cdn.example.com/a.jpg"},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), `"selected_master_item_id":"M-NEW"`)
	assert.True(t, strings.Contains(s.platform.body("POST /master-items"), `"shopId":"SHOP-1"`))

	code, _ = s.do(http.MethodGet, "/api/v1/reviews/"+id+"/master-items", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, s.platform.count("GET /master-items"), "list is refetched after creation")

	code, env = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/master-items", token, map[string]interface{}{"name": "Incomplete"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, 1, s.platform.count("POST /master-items"))

	code, _ = s.do(http.MethodGet, "/api/v1/categories", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	staff := s.login("staff@example.com")
	admin := s.login("admin@example.com")

	code, _ := s.do(http.MethodGet, "/api/v1/admin/stats", staff, nil)
	assert.Equal(t, http.StatusForbidden, code)

	id := s.open(staff, "LI-1")
	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/submit-price", staff, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPut, "/api/v1/reviews/"+id+"/master-item", staff, map[string]string{"master_item_id": "M1"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/v1/reviews/"+id+"/finalize", staff, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"circuit_breakers"`)

	code, env = s.do(http.MethodGet, "/api/v1/admin/audit?line_item_id=LI-1", admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.Total)
	assert.Contains(t, string(env.Data), `"action":"create_individual"`)
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t)
	token := s.login("staff@example.com")

	code, env := s.do(http.MethodGet, "/api/v1/reviews/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
