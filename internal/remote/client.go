package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"consign-review-api/internal/metrics"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// Config holds platform API client settings.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	BulkheadSize int
	BulkheadWait time.Duration
	Breaker      BreakerSettings
}

// Circuit names, one per platform resource.
const (
	CircuitLineItems   = "line-items"
	CircuitMasterItems = "master-items"
	CircuitCategories  = "categories"
	CircuitAuth        = "auth"
)

// Client is the typed client for the platform REST API.
type Client struct {
	http     *resty.Client
	breakers map[string]*CircuitBreaker
	bulkhead *Bulkhead
	logger   *log.Entry
}

// New creates a platform API client. Calls are never retried; the operator
// resubmits manually.
func New(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	breakers := make(map[string]*CircuitBreaker)
	for _, name := range []string{CircuitLineItems, CircuitMasterItems, CircuitCategories, CircuitAuth} {
		breakers[name] = NewCircuitBreaker(name, cfg.Breaker)
	}

	return &Client{
		http:     httpClient,
		breakers: breakers,
		bulkhead: NewBulkhead("platform", cfg.BulkheadSize, cfg.BulkheadWait),
		logger:   log.WithField("component", "RemoteClient"),
	}
}

// BreakerStates returns the state of every circuit keyed by name.
func (c *Client) BreakerStates() map[string]string {
	out := make(map[string]string, len(c.breakers))
	for name, b := range c.breakers {
		out[name] = b.State()
	}
	return out
}

type tokenKey struct{}

// WithAccessToken returns a context carrying the platform bearer token of the
// operator on whose behalf calls are made.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the platform bearer token carried by ctx, if any.
func AccessToken(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey{}).(string); ok {
		return t
	}
	return ""
}

// envelope is the platform's response wrapper.
type envelope[T any] struct {
	Data         T        `json:"data"`
	IsSuccessful bool     `json:"isSuccessful"`
	Messages     []string `json:"messages"`
	ResultStatus string   `json:"resultStatus"`
}

type call struct {
	op      string
	circuit string
	method  string
	path    string
	query   map[string]string
	body    interface{}
}

// do runs one platform call through the bulkhead and the resource breaker and
// decodes the envelope's data into T.
func do[T any](ctx context.Context, c *Client, rc call) (T, error) {
	var result T
	start := time.Now()

	err := c.bulkhead.Execute(ctx, func() error {
		return c.breakers[rc.circuit].Execute(func() error {
			req := c.http.R().SetContext(ctx)
			if token := AccessToken(ctx); token != "" {
				req.SetAuthToken(token)
			}
			if rc.query != nil {
				req.SetQueryParams(rc.query)
			}
			if rc.body != nil {
				req.SetHeader("Content-Type", "application/json").SetBody(rc.body)
			}

			resp, err := req.Execute(rc.method, rc.path)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return fmt.Errorf("%s: %w", rc.op, err)
			}

			var env envelope[T]
			decodeErr := json.Unmarshal(resp.Body(), &env)

			if resp.IsError() {
				return &Error{Op: rc.op, StatusCode: resp.StatusCode(), Messages: env.Messages}
			}
			if decodeErr != nil {
				return fmt.Errorf("%s: failed to parse response: %w", rc.op, decodeErr)
			}
			if !env.IsSuccessful {
				return &Error{Op: rc.op, StatusCode: http.StatusUnprocessableEntity, Messages: env.Messages}
			}

			result = env.Data
			return nil
		})
	})

	outcome := "success"
	if err != nil {
		outcome = "error"
		entry := c.logger.WithFields(log.Fields{"op": rc.op, "path": rc.path}).WithError(err)
		var re *Error
		if errors.As(err, &re) && !isServerError(re.StatusCode) {
			entry.Info("Platform rejected request")
		} else {
			entry.Warn("Platform call failed")
		}
	}
	metrics.RemoteCallsTotal.WithLabelValues(rc.op, outcome).Inc()
	metrics.RemoteCallDuration.WithLabelValues(rc.op).Observe(time.Since(start).Seconds())

	return result, err
}
