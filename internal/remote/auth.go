package remote

import (
	"context"
	"net/http"

	"consign-review-api/internal/model"
)

// LoginResult is the platform's answer to a successful login.
type LoginResult struct {
	AccountID   string     `json:"id"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	ShopID      string     `json:"shopId"`
	AccessToken string     `json:"accessToken"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a dashboard operator against the platform.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return do[*LoginResult](ctx, c, call{
		op:      "login",
		circuit: CircuitAuth,
		method:  http.MethodPost,
		path:    "/auth/login",
		body:    loginBody{Email: email, Password: password},
	})
}
