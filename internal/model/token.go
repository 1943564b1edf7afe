package model

import "time"

// Role is the dashboard role of an authenticated account.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleStaff Role = "Staff"
)

// TokenData contains the data stored with a session token.
// ShopID and Role are resolved at login and travel with every request,
// so nothing downstream looks them up from ambient state.
type TokenData struct {
	AccountID   string    `json:"account_id"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	ShopID      string    `json:"shop_id"`
	RemoteToken string    `json:"remote_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Actor is the operator on whose behalf a workflow call runs.
type Actor struct {
	AccountID   string
	Role        Role
	ShopID      string
	AccessToken string
	RequestID   string
}

// Actor builds the actor for a request authenticated with this token.
func (t *TokenData) Actor(requestID string) Actor {
	return Actor{
		AccountID:   t.AccountID,
		Role:        t.Role,
		ShopID:      t.ShopID,
		AccessToken: t.RemoteToken,
		RequestID:   requestID,
	}
}
