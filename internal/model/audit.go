package model

import "time"

// DispatchRecord is an audit entry for one mutation dispatched to the platform API.
type DispatchRecord struct {
	ID           string    `json:"id" bson:"_id"`
	SessionID    string    `json:"session_id" bson:"session_id"`
	RequestID    string    `json:"request_id" bson:"request_id"`
	Action       string    `json:"action" bson:"action"`
	LineItemID   string    `json:"line_item_id" bson:"line_item_id"`
	MasterItemID string    `json:"master_item_id,omitempty" bson:"master_item_id,omitempty"`
	DealPrice    string    `json:"deal_price,omitempty" bson:"deal_price,omitempty"`
	AccountID    string    `json:"account_id" bson:"account_id"`
	ShopID       string    `json:"shop_id" bson:"shop_id"`
	Outcome      string    `json:"outcome" bson:"outcome"` // 'success' or 'failed'
	ErrorKind    string    `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms" bson:"duration_ms"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)
