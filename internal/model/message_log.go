// internal/model/message_log.go
package model

import (
	"encoding/json"
	"time"
)

const (
	MessagePending = "PENDING"
	MessageSent    = "SENT"
	MessageFailed  = "FAILED"
)

// MessageLog is the per-recipient delivery record. At most one log exists per
// campaign/customer pair. Status moves PENDING -> SENT or PENDING -> FAILED
// and never leaves a terminal state.
type MessageLog struct {
	ID              int             `db:"id" json:"id"`
	CampaignID      int             `db:"campaign_id" json:"campaign_id"`
	CustomerID      int             `db:"customer_id" json:"customer_id"`
	Message         string          `db:"message" json:"message"` // template already rendered
	Status          string          `db:"status" json:"status"`
	SentAt          *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	DeliveryReceipt json.RawMessage `db:"delivery_receipt" json:"delivery_receipt,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (m *MessageLog) Terminal() bool {
	return m.Status == MessageSent || m.Status == MessageFailed
}
