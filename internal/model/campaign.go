// internal/model/campaign.go
package model

import (
	"encoding/json"
	"time"
)

const (
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
)

// CampaignStats always satisfies Total == Sent + Failed + Pending.
type CampaignStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

type Campaign struct {
	ID           int             `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Rules        json.RawMessage `db:"rules" json:"rules"` // audience predicate, retained verbatim for audit
	Message      string          `db:"message" json:"message"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	AudienceSize int             `db:"audience_size" json:"audience_size"` // snapshot at creation
	Status       string          `db:"status" json:"status"`
	Stats        CampaignStats   `json:"stats"`
	ScheduledAt  *time.Time      `db:"scheduled_at" json:"scheduled_at,omitempty"`
	LaunchedAt   *time.Time      `db:"launched_at" json:"launched_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}
