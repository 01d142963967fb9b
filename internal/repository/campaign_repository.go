package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStats(campaignID int, stats model.CampaignStats, status string) error
	MarkLaunched(campaignID int, at time.Time) (bool, error)
	ListDue(now time.Time) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, rules, message, created_by, audience_size, status,
        stats_total, stats_sent, stats_failed, stats_pending,
        scheduled_at, launched_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.Rules, &c.Message, &c.CreatedBy, &c.AudienceSize, &c.Status,
		&c.Stats.Total, &c.Stats.Sent, &c.Stats.Failed, &c.Stats.Pending,
		&c.ScheduledAt, &c.LaunchedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	if len(c.Rules) == 0 {
		c.Rules = []byte(`{}`)
	}
	query := `
        INSERT INTO campaigns (name, rules, message, created_by, audience_size, status,
            stats_total, stats_sent, stats_failed, stats_pending, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, []byte(c.Rules), c.Message, c.CreatedBy, c.AudienceSize, c.Status,
		c.Stats.Total, c.Stats.Sent, c.Stats.Failed, c.Stats.Pending,
		c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	row := r.DB.QueryRow(`SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	countQuery := `SELECT COUNT(*) FROM campaigns`
	args := []interface{}{}
	countArgs := []interface{}{}

	if status != "" {
		query += ` WHERE status=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`
		countQuery += ` WHERE status=$1`
		args = append(args, status, limit, offset)
		countArgs = append(countArgs, status)
	} else {
		query += ` ORDER BY id DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// UpdateStats writes a recomputed aggregate and the status derived from it.
// Only the reconciler (and the orchestrator's initial seeding) calls this.
func (r *CampaignRepository) UpdateStats(campaignID int, stats model.CampaignStats, status string) error {
	query := `
        UPDATE campaigns
        SET stats_total=$1, stats_sent=$2, stats_failed=$3, stats_pending=$4, status=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, stats.Total, stats.Sent, stats.Failed, stats.Pending, status, campaignID)
	return err
}

// MarkLaunched claims the single dispatch launch for a campaign. Returns
// false when another launcher already claimed it.
func (r *CampaignRepository) MarkLaunched(campaignID int, at time.Time) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE campaigns SET launched_at=$1, updated_at=NOW() WHERE id=$2 AND launched_at IS NULL`,
		at, campaignID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListDue returns campaigns whose schedule has passed and that were never
// launched.
func (r *CampaignRepository) ListDue(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
        WHERE scheduled_at IS NOT NULL AND scheduled_at <= $1 AND launched_at IS NULL
        ORDER BY scheduled_at`
	rows, err := r.DB.Query(query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
