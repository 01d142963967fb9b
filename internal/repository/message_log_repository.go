package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
)

type MessageLogRepositoryInterface interface {
	BulkCreate(logs []*model.MessageLog) error
	GetByID(id int) (*model.MessageLog, error)
	ListPending(campaignID int) ([]*model.MessageLog, error)
	ListByCampaign(campaignID int) ([]*model.MessageLog, error)
	MarkTerminalFromPending(id int, status string, sentAt *time.Time, receipt json.RawMessage) (bool, error)
	CountByStatus(campaignID int) (map[string]int, error)
}

type MessageLogRepository struct {
	DB *sql.DB
}

const messageLogColumns = `id, campaign_id, customer_id, message, status, sent_at, delivery_receipt, created_at, updated_at`

func scanMessageLog(row interface{ Scan(...interface{}) error }) (*model.MessageLog, error) {
	var m model.MessageLog
	var receipt []byte
	err := row.Scan(&m.ID, &m.CampaignID, &m.CustomerID, &m.Message, &m.Status,
		&m.SentAt, &receipt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.DeliveryReceipt = receipt
	return &m, nil
}

// BulkCreate inserts the campaign fan-out in one transaction. The UNIQUE
// (campaign_id, customer_id) constraint guarantees at most one log per pair;
// conflicts are skipped so a replayed fan-out is idempotent.
func (r *MessageLogRepository) BulkCreate(logs []*model.MessageLog) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO message_logs (campaign_id, customer_id, message, status)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (campaign_id, customer_id) DO NOTHING
        RETURNING id
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range logs {
		if m.Status == "" {
			m.Status = model.MessagePending
		}
		err := stmt.QueryRow(m.CampaignID, m.CustomerID, m.Message, m.Status).Scan(&m.ID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
	}
	return tx.Commit()
}

func (r *MessageLogRepository) GetByID(id int) (*model.MessageLog, error) {
	row := r.DB.QueryRow(`SELECT `+messageLogColumns+` FROM message_logs WHERE id=$1`, id)
	m, err := scanMessageLog(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageLogRepository) listWhere(where string, args ...interface{}) ([]*model.MessageLog, error) {
	rows, err := r.DB.Query(`SELECT `+messageLogColumns+` FROM message_logs WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*model.MessageLog{}
	for rows.Next() {
		m, err := scanMessageLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, m)
	}
	return logs, rows.Err()
}

func (r *MessageLogRepository) ListPending(campaignID int) ([]*model.MessageLog, error) {
	return r.listWhere(`campaign_id=$1 AND status=$2`, campaignID, model.MessagePending)
}

func (r *MessageLogRepository) ListByCampaign(campaignID int) ([]*model.MessageLog, error) {
	return r.listWhere(`campaign_id=$1`, campaignID)
}

// MarkTerminalFromPending is the single transition path out of PENDING.
// The status guard makes the update a compare-and-set: whichever of
// accept-failure or receipt arrives first wins and the other is a no-op.
func (r *MessageLogRepository) MarkTerminalFromPending(id int, status string, sentAt *time.Time, receipt json.RawMessage) (bool, error) {
	var receiptArg interface{}
	if len(receipt) > 0 {
		receiptArg = []byte(receipt)
	}
	res, err := r.DB.Exec(`
        UPDATE message_logs
        SET status=$1, sent_at=$2, delivery_receipt=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5
    `, status, sentAt, receiptArg, id, model.MessagePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *MessageLogRepository) CountByStatus(campaignID int) (map[string]int, error) {
	rows, err := r.DB.Query(
		`SELECT status, COUNT(*) FROM message_logs WHERE campaign_id=$1 GROUP BY status`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{
		model.MessagePending: 0,
		model.MessageSent:    0,
		model.MessageFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

var _ MessageLogRepositoryInterface = (*MessageLogRepository)(nil)
