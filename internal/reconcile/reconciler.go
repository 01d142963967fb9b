// internal/reconcile/reconciler.go
package reconcile

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/vendor"
)

// Reconciler applies vendor receipts to message logs and keeps campaign
// aggregates consistent with the logs actually stored. Receipt application
// is idempotent and monotonic: the terminal transition is a compare-and-set
// out of PENDING, so a repeated or late receipt is a no-op.
type Reconciler struct {
	Logs      repository.MessageLogRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Log       *zap.Logger

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewReconciler(logs repository.MessageLogRepositoryInterface, campaigns repository.CampaignRepositoryInterface, log *zap.Logger) *Reconciler {
	return &Reconciler{
		Logs:      logs,
		Campaigns: campaigns,
		Log:       log,
		locks:     make(map[int]*sync.Mutex),
	}
}

// ApplyReceipt updates the message log for one receipt, then recomputes the
// owning campaign's stats. Receipts for different messages may run
// concurrently; the per-campaign recompute is serialized.
func (r *Reconciler) ApplyReceipt(rc vendor.Receipt) error {
	m, err := r.Logs.GetByID(rc.MessageID)
	if err != nil {
		return err
	}
	if m == nil {
		r.Log.Warn("receipt for unknown message", zap.Int("message_id", rc.MessageID))
		return nil
	}

	var status string
	switch rc.Status {
	case model.MessageSent:
		status = model.MessageSent
	case model.MessageFailed:
		status = model.MessageFailed
	default:
		r.Log.Warn("receipt with unknown status",
			zap.Int("message_id", rc.MessageID), zap.String("status", rc.Status))
		return nil
	}

	var sentAt *time.Time
	if status == model.MessageSent {
		ts := rc.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		sentAt = &ts
	}

	applied, err := r.Logs.MarkTerminalFromPending(rc.MessageID, status, sentAt, rc.VendorResponse)
	if err != nil {
		return err
	}
	if !applied {
		// Already terminal: a duplicate receipt, or the dispatcher recorded
		// an accept failure first. Either way the earlier writer wins.
		r.Log.Debug("receipt ignored, log already terminal",
			zap.Int("message_id", rc.MessageID))
	}

	return r.RecomputeStats(m.CampaignID)
}

// RecomputeStats rebuilds the campaign aggregate by grouping all of its logs
// by status. One writer at a time per campaign; every recompute reads the
// full current set, never a delta, so concurrent receipts cannot lose
// updates. A persistence error leaves the campaign at its last consistent
// stats/status pairing for the next event to repair.
func (r *Reconciler) RecomputeStats(campaignID int) error {
	lock := r.lockFor(campaignID)
	lock.Lock()
	defer lock.Unlock()

	counts, err := r.Logs.CountByStatus(campaignID)
	if err != nil {
		r.Log.Error("stats recompute failed", zap.Int("campaign_id", campaignID), zap.Error(err))
		return err
	}

	stats := model.CampaignStats{
		Sent:    counts[model.MessageSent],
		Failed:  counts[model.MessageFailed],
		Pending: counts[model.MessagePending],
	}
	stats.Total = stats.Sent + stats.Failed + stats.Pending

	status := model.CampaignStatusActive
	if stats.Pending == 0 && stats.Total > 0 {
		status = model.CampaignStatusCompleted
	}

	if err := r.Campaigns.UpdateStats(campaignID, stats, status); err != nil {
		r.Log.Error("stats update failed, keeping last consistent state",
			zap.Int("campaign_id", campaignID), zap.Error(err))
		return err
	}
	return nil
}

func (r *Reconciler) lockFor(campaignID int) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[campaignID] = lock
	}
	return lock
}
