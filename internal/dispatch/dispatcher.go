// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/vendor"
)

// StatsRecomputer rebuilds a campaign's aggregate from its stored logs.
// Satisfied by reconcile.Reconciler.
type StatsRecomputer interface {
	RecomputeStats(campaignID int) error
}

// Dispatcher drives one campaign's pending logs to the vendor. Sends are
// strictly sequential with a fixed inter-message delay to bound the outbound
// rate; accept calls carry their own timeout and a failed accept marks the
// log FAILED immediately (no retry, no receipt will follow for it).
type Dispatcher struct {
	Logs          repository.MessageLogRepositoryInterface
	Customers     repository.CustomerRepositoryInterface
	Vendor        vendor.Client
	Stats         StatsRecomputer
	Delay         time.Duration
	AcceptTimeout time.Duration
	Log           *zap.Logger
}

var errRecipientMissing = errors.New("recipient customer not found")

// Run drains one batch: the logs PENDING at run start. Logs added later are
// not picked up by this run. The batch is drained to completion; only the
// individual accept call is bounded by AcceptTimeout.
func (d *Dispatcher) Run(ctx context.Context, campaignID int) error {
	batch, err := d.Logs.ListPending(campaignID)
	if err != nil {
		return err
	}

	d.Log.Info("dispatch run started",
		zap.Int("campaign_id", campaignID),
		zap.Int("pending", len(batch)))

	for _, m := range batch {
		d.sendOne(ctx, m)
		d.pause(ctx)
	}

	// Accept failures are terminal but produce no receipt, so the receipt
	// path alone would never fold them into the campaign aggregate. Recompute
	// once the batch is drained.
	if err := d.Stats.RecomputeStats(campaignID); err != nil {
		d.Log.Error("stats recompute failed after dispatch run",
			zap.Int("campaign_id", campaignID), zap.Error(err))
	}

	d.Log.Info("dispatch run drained", zap.Int("campaign_id", campaignID))
	return nil
}

func (d *Dispatcher) sendOne(ctx context.Context, m *model.MessageLog) {
	customer, err := d.Customers.GetByID(m.CustomerID)
	if err == nil && customer == nil {
		err = errRecipientMissing
	}

	if err == nil {
		callCtx, cancel := context.WithTimeout(ctx, d.AcceptTimeout)
		_, err = d.Vendor.Send(callCtx, vendor.SendRequest{
			MessageID:        m.ID,
			RecipientAddress: customer.Email,
			RecipientName:    customer.Name,
			Message:          m.Message,
		})
		cancel()
	}

	if err == nil {
		// Accepted. No terminal status yet; the vendor's receipt is
		// authoritative for the delivery outcome.
		return
	}

	applied, markErr := d.Logs.MarkTerminalFromPending(m.ID, model.MessageFailed, nil, vendor.AcceptFailureReceipt(err))
	if markErr != nil {
		d.Log.Error("failed to mark accept failure",
			zap.Int("message_id", m.ID), zap.Error(markErr))
		return
	}
	d.Log.Warn("vendor accept failed",
		zap.Int("message_id", m.ID),
		zap.Bool("applied", applied),
		zap.Error(err))
}

func (d *Dispatcher) pause(ctx context.Context) {
	timer := time.NewTimer(d.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Run is a handle on one background dispatch run.
type Run struct {
	CampaignID int

	done chan struct{}
	err  error
}

// Done closes when the run has drained its batch.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err is valid once Done is closed.
func (r *Run) Err() error { return r.err }

// Supervisor owns the background dispatch runs. Each campaign's run is an
// independent task; there is no cross-campaign coordination or shared rate
// limit.
type Supervisor struct {
	Dispatcher *Dispatcher
	Log        *zap.Logger

	mu   sync.Mutex
	runs []*Run
	wg   sync.WaitGroup
}

func NewSupervisor(d *Dispatcher, log *zap.Logger) *Supervisor {
	return &Supervisor{Dispatcher: d, Log: log}
}

// Launch starts a fire-and-forget dispatch run. Callers observe progress by
// re-reading campaign and log state; tests can grab the handles via Runs.
func (s *Supervisor) Launch(campaignID int) {
	run := &Run{CampaignID: campaignID, done: make(chan struct{})}

	s.mu.Lock()
	s.runs = append(s.runs, run)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(run.done)
		run.err = s.Dispatcher.Run(context.Background(), campaignID)
		if run.err != nil {
			s.Log.Error("dispatch run failed",
				zap.Int("campaign_id", campaignID), zap.Error(run.err))
		}
	}()
}

// Runs returns every launched run handle.
func (s *Supervisor) Runs() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Run, len(s.runs))
	copy(out, s.runs)
	return out
}

// Wait blocks until every launched run has drained.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
