// internal/scheduler/scheduler.go
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/service"
)

// Scheduler launches scheduled campaigns once their time arrives. The
// launch claim in the campaign repo makes a duplicate tick harmless.
type Scheduler struct {
	cron *cron.Cron
	svc  *service.CampaignService
	log  *zap.Logger
}

func New(svc *service.CampaignService, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		svc:  svc,
		log:  log,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@every 30s", func() {
		if err := s.svc.LaunchDue(time.Now()); err != nil {
			s.log.Error("scheduled launch sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("campaign scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
