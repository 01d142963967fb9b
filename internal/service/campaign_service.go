// internal/service/campaign_service.go
package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/segment"
)

// DispatchLauncher hands a campaign's pending logs to the delivery pipeline.
// Implementations run in the background (in-process supervisor) or publish a
// job for a worker (AMQP queue); the campaign-creation response never waits
// on either.
type DispatchLauncher interface {
	Launch(campaignID int)
}

type CampaignService struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	CustomerRepo   repository.CustomerRepositoryInterface
	MessageLogRepo repository.MessageLogRepositoryInterface
	Launcher       DispatchLauncher
	Log            *zap.Logger
}

type CreateCampaignInput struct {
	Name        string
	Rules       json.RawMessage
	Message     string
	CreatedBy   string
	ScheduledAt *time.Time
}

const defaultTemplate = "Hi {name}, here's a special offer for you!"

// CreateCampaign resolves the audience snapshot, persists the campaign with
// seeded stats, fans out one PENDING log per matched customer and launches
// dispatch without awaiting it. Later customer changes never touch the
// snapshot, the stored rules or the created logs.
func (s *CampaignService) CreateCampaign(in CreateCampaignInput) (*model.Campaign, error) {
	now := time.Now()

	pred, err := segment.Parse(in.Rules, now)
	if err != nil {
		return nil, err
	}

	customers, err := s.CustomerRepo.FindBySegment(pred)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, appErrors.NewEmptyAudience()
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("Campaign %d", now.UnixMilli())
	}
	message := in.Message
	if strings.TrimSpace(message) == "" {
		message = defaultTemplate
	}
	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	audience := len(customers)
	c := &model.Campaign{
		Name:         name,
		Rules:        in.Rules,
		Message:      message,
		CreatedBy:    createdBy,
		AudienceSize: audience,
		Status:       model.CampaignStatusActive,
		Stats: model.CampaignStats{
			Total:   audience,
			Pending: audience,
		},
		ScheduledAt: in.ScheduledAt,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	logs := make([]*model.MessageLog, 0, audience)
	for _, customer := range customers {
		logs = append(logs, &model.MessageLog{
			CampaignID: c.ID,
			CustomerID: customer.ID,
			Message:    RenderTemplate(message, map[string]string{"name": customer.Name}),
			Status:     model.MessagePending,
		})
	}
	if err := s.MessageLogRepo.BulkCreate(logs); err != nil {
		// The campaign row is already persisted; with no logs its seeded
		// pending stats describe nothing. Mark it failed so it never
		// dispatches or reads as deliverable.
		if markErr := s.CampaignRepo.UpdateStats(c.ID, model.CampaignStats{}, model.CampaignStatusFailed); markErr != nil {
			s.Log.Error("failed to mark campaign failed after fan-out error",
				zap.Int("campaign_id", c.ID), zap.Error(markErr))
		}
		return nil, err
	}

	if in.ScheduledAt == nil || !in.ScheduledAt.After(now) {
		if err := s.LaunchCampaign(c.ID); err != nil {
			s.Log.Error("failed to launch campaign dispatch",
				zap.Int("campaign_id", c.ID), zap.Error(err))
		}
	} else {
		s.Log.Info("campaign scheduled",
			zap.Int("campaign_id", c.ID), zap.Time("scheduled_at", *in.ScheduledAt))
	}

	return c, nil
}

// LaunchCampaign claims the campaign's single dispatch launch and hands it
// to the launcher. A campaign already claimed (by a concurrent creation or
// the scheduler) is left alone.
func (s *CampaignService) LaunchCampaign(campaignID int) error {
	claimed, err := s.CampaignRepo.MarkLaunched(campaignID, time.Now())
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	s.Launcher.Launch(campaignID)
	return nil
}

// LaunchDue launches every scheduled campaign whose time has come. Called
// periodically by the cron scheduler.
func (s *CampaignService) LaunchDue(now time.Time) error {
	due, err := s.CampaignRepo.ListDue(now)
	if err != nil {
		return err
	}
	for _, c := range due {
		if err := s.LaunchCampaign(c.ID); err != nil {
			s.Log.Error("failed to launch scheduled campaign",
				zap.Int("campaign_id", c.ID), zap.Error(err))
			continue
		}
		s.Log.Info("scheduled campaign launched", zap.Int("campaign_id", c.ID))
	}
	return nil
}

type CampaignDetails struct {
	Campaign *model.Campaign     `json:"campaign"`
	Logs     []*model.MessageLog `json:"logs"`
}

func (s *CampaignService) GetCampaignDetails(id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	logs, err := s.MessageLogRepo.ListByCampaign(id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Logs: logs}, nil
}

// ListCampaigns fetches campaigns newest-first with pagination.
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// RenderPreview renders the campaign template for one customer, optionally
// with an override template.
func (s *CampaignService) RenderPreview(campaignID, customerID int, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}

	customer, err := s.CustomerRepo.GetByID(customerID)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", appErrors.NewCustomerNotFound(customerID)
	}

	template := campaign.Message
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	return RenderTemplate(template, map[string]string{"name": customer.Name}), nil
}
