package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/segment"
)

// ---- fakes ----

type fakeCustomerRepo struct {
	customers []model.Customer
}

func (f *fakeCustomerRepo) Create(c *model.Customer) error { return errors.New("not implemented") }

func (f *fakeCustomerRepo) GetByID(id int) (*model.Customer, error) {
	for i := range f.customers {
		if f.customers[i].ID == id {
			c := f.customers[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerRepo) List(offset, limit int) ([]model.Customer, int, error) {
	return f.customers, len(f.customers), nil
}

func (f *fakeCustomerRepo) FindBySegment(p *segment.Predicate) ([]model.Customer, error) {
	matched := []model.Customer{}
	for i := range f.customers {
		if p.Match(&f.customers[i]) {
			matched = append(matched, f.customers[i])
		}
	}
	return matched, nil
}

func (f *fakeCustomerRepo) CountBySegment(p *segment.Predicate) (int, error) {
	matched, err := f.FindBySegment(p)
	return len(matched), err
}

func (f *fakeCustomerRepo) BulkCreate(customers []model.Customer) (int, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeCustomerRepo) UpdateAggregates(customerID int, totalSpend float64, visitCount int, lastVisit time.Time) error {
	return errors.New("not implemented")
}

type fakeCampaignRepo struct {
	campaigns map[int]*model.Campaign
	nextID    int
	launched  map[int]time.Time
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns: map[int]*model.Campaign{},
		nextID:    1,
		launched:  map[int]time.Time{},
	}
}

func (f *fakeCampaignRepo) Create(c *model.Campaign) error {
	c.ID = f.nextID
	f.nextID++
	cp := *c
	f.campaigns[c.ID] = &cp
	return nil
}

func (f *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	all := []*model.Campaign{}
	for _, c := range f.campaigns {
		if status == "" || c.Status == status {
			all = append(all, c)
		}
	}
	total := len(all)
	if offset >= len(all) {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeCampaignRepo) UpdateStats(campaignID int, stats model.CampaignStats, status string) error {
	c, ok := f.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Stats = stats
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) MarkLaunched(campaignID int, at time.Time) (bool, error) {
	if _, ok := f.launched[campaignID]; ok {
		return false, nil
	}
	f.launched[campaignID] = at
	return true, nil
}

func (f *fakeCampaignRepo) ListDue(now time.Time) ([]*model.Campaign, error) {
	due := []*model.Campaign{}
	for _, c := range f.campaigns {
		if c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			if _, launched := f.launched[c.ID]; !launched {
				due = append(due, c)
			}
		}
	}
	return due, nil
}

type fakeMessageLogRepo struct {
	logs    map[int]*model.MessageLog
	nextID  int
	bulkErr error
}

func newFakeMessageLogRepo() *fakeMessageLogRepo {
	return &fakeMessageLogRepo{logs: map[int]*model.MessageLog{}, nextID: 1}
}

func (f *fakeMessageLogRepo) BulkCreate(logs []*model.MessageLog) error {
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for _, m := range logs {
		m.ID = f.nextID
		f.nextID++
		cp := *m
		f.logs[m.ID] = &cp
	}
	return nil
}

func (f *fakeMessageLogRepo) GetByID(id int) (*model.MessageLog, error) {
	m, ok := f.logs[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessageLogRepo) ListPending(campaignID int) ([]*model.MessageLog, error) {
	out := []*model.MessageLog{}
	for _, m := range f.logs {
		if m.CampaignID == campaignID && m.Status == model.MessagePending {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMessageLogRepo) ListByCampaign(campaignID int) ([]*model.MessageLog, error) {
	out := []*model.MessageLog{}
	for _, m := range f.logs {
		if m.CampaignID == campaignID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMessageLogRepo) MarkTerminalFromPending(id int, status string, sentAt *time.Time, receipt json.RawMessage) (bool, error) {
	m, ok := f.logs[id]
	if !ok || m.Status != model.MessagePending {
		return false, nil
	}
	m.Status = status
	m.SentAt = sentAt
	m.DeliveryReceipt = receipt
	return true, nil
}

func (f *fakeMessageLogRepo) CountByStatus(campaignID int) (map[string]int, error) {
	counts := map[string]int{
		model.MessagePending: 0,
		model.MessageSent:    0,
		model.MessageFailed:  0,
	}
	for _, m := range f.logs {
		if m.CampaignID == campaignID {
			counts[m.Status]++
		}
	}
	return counts, nil
}

type fakeLauncher struct {
	launched []int
}

func (f *fakeLauncher) Launch(campaignID int) {
	f.launched = append(f.launched, campaignID)
}

// ---- tests ----

func testCustomers() []model.Customer {
	now := time.Now()
	return []model.Customer{
		{ID: 1, Name: "Rajesh", Email: "rajesh@example.com", TotalSpend: 6000, VisitCount: 2, LastVisit: now.Add(-40 * 24 * time.Hour)},
		{ID: 2, Name: "Priya", Email: "priya@example.com", TotalSpend: 4000, VisitCount: 8, LastVisit: now.Add(-2 * 24 * time.Hour)},
		{ID: 3, Name: "Amit", Email: "amit@example.com", TotalSpend: 9000, VisitCount: 1, LastVisit: now.Add(-100 * 24 * time.Hour)},
	}
}

func newTestService() (*CampaignService, *fakeCampaignRepo, *fakeMessageLogRepo, *fakeLauncher) {
	campaigns := newFakeCampaignRepo()
	logs := newFakeMessageLogRepo()
	launcher := &fakeLauncher{}
	svc := &CampaignService{
		CampaignRepo:   campaigns,
		CustomerRepo:   &fakeCustomerRepo{customers: testCustomers()},
		MessageLogRepo: logs,
		Launcher:       launcher,
		Log:            zap.NewNop(),
	}
	return svc, campaigns, logs, launcher
}

func TestCreateCampaignFanOut(t *testing.T) {
	svc, campaigns, logs, launcher := newTestService()

	c, err := svc.CreateCampaign(CreateCampaignInput{
		Name:    "Big spenders",
		Rules:   json.RawMessage(`{"total_spend": {"gt": 5000}}`),
		Message: "Hello {name}!",
	})
	require.NoError(t, err)

	// Customers 1 and 3 spend over 5000.
	assert.Equal(t, 2, c.AudienceSize)
	assert.Equal(t, model.CampaignStatusActive, c.Status)
	assert.Equal(t, model.CampaignStats{Total: 2, Pending: 2}, c.Stats)

	created, err := logs.ListByCampaign(c.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, m := range created {
		assert.Equal(t, model.MessagePending, m.Status)
	}

	// Exactly one log per matched customer, with the template rendered.
	byCustomer := map[int]string{}
	for _, m := range created {
		byCustomer[m.CustomerID] = m.Message
	}
	assert.Equal(t, "Hello Rajesh!", byCustomer[1])
	assert.Equal(t, "Hello Amit!", byCustomer[3])

	// Dispatch launched once, claim recorded.
	assert.Equal(t, []int{c.ID}, launcher.launched)
	_, claimed := campaigns.launched[c.ID]
	assert.True(t, claimed)
}

func TestCreateCampaignEmptyAudience(t *testing.T) {
	svc, _, logs, launcher := newTestService()

	_, err := svc.CreateCampaign(CreateCampaignInput{
		Rules: json.RawMessage(`{"total_spend": {"gt": 1000000}}`),
	})
	require.Error(t, err)

	var empty *appErrors.ErrEmptyAudience
	assert.True(t, errors.As(err, &empty))
	assert.Empty(t, logs.logs)
	assert.Empty(t, launcher.launched)
}

// A fan-out failure must not leave a live campaign claiming pending
// deliveries that were never recorded.
func TestCreateCampaignFanOutFailureMarksCampaignFailed(t *testing.T) {
	svc, campaigns, logs, launcher := newTestService()
	logs.bulkErr = errors.New("connection reset")

	_, err := svc.CreateCampaign(CreateCampaignInput{
		Rules: json.RawMessage(`{"total_spend": {"gt": 5000}}`),
	})
	require.Error(t, err)

	require.Len(t, campaigns.campaigns, 1)
	for _, c := range campaigns.campaigns {
		assert.Equal(t, model.CampaignStatusFailed, c.Status)
		assert.Equal(t, model.CampaignStats{}, c.Stats)
	}
	assert.Empty(t, launcher.launched)
}

func TestCreateCampaignInvalidRules(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreateCampaign(CreateCampaignInput{
		Rules: json.RawMessage(`{"total_spend": {"around": 5000}}`),
	})
	assert.Error(t, err)
}

func TestCreateCampaignDefaults(t *testing.T) {
	svc, _, logs, _ := newTestService()

	c, err := svc.CreateCampaign(CreateCampaignInput{
		Rules: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, c.Name)
	assert.Equal(t, "system", c.CreatedBy)
	assert.Equal(t, 3, c.AudienceSize)

	created, _ := logs.ListByCampaign(c.ID)
	require.NotEmpty(t, created)
	// Default template renders per customer.
	for _, m := range created {
		assert.Contains(t, m.Message, "special offer")
		assert.NotContains(t, m.Message, "{name}")
	}
}

func TestCreateCampaignScheduledDoesNotLaunch(t *testing.T) {
	svc, campaigns, logs, launcher := newTestService()

	future := time.Now().Add(2 * time.Hour)
	c, err := svc.CreateCampaign(CreateCampaignInput{
		Rules:       json.RawMessage(`{}`),
		ScheduledAt: &future,
	})
	require.NoError(t, err)

	// Fan-out happens at creation; launch waits for the scheduler.
	created, _ := logs.ListByCampaign(c.ID)
	assert.Len(t, created, 3)
	assert.Empty(t, launcher.launched)
	_, claimed := campaigns.launched[c.ID]
	assert.False(t, claimed)
}

func TestLaunchCampaignClaimsOnce(t *testing.T) {
	svc, _, _, launcher := newTestService()

	c, err := svc.CreateCampaign(CreateCampaignInput{Rules: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.Len(t, launcher.launched, 1)

	// A second launch attempt finds the claim taken and does nothing.
	require.NoError(t, svc.LaunchCampaign(c.ID))
	assert.Len(t, launcher.launched, 1)
}

func TestLaunchDue(t *testing.T) {
	svc, _, _, launcher := newTestService()

	at := time.Now().Add(2 * time.Hour)
	c, err := svc.CreateCampaign(CreateCampaignInput{
		Rules:       json.RawMessage(`{}`),
		ScheduledAt: &at,
	})
	require.NoError(t, err)
	require.Empty(t, launcher.launched)

	// Sweep before the schedule: nothing due.
	require.NoError(t, svc.LaunchDue(time.Now()))
	assert.Empty(t, launcher.launched)

	// Sweep after: launched exactly once, and the next sweep is a no-op.
	require.NoError(t, svc.LaunchDue(time.Now().Add(3*time.Hour)))
	assert.Equal(t, []int{c.ID}, launcher.launched)

	require.NoError(t, svc.LaunchDue(time.Now().Add(4*time.Hour)))
	assert.Len(t, launcher.launched, 1)
}

func TestListCampaignsPagination(t *testing.T) {
	svc, _, _, _ := newTestService()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateCampaign(CreateCampaignInput{Rules: json.RawMessage(`{}`)})
		require.NoError(t, err)
	}

	campaigns, pagination, err := svc.ListCampaigns(1, 2, "")
	require.NoError(t, err)
	assert.Len(t, campaigns, 2)
	assert.Equal(t, 5, pagination["total_count"])
	assert.Equal(t, 3, pagination["total_pages"])
	assert.Equal(t, 1, pagination["page"])

	// Out-of-range page comes back empty with the same totals.
	campaigns, pagination, err = svc.ListCampaigns(10, 2, "")
	require.NoError(t, err)
	assert.Empty(t, campaigns)
	assert.Equal(t, 5, pagination["total_count"])
}

func TestGetCampaignDetails(t *testing.T) {
	svc, _, _, _ := newTestService()

	c, err := svc.CreateCampaign(CreateCampaignInput{Rules: json.RawMessage(`{}`)})
	require.NoError(t, err)

	details, err := svc.GetCampaignDetails(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, details.Campaign.ID)
	assert.Len(t, details.Logs, 3)

	_, err = svc.GetCampaignDetails(999)
	var notFound *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestRenderPreview(t *testing.T) {
	svc, _, _, _ := newTestService()

	c, err := svc.CreateCampaign(CreateCampaignInput{
		Rules:   json.RawMessage(`{}`),
		Message: "Hey {name}, 10% off!",
	})
	require.NoError(t, err)

	out, err := svc.RenderPreview(c.ID, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hey Priya, 10% off!", out)

	override := "Bye {name}"
	out, err = svc.RenderPreview(c.ID, 2, &override)
	require.NoError(t, err)
	assert.Equal(t, "Bye Priya", out)

	_, err = svc.RenderPreview(c.ID, 999, nil)
	var notFound *appErrors.ErrCustomerNotFound
	assert.True(t, errors.As(err, &notFound))
}
