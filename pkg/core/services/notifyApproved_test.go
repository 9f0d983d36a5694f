package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// mockRebalanceStore implements RebalanceStore for testing
type mockRebalanceStore struct {
	capacities         []db.CostCapacity
	types              []model.EvidenceType
	applications       []model.Application
	transfers          []db.TierTransfer
	awaitingPaymentIDs []int64
	applyErr           error
}

func (m *mockRebalanceStore) GetCostCapacities(ctx context.Context) ([]db.CostCapacity, error) {
	return m.capacities, nil
}

func (m *mockRebalanceStore) GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error) {
	return m.types, nil
}

func (m *mockRebalanceStore) GetApplicationsByStatus(ctx context.Context, status model.Status) ([]model.Application, error) {
	return m.applications, nil
}

func (m *mockRebalanceStore) ApplyRebalance(ctx context.Context, transfers []db.TierTransfer, awaitingPaymentIDs []int64) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.transfers = transfers
	m.awaitingPaymentIDs = awaitingPaymentIDs
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

// mockNotifier implements Notifier for testing
type mockNotifier struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]error
}

func (m *mockNotifier) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[to]; ok {
		return err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func approvedAt(id int64, cost int, ent float64) model.Application {
	return model.Application{
		ID:        id,
		Status:    model.StatusApproved,
		DormCost:  cost,
		Student:   model.Student{ID: id, Course: 1, Email: fmt.Sprintf("s%d@example.com", id)},
		ENTResult: &ent,
	}
}

func TestNotifyApproved_TransfersLowestScorers(t *testing.T) {
	// Tier 100 holds 10 places but 12 approved applicants; tier 50 holds 5
	// with 3 applicants. The two weakest at 100 move down.
	store := &mockRebalanceStore{
		capacities: []db.CostCapacity{
			{Cost: 100, TotalPlaces: 10},
			{Cost: 50, TotalPlaces: 5},
		},
		types: entTypes(),
	}
	for i := 1; i <= 12; i++ {
		store.applications = append(store.applications, approvedAt(int64(i), 100, float64(60+i)))
	}
	for i := 13; i <= 15; i++ {
		store.applications = append(store.applications, approvedAt(int64(i), 50, float64(60+i)))
	}

	notifier := &mockNotifier{}
	result, err := NotifyApproved(context.Background(), store, notifier, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, result.Transfers, 2)
	// Weakest scores are applications 1 and 2
	assert.Equal(t, int64(1), result.Transfers[0].ApplicationID)
	assert.Equal(t, int64(2), result.Transfers[1].ApplicationID)
	for _, tr := range result.Transfers {
		assert.Equal(t, 100, tr.FromCost)
		assert.Equal(t, 50, tr.ToCost)
	}

	// Everyone approved moves to awaiting_payment, nobody is dropped
	assert.Len(t, store.awaitingPaymentIDs, 15)
	assert.Empty(t, result.UnresolvedOverflow)

	// Every applicant got an email; transferred ones got the substitution notice
	assert.Equal(t, 15, result.Notified)
	subjects := make(map[string]string)
	for _, e := range notifier.sent {
		subjects[e.to] = e.subject
	}
	assert.Equal(t, "Изменение выбранного общежития", subjects["s1@example.com"])
	assert.Equal(t, "Место в общежитии выделено", subjects["s5@example.com"])
}

func TestNotifyApproved_CheapestTierOverflowIsReported(t *testing.T) {
	store := &mockRebalanceStore{
		capacities: []db.CostCapacity{
			{Cost: 100, TotalPlaces: 5},
			{Cost: 50, TotalPlaces: 2},
		},
		types: entTypes(),
	}
	// 4 applicants at the cheapest tier with capacity 2: nowhere to go
	for i := 1; i <= 4; i++ {
		store.applications = append(store.applications, approvedAt(int64(i), 50, float64(70+i)))
	}

	notifier := &mockNotifier{}
	result, err := NotifyApproved(context.Background(), store, notifier, zap.NewNop())
	require.NoError(t, err)

	assert.Empty(t, result.Transfers)
	assert.Equal(t, map[int]int{50: 2}, result.UnresolvedOverflow)
	// Overflow does not block the payment requests
	assert.Len(t, store.awaitingPaymentIDs, 4)
}

func TestNotifyApproved_NoTransferWithoutSlack(t *testing.T) {
	store := &mockRebalanceStore{
		capacities: []db.CostCapacity{
			{Cost: 100, TotalPlaces: 1},
			{Cost: 50, TotalPlaces: 2},
		},
		types: entTypes(),
	}
	store.applications = append(store.applications,
		approvedAt(1, 100, 80),
		approvedAt(2, 100, 90),
		approvedAt(3, 50, 70),
		approvedAt(4, 50, 75),
	)

	notifier := &mockNotifier{}
	result, err := NotifyApproved(context.Background(), store, notifier, zap.NewNop())
	require.NoError(t, err)

	// Tier 50 is full, so tier 100's overflow stays put
	assert.Empty(t, result.Transfers)
	assert.Equal(t, map[int]int{100: 1}, result.UnresolvedOverflow)
}

func TestNotifyApproved_FailedEmailsAreCollected(t *testing.T) {
	store := &mockRebalanceStore{
		capacities:   []db.CostCapacity{{Cost: 100, TotalPlaces: 5}},
		types:        entTypes(),
		applications: []model.Application{approvedAt(1, 100, 80), approvedAt(2, 100, 85)},
	}

	notifier := &mockNotifier{failFor: map[string]error{
		"s1@example.com": errors.New("quota exceeded"),
	}}

	result, err := NotifyApproved(context.Background(), store, notifier, zap.NewNop())
	require.NoError(t, err)

	// The batch still committed
	assert.Len(t, store.awaitingPaymentIDs, 2)
	assert.Equal(t, 1, result.Notified)
	require.Len(t, result.FailedNotifications, 1)
	assert.Equal(t, "s1@example.com", result.FailedNotifications[0].Email)
	assert.Contains(t, result.FailedNotifications[0].Error, "quota exceeded")
}

func TestNotifyApproved_ApplyErrorSkipsNotifications(t *testing.T) {
	store := &mockRebalanceStore{
		capacities:   []db.CostCapacity{{Cost: 100, TotalPlaces: 5}},
		types:        entTypes(),
		applications: []model.Application{approvedAt(1, 100, 80)},
		applyErr:     errors.New("deadlock detected"),
	}

	notifier := &mockNotifier{}
	_, err := NotifyApproved(context.Background(), store, notifier, zap.NewNop())
	assert.ErrorContains(t, err, "deadlock detected")
	assert.Empty(t, notifier.sent)
}
