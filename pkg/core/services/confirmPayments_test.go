package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// mockPaymentStore implements PaymentStore for testing
type mockPaymentStore struct {
	applications []model.Application
	updates      []db.PaymentUpdate
	applyErr     error
}

func (m *mockPaymentStore) GetApplicationsWithPaymentProof(ctx context.Context) ([]model.Application, error) {
	return m.applications, nil
}

func (m *mockPaymentStore) ApplyPayments(ctx context.Context, updates []db.PaymentUpdate) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.updates = updates
	return nil
}

func awaitingPayment(id int64, cost int, iin string) model.Application {
	return model.Application{
		ID:              id,
		Status:          model.StatusAwaitingPayment,
		DormCost:        cost,
		HasPaymentProof: true,
		Student:         model.Student{ID: id, IIN: iin},
	}
}

func TestConfirmPayments_ClassifiesAmounts(t *testing.T) {
	store := &mockPaymentStore{applications: []model.Application{
		awaitingPayment(1, 100, "000000000001"),
		awaitingPayment(2, 100, "000000000002"),
		awaitingPayment(3, 100, "000000000003"),
	}}

	ledger := []LedgerEntry{
		{IdentityKey: "000000000001", Paid: 100}, // full
		{IdentityKey: "000000000002", Paid: 50},  // half
		{IdentityKey: "000000000003", Paid: 70},  // neither
	}

	result, err := ConfirmPayments(context.Background(), store, ledger, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FullCount)
	assert.Equal(t, 1, result.HalfCount)
	assert.Equal(t, 1, result.UnresolvedCount)
	assert.Zero(t, result.UnmatchedApplications)

	require.Len(t, store.updates, 3)
	byApp := make(map[int64]db.PaymentUpdate)
	for _, u := range store.updates {
		byApp[u.ApplicationID] = u
	}

	// Resolved payments advance and reserve a placeholder
	assert.Equal(t, model.PaymentFull, byApp[1].Payment)
	assert.Equal(t, model.StatusAwaitingOrder, byApp[1].NewStatus)
	assert.True(t, byApp[1].CreatePlaceholder)
	assert.NotEmpty(t, byApp[1].AssignmentID)

	assert.Equal(t, model.PaymentHalf, byApp[2].Payment)
	assert.Equal(t, model.StatusAwaitingOrder, byApp[2].NewStatus)
	assert.True(t, byApp[2].CreatePlaceholder)

	// Unresolved payments are recorded but do not advance
	assert.Equal(t, model.PaymentUnresolved, byApp[3].Payment)
	assert.Empty(t, byApp[3].NewStatus)
	assert.False(t, byApp[3].CreatePlaceholder)
	assert.Empty(t, byApp[3].AssignmentID)
}

func TestConfirmPayments_MatchesStrippedLeadingZeros(t *testing.T) {
	store := &mockPaymentStore{applications: []model.Application{
		awaitingPayment(1, 200, "000123456789"),
	}}

	// Spreadsheet export dropped the leading zeros
	ledger := []LedgerEntry{{IdentityKey: "123456789", Paid: 200}}

	result, err := ConfirmPayments(context.Background(), store, ledger, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FullCount)
	assert.Empty(t, result.UnmatchedRows)
}

func TestConfirmPayments_ReportsUnmatchedBothWays(t *testing.T) {
	store := &mockPaymentStore{applications: []model.Application{
		awaitingPayment(1, 100, "000000000001"),
		awaitingPayment(2, 100, "000000000002"),
	}}

	ledger := []LedgerEntry{
		{IdentityKey: "000000000001", Paid: 100},
		{IdentityKey: "000000000099", Paid: 100}, // no such applicant
	}

	result, err := ConfirmPayments(context.Background(), store, ledger, zap.NewNop())
	require.NoError(t, err)

	// Application 2 has proof but no ledger row: left untouched
	assert.Equal(t, 1, result.UnmatchedApplications)
	require.Len(t, store.updates, 1)
	assert.Equal(t, int64(1), store.updates[0].ApplicationID)

	assert.Equal(t, []string{"000000000099"}, result.UnmatchedRows)
}

func TestConfirmPayments_RejectsInvalidRows(t *testing.T) {
	store := &mockPaymentStore{applications: []model.Application{
		awaitingPayment(1, 100, "000000000001"),
	}}

	ledger := []LedgerEntry{
		{IdentityKey: "", Paid: 100},             // missing key
		{IdentityKey: "000000000005", Paid: 0},   // non-positive amount
		{IdentityKey: "000000000001", Paid: 100}, // valid
	}

	result, err := ConfirmPayments(context.Background(), store, ledger, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, result.InvalidRows, 2)
	assert.Equal(t, 1, result.FullCount)
	// Invalid rows are not double-reported as unmatched
	assert.Empty(t, result.UnmatchedRows)
}
