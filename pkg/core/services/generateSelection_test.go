package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
)

// mockSelectionStore implements SelectionStore for testing
type mockSelectionStore struct {
	totalPlaces   int
	types         []model.EvidenceType
	applications  []model.Application
	acceptedIDs   []int64
	rejectedIDs   []int64
	getPlacesErr  error
	applyErr      error
	statusQueried model.Status
}

func (m *mockSelectionStore) GetTotalPlaces(ctx context.Context) (int, error) {
	if m.getPlacesErr != nil {
		return 0, m.getPlacesErr
	}
	return m.totalPlaces, nil
}

func (m *mockSelectionStore) GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error) {
	return m.types, nil
}

func (m *mockSelectionStore) GetApplicationsByStatus(ctx context.Context, status model.Status) ([]model.Application, error) {
	m.statusQueried = status
	return m.applications, nil
}

func (m *mockSelectionStore) ApplySelection(ctx context.Context, acceptedIDs, rejectedIDs []int64) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.acceptedIDs = acceptedIDs
	m.rejectedIDs = rejectedIDs
	return nil
}

func entTypes() []model.EvidenceType {
	return []model.EvidenceType{
		{Code: "ent_result", Priority: 10, Kind: model.KindNumeric, AutoFillField: "ent_result"},
	}
}

func firstYear(id int64, ent float64) model.Application {
	return model.Application{
		ID:        id,
		Status:    model.StatusPending,
		Student:   model.Student{ID: id, Course: 1},
		ENTResult: &ent,
	}
}

func TestGenerateSelection_AcceptsTopScorers(t *testing.T) {
	store := &mockSelectionStore{
		totalPlaces: 2,
		types:       entTypes(),
		applications: []model.Application{
			firstYear(1, 70),
			firstYear(2, 95),
			firstYear(3, 80),
		},
	}

	result, err := GenerateSelection(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, store.statusQueried)
	assert.Equal(t, []int64{2, 3}, store.acceptedIDs)
	assert.Equal(t, []int64{1}, store.rejectedIDs)
	assert.Equal(t, 2, result.TotalPlaces)
	require.Len(t, result.Accepted, 2)
	assert.Equal(t, int64(2), result.Accepted[0].ApplicationID)
	assert.InDelta(t, 950, result.Accepted[0].Score, 1e-9)
	assert.Equal(t, 1, result.RejectedCount)
}

func TestGenerateSelection_FewerApplicantsThanPlaces(t *testing.T) {
	store := &mockSelectionStore{
		totalPlaces: 10,
		types:       entTypes(),
		applications: []model.Application{
			firstYear(1, 70),
			firstYear(2, 95),
		},
	}

	result, err := GenerateSelection(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, store.acceptedIDs, 2)
	assert.Empty(t, store.rejectedIDs)
	assert.Equal(t, 0, result.RejectedCount)
}

func TestGenerateSelection_TiesBreakByApplicationID(t *testing.T) {
	store := &mockSelectionStore{
		totalPlaces: 1,
		types:       entTypes(),
		applications: []model.Application{
			firstYear(7, 80),
			firstYear(3, 80),
		},
	}

	_, err := GenerateSelection(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, store.acceptedIDs)
	assert.Equal(t, []int64{7}, store.rejectedIDs)
}

func TestGenerateSelection_NoPlacesConfigured(t *testing.T) {
	store := &mockSelectionStore{totalPlaces: 0}

	_, err := GenerateSelection(context.Background(), store, zap.NewNop())
	assert.ErrorContains(t, err, "no dormitory places configured")
}

func TestGenerateSelection_StoreErrorPropagates(t *testing.T) {
	store := &mockSelectionStore{getPlacesErr: errors.New("connection refused")}

	_, err := GenerateSelection(context.Background(), store, zap.NewNop())
	assert.ErrorContains(t, err, "connection refused")
}
