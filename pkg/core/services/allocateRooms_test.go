package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// mockAllocationStore implements AllocationStore for testing
type mockAllocationStore struct {
	types     []model.EvidenceType
	occupancy []db.RoomOccupancy
	pending   []db.PendingPlacement
	updates   []db.AssignmentUpdate
	applied   bool
}

func (m *mockAllocationStore) GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error) {
	return m.types, nil
}

func (m *mockAllocationStore) GetRoomOccupancy(ctx context.Context) ([]db.RoomOccupancy, error) {
	return m.occupancy, nil
}

func (m *mockAllocationStore) GetPendingPlacements(ctx context.Context) ([]db.PendingPlacement, error) {
	return m.pending, nil
}

func (m *mockAllocationStore) ApplyAllocations(ctx context.Context, updates []db.AssignmentUpdate) error {
	m.applied = true
	m.updates = updates
	return nil
}

func pendingPlacement(id int64, gender model.Gender, cost int, cohort, lang string) db.PendingPlacement {
	return db.PendingPlacement{
		AssignmentID: fmt.Sprintf("asg-%d", id),
		Application: model.Application{
			ID:          id,
			Status:      model.StatusAwaitingOrder,
			DormCost:    cost,
			TestResult:  cohort,
			TestAnswers: []string{lang},
			Student:     model.Student{ID: id, Gender: gender},
		},
	}
}

func TestAllocateRooms_PlacesAndPersists(t *testing.T) {
	store := &mockAllocationStore{
		occupancy: []db.RoomOccupancy{
			{RoomID: 1, DormID: 1, DormName: "Dorm 1", Cost: 100, Number: "101", Capacity: 2},
		},
		pending: []db.PendingPlacement{
			pendingPlacement(1, model.GenderMale, 100, "A", "kz"),
			pendingPlacement(2, model.GenderMale, 100, "A", "kz"),
		},
	}

	result, err := AllocateRooms(context.Background(), store, AllocationConfig{
		LowFloorMaxFloor: 2,
		Languages:        []string{"kz", "ru"},
	}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, result.DryRun)
	assert.Len(t, result.Placements, 2)
	assert.Empty(t, result.Unplaced)

	require.True(t, store.applied)
	require.Len(t, store.updates, 2)
	for _, u := range store.updates {
		assert.Equal(t, int64(1), u.RoomID)
		assert.NotEmpty(t, u.Group)
	}
}

func TestAllocateRooms_DryRunDoesNotPersist(t *testing.T) {
	store := &mockAllocationStore{
		occupancy: []db.RoomOccupancy{
			{RoomID: 1, DormID: 1, DormName: "Dorm 1", Cost: 100, Number: "101", Capacity: 2},
		},
		pending: []db.PendingPlacement{
			pendingPlacement(1, model.GenderFemale, 100, "A", "ru"),
		},
	}

	result, err := AllocateRooms(context.Background(), store, AllocationConfig{
		Languages: []string{"kz", "ru"},
		DryRun:    true,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Len(t, result.Placements, 1)
	assert.False(t, store.applied)
}

func TestAllocateRooms_LowFloorEvidenceGuidesPlacement(t *testing.T) {
	store := &mockAllocationStore{
		types: []model.EvidenceType{
			{Code: "disability", Priority: 5, Kind: model.KindFile, SpecialHousing: true},
		},
		occupancy: []db.RoomOccupancy{
			{RoomID: 1, DormID: 1, DormName: "Dorm 1", Cost: 100, Number: "401", Capacity: 1},
			{RoomID: 2, DormID: 1, DormName: "Dorm 1", Cost: 100, Number: "102", Capacity: 1},
		},
	}

	priority := pendingPlacement(1, model.GenderMale, 100, "A", "kz")
	priority.Application.Evidence = []model.Evidence{
		{TypeCode: "disability", Review: model.ReviewApproved, FileID: "doc-1"},
	}
	store.pending = []db.PendingPlacement{
		priority,
		pendingPlacement(2, model.GenderMale, 100, "A", "kz"),
	}

	result, err := AllocateRooms(context.Background(), store, AllocationConfig{
		LowFloorMaxFloor: 2,
		Languages:        []string{"kz"},
	}, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, result.Placements, 2)
	for _, p := range result.Placements {
		if p.Applicant.ApplicationID == 1 {
			assert.Equal(t, int64(2), p.RoomID, "priority applicant must land on the low floor")
		}
	}
}

func TestAllocateRooms_EmptyDeltaChangesNothing(t *testing.T) {
	store := &mockAllocationStore{
		occupancy: []db.RoomOccupancy{
			{RoomID: 1, DormID: 1, DormName: "Dorm 1", Cost: 100, Number: "101", Capacity: 2, Occupied: 2, Gender: "M"},
		},
	}

	result, err := AllocateRooms(context.Background(), store, AllocationConfig{
		Languages: []string{"kz"},
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Empty(t, result.Placements)
	assert.Empty(t, result.Unplaced)
	assert.Empty(t, store.updates)
}

func TestAllocateRooms_NoRoomsConfigured(t *testing.T) {
	store := &mockAllocationStore{}

	_, err := AllocateRooms(context.Background(), store, AllocationConfig{
		Languages: []string{"kz"},
	}, zap.NewNop())
	assert.ErrorContains(t, err, "no rooms configured")
}
