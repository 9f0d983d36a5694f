package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/allocator"
	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// AllocationStore defines the database operations needed to place paid
// applicants into rooms.
type AllocationStore interface {
	GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error)
	GetRoomOccupancy(ctx context.Context) ([]db.RoomOccupancy, error)
	// GetPendingPlacements returns awaiting_order applications whose
	// placeholder assignment has no room yet.
	GetPendingPlacements(ctx context.Context) ([]db.PendingPlacement, error)
	ApplyAllocations(ctx context.Context, updates []db.AssignmentUpdate) error
}

// AllocationConfig carries the tunables of one allocation run.
type AllocationConfig struct {
	LowFloorMaxFloor int
	Languages        []string
	DryRun           bool
}

// AllocationResult summarizes one allocation batch.
type AllocationResult struct {
	DryRun        bool
	Placements    []allocator.Placement
	Unplaced      []allocator.Applicant
	UnfilledRooms int
}

// AllocateRooms assigns every pending paid applicant a concrete room. The
// grouping rules live in the allocator package; this service only loads the
// current occupancy picture, runs the engine and persists the outcome. With
// DryRun set the computed placements are returned without touching the
// database.
func AllocateRooms(
	ctx context.Context,
	store AllocationStore,
	cfg AllocationConfig,
	logger *zap.Logger,
) (*AllocationResult, error) {
	logger.Debug("Starting allocateRooms", zap.Bool("dry_run", cfg.DryRun))

	types, err := store.GetEvidenceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch evidence types: %w", err)
	}
	catalog := model.NewCatalog(types)

	occupancy, err := store.GetRoomOccupancy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room occupancy: %w", err)
	}
	if len(occupancy) == 0 {
		return nil, errors.New("no rooms configured")
	}

	pending, err := store.GetPendingPlacements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending placements: %w", err)
	}
	logger.Debug("Loaded allocation inputs",
		zap.Int("rooms", len(occupancy)),
		zap.Int("pending", len(pending)))

	rooms := make([]*allocator.RoomState, 0, len(occupancy))
	for _, o := range occupancy {
		rooms = append(rooms, &allocator.RoomState{
			RoomID:   o.RoomID,
			DormID:   o.DormID,
			DormName: o.DormName,
			Cost:     o.Cost,
			Number:   o.Number,
			Floor:    model.Room{Number: o.Number}.Floor(),
			Capacity: o.Capacity,
			Occupied: o.Occupied,
			Gender:   model.Gender(o.Gender),
		})
	}

	applicants := make([]allocator.Applicant, 0, len(pending))
	for _, p := range pending {
		app := p.Application
		applicants = append(applicants, allocator.Applicant{
			ApplicationID: app.ID,
			StudentID:     app.Student.ID,
			AssignmentID:  p.AssignmentID,
			Email:         app.Student.Email,
			FirstName:     app.Student.FirstName,
			Gender:        app.Student.Gender,
			DormCost:      app.DormCost,
			TestResult:    app.TestResult,
			Language:      app.Language(),
			NeedsLowFloor: app.NeedsLowFloor(catalog),
		})
	}

	outcome := allocator.Allocate(allocator.Config{
		Applicants:       applicants,
		Rooms:            rooms,
		LowFloorMaxFloor: cfg.LowFloorMaxFloor,
		Languages:        cfg.Languages,
	})

	result := &AllocationResult{
		DryRun:        cfg.DryRun,
		Placements:    outcome.Placements,
		Unplaced:      outcome.Unplaced,
		UnfilledRooms: outcome.UnfilledRooms,
	}

	if cfg.DryRun {
		logger.Info("Dry run allocation completed",
			zap.Int("placements", len(result.Placements)),
			zap.Int("unplaced", len(result.Unplaced)))
		return result, nil
	}

	updates := make([]db.AssignmentUpdate, 0, len(outcome.Placements))
	for _, p := range outcome.Placements {
		updates = append(updates, db.AssignmentUpdate{
			AssignmentID:  p.Applicant.AssignmentID,
			ApplicationID: p.Applicant.ApplicationID,
			RoomID:        p.RoomID,
			Group:         p.Group,
		})
	}

	if err := store.ApplyAllocations(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to apply room allocations: %w", err)
	}

	logger.Info("Room allocation completed",
		zap.Int("placements", len(result.Placements)),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Int("unfilled_rooms", result.UnfilledRooms))

	return result, nil
}
