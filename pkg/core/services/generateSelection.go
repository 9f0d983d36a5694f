package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
)

// SelectionStore defines the database operations needed to generate the
// admission selection.
type SelectionStore interface {
	GetTotalPlaces(ctx context.Context) (int, error)
	GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error)
	GetApplicationsByStatus(ctx context.Context, status model.Status) ([]model.Application, error)
	ApplySelection(ctx context.Context, acceptedIDs, rejectedIDs []int64) error
}

// AcceptedApplicant is one row of the selection report handed back to the
// admin for manual control before payment requests go out.
type AcceptedApplicant struct {
	ApplicationID int64
	StudentS      string
	FirstName     string
	LastName      string
	Course        int
	Score         float64
}

// SelectionResult summarizes one selection batch.
type SelectionResult struct {
	TotalPlaces   int
	Accepted      []AcceptedApplicant
	RejectedCount int
}

// GenerateSelection ranks all pending applications by score and accepts the
// top N, where N is the total number of dormitory places. The remainder are
// rejected. The batch is a single irreversible transition: re-running only
// ever sees applications that are still pending.
func GenerateSelection(
	ctx context.Context,
	store SelectionStore,
	logger *zap.Logger,
) (*SelectionResult, error) {
	logger.Debug("Starting generateSelection")

	totalPlaces, err := store.GetTotalPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch total places: %w", err)
	}
	if totalPlaces <= 0 {
		return nil, fmt.Errorf("no dormitory places configured")
	}
	logger.Debug("Total places", zap.Int("count", totalPlaces))

	types, err := store.GetEvidenceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch evidence types: %w", err)
	}
	catalog := model.NewCatalog(types)

	pending, err := store.GetApplicationsByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending applications: %w", err)
	}
	logger.Debug("Pending applications", zap.Int("count", len(pending)))

	scored := scoreAll(pending, catalog, logger)
	sortByScoreDesc(scored)

	cut := totalPlaces
	if cut > len(scored) {
		cut = len(scored)
	}
	selected := scored[:cut]
	rejected := scored[cut:]

	acceptedIDs := make([]int64, len(selected))
	accepted := make([]AcceptedApplicant, len(selected))
	for i, s := range selected {
		acceptedIDs[i] = s.app.ID
		accepted[i] = AcceptedApplicant{
			ApplicationID: s.app.ID,
			StudentS:      s.app.Student.S,
			FirstName:     s.app.Student.FirstName,
			LastName:      s.app.Student.LastName,
			Course:        s.app.Student.Course,
			Score:         s.score,
		}
	}

	rejectedIDs := make([]int64, len(rejected))
	for i, s := range rejected {
		rejectedIDs[i] = s.app.ID
	}

	if err := store.ApplySelection(ctx, acceptedIDs, rejectedIDs); err != nil {
		return nil, fmt.Errorf("failed to apply selection: %w", err)
	}

	logger.Info("Selection generated",
		zap.Int("accepted", len(acceptedIDs)),
		zap.Int("rejected", len(rejectedIDs)))

	return &SelectionResult{
		TotalPlaces:   totalPlaces,
		Accepted:      accepted,
		RejectedCount: len(rejectedIDs),
	}, nil
}
