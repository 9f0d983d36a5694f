package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
)

// EvidenceStore defines the database operations needed to review evidence.
type EvidenceStore interface {
	// GetEvidence returns db.ErrNotFound when the record does not exist.
	GetEvidence(ctx context.Context, evidenceID int64) (model.Evidence, error)
	GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error)
	UpdateEvidenceReview(ctx context.Context, evidenceID int64, state model.ReviewState) error
}

// ReviewEvidence records a reviewer's decision on one evidence record.
//
// Approving file-backed evidence is guarded by the evidence type's keyword
// set: when the caller supplies the document's extracted text and none of the
// keywords appear in it, the approval is refused so mislabeled uploads cannot
// enter scoring. Rejections and types without keywords pass through
// unchecked.
func ReviewEvidence(
	ctx context.Context,
	store EvidenceStore,
	evidenceID int64,
	decision model.ReviewState,
	extractedText string,
	logger *zap.Logger,
) error {
	logger.Debug("Reviewing evidence",
		zap.Int64("evidence_id", evidenceID),
		zap.Int("decision", int(decision)))

	evidence, err := store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return fmt.Errorf("failed to fetch evidence %d: %w", evidenceID, err)
	}

	if decision == model.ReviewApproved && evidence.HasFile() && extractedText != "" {
		types, err := store.GetEvidenceTypes(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch evidence types: %w", err)
		}
		catalog := model.NewCatalog(types)

		t, ok := catalog.ByCode(evidence.TypeCode)
		if !ok {
			return fmt.Errorf("evidence %d has unknown type %q", evidenceID, evidence.TypeCode)
		}
		if !t.MatchesKeywords(extractedText) {
			return fmt.Errorf("document text matches no keyword of evidence type %q", evidence.TypeCode)
		}
	}

	if err := store.UpdateEvidenceReview(ctx, evidenceID, decision); err != nil {
		return fmt.Errorf("failed to update evidence review: %w", err)
	}

	logger.Info("Evidence reviewed",
		zap.Int64("evidence_id", evidenceID),
		zap.Int64("application_id", evidence.ApplicationID),
		zap.String("type", evidence.TypeCode),
		zap.Int("decision", int(decision)))

	return nil
}
