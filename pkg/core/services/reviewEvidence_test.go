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

// mockEvidenceStore implements EvidenceStore for testing
type mockEvidenceStore struct {
	evidence map[int64]model.Evidence
	types    []model.EvidenceType
	updated  map[int64]model.ReviewState
}

func (m *mockEvidenceStore) GetEvidence(ctx context.Context, evidenceID int64) (model.Evidence, error) {
	e, ok := m.evidence[evidenceID]
	if !ok {
		return model.Evidence{}, db.ErrNotFound
	}
	return e, nil
}

func (m *mockEvidenceStore) GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error) {
	return m.types, nil
}

func (m *mockEvidenceStore) UpdateEvidenceReview(ctx context.Context, evidenceID int64, state model.ReviewState) error {
	if m.updated == nil {
		m.updated = make(map[int64]model.ReviewState)
	}
	m.updated[evidenceID] = state
	return nil
}

func evidenceStore() *mockEvidenceStore {
	return &mockEvidenceStore{
		evidence: map[int64]model.Evidence{
			1: {ID: 1, ApplicationID: 10, TypeCode: "orphan_status", FileID: "doc-1", Review: model.ReviewPending},
		},
		types: []model.EvidenceType{
			{Code: "orphan_status", Priority: 7, Kind: model.KindFile, Keywords: []string{"сирота"}},
		},
	}
}

func TestReviewEvidence_ApproveWithMatchingText(t *testing.T) {
	store := evidenceStore()

	err := ReviewEvidence(context.Background(), store, 1, model.ReviewApproved,
		"Справка: статус СИРОТА подтвержден", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, model.ReviewApproved, store.updated[1])
}

func TestReviewEvidence_ApproveRefusedOnKeywordMismatch(t *testing.T) {
	store := evidenceStore()

	err := ReviewEvidence(context.Background(), store, 1, model.ReviewApproved,
		"договор аренды квартиры", zap.NewNop())
	assert.ErrorContains(t, err, "no keyword")
	assert.Empty(t, store.updated)
}

func TestReviewEvidence_ApproveWithoutTextSkipsCheck(t *testing.T) {
	store := evidenceStore()

	err := ReviewEvidence(context.Background(), store, 1, model.ReviewApproved, "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, store.updated[1])
}

func TestReviewEvidence_RejectIsUnchecked(t *testing.T) {
	store := evidenceStore()

	err := ReviewEvidence(context.Background(), store, 1, model.ReviewRejected,
		"договор аренды квартиры", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, store.updated[1])
}

func TestReviewEvidence_MissingRecord(t *testing.T) {
	store := evidenceStore()

	err := ReviewEvidence(context.Background(), store, 99, model.ReviewApproved, "", zap.NewNop())
	assert.ErrorIs(t, err, db.ErrNotFound)
}
