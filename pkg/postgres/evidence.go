package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// GetEvidenceTypes retrieves the full evidence catalog.
func (d *DB) GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT code, name, priority, kind, auto_fill_field, special_housing, keywords
		FROM evidence_types
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence types: %w", err)
	}
	defer rows.Close()

	var types []model.EvidenceType
	for rows.Next() {
		var t model.EvidenceType
		var kind string
		if err := rows.Scan(&t.Code, &t.Name, &t.Priority, &kind, &t.AutoFillField, &t.SpecialHousing, &t.Keywords); err != nil {
			return nil, fmt.Errorf("failed to scan evidence type: %w", err)
		}
		t.Kind = model.DataKind(kind)
		types = append(types, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evidence types: %w", err)
	}

	return types, nil
}

// GetEvidence retrieves a single evidence record, or db.ErrNotFound.
func (d *DB) GetEvidence(ctx context.Context, evidenceID int64) (model.Evidence, error) {
	var e model.Evidence
	var fileID *string
	var review string
	err := d.pool.QueryRow(ctx, `
		SELECT id, application_id, type_code, numeric_value, file_id, review
		FROM application_evidence
		WHERE id = $1
	`, evidenceID).Scan(&e.ID, &e.ApplicationID, &e.TypeCode, &e.NumericValue, &fileID, &review)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Evidence{}, db.ErrNotFound
	}
	if err != nil {
		return model.Evidence{}, fmt.Errorf("failed to query evidence %d: %w", evidenceID, err)
	}

	if fileID != nil {
		e.FileID = *fileID
	}
	if e.Review, err = reviewFromText(review); err != nil {
		return model.Evidence{}, fmt.Errorf("evidence %d: %w", evidenceID, err)
	}

	return e, nil
}

// UpdateEvidenceReview records the reviewer's decision on one evidence
// record. Returns db.ErrNotFound when the record does not exist.
func (d *DB) UpdateEvidenceReview(ctx context.Context, evidenceID int64, state model.ReviewState) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE application_evidence SET review = $1 WHERE id = $2
	`, reviewToText(state), evidenceID)
	if err != nil {
		return fmt.Errorf("failed to update evidence review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
