package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

const applicationColumns = `
	a.id, a.dorm_cost, a.status, a.test_result, a.test_answers,
	a.ent_result, a.gpa, a.payment, a.has_payment_proof,
	s.id, s.s, s.first_name, s.last_name, s.middle_name,
	s.gender, s.course, s.email, s.phone, s.iin
`

// GetApplicationsByStatus retrieves applications in the given lifecycle
// state, with their students and evidence attached.
func (d *DB) GetApplicationsByStatus(ctx context.Context, status model.Status) ([]model.Application, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications a
		JOIN students s ON s.id = a.student_id
		WHERE a.status = $1
		ORDER BY a.id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}

	apps, err := scanApplications(rows)
	if err != nil {
		return nil, err
	}

	if err := d.attachEvidence(ctx, apps); err != nil {
		return nil, err
	}

	return apps, nil
}

// GetApplicationsWithPaymentProof retrieves awaiting_payment applications
// that have attached a payment proof. Evidence is not loaded; reconciliation
// only needs the student identity and the tier cost.
func (d *DB) GetApplicationsWithPaymentProof(ctx context.Context) ([]model.Application, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications a
		JOIN students s ON s.id = a.student_id
		WHERE a.status = $1 AND a.has_payment_proof
		ORDER BY a.id
	`, string(model.StatusAwaitingPayment))
	if err != nil {
		return nil, fmt.Errorf("failed to query applications with payment proof: %w", err)
	}

	return scanApplications(rows)
}

// GetPartialPayments retrieves half-paid applications with contact details.
func (d *DB) GetPartialPayments(ctx context.Context) ([]db.PartialPayment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT a.id, s.email, s.first_name, s.last_name, a.dorm_cost
		FROM applications a
		JOIN students s ON s.id = a.student_id
		WHERE a.payment = 'half'
		ORDER BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partial payments: %w", err)
	}
	defer rows.Close()

	var partials []db.PartialPayment
	for rows.Next() {
		var p db.PartialPayment
		if err := rows.Scan(&p.ApplicationID, &p.Email, &p.FirstName, &p.LastName, &p.DormCost); err != nil {
			return nil, fmt.Errorf("failed to scan partial payment: %w", err)
		}
		partials = append(partials, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partial payments: %w", err)
	}

	return partials, nil
}

// ApplySelection commits one selection batch: accepted applications become
// approved, the rest rejected. Status guards make a repeated run a no-op.
func (d *DB) ApplySelection(ctx context.Context, acceptedIDs, rejectedIDs []int64) error {
	return d.withBatchLock(ctx, lockSelection, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE applications SET status = $1
			WHERE id = ANY($2) AND status = $3
		`, string(model.StatusApproved), acceptedIDs, string(model.StatusPending)); err != nil {
			return fmt.Errorf("failed to approve applications: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE applications SET status = $1
			WHERE id = ANY($2) AND status = $3
		`, string(model.StatusRejected), rejectedIDs, string(model.StatusPending)); err != nil {
			return fmt.Errorf("failed to reject applications: %w", err)
		}

		return nil
	})
}

// ApplyRebalance commits one rebalance batch: transferred applications move
// to their cheaper tier, then every listed application becomes
// awaiting_payment. Each transfer is guarded on the source tier so a
// repeated run cannot move an application twice.
func (d *DB) ApplyRebalance(ctx context.Context, transfers []db.TierTransfer, awaitingPaymentIDs []int64) error {
	return d.withBatchLock(ctx, lockRebalance, func(tx pgx.Tx) error {
		for _, t := range transfers {
			if _, err := tx.Exec(ctx, `
				UPDATE applications SET dorm_cost = $1
				WHERE id = $2 AND status = $3 AND dorm_cost = $4
			`, t.ToCost, t.ApplicationID, string(model.StatusApproved), t.FromCost); err != nil {
				return fmt.Errorf("failed to transfer application %d: %w", t.ApplicationID, err)
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE applications SET status = $1
			WHERE id = ANY($2) AND status = $3
		`, string(model.StatusAwaitingPayment), awaitingPaymentIDs, string(model.StatusApproved)); err != nil {
			return fmt.Errorf("failed to move applications to awaiting_payment: %w", err)
		}

		return nil
	})
}

// ApplyPayments commits one reconciliation batch. Placeholder assignments
// are inserted only when none exists for the application, so a repeated run
// never duplicates them.
func (d *DB) ApplyPayments(ctx context.Context, updates []db.PaymentUpdate) error {
	return d.withBatchLock(ctx, lockPayments, func(tx pgx.Tx) error {
		for _, u := range updates {
			if _, err := tx.Exec(ctx, `
				UPDATE applications SET payment = $1 WHERE id = $2
			`, paymentToText(u.Payment), u.ApplicationID); err != nil {
				return fmt.Errorf("failed to record payment for application %d: %w", u.ApplicationID, err)
			}

			if u.NewStatus != "" {
				if _, err := tx.Exec(ctx, `
					UPDATE applications SET status = $1
					WHERE id = $2 AND status = $3
				`, string(u.NewStatus), u.ApplicationID, string(model.StatusAwaitingPayment)); err != nil {
					return fmt.Errorf("failed to advance application %d: %w", u.ApplicationID, err)
				}
			}

			if u.CreatePlaceholder {
				if _, err := tx.Exec(ctx, `
					INSERT INTO assignments (id, application_id, student_id)
					SELECT $1, $2, $3
					WHERE NOT EXISTS (
						SELECT 1 FROM assignments WHERE application_id = $2
					)
				`, u.AssignmentID, u.ApplicationID, u.StudentID); err != nil {
					return fmt.Errorf("failed to create placeholder assignment for application %d: %w", u.ApplicationID, err)
				}
			}
		}

		return nil
	})
}

// scanApplications consumes rows shaped by applicationColumns.
func scanApplications(rows pgx.Rows) ([]model.Application, error) {
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		var a model.Application
		var status, payment, gender string
		if err := rows.Scan(
			&a.ID, &a.DormCost, &status, &a.TestResult, &a.TestAnswers,
			&a.ENTResult, &a.GPA, &payment, &a.HasPaymentProof,
			&a.Student.ID, &a.Student.S, &a.Student.FirstName, &a.Student.LastName,
			&a.Student.MiddleName, &gender, &a.Student.Course,
			&a.Student.Email, &a.Student.Phone, &a.Student.IIN,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}

		a.Status = model.Status(status)
		a.Student.Gender = model.Gender(gender)
		var err error
		if a.Payment, err = paymentFromText(payment); err != nil {
			return nil, fmt.Errorf("application %d: %w", a.ID, err)
		}

		apps = append(apps, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return apps, nil
}

// attachEvidence loads evidence records for the given applications in one
// query and distributes them by application ID.
func (d *DB) attachEvidence(ctx context.Context, apps []model.Application) error {
	if len(apps) == 0 {
		return nil
	}

	ids := make([]int64, len(apps))
	index := make(map[int64]*model.Application, len(apps))
	for i := range apps {
		ids[i] = apps[i].ID
		index[apps[i].ID] = &apps[i]
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, application_id, type_code, numeric_value, file_id, review
		FROM application_evidence
		WHERE application_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e model.Evidence
		var fileID *string
		var review string
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.TypeCode, &e.NumericValue, &fileID, &review); err != nil {
			return fmt.Errorf("failed to scan evidence: %w", err)
		}
		if fileID != nil {
			e.FileID = *fileID
		}
		if e.Review, err = reviewFromText(review); err != nil {
			return fmt.Errorf("evidence %d: %w", e.ID, err)
		}

		if app, ok := index[e.ApplicationID]; ok {
			app.Evidence = append(app.Evidence, e)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating evidence: %w", err)
	}

	return nil
}
