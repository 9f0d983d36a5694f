package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// GetPendingPlacements retrieves awaiting_order applications whose
// placeholder assignment has no room yet, in application-ID order. The FIFO
// behavior of the allocator depends on this ordering.
func (d *DB) GetPendingPlacements(ctx context.Context) ([]db.PendingPlacement, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT asg.id, `+applicationColumns+`
		FROM assignments asg
		JOIN applications a ON a.id = asg.application_id
		JOIN students s ON s.id = a.student_id
		WHERE asg.room_id IS NULL AND a.status = $1
		ORDER BY a.id
	`, string(model.StatusAwaitingOrder))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending placements: %w", err)
	}
	defer rows.Close()

	var pending []db.PendingPlacement
	for rows.Next() {
		var p db.PendingPlacement
		a := &p.Application
		var status, payment, gender string
		if err := rows.Scan(
			&p.AssignmentID,
			&a.ID, &a.DormCost, &status, &a.TestResult, &a.TestAnswers,
			&a.ENTResult, &a.GPA, &payment, &a.HasPaymentProof,
			&a.Student.ID, &a.Student.S, &a.Student.FirstName, &a.Student.LastName,
			&a.Student.MiddleName, &gender, &a.Student.Course,
			&a.Student.Email, &a.Student.Phone, &a.Student.IIN,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending placement: %w", err)
		}

		a.Status = model.Status(status)
		a.Student.Gender = model.Gender(gender)
		if a.Payment, err = paymentFromText(payment); err != nil {
			return nil, fmt.Errorf("application %d: %w", a.ID, err)
		}

		pending = append(pending, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending placements: %w", err)
	}

	// Low-floor priority needs approved evidence, so load it for the batch.
	apps := make([]model.Application, len(pending))
	for i := range pending {
		apps[i] = pending[i].Application
	}
	if err := d.attachEvidence(ctx, apps); err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Application = apps[i]
	}

	return pending, nil
}

// ApplyAllocations commits one allocation batch. Each update is guarded on
// the assignment still being roomless, so a repeated batch cannot move a
// placed student.
func (d *DB) ApplyAllocations(ctx context.Context, updates []db.AssignmentUpdate) error {
	return d.withBatchLock(ctx, lockAllocation, func(tx pgx.Tx) error {
		for _, u := range updates {
			if _, err := tx.Exec(ctx, `
				UPDATE assignments SET room_id = $1, group_label = $2
				WHERE id = $3 AND room_id IS NULL
			`, u.RoomID, u.Group, u.AssignmentID); err != nil {
				return fmt.Errorf("failed to place assignment %s: %w", u.AssignmentID, err)
			}
		}
		return nil
	})
}

// GetAssignedAwaitingOrders retrieves awaiting_order applications that
// already have a room, with everything needed for the move-in email.
func (d *DB) GetAssignedAwaitingOrders(ctx context.Context) ([]db.OrderRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT asg.id, a.id, s.email, s.first_name, dm.name, r.number
		FROM assignments asg
		JOIN applications a ON a.id = asg.application_id
		JOIN students s ON s.id = a.student_id
		JOIN rooms r ON r.id = asg.room_id
		JOIN dorms dm ON dm.id = r.dorm_id
		WHERE a.status = $1
		ORDER BY a.id
	`, string(model.StatusAwaitingOrder))
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned applications: %w", err)
	}
	defer rows.Close()

	var records []db.OrderRecord
	for rows.Next() {
		var r db.OrderRecord
		if err := rows.Scan(&r.AssignmentID, &r.ApplicationID, &r.Email, &r.FirstName, &r.DormName, &r.RoomNumber); err != nil {
			return nil, fmt.Errorf("failed to scan order record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order records: %w", err)
	}

	return records, nil
}

// ApplyOrders commits one issuance batch: every listed application still in
// awaiting_order becomes order.
func (d *DB) ApplyOrders(ctx context.Context, applicationIDs []int64) error {
	return d.withBatchLock(ctx, lockOrders, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE applications SET status = $1
			WHERE id = ANY($2) AND status = $3
		`, string(model.StatusOrder), applicationIDs, string(model.StatusAwaitingOrder)); err != nil {
			return fmt.Errorf("failed to issue orders: %w", err)
		}
		return nil
	})
}
