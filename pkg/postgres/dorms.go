package postgres

import (
	"context"
	"fmt"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// GetTotalPlaces returns the number of places across all dorms.
func (d *DB) GetTotalPlaces(ctx context.Context) (int, error) {
	var total int
	err := d.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_places), 0) FROM dorms
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query total places: %w", err)
	}
	return total, nil
}

// GetCostCapacities returns per-tier capacity, summed over the dorms sharing
// each cost.
func (d *DB) GetCostCapacities(ctx context.Context) ([]db.CostCapacity, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT cost, SUM(total_places)
		FROM dorms
		GROUP BY cost
		ORDER BY cost DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost capacities: %w", err)
	}
	defer rows.Close()

	var capacities []db.CostCapacity
	for rows.Next() {
		var c db.CostCapacity
		if err := rows.Scan(&c.Cost, &c.TotalPlaces); err != nil {
			return nil, fmt.Errorf("failed to scan cost capacity: %w", err)
		}
		capacities = append(capacities, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cost capacities: %w", err)
	}

	return capacities, nil
}

// GetDorms retrieves all dorms with their rooms.
func (d *DB) GetDorms(ctx context.Context) ([]model.Dorm, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, cost, total_places
		FROM dorms
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dorms: %w", err)
	}

	var dorms []model.Dorm
	index := make(map[int64]*model.Dorm)
	for rows.Next() {
		var dm model.Dorm
		if err := rows.Scan(&dm.ID, &dm.Name, &dm.Cost, &dm.TotalPlaces); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan dorm: %w", err)
		}
		dorms = append(dorms, dm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dorms: %w", err)
	}
	for i := range dorms {
		index[dorms[i].ID] = &dorms[i]
	}

	roomRows, err := d.pool.Query(ctx, `
		SELECT id, dorm_id, number, capacity
		FROM rooms
		ORDER BY dorm_id, number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer roomRows.Close()

	for roomRows.Next() {
		var r model.Room
		if err := roomRows.Scan(&r.ID, &r.DormID, &r.Number, &r.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		if dm, ok := index[r.DormID]; ok {
			dm.Rooms = append(dm.Rooms, r)
		}
	}

	if err := roomRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return dorms, nil
}

// GetRoomOccupancy returns the allocation snapshot: every room with its
// current assignment count and occupant gender.
func (d *DB) GetRoomOccupancy(ctx context.Context) ([]db.RoomOccupancy, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT r.id, dm.id, dm.name, dm.cost, r.number, r.capacity,
			COUNT(a.id), COALESCE(MAX(s.gender), '')
		FROM rooms r
		JOIN dorms dm ON dm.id = r.dorm_id
		LEFT JOIN assignments a ON a.room_id = r.id
		LEFT JOIN students s ON s.id = a.student_id
		GROUP BY r.id, dm.id
		ORDER BY dm.id, r.number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query room occupancy: %w", err)
	}
	defer rows.Close()

	var occupancy []db.RoomOccupancy
	for rows.Next() {
		var o db.RoomOccupancy
		if err := rows.Scan(&o.RoomID, &o.DormID, &o.DormName, &o.Cost, &o.Number, &o.Capacity, &o.Occupied, &o.Gender); err != nil {
			return nil, fmt.Errorf("failed to scan room occupancy: %w", err)
		}
		occupancy = append(occupancy, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room occupancy: %w", err)
	}

	return occupancy, nil
}
