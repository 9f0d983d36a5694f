// Package db defines the record shapes exchanged between the batch services
// and the persistence layer, plus the sentinel errors stores must return.
package db

import (
	"errors"

	"github.com/aslanbekov/dormassign/pkg/core/model"
)

// ErrNotFound is returned by store lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// CostCapacity is the total number of places available at one cost tier,
// summed over every dorm sharing that cost.
type CostCapacity struct {
	Cost        int
	TotalPlaces int
}

// TierTransfer records one applicant moved to a cheaper tier during
// rebalancing.
type TierTransfer struct {
	ApplicationID int64
	FromCost      int
	ToCost        int
	Email         string
	FirstName     string
}

// PaymentUpdate is one reconciliation outcome to persist. Placeholder
// assignments are only created for resolved payments, and only once per
// application.
type PaymentUpdate struct {
	ApplicationID     int64
	StudentID         int64
	AssignmentID      string // uuid for the placeholder, when one is created
	Payment           model.PaymentState
	NewStatus         model.Status // "" when the status does not change
	CreatePlaceholder bool
}

// PendingPlacement is a placeholder assignment still waiting for a room,
// joined with its full application.
type PendingPlacement struct {
	AssignmentID string
	Application  model.Application
}

// RoomOccupancy is one row of the allocation snapshot: a room together with
// its current assignment count and occupant gender.
type RoomOccupancy struct {
	RoomID   int64
	DormID   int64
	DormName string
	Cost     int
	Number   string
	Capacity int
	Occupied int
	Gender   string // empty when the room has no occupants
}

// AssignmentUpdate commits one applicant's room and group label.
type AssignmentUpdate struct {
	AssignmentID  string
	ApplicationID int64
	RoomID        int64
	Group         string
}

// OrderRecord is one room-assigned application ready for move-in order
// issuance.
type OrderRecord struct {
	AssignmentID  string
	ApplicationID int64
	Email         string
	FirstName     string
	DormName      string
	RoomNumber    string
}

// PartialPayment is an application that has only paid half its tier cost.
type PartialPayment struct {
	ApplicationID int64
	Email         string
	FirstName     string
	LastName      string
	DormCost      int
}
