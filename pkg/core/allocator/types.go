package allocator

import "github.com/aslanbekov/dormassign/pkg/core/model"

// Applicant is a payment-confirmed candidate awaiting a room. Applicants are
// fed to the allocator in application-ID order, which fixes FIFO behavior
// everywhere a tie needs breaking.
type Applicant struct {
	ApplicationID int64
	StudentID     int64
	AssignmentID  string // placeholder assignment created at payment confirmation
	Email         string
	FirstName     string
	Gender        model.Gender
	DormCost      int
	TestResult    string // questionnaire cohort label
	Language      string // declared language preference, "" when missing
	NeedsLowFloor bool
}

// RoomState is one room in the batch snapshot: static shape plus the
// occupancy observed when the snapshot was taken. The allocator mutates
// Occupied and Gender as it commits groups; nothing re-reads the store
// mid-batch.
type RoomState struct {
	RoomID   int64
	DormID   int64
	DormName string
	Cost     int
	Number   string
	Floor    int
	Capacity int
	Occupied int
	// Gender of the current occupants; empty while the room is empty.
	// Rooms are single-gender, so once set it constrains further fills.
	Gender model.Gender
}

// Free returns the number of open beds.
func (r *RoomState) Free() int {
	return r.Capacity - r.Occupied
}

// accepts reports whether the room can take applicants of the given gender.
func (r *RoomState) accepts(g model.Gender) bool {
	return r.Gender == "" || r.Gender == g
}

// Config is the input to one allocation batch.
type Config struct {
	// Applicants awaiting room assignment, in application-ID order.
	Applicants []Applicant

	// Rooms is the capacity snapshot, loaded once per batch.
	Rooms []*RoomState

	// LowFloorMaxFloor is the highest floor counting as "low" for
	// special-housing priority applicants.
	LowFloorMaxFloor int

	// Languages are the questionnaire language codes, tried in order when
	// sub-grouping a cohort.
	Languages []string
}

// Placement records one applicant committed to a room.
type Placement struct {
	Applicant  Applicant
	RoomID     int64
	DormID     int64
	DormName   string
	RoomNumber string
	Group      string
}

// Outcome is the result of an allocation batch.
type Outcome struct {
	Placements []Placement

	// Unplaced are applicants no room could take, in their original order.
	Unplaced []Applicant

	// UnfilledRooms counts rooms skipped in the grouped pass because no
	// compatible group of exactly Free() members existed. They remain
	// candidates for the FIFO sweep.
	UnfilledRooms int
}
