package model

import (
	"strings"
	"unicode"
)

// Status is the application lifecycle state.
// pending -> approved -> awaiting_payment -> awaiting_order -> order
// rejected is terminal and may be entered from pending or at selection time.
type Status string

const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusAwaitingOrder   Status = "awaiting_order"
	StatusOrder           Status = "order"
	StatusRejected        Status = "rejected"
)

// ReviewState is the review decision on a piece of evidence.
// Unreviewed evidence never contributes to scoring.
type ReviewState int

const (
	ReviewPending ReviewState = iota
	ReviewApproved
	ReviewRejected
)

// PaymentState is the reconciliation outcome for an application's payment.
type PaymentState int

const (
	// PaymentNone means no ledger row has been matched yet.
	PaymentNone PaymentState = iota
	// PaymentFull means the ledger amount equals the tier cost.
	PaymentFull
	// PaymentHalf means the ledger amount equals exactly half the tier cost.
	PaymentHalf
	// PaymentUnresolved means a ledger row matched but the amount fits neither
	// full nor half payment; needs manual follow-up.
	PaymentUnresolved
)

// Gender of a student. Rooms are single-gender.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// DataKind tells how an evidence type is backed.
type DataKind string

const (
	KindNumeric DataKind = "numeric"
	KindFile    DataKind = "file"
)

// Student is the identity record an application belongs to.
type Student struct {
	ID         int64
	S          string // university student number
	FirstName  string
	LastName   string
	MiddleName string
	Gender     Gender
	Course     int
	Email      string
	Phone      string
	IIN        string // government identity number, payment matching key
}

// Evidence is one supporting record attached to an application. Exactly one
// of NumericValue / FileID is set, depending on the evidence type's kind.
type Evidence struct {
	ID            int64
	ApplicationID int64
	TypeCode      string
	NumericValue  *float64
	FileID        string
	Review        ReviewState
}

// HasFile reports whether a file is attached to this evidence record.
func (e Evidence) HasFile() bool {
	return e.FileID != ""
}

// Application is a student's dormitory application. One per student.
type Application struct {
	ID              int64
	Student         Student
	DormCost        int
	Status          Status
	TestResult      string   // cohort letter from the compatibility questionnaire
	TestAnswers     []string // raw questionnaire answers; first element is the language preference
	ENTResult       *float64
	GPA             *float64
	Payment         PaymentState
	HasPaymentProof bool
	Evidence        []Evidence
}

// ApprovedEvidence returns the first approved evidence record of the given
// type code, or nil if none exists.
func (a *Application) ApprovedEvidence(typeCode string) *Evidence {
	for i := range a.Evidence {
		e := &a.Evidence[i]
		if e.TypeCode == typeCode && e.Review == ReviewApproved {
			return e
		}
	}
	return nil
}

// Language returns the declared language preference: the first raw test
// answer, or "" when the answers payload is missing or malformed.
func (a *Application) Language() string {
	if len(a.TestAnswers) == 0 {
		return ""
	}
	return a.TestAnswers[0]
}

// NeedsLowFloor reports whether the applicant qualifies for low-floor
// priority housing: any approved evidence whose type carries the
// special-housing flag.
func (a *Application) NeedsLowFloor(catalog *Catalog) bool {
	for _, e := range a.Evidence {
		if e.Review != ReviewApproved {
			continue
		}
		if t, ok := catalog.ByCode(e.TypeCode); ok && t.SpecialHousing {
			return true
		}
	}
	return false
}

// Dorm is a dormitory building. Several dorms may share a cost tier.
type Dorm struct {
	ID          int64
	Name        string
	Cost        int
	TotalPlaces int
	Rooms       []Room
}

// Room belongs to one dorm. The floor is derived from the room number and is
// never stored independently.
type Room struct {
	ID       int64
	DormID   int64
	Number   string
	Capacity int
}

// Floor derives the floor from the room number's leading digits
// (e.g. "204Б" is on floor 2). Rooms without a numeric prefix are treated as
// ground floor. The result is never negative.
func (r Room) Floor() int {
	digits := 0
	n := 0
	for _, c := range r.Number {
		if !unicode.IsDigit(c) {
			break
		}
		n = n*10 + int(c-'0')
		digits++
	}
	if digits == 0 {
		return 0
	}
	return n / 100
}

// Assignment links an application (and its student) to at most one room.
// A placeholder created at payment confirmation has no room yet.
type Assignment struct {
	ID            string // uuid
	ApplicationID int64
	StudentID     int64
	RoomID        *int64
	Group         string // compatibility-group label, shared per room-fill event
}

// NormalizeIIN canonicalizes a government identity number for ledger
// matching: whitespace trimmed and zero-padded to 12 digits so that
// spreadsheet exports that strip leading zeros still match.
func NormalizeIIN(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for len(s) < 12 {
		s = "0" + s
	}
	return s
}
