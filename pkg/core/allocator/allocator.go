// Package allocator places payment-confirmed applicants into concrete rooms
// under capacity, cost-tier, gender-segregation, low-floor priority, and
// compatibility-grouping constraints. The whole batch runs against an
// in-memory snapshot of room occupancy; all grouping and ordering is stable
// so identical inputs always produce identical placements.
package allocator

import (
	"sort"
	"strconv"
)

type allocator struct {
	rooms        []*RoomState
	languages    []string
	lowFloorMax  int
	groupCounter int

	placements    []Placement
	unfilledRooms int
	placed        map[int64]bool // by application ID
}

// Allocate runs one allocation batch over the snapshot.
func Allocate(cfg Config) *Outcome {
	a := &allocator{
		rooms:        orderRooms(cfg.Rooms),
		languages:    cfg.Languages,
		lowFloorMax:  cfg.LowFloorMaxFloor,
		groupCounter: 1,
		placed:       make(map[int64]bool),
	}

	// Tiers are processed from the most expensive down, matching the order
	// the rebalancer established.
	for _, cost := range distinctCosts(cfg.Applicants) {
		tierPool := filterApplicants(cfg.Applicants, func(ap Applicant) bool {
			return ap.DormCost == cost
		})
		tierRooms := filterRooms(a.rooms, func(r *RoomState) bool {
			return r.Cost == cost
		})

		priority, normal := splitByLowFloor(tierPool)
		lowRooms := filterRooms(tierRooms, func(r *RoomState) bool {
			return r.Floor <= a.lowFloorMax
		})

		// Priority applicants first, restricted to low floors.
		a.fillGrouped(priority, lowRooms)
		a.fillGrouped(normal, tierRooms)

		// Leftovers go into whatever capacity remains, same priority and
		// floor rules, no cohort grouping.
		a.sweep(a.remaining(priority), lowRooms)
		a.sweep(a.remaining(normal), tierRooms)
	}

	unplaced := a.remaining(cfg.Applicants)
	return &Outcome{
		Placements:    a.placements,
		Unplaced:      unplaced,
		UnfilledRooms: a.unfilledRooms,
	}
}

// fillGrouped walks rooms by descending capacity and fills each with a
// compatibility group of exactly Free() members from a single gender pool.
func (a *allocator) fillGrouped(pool []Applicant, rooms []*RoomState) {
	for _, room := range rooms {
		free := room.Free()
		if free <= 0 {
			continue
		}

		males := a.genderPool(pool, "M", room)
		females := a.genderPool(pool, "F", room)

		var candidates []Applicant
		switch {
		case len(males) >= free && len(females) >= free:
			// Prefer the larger pool; males win ties for determinism.
			if len(males) >= len(females) {
				candidates = males
			} else {
				candidates = females
			}
		case len(males) >= free:
			candidates = males
		case len(females) >= free:
			candidates = females
		default:
			a.unfilledRooms++
			continue
		}

		group := allocateSlot(candidates, free, a.languages)
		if group == nil {
			a.unfilledRooms++
			continue
		}

		a.commit(group, room)
	}
}

// sweep pours leftover applicants into remaining free beds in FIFO order,
// honoring only gender segregation. Rooms may end up partially filled.
func (a *allocator) sweep(pool []Applicant, rooms []*RoomState) {
	for _, room := range rooms {
		if room.Free() <= 0 {
			continue
		}
		rest := a.remaining(pool)
		if len(rest) == 0 {
			return
		}

		// The room's gender is fixed by its occupants, or by the first
		// leftover in line when the room is empty.
		gender := room.Gender
		if gender == "" {
			gender = rest[0].Gender
		}

		var take []Applicant
		for _, ap := range rest {
			if len(take) == room.Free() {
				break
			}
			if ap.Gender == gender {
				take = append(take, ap)
			}
		}
		if len(take) == 0 {
			continue
		}
		a.commit(take, room)
	}
}

// commit assigns a group of applicants to a room under a fresh group label.
func (a *allocator) commit(group []Applicant, room *RoomState) {
	label := strconv.Itoa(a.groupCounter)
	a.groupCounter++

	for _, ap := range group {
		a.placements = append(a.placements, Placement{
			Applicant:  ap,
			RoomID:     room.RoomID,
			DormID:     room.DormID,
			DormName:   room.DormName,
			RoomNumber: room.Number,
			Group:      label,
		})
		a.placed[ap.ApplicationID] = true
	}

	room.Occupied += len(group)
	if room.Gender == "" {
		room.Gender = group[0].Gender
	}
}

// genderPool returns the still-unplaced applicants of one gender the room
// can accept, preserving FIFO order.
func (a *allocator) genderPool(pool []Applicant, gender string, room *RoomState) []Applicant {
	var out []Applicant
	for _, ap := range pool {
		if a.placed[ap.ApplicationID] {
			continue
		}
		if string(ap.Gender) != gender {
			continue
		}
		if !room.accepts(ap.Gender) {
			continue
		}
		out = append(out, ap)
	}
	return out
}

// remaining filters a pool down to applicants not yet placed.
func (a *allocator) remaining(pool []Applicant) []Applicant {
	var out []Applicant
	for _, ap := range pool {
		if !a.placed[ap.ApplicationID] {
			out = append(out, ap)
		}
	}
	return out
}

// allocateSlot builds a group of exactly `free` members from a single-gender
// candidate pool:
//  1. first cohort (by test result label) with enough members wins;
//  2. inside the cohort, a single-language subset is preferred when one of
//     the configured languages has enough members;
//  3. with no cohort large enough, the largest cohort is topped up from the
//     rest of the pool in FIFO order;
//  4. a pool smaller than the slot leaves the room unfilled.
func allocateSlot(pool []Applicant, free int, languages []string) []Applicant {
	if len(pool) < free {
		return nil
	}

	cohorts := make(map[string][]Applicant)
	for _, ap := range pool {
		cohorts[ap.TestResult] = append(cohorts[ap.TestResult], ap)
	}

	for _, label := range sortedCohortLabels(cohorts) {
		members := cohorts[label]
		if len(members) < free {
			continue
		}
		for _, lang := range languages {
			var subset []Applicant
			for _, ap := range members {
				if ap.Language == lang {
					subset = append(subset, ap)
				}
			}
			if len(subset) >= free {
				return subset[:free]
			}
		}
		return members[:free]
	}

	// No cohort can fill the slot alone: take the largest and top up.
	largest := largestCohort(cohorts)
	allocated := append([]Applicant{}, cohorts[largest]...)
	need := free - len(allocated)

	for _, ap := range pool {
		if need == 0 {
			break
		}
		if ap.TestResult == largest {
			continue
		}
		allocated = append(allocated, ap)
		need--
	}
	if need > 0 {
		return nil
	}
	return allocated
}

// largestCohort picks the biggest cohort, smallest label winning ties.
func largestCohort(cohorts map[string][]Applicant) string {
	var best string
	bestSize := -1
	for _, label := range sortedCohortLabels(cohorts) {
		if len(cohorts[label]) > bestSize {
			best = label
			bestSize = len(cohorts[label])
		}
	}
	return best
}

func sortedCohortLabels(cohorts map[string][]Applicant) []string {
	labels := make([]string, 0, len(cohorts))
	for label := range cohorts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// orderRooms fixes the enumeration order: dorm by ID, then rooms by
// descending capacity, room numbers breaking ties.
func orderRooms(rooms []*RoomState) []*RoomState {
	ordered := make([]*RoomState, len(rooms))
	copy(ordered, rooms)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DormID != ordered[j].DormID {
			return ordered[i].DormID < ordered[j].DormID
		}
		if ordered[i].Capacity != ordered[j].Capacity {
			return ordered[i].Capacity > ordered[j].Capacity
		}
		return ordered[i].Number < ordered[j].Number
	})
	return ordered
}

func distinctCosts(applicants []Applicant) []int {
	seen := make(map[int]bool)
	var costs []int
	for _, ap := range applicants {
		if !seen[ap.DormCost] {
			seen[ap.DormCost] = true
			costs = append(costs, ap.DormCost)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(costs)))
	return costs
}

func filterApplicants(pool []Applicant, keep func(Applicant) bool) []Applicant {
	var out []Applicant
	for _, ap := range pool {
		if keep(ap) {
			out = append(out, ap)
		}
	}
	return out
}

func filterRooms(rooms []*RoomState, keep func(*RoomState) bool) []*RoomState {
	var out []*RoomState
	for _, r := range rooms {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func splitByLowFloor(pool []Applicant) (priority, normal []Applicant) {
	for _, ap := range pool {
		if ap.NeedsLowFloor {
			priority = append(priority, ap)
		} else {
			normal = append(normal, ap)
		}
	}
	return priority, normal
}
