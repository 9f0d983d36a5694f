package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// RebalanceStore defines the database operations needed to rebalance cost
// tiers and move accepted applications to awaiting_payment.
type RebalanceStore interface {
	GetCostCapacities(ctx context.Context) ([]db.CostCapacity, error)
	GetEvidenceTypes(ctx context.Context) ([]model.EvidenceType, error)
	GetApplicationsByStatus(ctx context.Context, status model.Status) ([]model.Application, error)
	ApplyRebalance(ctx context.Context, transfers []db.TierTransfer, awaitingPaymentIDs []int64) error
}

// RebalanceResult summarizes one rebalance-and-notify batch.
type RebalanceResult struct {
	Notified  int
	Transfers []db.TierTransfer

	// UnresolvedOverflow maps cost tier to the number of accepted
	// applicants exceeding that tier's capacity after rebalancing. Non-empty
	// only when the cheapest tier itself overflows; resolving it is an
	// administrative decision, not a transfer.
	UnresolvedOverflow map[int]int

	FailedNotifications []FailedNotification
}

// NotifyApproved rebalances accepted applications across cost tiers and
// notifies every applicant that payment is due.
//
// Applicants chose a tier without knowing its real capacity, so each
// overflowing tier hands its lowest-scoring members down to the next cheaper
// tier with spare places, one tier pair at a time from the most expensive
// down. High performers keep the tier they chose. All accepted applications
// then transition to awaiting_payment; transferred applicants get a
// substitution notice instead of the plain payment request.
func NotifyApproved(
	ctx context.Context,
	store RebalanceStore,
	notifier Notifier,
	logger *zap.Logger,
) (*RebalanceResult, error) {
	logger.Debug("Starting notifyApproved")

	capacities, err := store.GetCostCapacities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tier capacities: %w", err)
	}
	if len(capacities) == 0 {
		return nil, fmt.Errorf("no dormitory capacity configured")
	}

	capacityByCost := make(map[int]int, len(capacities))
	for _, c := range capacities {
		capacityByCost[c.Cost] = c.TotalPlaces
	}

	types, err := store.GetEvidenceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch evidence types: %w", err)
	}
	catalog := model.NewCatalog(types)

	approved, err := store.GetApplicationsByStatus(ctx, model.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved applications: %w", err)
	}
	logger.Debug("Approved applications", zap.Int("count", len(approved)))

	scored := scoreAll(approved, catalog, logger)

	byCost := make(map[int][]scoredApplication)
	for _, s := range scored {
		byCost[s.app.DormCost] = append(byCost[s.app.DormCost], s)
	}

	costs := make([]int, 0, len(capacityByCost))
	for cost := range capacityByCost {
		costs = append(costs, cost)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(costs)))

	var transfers []db.TierTransfer

	// Pairwise pass from the most expensive tier down. Each step only moves
	// applicants into the immediately cheaper tier.
	for i := 0; i < len(costs)-1; i++ {
		cost, nextCost := costs[i], costs[i+1]
		overflow := len(byCost[cost]) - capacityByCost[cost]
		if overflow <= 0 {
			continue
		}

		slack := capacityByCost[nextCost] - len(byCost[nextCost])
		if slack <= 0 {
			continue
		}

		count := overflow
		if slack < count {
			count = slack
		}

		tier := byCost[cost]
		sortByScoreAsc(tier)
		victims := tier[:count]
		byCost[cost] = tier[count:]

		for _, v := range victims {
			transfers = append(transfers, db.TierTransfer{
				ApplicationID: v.app.ID,
				FromCost:      cost,
				ToCost:        nextCost,
				Email:         v.app.Student.Email,
				FirstName:     v.app.Student.FirstName,
			})
			v.app.DormCost = nextCost
			byCost[nextCost] = append(byCost[nextCost], v)
		}

		logger.Debug("Tier overflow transferred",
			zap.Int("from_cost", cost),
			zap.Int("to_cost", nextCost),
			zap.Int("count", count))
	}

	unresolved := make(map[int]int)
	for cost, apps := range byCost {
		if over := len(apps) - capacityByCost[cost]; over > 0 {
			unresolved[cost] = over
			logger.Warn("Tier still over capacity after rebalancing",
				zap.Int("cost", cost),
				zap.Int("overflow", over))
		}
	}

	awaitingPaymentIDs := make([]int64, len(scored))
	for i, s := range scored {
		awaitingPaymentIDs[i] = s.app.ID
	}

	if err := store.ApplyRebalance(ctx, transfers, awaitingPaymentIDs); err != nil {
		return nil, fmt.Errorf("failed to apply rebalance: %w", err)
	}

	// Notifications go out only after the transaction commits. A failed send
	// never rolls back status changes.
	transferred := make(map[int64]db.TierTransfer, len(transfers))
	for _, t := range transfers {
		transferred[t.ApplicationID] = t
	}

	var failed []FailedNotification
	for _, s := range scored {
		var subject, body string
		if t, ok := transferred[s.app.ID]; ok {
			subject = "Изменение выбранного общежития"
			body = fmt.Sprintf(
				"Здравствуйте, %s! К сожалению, вам не было предоставлено место за %d. Вместо этого предоставляем место за %d. Просим вас внести оплату за предоставленное место.",
				s.app.Student.FirstName, t.FromCost, t.ToCost)
		} else {
			subject = "Место в общежитии выделено"
			body = fmt.Sprintf(
				"Здравствуйте, %s! Вам было выделено место в общежитии. Просим вас внести оплату за предоставленное место.",
				s.app.Student.FirstName)
		}

		if err := notifier.SendEmail(s.app.Student.Email, subject, body); err != nil {
			logger.Warn("Failed to send payment notification",
				zap.String("email", s.app.Student.Email),
				zap.Error(err))
			failed = append(failed, FailedNotification{Email: s.app.Student.Email, Error: err.Error()})
		}
	}

	logger.Info("Rebalance completed",
		zap.Int("notified", len(scored)-len(failed)),
		zap.Int("transferred", len(transfers)),
		zap.Int("failed_notifications", len(failed)))

	return &RebalanceResult{
		Notified:            len(scored) - len(failed),
		Transfers:           transfers,
		UnresolvedOverflow:  unresolved,
		FailedNotifications: failed,
	}, nil
}
