package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aslanbekov/dormassign/pkg/db"
)

// OrderStore defines the database operations needed to issue move-in orders.
type OrderStore interface {
	// GetAssignedAwaitingOrders returns awaiting_order applications whose
	// assignment already has a room.
	GetAssignedAwaitingOrders(ctx context.Context) ([]db.OrderRecord, error)
	ApplyOrders(ctx context.Context, applicationIDs []int64) error
}

// OrdersResult summarizes one order-issuance batch.
type OrdersResult struct {
	Issued              int
	FailedNotifications []FailedNotification
}

// IssueOrders finalizes every room-assigned paid application: the status
// moves to order in one transaction, then each student is emailed their dorm
// and room. Email failures do not undo the issuance.
func IssueOrders(
	ctx context.Context,
	store OrderStore,
	notifier Notifier,
	emailConcurrency int,
	logger *zap.Logger,
) (*OrdersResult, error) {
	logger.Debug("Starting issueOrders")

	records, err := store.GetAssignedAwaitingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assigned applications: %w", err)
	}
	logger.Debug("Applications ready for orders", zap.Int("count", len(records)))

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ApplicationID
	}

	if err := store.ApplyOrders(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to apply order statuses: %w", err)
	}

	if emailConcurrency < 1 {
		emailConcurrency = 1
	}

	var (
		mu     sync.Mutex
		failed []FailedNotification
	)

	g := new(errgroup.Group)
	g.SetLimit(emailConcurrency)
	for _, r := range records {
		g.Go(func() error {
			subject := "Ордер на заселение"
			body := fmt.Sprintf(
				"Здравствуйте, %s! Вам выдан ордер на заселение. Общежитие: %s, комната: %s. Ожидаем вас для заселения.",
				r.FirstName, r.DormName, r.RoomNumber)
			if err := notifier.SendEmail(r.Email, subject, body); err != nil {
				logger.Warn("Failed to send order notification",
					zap.String("email", r.Email),
					zap.Error(err))
				mu.Lock()
				failed = append(failed, FailedNotification{Email: r.Email, Error: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	logger.Info("Order issuance completed",
		zap.Int("issued", len(records)),
		zap.Int("failed_notifications", len(failed)))

	return &OrdersResult{
		Issued:              len(records),
		FailedNotifications: failed,
	}, nil
}
