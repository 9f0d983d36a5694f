package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/db"
)

// ReminderStore defines the database operations needed to remind
// half-payment students of their remaining balance.
type ReminderStore interface {
	GetPartialPayments(ctx context.Context) ([]db.PartialPayment, error)
}

// RemindersResult summarizes one reminder batch.
type RemindersResult struct {
	Reminded            int
	Deadline            time.Time
	FailedNotifications []FailedNotification
}

// RemindPartialPayments emails every half-paid student the remaining amount
// and the next payment deadline taken from the recurring payment schedule.
// No application state changes; the batch is pure notification.
func RemindPartialPayments(
	ctx context.Context,
	store ReminderStore,
	notifier Notifier,
	schedule *rrule.RRule,
	logger *zap.Logger,
) (*RemindersResult, error) {
	logger.Debug("Starting remindPartialPayments")

	deadline := schedule.After(time.Now(), false)
	if deadline.IsZero() {
		return nil, errors.New("payment schedule has no upcoming deadline")
	}

	partials, err := store.GetPartialPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch partial payments: %w", err)
	}
	logger.Debug("Half-paid applications", zap.Int("count", len(partials)))

	var failed []FailedNotification
	for _, p := range partials {
		remaining := p.DormCost - p.DormCost/2
		subject := "Напоминание об оплате за общежитие"
		body := fmt.Sprintf(
			"Здравствуйте, %s %s! Напоминаем, что вы оплатили только половину стоимости места в общежитии. Просим внести оставшуюся сумму %d до %s.",
			p.FirstName, p.LastName, remaining, deadline.Format("02.01.2006"))

		if err := notifier.SendEmail(p.Email, subject, body); err != nil {
			logger.Warn("Failed to send payment reminder",
				zap.String("email", p.Email),
				zap.Error(err))
			failed = append(failed, FailedNotification{Email: p.Email, Error: err.Error()})
			continue
		}
	}

	logger.Info("Payment reminders completed",
		zap.Int("reminded", len(partials)-len(failed)),
		zap.Time("deadline", deadline),
		zap.Int("failed_notifications", len(failed)))

	return &RemindersResult{
		Reminded:            len(partials) - len(failed),
		Deadline:            deadline,
		FailedNotifications: failed,
	}, nil
}
