package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/db"
)

// LedgerEntry is one externally parsed payment row. The core never reads the
// ledger file itself; spreadsheet ingestion is a collaborator concern.
type LedgerEntry struct {
	IdentityKey string  `validate:"required"`
	Paid        float64 `validate:"gt=0"`
}

// PaymentStore defines the database operations needed to reconcile the
// payment ledger.
type PaymentStore interface {
	// GetApplicationsWithPaymentProof returns accepted applications that
	// have attached a payment proof, regardless of current payment state.
	GetApplicationsWithPaymentProof(ctx context.Context) ([]model.Application, error)
	ApplyPayments(ctx context.Context, updates []db.PaymentUpdate) error
}

// PaymentsResult summarizes one reconciliation batch.
type PaymentsResult struct {
	FullCount       int
	HalfCount       int
	UnresolvedCount int

	// UnmatchedApplications are applications with payment proof but no
	// ledger row; they keep their status for manual follow-up.
	UnmatchedApplications int

	// UnmatchedRows are ledger identity keys that matched no application.
	UnmatchedRows []string

	// InvalidRows are ledger rows rejected by validation.
	InvalidRows []string
}

var ledgerValidate = validator.New()

// ConfirmPayments matches the uploaded payment ledger against accepted
// applications by normalized government ID. An amount equal to the tier cost
// is a full payment, exactly half is a partial payment, anything else is
// left unresolved. Resolved applications move to awaiting_order and get an
// idempotent placeholder assignment; unmatched applications are untouched.
func ConfirmPayments(
	ctx context.Context,
	store PaymentStore,
	ledger []LedgerEntry,
	logger *zap.Logger,
) (*PaymentsResult, error) {
	logger.Debug("Starting confirmPayments", zap.Int("ledger_rows", len(ledger)))

	result := &PaymentsResult{}

	paidByIIN := make(map[string]float64, len(ledger))
	invalidRows := make(map[int]bool)
	for i, entry := range ledger {
		if err := ledgerValidate.Struct(entry); err != nil {
			logger.Warn("Invalid ledger row",
				zap.Int("row", i),
				zap.Error(err))
			result.InvalidRows = append(result.InvalidRows, entry.IdentityKey)
			invalidRows[i] = true
			continue
		}
		paidByIIN[model.NormalizeIIN(entry.IdentityKey)] = entry.Paid
	}

	apps, err := store.GetApplicationsWithPaymentProof(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applications with payment proof: %w", err)
	}
	logger.Debug("Applications with payment proof", zap.Int("count", len(apps)))

	matchedIINs := make(map[string]bool)
	var updates []db.PaymentUpdate

	for i := range apps {
		app := &apps[i]
		iin := model.NormalizeIIN(app.Student.IIN)
		paid, ok := paidByIIN[iin]
		if iin == "" || !ok {
			result.UnmatchedApplications++
			continue
		}
		matchedIINs[iin] = true

		update := db.PaymentUpdate{
			ApplicationID: app.ID,
			StudentID:     app.Student.ID,
		}

		switch {
		case paid == float64(app.DormCost):
			update.Payment = model.PaymentFull
			result.FullCount++
		case paid == float64(app.DormCost)/2:
			update.Payment = model.PaymentHalf
			result.HalfCount++
		default:
			update.Payment = model.PaymentUnresolved
			result.UnresolvedCount++
			logger.Warn("Paid amount matches neither full nor half cost",
				zap.Int64("application_id", app.ID),
				zap.Float64("paid", paid),
				zap.Int("cost", app.DormCost))
		}

		// Only resolved payments advance the application and reserve a
		// placeholder; an unresolved amount needs a human decision first.
		if update.Payment != model.PaymentUnresolved {
			update.NewStatus = model.StatusAwaitingOrder
			update.CreatePlaceholder = true
			update.AssignmentID = uuid.New().String()
		}

		updates = append(updates, update)
	}

	for i, entry := range ledger {
		if invalidRows[i] {
			continue
		}
		iin := model.NormalizeIIN(entry.IdentityKey)
		if !matchedIINs[iin] {
			result.UnmatchedRows = append(result.UnmatchedRows, entry.IdentityKey)
		}
	}

	if err := store.ApplyPayments(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to apply payment updates: %w", err)
	}

	logger.Info("Payment reconciliation completed",
		zap.Int("full", result.FullCount),
		zap.Int("half", result.HalfCount),
		zap.Int("unresolved", result.UnresolvedCount),
		zap.Int("unmatched_applications", result.UnmatchedApplications),
		zap.Int("unmatched_rows", len(result.UnmatchedRows)))

	return result, nil
}
