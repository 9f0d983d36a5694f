package postgres

import (
	"fmt"

	"github.com/aslanbekov/dormassign/pkg/core/model"
)

// Review and payment states are stored as text so the tables read naturally
// in psql. Unknown stored values are an error, not a silent default.

func reviewToText(s model.ReviewState) string {
	switch s {
	case model.ReviewApproved:
		return "approved"
	case model.ReviewRejected:
		return "rejected"
	default:
		return "pending"
	}
}

func reviewFromText(s string) (model.ReviewState, error) {
	switch s {
	case "pending":
		return model.ReviewPending, nil
	case "approved":
		return model.ReviewApproved, nil
	case "rejected":
		return model.ReviewRejected, nil
	default:
		return model.ReviewPending, fmt.Errorf("unknown review state %q", s)
	}
}

func paymentToText(s model.PaymentState) string {
	switch s {
	case model.PaymentFull:
		return "full"
	case model.PaymentHalf:
		return "half"
	case model.PaymentUnresolved:
		return "unresolved"
	default:
		return "none"
	}
}

func paymentFromText(s string) (model.PaymentState, error) {
	switch s {
	case "none":
		return model.PaymentNone, nil
	case "full":
		return model.PaymentFull, nil
	case "half":
		return model.PaymentHalf, nil
	case "unresolved":
		return model.PaymentUnresolved, nil
	default:
		return model.PaymentNone, fmt.Errorf("unknown payment state %q", s)
	}
}
