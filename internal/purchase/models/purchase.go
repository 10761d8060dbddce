package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "soundvault/pkg/domain-errors"
)

// PaymentMethod is the client-declared payment instrument kind.
type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodPayPal     PaymentMethod = "paypal"
	MethodApplePay   PaymentMethod = "apple_pay"
	MethodGooglePay  PaymentMethod = "google_pay"
)

var validMethods = map[PaymentMethod]bool{
	MethodCreditCard: true,
	MethodPayPal:     true,
	MethodApplePay:   true,
	MethodGooglePay:  true,
}

// ParsePaymentMethod constructs a PaymentMethod from external input,
// failing closed on unknown values.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !validMethods[m] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported payment method")
	}
	return m, nil
}

func (m PaymentMethod) String() string {
	return string(m)
}

// Status is the terminal outcome of a purchase attempt. Rows are written only
// after the processor has answered, so "pending" is never durably observable.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Purchase is an append-only record of a purchase attempt. At most one
// completed record may exist per (PayerID, TrackID); the postgres store
// enforces this with a partial unique index, the memory store with a map key.
// Records are never updated after creation.
type Purchase struct {
	ID             uuid.UUID     `json:"id"`
	PayerID        uuid.UUID     `json:"payer_id"`
	TrackID        uuid.UUID     `json:"track_id"`
	AmountCents    int64         `json:"amount_cents"`
	Method         PaymentMethod `json:"payment_method"`
	TransactionRef string        `json:"transaction_ref,omitempty"`
	Status         Status        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewPurchase constructs a purchase record, enforcing invariants.
func NewPurchase(id, payerID, trackID uuid.UUID, amountCents int64, method PaymentMethod, status Status, transactionRef string, now time.Time) (*Purchase, error) {
	if payerID == (uuid.UUID{}) || trackID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purchase payer and track are required")
	}
	if amountCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purchase amount cannot be negative")
	}
	if !validMethods[method] {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purchase payment method is invalid")
	}
	if status == StatusCompleted && transactionRef == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "completed purchase requires a transaction reference")
	}
	return &Purchase{
		ID:             id,
		PayerID:        payerID,
		TrackID:        trackID,
		AmountCents:    amountCents,
		Method:         method,
		TransactionRef: transactionRef,
		Status:         status,
		CreatedAt:      now,
	}, nil
}
