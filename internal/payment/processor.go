// Package payment abstracts the external payment processor. The ledger only
// ever calls Capture; everything else about the processor stays behind this
// port so the gateway can be swapped without touching purchase logic.
package payment

import (
	"context"
	"errors"
)

// ErrDeclined marks a capture the processor rejected (bad card, insufficient
// funds). Distinct from transport failures so the ledger can record the
// attempt as failed rather than erroring out generically.
var ErrDeclined = errors.New("payment declined")

// CaptureRequest is one payment capture. Token is the opaque client-side
// payment token; it doubles as the idempotency key, so a retry after a
// dropped connection cannot double-charge.
type CaptureRequest struct {
	AmountCents int64
	Token       string
	Description string
}

// Processor captures payments.
type Processor interface {
	Capture(ctx context.Context, req CaptureRequest) (transactionRef string, err error)
}
