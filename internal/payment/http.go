package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "soundvault/pkg/domain-errors"
)

const captureTimeout = 10 * time.Second

// HTTPProcessor talks JSON to a payment gateway over a single capture
// endpoint. The Idempotency-Key header carries the payment token so repeated
// captures of the same token settle at most once on the gateway side.
type HTTPProcessor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type HTTPProcessorOption func(*HTTPProcessor)

func WithHTTPClient(c *http.Client) HTTPProcessorOption {
	return func(p *HTTPProcessor) {
		p.client = c
	}
}

func NewHTTPProcessor(endpoint, apiKey string, opts ...HTTPProcessorOption) *HTTPProcessor {
	p := &HTTPProcessor{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: captureTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type captureBody struct {
	AmountCents int64  `json:"amount_cents"`
	Token       string `json:"token"`
	Description string `json:"description"`
}

type captureResponse struct {
	TransactionRef string `json:"transaction_ref"`
	Declined       bool   `json:"declined"`
	Reason         string `json:"reason"`
}

func (p *HTTPProcessor) Capture(ctx context.Context, req CaptureRequest) (string, error) {
	body, err := json.Marshal(captureBody{
		AmountCents: req.AmountCents,
		Token:       req.Token,
		Description: req.Description,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode capture request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/captures", bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build capture request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.Token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodePaymentGateway, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", dErrors.Newf(dErrors.CodePaymentGateway, "payment gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusPaymentRequired {
		return "", dErrors.Newf(dErrors.CodePaymentGateway, "payment gateway rejected request: %d", resp.StatusCode)
	}

	var out captureResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodePaymentGateway, "decode capture response")
	}
	if resp.StatusCode == http.StatusPaymentRequired || out.Declined {
		return "", fmt.Errorf("%w: %s", ErrDeclined, out.Reason)
	}
	if out.TransactionRef == "" {
		return "", dErrors.New(dErrors.CodePaymentGateway, "capture response missing transaction ref")
	}
	return out.TransactionRef, nil
}
