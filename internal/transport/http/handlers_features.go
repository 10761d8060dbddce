package httpapi

import (
	"net/http"

	"soundvault/internal/features"
)

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.flags.Public())
}

// handleFeaturesPayment exposes just the payment section, the piece clients
// poll to decide whether to render the checkout.
func (s *Server) handleFeaturesPayment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":             s.flags.Enabled(features.PathPaymentEnabled),
		"methods_enabled":     s.flags.Enabled(features.PathPaymentMethodsEnabled),
		"downloads_enabled":   s.flags.Enabled(features.PathPaymentDownloadsEnabled),
		"coming_soon_message": s.flags.PaymentDisabledMessage(),
	})
}

func (s *Server) handleFeaturesStatus(w http.ResponseWriter, r *http.Request) {
	mode := "paid"
	if !s.flags.Enabled(features.PathPaymentEnabled) {
		mode = "free"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    mode,
		"message": s.flags.PaymentDisabledMessage(),
	})
}
