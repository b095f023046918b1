package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/peerwise/peerwise/internal/payment"
)

// CredentialHeader carries the bearer token on gated requests and the
// encoded payment request on 402 responses.
const CredentialHeader = "X-Cashu"

// PaymentGate translates the gate's tagged admission decision into
// HTTP. The gated handler runs only on Admit, so by the time it
// executes the credential has already been claimed.
func PaymentGate(gate *payment.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := gate.Check(r.Context(), r.Header.Get(CredentialHeader))

			switch decision.Outcome {
			case payment.Admit:
				next.ServeHTTP(w, r)

			case payment.RejectPaymentRequired:
				w.Header().Set(CredentialHeader, decision.EncodedRequest)
				writeStatus(w, http.StatusPaymentRequired, map[string]any{
					"error":  "Payment required",
					"amount": decision.Required,
					"unit":   decision.Unit,
				})

			case payment.RejectInsufficient:
				writeStatus(w, http.StatusPaymentRequired, map[string]any{
					"error":    "Insufficient payment",
					"required": decision.Required,
					"received": decision.Received,
					"unit":     decision.Unit,
				})

			case payment.RejectInvalidCredential:
				writeStatus(w, http.StatusBadRequest, map[string]any{
					"error": "Invalid payment token",
				})

			case payment.RejectClaimFailed:
				writeStatus(w, http.StatusBadRequest, map[string]any{
					"error": "Payment failed",
				})
			}
		})
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
