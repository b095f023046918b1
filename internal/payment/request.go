package payment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// PaymentRequestPrefix marks an encoded payment request on the wire.
// Prefix and payload layout are a client-facing contract; do not change.
const PaymentRequestPrefix = "creqA"

var ErrBadPaymentRequest = errors.New("malformed payment request")

// Request is the remediation data handed to a client that must pay:
// amount, unit, and the mints whose tokens the server accepts.
type Request struct {
	Amount int64    `json:"amount"`
	Unit   string   `json:"unit"`
	Mints  []string `json:"mints"`
}

// Single-letter keys keep the CBOR payload compact; they are part of
// the wire contract.
type requestPayload struct {
	Amount int64          `cbor:"a"`
	Unit   string         `cbor:"u"`
	Mints  []mintEndpoint `cbor:"m"`
}

type mintEndpoint struct {
	URL string `cbor:"u"`
}

// EncodeRequest serializes a payment request as prefix + base64url(CBOR).
func EncodeRequest(req Request) (string, error) {
	payload := requestPayload{
		Amount: req.Amount,
		Unit:   req.Unit,
		Mints:  make([]mintEndpoint, len(req.Mints)),
	}
	for i, m := range req.Mints {
		payload.Mints[i] = mintEndpoint{URL: m}
	}

	raw, err := cbor.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payment request: %w", err)
	}
	return PaymentRequestPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(encoded string) (*Request, error) {
	if !strings.HasPrefix(encoded, PaymentRequestPrefix) {
		return nil, ErrBadPaymentRequest
	}
	raw, err := base64url(strings.TrimPrefix(encoded, PaymentRequestPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadPaymentRequest, err)
	}

	var payload requestPayload
	if err := cbor.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadPaymentRequest, err)
	}

	req := &Request{
		Amount: payload.Amount,
		Unit:   payload.Unit,
		Mints:  make([]string, len(payload.Mints)),
	}
	for i, m := range payload.Mints {
		req.Mints[i] = m.URL
	}
	return req, nil
}

// base64url decodes both padded and unpadded base64url input.
func base64url(s string) ([]byte, error) {
	if raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
