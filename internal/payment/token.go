package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Bearer token prefixes: V4 wraps CBOR, V3 wraps JSON.
const (
	tokenPrefixV4 = "cashuB"
	tokenPrefixV3 = "cashuA"
)

var ErrInvalidToken = errors.New("invalid payment token")

// V4 token: proofs grouped per keyset at the top level.
type tokenV4 struct {
	Mint   string         `cbor:"m"`
	Unit   string         `cbor:"u"`
	Groups []proofGroupV4 `cbor:"t"`
}

type proofGroupV4 struct {
	KeysetID []byte    `cbor:"i"`
	Proofs   []proofV4 `cbor:"p"`
}

type proofV4 struct {
	Amount int64  `cbor:"a"`
	Secret string `cbor:"s"`
	Sig    []byte `cbor:"c"`
}

// V3 token: proofs nested per mint entry.
type tokenV3 struct {
	Token []struct {
		Mint   string `json:"mint"`
		Proofs []struct {
			Amount int64 `json:"amount"`
		} `json:"proofs"`
	} `json:"token"`
	Unit string `json:"unit"`
}

// TokenAmount decodes a bearer token just far enough to sum its proof
// amounts. It never contacts a mint and never claims anything; the
// gate uses it to verify sufficiency before the irreversible claim.
func TokenAmount(token string) (int64, error) {
	switch {
	case strings.HasPrefix(token, tokenPrefixV4):
		raw, err := base64url(strings.TrimPrefix(token, tokenPrefixV4))
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidToken, err)
		}
		var t tokenV4
		if err := cbor.Unmarshal(raw, &t); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidToken, err)
		}
		if len(t.Groups) == 0 {
			return 0, fmt.Errorf("%w: no proofs", ErrInvalidToken)
		}
		var sum int64
		for _, g := range t.Groups {
			for _, p := range g.Proofs {
				sum += p.Amount
			}
		}
		return sum, nil

	case strings.HasPrefix(token, tokenPrefixV3):
		raw, err := base64url(strings.TrimPrefix(token, tokenPrefixV3))
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidToken, err)
		}
		var t tokenV3
		if err := json.Unmarshal(raw, &t); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidToken, err)
		}
		if len(t.Token) == 0 {
			return 0, fmt.Errorf("%w: no proofs", ErrInvalidToken)
		}
		var sum int64
		for _, entry := range t.Token {
			for _, p := range entry.Proofs {
				sum += p.Amount
			}
		}
		return sum, nil

	default:
		return 0, fmt.Errorf("%w: unrecognized prefix", ErrInvalidToken)
	}
}
