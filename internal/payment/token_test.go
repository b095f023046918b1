package payment

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAmountV4(t *testing.T) {
	amount, err := TokenAmount(v4Token(t, 1, 2, 8))
	require.NoError(t, err)
	assert.Equal(t, int64(11), amount)
}

func TestTokenAmountV3(t *testing.T) {
	body := `{"token":[{"mint":"https://mint.example","proofs":[{"amount":4},{"amount":16}]}],"unit":"sat"}`
	token := tokenPrefixV3 + base64.RawURLEncoding.EncodeToString([]byte(body))

	amount, err := TokenAmount(token)
	require.NoError(t, err)
	assert.Equal(t, int64(20), amount)
}

func TestTokenAmountRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"",
		"not-a-token",
		"cashuB%%%",
		tokenPrefixV3 + base64.RawURLEncoding.EncodeToString([]byte("nope")),
	} {
		_, err := TokenAmount(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	encoded, err := EncodeRequest(Request{Amount: 21, Unit: "sat", Mints: []string{"https://a", "https://b"}})
	require.NoError(t, err)
	assert.Contains(t, encoded, PaymentRequestPrefix)

	decoded, err := DecodeRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(21), decoded.Amount)
	assert.Equal(t, "sat", decoded.Unit)
	assert.Equal(t, []string{"https://a", "https://b"}, decoded.Mints)
}

func TestDecodeRequestRejectsBadInput(t *testing.T) {
	_, err := DecodeRequest("creqB-wrong-prefix")
	assert.ErrorIs(t, err, ErrBadPaymentRequest)

	_, err = DecodeRequest(PaymentRequestPrefix + "!!!")
	assert.ErrorIs(t, err, ErrBadPaymentRequest)
}
