package payment

import (
	"context"

	"github.com/peerwise/peerwise/internal/domain"
	"go.uber.org/zap"
)

// Outcome tags a gate decision. Rejections are expected control flow,
// not errors; each carries the remediation data the transport layer
// needs to build its response.
type Outcome int

const (
	// Admit means the gated operation may run. When payment is enabled
	// the credential has already been irreversibly claimed.
	Admit Outcome = iota
	// RejectPaymentRequired: no credential attached. Decision carries
	// an encoded payment request for the client to retry with.
	RejectPaymentRequired
	// RejectInsufficient: credential verified but below the required
	// amount. The credential is not claimed.
	RejectInsufficient
	// RejectInvalidCredential: credential failed to decode. Never claimed.
	RejectInvalidCredential
	// RejectClaimFailed: wallet refused the claim. Operation not served.
	RejectClaimFailed
)

// Decision is the tagged result of one admission check.
type Decision struct {
	Outcome Outcome

	// EncodedRequest is set on RejectPaymentRequired.
	EncodedRequest string

	// Required/Received/Unit are set on payment-related rejections.
	Required int64
	Received int64
	Unit     string

	// Err holds the wallet error on RejectClaimFailed.
	Err error
}

// Config describes the price of one gated operation.
type Config struct {
	Enabled bool
	Amount  int64
	Unit    string
	Mints   []string
}

// Gate decides admission for payment-gated operations. The decision is
// self-contained: on Admit the funds are already secured, so the
// caller can run the operation unconditionally.
type Gate struct {
	cfg    Config
	wallet domain.Wallet
	logger *zap.Logger
}

func NewGate(cfg Config, wallet domain.Wallet, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, wallet: wallet, logger: logger}
}

// Enabled reports whether the gate charges at all.
func (g *Gate) Enabled() bool { return g.cfg.Enabled }

// Terms returns the advertised price, or nil when payment is disabled.
func (g *Gate) Terms() *domain.PaymentTerms {
	if !g.cfg.Enabled {
		return nil
	}
	return &domain.PaymentTerms{Amount: g.cfg.Amount, Unit: g.cfg.Unit}
}

// Check runs the admission procedure for one request. Verification
// always precedes claiming, and claiming strictly precedes the gated
// operation: a request is never served against an unclaimed credential.
func (g *Gate) Check(ctx context.Context, credential string) Decision {
	if !g.cfg.Enabled {
		return Decision{Outcome: Admit}
	}

	if credential == "" {
		encoded, err := EncodeRequest(Request{
			Amount: g.cfg.Amount,
			Unit:   g.cfg.Unit,
			Mints:  g.cfg.Mints,
		})
		if err != nil {
			// Encoding a static config record cannot fail in practice;
			// still reject rather than serve unpaid.
			g.logger.Error("encode payment request", zap.Error(err))
		}
		return Decision{
			Outcome:        RejectPaymentRequired,
			EncodedRequest: encoded,
			Required:       g.cfg.Amount,
			Unit:           g.cfg.Unit,
		}
	}

	amount, err := TokenAmount(credential)
	if err != nil {
		return Decision{Outcome: RejectInvalidCredential, Err: err}
	}

	if amount < g.cfg.Amount {
		return Decision{
			Outcome:  RejectInsufficient,
			Required: g.cfg.Amount,
			Received: amount,
			Unit:     g.cfg.Unit,
		}
	}

	// Claim before the downstream operation runs (fund safety).
	if err := g.wallet.Claim(ctx, credential); err != nil {
		g.logger.Warn("payment claim failed", zap.Error(err))
		return Decision{Outcome: RejectClaimFailed, Err: err}
	}

	g.logger.Info("payment claimed",
		zap.Int64("amount", amount), zap.String("unit", g.cfg.Unit))
	return Decision{Outcome: Admit, Received: amount, Unit: g.cfg.Unit}
}
