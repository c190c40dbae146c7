// Package payment gates paid requests on a verified credential and settles
// the credit once a result exists.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/pkg/payments"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	// StatePending is a session whose credential has not been checked yet.
	StatePending State = iota
	// StateVerified is a session the verifier accepted; it may be settled once.
	StateVerified
	// StateRejected is a session whose credential was missing or invalid.
	StateRejected
	// StateSettled is a session whose credit was debited.
	StateSettled
	// StateSettlementFailed is a session whose debit failed; it is not retried.
	StateSettlementFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	case StateSettled:
		return "settled"
	case StateSettlementFailed:
		return "settlement_failed"
	default:
		return "unknown"
	}
}

// Session tracks one request's credential from verification to settlement.
type Session struct {
	mu         sync.Mutex
	state      State
	credential string
	endpoint   string
	balance    int
	outcome    *model.SettlementOutcome
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Balance is the credit balance reported at verification.
func (s *Session) Balance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// transition moves the session from one state to another. Caller holds s.mu.
func (s *Session) transition(from, to State) bool {
	if s.state != from {
		zap.L().Warn("payment: illegal session transition",
			zap.Stringer("state", s.state),
			zap.Stringer("to", to),
		)
		return false
	}
	s.state = to
	return true
}

// Guidance tells a caller without a credential how to get one.
type Guidance struct {
	PlanID   string  `json:"planId"`
	AgentID  string  `json:"agentId"`
	Price    float64 `json:"price"`
	Cost     int     `json:"cost"`
	Purchase string  `json:"purchase"`
}

// Gate verifies credentials against the payment service.
type Gate struct {
	client payments.Client
	cfg    config.PaymentConfig
}

// New creates a Gate. client may be nil when payment is disabled.
func New(client payments.Client, cfg config.PaymentConfig) *Gate {
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}
	return &Gate{client: client, cfg: cfg}
}

// Enabled reports whether credentials are checked.
func (g *Gate) Enabled() bool { return g.cfg.Enabled && g.client != nil }

// Header is the request header carrying the credential.
func (g *Gate) Header() string {
	if g.cfg.Header == "" {
		return "payment-signature"
	}
	return g.cfg.Header
}

// Guidance returns purchase instructions for the 402 response.
func (g *Gate) Guidance() Guidance {
	purchase := g.cfg.PurchaseURL
	if purchase == "" {
		purchase = fmt.Sprintf("Buy plan %s to receive an access token, then send it in the %s header", g.cfg.PlanID, g.Header())
	}
	return Guidance{
		PlanID:   g.cfg.PlanID,
		AgentID:  g.cfg.AgentID,
		Price:    g.cfg.PriceUSD,
		Cost:     g.cfg.Cost,
		Purchase: purchase,
	}
}

// Cost is the number of credits debited per paid request.
func (g *Gate) Cost() int { return g.cfg.Cost }

// Verify checks credential for one call to endpoint. The returned session is
// VERIFIED on success and REJECTED alongside a payment *model.Error.
func (g *Gate) Verify(ctx context.Context, credential, endpoint string) (*Session, error) {
	s := &Session{state: StatePending, credential: credential, endpoint: endpoint}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !g.Enabled() {
		s.transition(StatePending, StateVerified)
		return s, nil
	}

	if strings.TrimSpace(credential) == "" {
		s.transition(StatePending, StateRejected)
		return s, model.Errorf(model.KindMissingCredential, "a payment credential is required")
	}

	resp, err := g.client.Verify(ctx, payments.VerifyRequest{
		Token:    credential,
		PlanID:   g.cfg.PlanID,
		AgentID:  g.cfg.AgentID,
		Endpoint: endpoint,
		Cost:     g.cfg.Cost,
	})
	if err != nil {
		s.transition(StatePending, StateRejected)
		zap.L().Warn("payment: verifier unreachable", zap.String("endpoint", endpoint), zap.Error(err))
		return s, model.WrapError(model.KindVerifierUnreachable, err, "payment verifier is unreachable")
	}
	if !resp.IsValid {
		s.transition(StatePending, StateRejected)
		msg := "payment credential is not valid"
		if resp.Reason != "" {
			msg += ": " + resp.Reason
		}
		return s, model.Errorf(model.KindInvalidCredential, "%s", msg)
	}

	s.balance = resp.Balance
	s.transition(StatePending, StateVerified)
	return s, nil
}

// Settle debits the credit for a verified session. It never fails: a failed
// debit is reported in the outcome. Settling a session that is not VERIFIED
// returns its existing outcome without a remote call.
func (g *Gate) Settle(ctx context.Context, s *Session) model.SettlementOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateVerified {
		if s.outcome != nil {
			return *s.outcome
		}
		return model.SettlementOutcome{State: model.SettlementSkipped}
	}

	if !g.Enabled() {
		s.transition(StateVerified, StateSettled)
		return s.finish(model.SettlementOutcome{State: model.SettlementDisabled})
	}

	resp, err := g.client.Settle(ctx, payments.SettleRequest{
		Token:    s.credential,
		PlanID:   g.cfg.PlanID,
		AgentID:  g.cfg.AgentID,
		Endpoint: s.endpoint,
		Cost:     g.cfg.Cost,
	})
	switch {
	case err != nil:
		zap.L().Error("payment: settlement failed", zap.String("endpoint", s.endpoint), zap.Error(err))
		s.transition(StateVerified, StateSettlementFailed)
		return s.finish(model.SettlementOutcome{State: model.SettlementFailed, Error: err.Error()})
	case !resp.Success:
		msg := resp.Error
		if msg == "" {
			msg = "settlement was refused"
		}
		zap.L().Error("payment: settlement refused", zap.String("endpoint", s.endpoint), zap.String("reason", msg))
		s.transition(StateVerified, StateSettlementFailed)
		return s.finish(model.SettlementOutcome{State: model.SettlementFailed, Error: msg})
	}

	debited := resp.CreditsDebited
	if debited == 0 {
		debited = g.cfg.Cost
	}
	s.transition(StateVerified, StateSettled)
	return s.finish(model.SettlementOutcome{
		State:          model.SettlementSettled,
		CreditsDebited: debited,
		Reference:      resp.Reference,
	})
}

func (s *Session) finish(o model.SettlementOutcome) model.SettlementOutcome {
	s.outcome = &o
	return o
}

// CredentialFromRequest reads the credential from header, falling back to an
// Authorization bearer token.
func CredentialFromRequest(r *http.Request, header string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
