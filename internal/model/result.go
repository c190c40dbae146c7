package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// Payload is the normalized, domain-specific body of a successful lookup.
type Payload any

// VerificationResult is the outcome of one oracle request. Once built it is
// only touched again to attach the settlement outcome.
type VerificationResult struct {
	ID           string             `json:"id"`
	Domain       Domain             `json:"domain"`
	Question     string             `json:"question"`
	Query        StructuredQuery    `json:"query,omitempty"`
	Success      bool               `json:"success"`
	Confidence   float64            `json:"confidence"`
	Data         Payload            `json:"data,omitempty"`
	Error        ErrorKind          `json:"error,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	Sources      []string           `json:"sources"`
	Timestamp    time.Time          `json:"timestamp"`
	Payment      *SettlementOutcome `json:"payment,omitempty"`
}

// NewSuccess builds a successful result. Confidence is clamped to [floor, 1].
func NewSuccess(id string, domain Domain, question string, q StructuredQuery, data Payload, confidence, floor float64, sources []string, now time.Time) *VerificationResult {
	return &VerificationResult{
		ID:         id,
		Domain:     domain,
		Question:   question,
		Query:      q,
		Success:    true,
		Confidence: ApplyFloor(confidence, floor),
		Data:       data,
		Sources:    nonNil(sources),
		Timestamp:  now.UTC(),
	}
}

// NewFailure builds a failed result from err. Confidence is always 0.
func NewFailure(id string, domain Domain, question string, q StructuredQuery, err error, sources []string, now time.Time) *VerificationResult {
	return &VerificationResult{
		ID:           id,
		Domain:       domain,
		Question:     question,
		Query:        q,
		Success:      false,
		Confidence:   0,
		Error:        KindOf(err),
		ErrorMessage: MessageOf(err),
		Sources:      nonNil(sources),
		Timestamp:    now.UTC(),
	}
}

// ApplyFloor clamps a success confidence to [floor, 1].
func ApplyFloor(c, floor float64) float64 {
	if floor > 1 {
		floor = 1
	}
	if math.IsNaN(c) || c < floor {
		c = floor
	}
	if c > 1 {
		c = 1
	}
	return c
}

// AttachPayment records the settlement outcome. It may be called once.
func (r *VerificationResult) AttachPayment(o SettlementOutcome) error {
	if r.Payment != nil {
		return eris.Errorf("result %s: payment already attached", r.ID)
	}
	r.Payment = &o
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SettlementState is the terminal state reported for a payment session.
type SettlementState string

const (
	SettlementSettled  SettlementState = "settled"
	SettlementFailed   SettlementState = "settlement_failed"
	SettlementSkipped  SettlementState = "skipped"
	SettlementDisabled SettlementState = "disabled"
)

// SettlementOutcome describes what happened when a credit was debited.
type SettlementOutcome struct {
	State          SettlementState `json:"state"`
	CreditsDebited int             `json:"creditsDebited"`
	Reference      string          `json:"reference,omitempty"`
	Error          string          `json:"error,omitempty"`
}
