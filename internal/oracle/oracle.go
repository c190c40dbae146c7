// Package oracle runs one fact question through safety, parsing, the source
// adapter, scoring and payment.
package oracle

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/parser"
	"github.com/sells-group/fact-oracle/internal/payment"
	"github.com/sells-group/fact-oracle/internal/safety"
	"github.com/sells-group/fact-oracle/internal/scorer"
	"github.com/sells-group/fact-oracle/internal/source"
)

const (
	defaultProviderTimeout = 10 * time.Second
	defaultPaymentTimeout  = 15 * time.Second
)

// Option configures an Oracle.
type Option func(*Oracle)

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// WithIDs replaces the result id generator.
func WithIDs(newID func() string) Option {
	return func(o *Oracle) { o.newID = newID }
}

// WithTimeouts sets the deadlines for provider and payment calls. Zero keeps
// the default.
func WithTimeouts(provider, payment time.Duration) Option {
	return func(o *Oracle) {
		if provider > 0 {
			o.providerTimeout = provider
		}
		if payment > 0 {
			o.paymentTimeout = payment
		}
	}
}

// Oracle answers questions for the domains it has adapters for.
type Oracle struct {
	parser   *parser.Parser
	governor *safety.Governor
	scorer   *scorer.Scorer
	gate     *payment.Gate
	adapters map[model.Domain]source.Adapter

	now             func() time.Time
	newID           func() string
	providerTimeout time.Duration
	paymentTimeout  time.Duration
}

// New creates an Oracle. gate may be nil when only Answer is used.
func New(p *parser.Parser, g *safety.Governor, sc *scorer.Scorer, gate *payment.Gate, adapters []source.Adapter, opts ...Option) *Oracle {
	o := &Oracle{
		parser:          p,
		governor:        g,
		scorer:          sc,
		gate:            gate,
		adapters:        make(map[model.Domain]source.Adapter, len(adapters)),
		now:             time.Now,
		newID:           uuid.NewString,
		providerTimeout: defaultProviderTimeout,
		paymentTimeout:  defaultPaymentTimeout,
	}
	for _, a := range adapters {
		o.adapters[a.Domain()] = a
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Governor exposes the safety governor for stats reads.
func (o *Oracle) Governor() *safety.Governor { return o.governor }

// Gate exposes the payment gate.
func (o *Oracle) Gate() *payment.Gate { return o.gate }

// Domains lists the domains with a registered adapter.
func (o *Oracle) Domains() []model.Domain {
	var out []model.Domain
	for _, d := range model.Domains {
		if _, ok := o.adapters[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (o *Oracle) adapter(domain model.Domain) (source.Adapter, error) {
	a, ok := o.adapters[domain]
	if !ok {
		return nil, model.Errorf(model.KindUnknownDomain, "unknown domain %q", domain)
	}
	return a, nil
}

// Answer runs the unpaid pipeline. Safety rejections, unknown domains and
// adapter panics are returned as errors; every other outcome is a result.
// A result with a parse_error was not recorded.
func (o *Oracle) Answer(ctx context.Context, domain model.Domain, question string) (*model.VerificationResult, error) {
	a, err := o.adapter(domain)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "oracle"), zap.String("domain", string(domain)))

	// In-flight work outlives the caller.
	ctx = context.WithoutCancel(ctx)

	ticket, err := o.governor.Check(ctx, domain)
	if err != nil {
		log.Info("request rejected", zap.String("error", string(model.KindOf(err))), zap.Error(err))
		return nil, err
	}

	id := o.newID()
	q := o.parser.Parse(domain, question)
	if err := q.Validate(); err != nil {
		o.governor.Release(ticket)
		log.Debug("question not understood", zap.String("id", id), zap.Error(err))
		return model.NewFailure(id, domain, question, q, err, nil, o.now()), nil
	}

	if err := o.governor.Pace(ctx, domain); err != nil {
		o.governor.Release(ticket)
		return nil, model.WrapError(model.KindInternal, err, "pacing interrupted")
	}

	payload, err := o.query(ctx, a, q)
	sources := []string{a.Source()}
	switch kind := model.KindOf(err); {
	case kind == model.KindInternal:
		o.governor.Release(ticket)
		return nil, err
	case kind == model.KindParse:
		o.governor.Release(ticket)
		return model.NewFailure(id, domain, question, q, err, nil, o.now()), nil
	}

	var result *model.VerificationResult
	if err != nil {
		result = model.NewFailure(id, domain, question, q, err, sources, o.now())
	} else {
		result = model.NewSuccess(id, domain, question, q, payload, o.scorer.Score(payload, q), o.scorer.Floor(), sources, o.now())
	}

	if err := o.governor.Record(ctx, ticket, result); err != nil {
		log.Error("failed to persist stats", zap.String("id", id), zap.Error(err))
	}

	log.Info("question answered",
		zap.String("id", id),
		zap.Bool("success", result.Success),
		zap.Float64("confidence", result.Confidence),
		zap.String("error", string(result.Error)),
	)
	return result, nil
}

// query calls the adapter under the provider deadline, turning a panic into
// an internal error.
func (o *Oracle) query(ctx context.Context, a source.Adapter, q model.StructuredQuery) (payload model.Payload, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("oracle: adapter panic",
				zap.String("source", a.Source()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			payload = nil
			err = model.Errorf(model.KindInternal, "%s adapter failed: %v", a.Source(), r)
		}
	}()

	return a.Query(ctx, q)
}

// Request is one paid question.
type Request struct {
	Domain     model.Domain
	Question   string
	Credential string
}

// Response is a paid answer with its settlement attached.
type Response struct {
	*model.VerificationResult
}

// Handle verifies the credential, answers the question and settles. Payment
// rejections happen before any adapter call. A recorded result is settled
// exactly once and a settlement failure does not fail the response.
func (o *Oracle) Handle(ctx context.Context, req Request) (*Response, error) {
	if _, err := o.adapter(req.Domain); err != nil {
		return nil, err
	}
	if o.gate == nil {
		return nil, model.Errorf(model.KindInternal, "payment gate is not configured")
	}
	ctx = context.WithoutCancel(ctx)
	endpoint := fmt.Sprintf("/api/%s", req.Domain)

	vctx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	session, err := o.gate.Verify(vctx, req.Credential, endpoint)
	cancel()
	if err != nil {
		return nil, err
	}

	result, err := o.Answer(ctx, req.Domain, req.Question)
	if err != nil {
		return nil, err
	}

	var outcome model.SettlementOutcome
	if result.Error == model.KindParse {
		outcome = model.SettlementOutcome{State: model.SettlementSkipped}
	} else {
		sctx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
		outcome = o.gate.Settle(sctx, session)
		cancel()
	}
	if err := result.AttachPayment(outcome); err != nil {
		return nil, model.WrapError(model.KindInternal, err, "attach settlement")
	}
	return &Response{VerificationResult: result}, nil
}
