// Package source adapts third-party data providers to structured queries.
package source

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
	"github.com/sells-group/fact-oracle/pkg/espn"
	"github.com/sells-group/fact-oracle/pkg/reddit"
)

// Adapter answers one domain's structured queries from one provider.
//
// Query makes at most one outbound request. Errors are *model.Error values;
// a KindParse error means no request was sent.
type Adapter interface {
	Domain() model.Domain
	Source() string
	Query(ctx context.Context, q model.StructuredQuery) (model.Payload, error)
}

// classify maps a provider client error onto the closed error kinds.
func classify(source string, err error, notFound string) error {
	if errors.Is(err, espn.ErrMalformedResponse) || errors.Is(err, reddit.ErrMalformedResponse) {
		return model.WrapError(model.KindMalformedResponse, err, source+" returned an unreadable response")
	}

	code, ok := resilience.StatusCode(err)
	if !ok {
		zap.L().Debug("source: transport failure",
			zap.String("source", source),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		return model.WrapError(model.KindNetwork, err, source+" is unreachable")
	}

	switch {
	case code == http.StatusNotFound, code >= 300 && code < 400:
		return model.WrapError(model.KindNotFound, err, notFound)
	case code == http.StatusTooManyRequests:
		return model.WrapError(model.KindRateLimited, err, source+" is rate limiting requests")
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return model.WrapError(model.KindAccessDenied, err, source+" denied access")
	default:
		return model.WrapError(model.KindNetwork, err, source+" returned an error")
	}
}

// fold case-folds s for caseless comparison. Casers carry state, so one is
// made per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// containsFold reports whether haystack contains needle, ignoring case.
func containsFold(haystack, needle string) bool {
	n := fold(needle)
	return n != "" && strings.Contains(fold(haystack), n)
}
