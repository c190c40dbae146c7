// Package parser turns free-text questions into structured, domain-typed queries.
//
// Parsing never fails: fields that cannot be extracted are left empty and the
// caller decides (via StructuredQuery.Validate) whether the query is usable.
package parser

import (
	"strings"
	"time"

	"github.com/sells-group/fact-oracle/internal/model"
)

// Parser extracts structured queries from questions. It holds no mutable
// state; relative dates are resolved against the injected clock.
type Parser struct {
	now     func() time.Time
	loc     *time.Location
	aliases *AliasTable
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the clock used for relative dates.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// WithLocation sets the time zone relative dates are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithAliases replaces the built-in alias table.
func WithAliases(t *AliasTable) Option {
	return func(p *Parser) {
		if t != nil {
			p.aliases = t
		}
	}
}

// New creates a Parser with the built-in alias table, the system clock and UTC.
func New(opts ...Option) *Parser {
	p := &Parser{
		now:     time.Now,
		loc:     time.UTC,
		aliases: DefaultAliases(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse dispatches to the domain-specific parser. An unknown domain yields nil.
func (p *Parser) Parse(domain model.Domain, text string) model.StructuredQuery {
	switch domain {
	case model.DomainSports:
		return p.ParseSports(text)
	case model.DomainReddit:
		return p.ParseReddit(text)
	default:
		return nil
	}
}

var quoteReplacer = strings.NewReplacer(
	"’", "'", "‘", "'",
	"“", `"`, "”", `"`,
)

// normalize folds typographic quotes and collapses whitespace.
func normalize(text string) string {
	return strings.Join(strings.Fields(quoteReplacer.Replace(text)), " ")
}

// cut removes text[start:end] and leaves a single space in its place.
func cut(text string, start, end int) string {
	return strings.TrimSpace(text[:start]) + " " + strings.TrimSpace(text[end:])
}
