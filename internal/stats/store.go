package stats

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/model"
)

// Store persists one Document per domain.
//
// Load never fails on a missing or unreadable document: it returns nil and
// the caller starts from zero. Errors are reserved for the backend itself
// being unavailable.
type Store interface {
	Load(ctx context.Context, domain model.Domain) (*Document, error)
	Save(ctx context.Context, domain model.Domain, doc *Document) error
	Migrate(ctx context.Context) error
	Close() error
}

// decode unmarshals a stored document, logging and discarding it when it is
// corrupt.
func decode(domain model.Domain, backend string, data []byte) *Document {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		zap.L().Warn("stats: corrupt document, starting from zero",
			zap.String("backend", backend),
			zap.String("domain", string(domain)),
			zap.Error(err),
		)
		return nil
	}
	doc.normalize()
	return &doc
}

func encode(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "stats: marshal document")
	}
	return data, nil
}
