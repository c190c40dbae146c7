package stats

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/model"
)

// FileStore keeps each domain's document in <dir>/<domain>-stats.json.
type FileStore struct {
	dir string
}

// NewFile creates a FileStore rooted at dir.
func NewFile(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the document path for domain.
func (s *FileStore) Path(domain model.Domain) string {
	return filepath.Join(s.dir, string(domain)+"-stats.json")
}

func (s *FileStore) Load(_ context.Context, domain model.Domain) (*Document, error) {
	data, err := os.ReadFile(s.Path(domain))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		zap.L().Warn("stats: unreadable document, starting from zero",
			zap.String("path", s.Path(domain)),
			zap.Error(err),
		)
		return nil, nil
	}
	return decode(domain, "file", data), nil
}

// Save writes the document to a temp file in the same directory and renames
// it over the old one.
func (s *FileStore) Save(_ context.Context, domain model.Domain, doc *Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrapf(err, "stats: create dir %s", s.dir)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(domain)+"-stats-*.json")
	if err != nil {
		return eris.Wrap(err, "stats: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "stats: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "stats: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "stats: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.Path(domain)); err != nil {
		return eris.Wrapf(err, "stats: rename to %s", s.Path(domain))
	}
	return nil
}

// Migrate creates the directory.
func (s *FileStore) Migrate(_ context.Context) error {
	return eris.Wrap(os.MkdirAll(s.dir, 0o755), "stats: create dir")
}

func (s *FileStore) Close() error { return nil }
