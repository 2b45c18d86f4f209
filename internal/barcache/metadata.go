package barcache

import (
	"errors"
	"path/filepath"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/fileutil"
	"github.com/wonny/trendhealth/pkg/logger"
)

// MetadataStore persists inception-limited markers next to the bar caches
type MetadataStore struct {
	dir    string
	logger *logger.Logger
}

// NewMetadataStore creates a metadata store rooted at dir
func NewMetadataStore(dir string, log *logger.Logger) *MetadataStore {
	return &MetadataStore{
		dir:    dir,
		logger: log.Module("barcache.metadata"),
	}
}

// Path returns the metadata file path of a symbol
func (m *MetadataStore) Path(symbol string) string {
	return filepath.Join(m.dir, fileKey(symbol)+".meta.json")
}

// Load returns the metadata of symbol, or nil if none (or unreadable)
func (m *MetadataStore) Load(symbol string) (*contracts.CacheMetadata, error) {
	var meta contracts.CacheMetadata
	found, err := fileutil.ReadJSON(m.Path(symbol), &meta)
	if err != nil {
		if errors.Is(err, fileutil.ErrMalformed) {
			m.logger.WithError(err).WithField("symbol", symbol).Warn("Malformed metadata ignored")
			return nil, nil
		}
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if meta.Symbol == "" {
		meta.Symbol = symbol
	}
	return &meta, nil
}

// Save writes metadata atomically
func (m *MetadataStore) Save(meta contracts.CacheMetadata) error {
	return fileutil.WriteJSONAtomic(m.Path(meta.Symbol), meta)
}

// Clear removes the metadata of symbol
func (m *MetadataStore) Clear(symbol string) error {
	return fileutil.Remove(m.Path(symbol))
}
