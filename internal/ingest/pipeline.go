package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/catalog"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/store"
)

// ErrIngestion marks failures while adding records to a tenant's index.
// Embedding-model failures keep their own identity (embedding.ErrUnavailable)
// so callers can tell a missing model apart from a broken index.
var ErrIngestion = errors.New("ingestion failure")

// Pipeline embeds document records and adds them to tenant indexes. The
// catalog is optional; when present, successfully ingested files are
// recorded in it.
type Pipeline struct {
	provider  *embedding.Provider
	store     *store.Store
	extractor *extract.Extractor
	chunker   *Chunker
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewPipeline wires an ingestion pipeline. cat may be nil.
func NewPipeline(provider *embedding.Provider, st *store.Store, chunker *Chunker, cat *catalog.Catalog, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		provider:  provider,
		store:     st,
		extractor: extract.NewExtractor(),
		chunker:   chunker,
		catalog:   cat,
		logger:    logger,
	}
}

// newRecordID derives a positive int64 from a fresh UUID. Collisions are
// vanishingly unlikely at the scale of a tenant index.
func newRecordID() int64 {
	u := uuid.New()
	return int64(binary.BigEndian.Uint64(u[:8]) & math.MaxInt64)
}

// Ingest embeds the records and adds them to the tenant's index, persisting
// in the same critical section. An empty batch is a successful no-op that
// never touches the index. Returns the number of records added.
func (p *Pipeline) Ingest(ctx context.Context, tenantID string, records []*models.DocumentRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
	}
	vectors, err := p.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, err
	}

	dim, err := p.provider.Dimension(ctx)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(records) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d records", ErrIngestion, len(vectors), len(records))
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return 0, fmt.Errorf("%w: embedding %d has dimension %d, expected %d", ErrIngestion, i, len(vec), dim)
		}
	}

	ids := make([]int64, len(records))
	for i := range ids {
		ids[i] = newRecordID()
	}

	err = p.store.Update(ctx, tenantID, func(ti *store.TenantIndex) error {
		return ti.Add(ctx, ids, vectors, records)
	})
	if err != nil {
		if errors.Is(err, store.ErrStore) {
			// The add may have landed in memory while the persist failed;
			// the on-disk pair is stale until the next successful persist.
			p.logger.Error("persist after add failed, disk state is behind memory",
				zap.String("tenant", tenantID), zap.Error(err))
		}
		if errors.Is(err, embedding.ErrUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrIngestion, err)
	}

	p.logger.Info("ingested records",
		zap.String("tenant", tenantID), zap.Int("count", len(records)))
	return len(records), nil
}

// IngestFile extracts, chunks, embeds, and indexes one file for a tenant.
// Unsupported and empty files are skipped rather than treated as errors so
// batch seeding keeps going; a missing file is reported with StatusNotFound
// so callers can choose between skipping and rejecting.
func (p *Pipeline) IngestFile(ctx context.Context, tenantID, filePath, originalName string) (*models.AddDocumentResponse, error) {
	if originalName == "" {
		originalName = filepath.Base(filePath)
	}
	resp := &models.AddDocumentResponse{Filename: originalName}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		resp.Status = models.StatusNotFound
		resp.Message = "file not found"
		return resp, nil
	}

	text, err := p.extractor.Extract(filePath)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			resp.Status = models.StatusSkipped
			resp.Message = "unsupported file format"
			return resp, nil
		}
		return nil, fmt.Errorf("%w: extract %q: %v", ErrIngestion, originalName, err)
	}

	records := p.chunker.Chunk(tenantID, originalName, text)
	if len(records) == 0 {
		resp.Status = models.StatusSkipped
		resp.Message = "no text could be extracted"
		return resp, nil
	}

	added, err := p.Ingest(ctx, tenantID, records)
	if err != nil {
		return nil, err
	}

	if p.catalog != nil {
		if err := p.catalog.RecordDocument(ctx, tenantID, originalName, added); err != nil {
			p.logger.Warn("could not record document in catalog",
				zap.String("tenant", tenantID),
				zap.String("source", originalName),
				zap.Error(err))
		}
	}

	resp.Status = models.StatusAdded
	resp.ChunksAdded = added
	resp.Message = fmt.Sprintf("added %d chunks", added)
	return resp, nil
}
