package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/vector"
)

const (
	// vectorsFile holds the vector structure; recordsFile holds the id to
	// document-record mapping. Both are written by every persist and both
	// must be present for a load to succeed.
	vectorsFile = "index.vec"
	recordsFile = "records.gob"
)

// TenantIndex is one tenant's similarity-search index: a flat vector index
// plus the record store keyed by the vector ids. Reads and writes are
// guarded by an internal RWMutex so queries always see a consistent pairing
// of vectors and records.
type TenantIndex struct {
	tenantID string
	index    *vector.FlatIndex
	records  map[int64]*models.DocumentRecord
	mu       sync.RWMutex
}

// recordStoreFile is the on-disk shape of the record store.
type recordStoreFile struct {
	TenantID string
	Records  map[int64]*models.DocumentRecord
}

func newTenantIndex(tenantID string, dimensions int) (*TenantIndex, error) {
	idx, err := vector.NewFlatIndex(dimensions)
	if err != nil {
		return nil, err
	}
	return &TenantIndex{
		tenantID: tenantID,
		index:    idx,
		records:  make(map[int64]*models.DocumentRecord),
	}, nil
}

// TenantID returns the tenant this index belongs to.
func (t *TenantIndex) TenantID() string {
	return t.tenantID
}

// Dimension returns the fixed vector dimension the index was created with.
func (t *TenantIndex) Dimension() int {
	return t.index.Dimensions()
}

// VectorCount returns the number of stored vectors.
func (t *TenantIndex) VectorCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.Size()
}

// Add appends vectors and their document records in one batch. Inputs are
// validated before any mutation so a failure leaves the index unchanged;
// on success the vector structure and the record store are updated together.
func (t *TenantIndex) Add(ctx context.Context, ids []int64, vectors [][]float32, records []*models.DocumentRecord) error {
	if len(ids) != len(vectors) || len(ids) != len(records) {
		return fmt.Errorf("ids, vectors, and records length mismatch: %d/%d/%d", len(ids), len(vectors), len(records))
	}
	dim := t.index.Dimensions()
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, exists := t.records[id]; exists {
			return fmt.Errorf("duplicate record id %d in tenant %q", id, t.tenantID)
		}
	}
	if err := t.index.Add(ctx, ids, vectors); err != nil {
		return err
	}
	for i, id := range ids {
		t.records[id] = records[i]
	}
	return nil
}

// Search returns up to k matches sorted ascending by score.
func (t *TenantIndex) Search(ctx context.Context, query []float32, k int) ([]*models.Match, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hits, err := t.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	matches := make([]*models.Match, 0, len(hits))
	for _, hit := range hits {
		rec, ok := t.records[hit.ID]
		if !ok {
			continue
		}
		matches = append(matches, &models.Match{Record: rec, Score: hit.Score})
	}
	return matches, nil
}

// save writes both index files into dir, overwriting prior contents.
func (t *TenantIndex) save(dir string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.index.Save(filepath.Join(dir, vectorsFile)); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	out, err := os.Create(filepath.Join(dir, recordsFile))
	if err != nil {
		return fmt.Errorf("create record store file: %w", err)
	}
	defer out.Close()
	payload := recordStoreFile{TenantID: t.tenantID, Records: t.records}
	if err := gob.NewEncoder(out).Encode(payload); err != nil {
		return fmt.Errorf("encode record store: %w", err)
	}
	return nil
}

// loadTenantIndex reads both index files from dir. Any decode or structural
// failure is returned as an error so the caller can treat the pair as corrupt.
func loadTenantIndex(tenantID, dir string) (*TenantIndex, error) {
	idx, err := vector.LoadFlatIndex(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	in, err := os.Open(filepath.Join(dir, recordsFile))
	if err != nil {
		return nil, fmt.Errorf("open record store file: %w", err)
	}
	defer in.Close()
	var payload recordStoreFile
	if err := gob.NewDecoder(in).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode record store: %w", err)
	}
	if payload.Records == nil {
		payload.Records = make(map[int64]*models.DocumentRecord)
	}
	if idx.Size() != len(payload.Records) {
		return nil, fmt.Errorf("vector count %d disagrees with record count %d", idx.Size(), len(payload.Records))
	}
	return &TenantIndex{
		tenantID: tenantID,
		index:    idx,
		records:  payload.Records,
	}, nil
}
