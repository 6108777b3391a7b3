// Package store manages per-tenant vector indexes on disk. Each tenant owns
// a directory holding a vector file and a record-store file; the Store keeps
// loaded indexes cached in memory and reconciles their dimension against the
// embedding model on every resolve.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
)

// ErrStore marks storage-layer failures: directory creation, persistence,
// or index construction. Callers match it with errors.Is.
var ErrStore = errors.New("index store failure")

// tenantDirPrefix namespaces tenant directories under the storage root so
// unrelated files in the root are never mistaken for tenant state.
const tenantDirPrefix = "tenant_"

// Store resolves, caches, and persists tenant indexes. A per-tenant mutex
// serializes resolve/mutate/persist sequences for the same tenant while
// independent tenants proceed concurrently.
type Store struct {
	root     string
	provider *embedding.Provider
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]*TenantIndex
	locks map[string]*sync.Mutex
}

// NewStore creates the storage root if needed and returns a Store over it.
func NewStore(root string, provider *embedding.Provider, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: storage root is empty", ErrStore)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage root: %v", ErrStore, err)
	}
	return &Store{
		root:     root,
		provider: provider,
		logger:   logger,
		cache:    make(map[string]*TenantIndex),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// SanitizeTenantID rewrites path-hostile characters so a tenant identifier
// can never escape its directory under the storage root.
func SanitizeTenantID(tenantID string) string {
	r := strings.NewReplacer(".", "_", "/", "_", "\\", "_")
	return r.Replace(tenantID)
}

// TenantDir returns the directory a tenant's index files live in.
func (s *Store) TenantDir(tenantID string) string {
	return filepath.Join(s.root, tenantDirPrefix+SanitizeTenantID(tenantID))
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

func (s *Store) getCached(tenantID string) *TenantIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[tenantID]
}

func (s *Store) setCached(tenantID string, ti *TenantIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[tenantID] = ti
}

func (s *Store) evict(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, tenantID)
}

// Resolve returns the tenant's index, loading it from disk or creating a
// fresh empty one as needed. A cached or on-disk index whose dimension
// disagrees with the embedding model is discarded and replaced; partial or
// unreadable on-disk state is removed and recreated. Embedding probe
// failures surface as embedding.ErrUnavailable.
func (s *Store) Resolve(ctx context.Context, tenantID string) (*TenantIndex, error) {
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()
	return s.resolveLocked(ctx, tenantID)
}

func (s *Store) resolveLocked(ctx context.Context, tenantID string) (*TenantIndex, error) {
	dim, err := s.provider.Dimension(ctx)
	if err != nil {
		return nil, err
	}

	if ti := s.getCached(tenantID); ti != nil {
		if ti.Dimension() == dim {
			return ti, nil
		}
		s.logger.Warn("cached index dimension disagrees with embedding model, discarding",
			zap.String("tenant", tenantID),
			zap.Int("index_dim", ti.Dimension()),
			zap.Int("model_dim", dim))
		s.evict(tenantID)
	}

	dir := s.TenantDir(tenantID)
	vecExists := fileExists(filepath.Join(dir, vectorsFile))
	recExists := fileExists(filepath.Join(dir, recordsFile))
	switch {
	case vecExists && recExists:
		ti, err := loadTenantIndex(tenantID, dir)
		if err != nil {
			s.logger.Warn("index files unreadable, recreating tenant index",
				zap.String("tenant", tenantID), zap.Error(err))
			s.removeIndexFiles(tenantID, dir)
		} else if ti.Dimension() != dim {
			s.logger.Warn("stored index dimension disagrees with embedding model, recreating",
				zap.String("tenant", tenantID),
				zap.Int("index_dim", ti.Dimension()),
				zap.Int("model_dim", dim))
			s.removeIndexFiles(tenantID, dir)
		} else {
			s.setCached(tenantID, ti)
			s.logger.Info("loaded tenant index",
				zap.String("tenant", tenantID),
				zap.Int("vectors", ti.VectorCount()),
				zap.Int("dimensions", dim))
			return ti, nil
		}
	case vecExists || recExists:
		s.logger.Warn("only one of the index files is present, treating tenant state as corrupt",
			zap.String("tenant", tenantID),
			zap.Bool("vectors_present", vecExists),
			zap.Bool("records_present", recExists))
		s.removeIndexFiles(tenantID, dir)
	}

	ti, err := newTenantIndex(tenantID, dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create tenant dir: %v", ErrStore, err)
	}
	if err := ti.save(dir); err != nil {
		return nil, fmt.Errorf("%w: persist new index: %v", ErrStore, err)
	}
	s.setCached(tenantID, ti)
	s.logger.Info("created tenant index",
		zap.String("tenant", tenantID), zap.Int("dimensions", dim))
	return ti, nil
}

// Update runs fn against the tenant's index and persists the result, all
// under the tenant's lock so no competing resolve or mutation interleaves.
// Ingestion uses this to make the add-and-persist sequence a single
// critical section.
func (s *Store) Update(ctx context.Context, tenantID string, fn func(*TenantIndex) error) error {
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()
	ti, err := s.resolveLocked(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := fn(ti); err != nil {
		return err
	}
	if err := ti.save(s.TenantDir(tenantID)); err != nil {
		return fmt.Errorf("%w: persist tenant %q: %v", ErrStore, tenantID, err)
	}
	return nil
}

// Persist writes the tenant's cached index to disk. It is a no-op when the
// tenant has never been resolved.
func (s *Store) Persist(tenantID string) error {
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()
	ti := s.getCached(tenantID)
	if ti == nil {
		return nil
	}
	if err := ti.save(s.TenantDir(tenantID)); err != nil {
		return fmt.Errorf("%w: persist tenant %q: %v", ErrStore, tenantID, err)
	}
	return nil
}

// Delete drops the tenant's cached index and removes its directory. Removal
// failures are logged, not returned, so a delete always leaves the tenant
// ready to be recreated.
func (s *Store) Delete(tenantID string) {
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()
	s.evict(tenantID)
	dir := s.TenantDir(tenantID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("could not remove tenant directory",
			zap.String("tenant", tenantID),
			zap.String("dir", dir),
			zap.Error(err))
	}
}

// removeIndexFiles deletes both index files best-effort.
func (s *Store) removeIndexFiles(tenantID, dir string) {
	for _, name := range []string{vectorsFile, recordsFile} {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove index file",
				zap.String("tenant", tenantID),
				zap.String("path", path),
				zap.Error(err))
		}
	}
}

// ListTenants returns the sanitized identifiers of every tenant with a
// directory under the storage root, sorted.
func (s *Store) ListTenants() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: list tenants: %v", ErrStore, err)
	}
	tenants := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), tenantDirPrefix) {
			tenants = append(tenants, strings.TrimPrefix(e.Name(), tenantDirPrefix))
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

// DiskUsageBytes returns the total on-disk size of all tenant directories
// under the storage root.
func (s *Store) DiskUsageBytes() (int64, error) {
	var total int64
	err := filepath.Walk(s.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: disk usage: %v", ErrStore, err)
	}
	return total, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
