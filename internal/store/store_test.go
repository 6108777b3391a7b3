package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
)

func newTestStore(t *testing.T, dim int) *Store {
	t.Helper()
	provider := embedding.NewProvider(embedding.NewMockEmbedder(dim), zap.NewNop())
	s, err := NewStore(t.TempDir(), provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func testVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	v[0] = 1
	v[1] = seed
	return v
}

func addOne(t *testing.T, s *Store, tenantID string, id int64, content string) {
	t.Helper()
	ti, err := s.Resolve(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	rec := &models.DocumentRecord{Content: content, TenantID: tenantID, SourceName: "doc.txt"}
	err = s.Update(context.Background(), tenantID, func(ti *TenantIndex) error {
		return ti.Add(context.Background(), []int64{id}, [][]float32{testVector(ti.Dimension(), float32(id))}, []*models.DocumentRecord{rec})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ti.VectorCount() == 0 {
		t.Fatal("expected vectors after add")
	}
}

func TestResolveCreatesBothFiles(t *testing.T) {
	s := newTestStore(t, 8)
	if _, err := s.Resolve(context.Background(), "alice"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	dir := s.TenantDir("alice")
	for _, name := range []string{vectorsFile, recordsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestResolveReloadsPersistedIndex(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 42, "hello world")

	// A fresh store over the same root must load state from disk.
	provider := embedding.NewProvider(embedding.NewMockEmbedder(8), zap.NewNop())
	s2, err := NewStore(s.Root(), provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ti, err := s2.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := ti.VectorCount(); got != 1 {
		t.Fatalf("expected 1 vector after reload, got %d", got)
	}
	matches, err := ti.Search(context.Background(), testVector(8, 42), 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.Content != "hello world" {
		t.Fatalf("unexpected matches after reload: %+v", matches)
	}
}

func TestResolveRecreatesOnDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "old content")

	// Same root, different model dimension: the stored index must be discarded.
	provider := embedding.NewProvider(embedding.NewMockEmbedder(16), zap.NewNop())
	s2, err := NewStore(s.Root(), provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ti, err := s2.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ti.Dimension() != 16 {
		t.Fatalf("expected dimension 16, got %d", ti.Dimension())
	}
	if ti.VectorCount() != 0 {
		t.Fatalf("expected empty recreated index, got %d vectors", ti.VectorCount())
	}
}

func TestResolveRecreatesOnPartialFiles(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "content")
	dir := s.TenantDir("alice")
	if err := os.Remove(filepath.Join(dir, recordsFile)); err != nil {
		t.Fatalf("remove records file: %v", err)
	}

	provider := embedding.NewProvider(embedding.NewMockEmbedder(8), zap.NewNop())
	s2, err := NewStore(s.Root(), provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ti, err := s2.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ti.VectorCount() != 0 {
		t.Fatalf("expected empty index after partial-state recovery, got %d", ti.VectorCount())
	}
	// Both files must be back on disk.
	for _, name := range []string{vectorsFile, recordsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s after recovery: %v", name, err)
		}
	}
}

func TestResolveRecreatesOnCorruptVectors(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "content")
	dir := s.TenantDir("alice")
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	provider := embedding.NewProvider(embedding.NewMockEmbedder(8), zap.NewNop())
	s2, err := NewStore(s.Root(), provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ti, err := s2.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ti.VectorCount() != 0 {
		t.Fatalf("expected empty index after corruption recovery, got %d", ti.VectorCount())
	}
}

func TestResolveSurfacesEmbeddingFailure(t *testing.T) {
	provider := embedding.NewProvider(&failingEmbedder{}, zap.NewNop())
	s, err := NewStore(t.TempDir(), provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s.Resolve(context.Background(), "alice"); !errors.Is(err, embedding.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDeleteRemovesDirectoryAndToleratesMissing(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "content")
	dir := s.TenantDir("alice")

	s.Delete("alice")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected tenant directory to be removed, stat err = %v", err)
	}

	// Deleting a tenant that was never created must not panic or error.
	s.Delete("nobody")

	// The tenant is immediately recreatable.
	ti, err := s.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve after delete failed: %v", err)
	}
	if ti.VectorCount() != 0 {
		t.Fatalf("expected empty index after delete, got %d", ti.VectorCount())
	}
}

func TestUpdateFailureDoesNotPersist(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "content")

	boom := errors.New("boom")
	err := s.Update(context.Background(), "alice", func(ti *TenantIndex) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}

	ti, err := s.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ti.VectorCount() != 1 {
		t.Fatalf("expected index unchanged, got %d vectors", ti.VectorCount())
	}
}

func TestSanitizeTenantID(t *testing.T) {
	cases := map[string]string{
		"alice":           "alice",
		"../../etc":       "______etc",
		"a/b\\c.d":        "a_b_c_d",
		"__DEFAULT__":     "__DEFAULT__",
		"user@example.io": "user@example_io",
	}
	for in, want := range cases {
		if got := SanitizeTenantID(in); got != want {
			t.Errorf("SanitizeTenantID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTenantIndexAddRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t, 8)
	err := s.Update(context.Background(), "alice", func(ti *TenantIndex) error {
		rec := &models.DocumentRecord{Content: "x", TenantID: "alice", SourceName: "doc.txt"}
		return ti.Add(context.Background(), []int64{1}, [][]float32{make([]float32, 4)}, []*models.DocumentRecord{rec})
	})
	if err == nil {
		t.Fatal("expected dimension error")
	}
	ti, err := s.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ti.VectorCount() != 0 {
		t.Fatalf("expected no vectors after failed add, got %d", ti.VectorCount())
	}
}

func TestDiskUsageBytes(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "content")
	n, err := s.DiskUsageBytes()
	if err != nil {
		t.Fatalf("DiskUsageBytes failed: %v", err)
	}
	if n <= 0 {
		t.Fatalf("expected positive disk usage, got %d", n)
	}
}

func TestListTenants(t *testing.T) {
	s := newTestStore(t, 8)
	addOne(t, s, "alice", 1, "content")
	addOne(t, s, "bob", 2, "content")

	// A stray file in the root must not show up as a tenant.
	if err := os.WriteFile(filepath.Join(s.Root(), "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tenants, err := s.ListTenants()
	if err != nil {
		t.Fatalf("ListTenants failed: %v", err)
	}
	want := []string{"alice", "bob"}
	if len(tenants) != len(want) {
		t.Fatalf("tenants = %v, want %v", tenants, want)
	}
	for i := range want {
		if tenants[i] != want[i] {
			t.Fatalf("tenants = %v, want %v", tenants, want)
		}
	}
}

// failingEmbedder always errors, for exercising unavailable-model paths.
type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("model not loaded")
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("model not loaded")
}

func (f *failingEmbedder) Dimensions() int { return 0 }
func (f *failingEmbedder) Close() error    { return nil }
