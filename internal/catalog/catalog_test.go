package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordAndList(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.RecordDocument(ctx, "alice", "notes.txt", 3); err != nil {
		t.Fatalf("RecordDocument failed: %v", err)
	}
	if err := c.RecordDocument(ctx, "alice", "report.pdf", 7); err != nil {
		t.Fatalf("RecordDocument failed: %v", err)
	}
	if err := c.RecordDocument(ctx, "bob", "other.txt", 1); err != nil {
		t.Fatalf("RecordDocument failed: %v", err)
	}

	entries, err := c.ListByTenant(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByTenant failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for alice, got %d", len(entries))
	}
	for _, e := range entries {
		if e.TenantID != "alice" {
			t.Errorf("unexpected tenant %q in alice listing", e.TenantID)
		}
	}
}

func TestRecordUpsertAccumulatesChunks(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.RecordDocument(ctx, "alice", "notes.txt", 3); err != nil {
		t.Fatalf("RecordDocument failed: %v", err)
	}
	if err := c.RecordDocument(ctx, "alice", "notes.txt", 2); err != nil {
		t.Fatalf("RecordDocument failed: %v", err)
	}

	entries, err := c.ListByTenant(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByTenant failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected upsert to keep one entry, got %d", len(entries))
	}
	if entries[0].ChunkCount != 5 {
		t.Errorf("expected chunk count 5, got %d", entries[0].ChunkCount)
	}
}

func TestListUnknownTenantIsEmpty(t *testing.T) {
	c := newTestCatalog(t)
	entries, err := c.ListByTenant(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByTenant failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty listing, got %d entries", len(entries))
	}
}

func TestDeleteByTenant(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	_ = c.RecordDocument(ctx, "alice", "notes.txt", 3)
	_ = c.RecordDocument(ctx, "bob", "other.txt", 1)

	if err := c.DeleteByTenant(ctx, "alice"); err != nil {
		t.Fatalf("DeleteByTenant failed: %v", err)
	}
	entries, err := c.ListByTenant(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByTenant failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected alice entries gone, got %d", len(entries))
	}
	n, err := c.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected bob's entry to survive, count = %d", n)
	}
}
