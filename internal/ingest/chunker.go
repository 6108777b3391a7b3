// Package ingest turns documents into embedded, indexed tenant records.
package ingest

import (
	"strings"

	"github.com/hyperjump/kioku/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into DocumentRecords with overlapping windows, tagged
// with the owning tenant and source name. Empty or whitespace-only text
// yields no records.
func (c *Chunker) Chunk(tenantID, sourceName, text string) []*models.DocumentRecord {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	records := make([]*models.DocumentRecord, 0, len(words)/step+1)
	chunkIndex := 0
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		records = append(records, &models.DocumentRecord{
			Content:    strings.Join(words[i:end], " "),
			TenantID:   tenantID,
			SourceName: sourceName,
			ChunkIndex: chunkIndex,
		})
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return records
}
