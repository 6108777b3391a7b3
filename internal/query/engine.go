// Package query answers similarity queries by searching a tenant's index
// together with the shared default index and merging the results.
package query

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/store"
)

// dedupPrefixLen is how much of a chunk's content participates in the
// duplicate key. Chunks from the same source whose first bytes agree are
// treated as the same result.
const dedupPrefixLen = 200

// Engine runs merged queries over tenant indexes.
type Engine struct {
	provider        *embedding.Provider
	store           *store.Store
	defaultTenantID string
	logger          *zap.Logger
}

// NewEngine returns a query engine that always folds in defaultTenantID's
// index alongside the queried tenant's own.
func NewEngine(provider *embedding.Provider, st *store.Store, defaultTenantID string, logger *zap.Logger) *Engine {
	return &Engine{
		provider:        provider,
		store:           st,
		defaultTenantID: defaultTenantID,
		logger:          logger,
	}
}

// Query embeds the question and searches the tenant's index plus the default
// index, returning up to k deduplicated matches sorted by ascending score
// (lower is closer). Failures never propagate: a query degrades to fewer or
// zero results and the cause is logged.
func (e *Engine) Query(ctx context.Context, tenantID, question string, k int) []*models.Match {
	if question == "" || k <= 0 {
		return []*models.Match{}
	}

	vec, err := e.provider.EmbedQuery(ctx, question)
	if err != nil {
		e.logger.Error("could not embed query", zap.String("tenant", tenantID), zap.Error(err))
		return []*models.Match{}
	}

	merged := make(map[string]*models.Match)
	e.searchInto(ctx, tenantID, vec, k, merged)
	if tenantID != e.defaultTenantID {
		e.searchInto(ctx, e.defaultTenantID, vec, k, merged)
	}

	results := make([]*models.Match, 0, len(merged))
	for _, m := range merged {
		results = append(results, m)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// searchInto runs one index search and folds the matches into merged,
// keeping the lower score when a duplicate key collides. Any failure is
// logged and the index simply contributes nothing.
func (e *Engine) searchInto(ctx context.Context, tenantID string, vec []float32, k int, merged map[string]*models.Match) {
	ti, err := e.store.Resolve(ctx, tenantID)
	if err != nil {
		e.logger.Warn("could not resolve index for query",
			zap.String("tenant", tenantID), zap.Error(err))
		return
	}
	if ti.VectorCount() == 0 {
		return
	}
	matches, err := ti.Search(ctx, vec, k)
	if err != nil {
		e.logger.Warn("index search failed",
			zap.String("tenant", tenantID), zap.Error(err))
		return
	}
	for _, m := range matches {
		key := dedupKey(m.Record)
		if prev, ok := merged[key]; !ok || m.Score < prev.Score {
			merged[key] = m
		}
	}
}

func dedupKey(rec *models.DocumentRecord) string {
	content := rec.Content
	if len(content) > dedupPrefixLen {
		content = content[:dedupPrefixLen]
	}
	return rec.SourceName + "_" + content
}
