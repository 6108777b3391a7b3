package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req models.AddDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("add document request",
		zap.String("tenant", req.TenantID), zap.String("file", req.OriginalName))

	resp, err := s.pipeline.IngestFile(r.Context(), req.TenantID, req.FilePath, req.OriginalName)
	if err != nil {
		s.logger.Error("ingestion failed",
			zap.String("tenant", req.TenantID),
			zap.String("file", req.OriginalName),
			zap.Error(err))
		if errors.Is(err, embedding.ErrUnavailable) {
			s.respondError(w, http.StatusServiceUnavailable, "embedding model unavailable")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Status == models.StatusNotFound {
		s.respondError(w, http.StatusNotFound, "file not found: "+req.FilePath)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.Query.DefaultK, s.config.Query.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request",
		zap.String("tenant", req.TenantID),
		zap.String("query", utils.Truncate(req.Query, 80)),
		zap.Int("k", req.K))

	start := time.Now()
	matches := s.engine.Query(r.Context(), req.TenantID, req.Query, req.K)

	docs := make([]models.RelevantDoc, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, models.RelevantDoc{
			DocumentName: m.Record.SourceName,
			Score:        m.Score,
			Content:      m.Record.Content,
		})
	}
	s.respondJSON(w, http.StatusOK, &models.QueryResponse{
		RelevantDocs: docs,
		QueryTime:    time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "document catalog not enabled")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")
	entries, err := s.catalog.ListByTenant(r.Context(), tenantID)
	if err != nil {
		s.logger.Error("list documents failed", zap.String("tenant", tenantID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_id": tenantID,
		"documents": entries,
	})
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	s.logger.Info("delete index request", zap.String("tenant", tenantID))
	s.store.Delete(tenantID)
	if s.catalog != nil {
		if err := s.catalog.DeleteByTenant(r.Context(), tenantID); err != nil {
			s.logger.Warn("could not clear catalog entries",
				zap.String("tenant", tenantID), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"tenant_id": tenantID,
		"status":    "deleted",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dim, err := s.provider.Dimension(ctx)
	if err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "embedding model unavailable",
		})
		return
	}

	ti, err := s.store.Resolve(ctx, s.config.Tenants.DefaultID)
	if err != nil {
		s.logger.Warn("health: default index unavailable", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":               "degraded",
			"embedding_dimensions": dim,
			"default_index_ready":  false,
			"error":                "default index unavailable",
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "ok",
		"embedding_dimensions":  dim,
		"default_index_ready":   true,
		"default_index_vectors": ti.VectorCount(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_size":           s.config.Chunking.ChunkSize,
			"chunk_overlap":        s.config.Chunking.ChunkOverlap,
			"default_tenant_id":    s.config.Tenants.DefaultID,
			"storage_root":         s.config.Storage.RootDir,
		},
	}

	if s.catalog != nil {
		if n, err := s.catalog.CountDocuments(ctx); err == nil {
			resp["documents"] = n
		} else {
			s.logger.Error("status: count documents failed", zap.Error(err))
		}
	}
	if ti, err := s.store.Resolve(ctx, s.config.Tenants.DefaultID); err == nil {
		resp["default_index_vectors"] = ti.VectorCount()
	}
	if tenants, err := s.store.ListTenants(); err == nil {
		resp["tenants"] = tenants
	} else {
		s.logger.Error("status: list tenants failed", zap.Error(err))
	}
	if diskBytes, err := s.store.DiskUsageBytes(); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
