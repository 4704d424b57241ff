package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/metrics"
	"github.com/kailas-cloud/docrel/internal/r2d"
	healthuc "github.com/kailas-cloud/docrel/internal/usecase/health"
	schemauc "github.com/kailas-cloud/docrel/internal/usecase/schema"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 16 << 20

// DocumentService stores and reconstructs documents.
type DocumentService interface {
	Insert(ctx context.Context, database, collection string, docs []*kvdoc.Document) ([]int64, error)
	Find(ctx context.Context, database, collection string) ([]r2d.Document, error)
}

// SchemaService manages databases, collections and indexes.
type SchemaService interface {
	Snapshot() *meta.Snapshot
	ListIndexes(database, collection string) ([]*meta.Index, error)
	CreateIndex(ctx context.Context, database, collection, name string, unique bool, keys []schemauc.Key) (bool, error)
	DropIndex(ctx context.Context, database, collection, name string) error
	DropCollection(ctx context.Context, database, collection string) error
	DropDatabase(ctx context.Context, database string) error
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	documents     DocumentService
	schema        SchemaService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(documents DocumentService, schema SchemaService, health HealthService, logger *zap.Logger) *Server {
	s := &Server{
		documents: documents,
		schema:    schema,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		commitConflictHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeInvalidDocument),
		sentinelHandler(domain.ErrUnsupportedValue, http.StatusBadRequest, codeUnsupportedValue),
		sentinelHandler(domain.ErrInvalidIndex, http.StatusBadRequest, codeInvalidIndex),
	}
	return s
}

// Handler returns the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/metadata", s.GetMetadata)

	r.Route("/databases/{database}", func(r chi.Router) {
		r.Delete("/", s.DropDatabase)
		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Delete("/", s.DropCollection)
			r.Post("/documents", s.InsertDocuments)
			r.Get("/documents", s.FindDocuments)
			r.Get("/indexes", s.ListIndexes)
			r.Post("/indexes", s.CreateIndex)
			r.Delete("/indexes/{index}", s.DropIndex)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

// InsertDocuments handles POST /databases/{database}/collections/{collection}/documents.
func (s *Server) InsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	docs := make([]*kvdoc.Document, len(req.Documents))
	for i, raw := range req.Documents {
		doc, err := kvdoc.ParseExtJSON(raw)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		docs[i] = doc
	}

	dids, err := s.documents.Insert(r.Context(), chi.URLParam(r, "database"), chi.URLParam(r, "collection"), docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, insertResponse{Dids: dids})
}

// FindDocuments handles GET /databases/{database}/collections/{collection}/documents.
func (s *Server) FindDocuments(w http.ResponseWriter, r *http.Request) {
	found, err := s.documents.Find(r.Context(), chi.URLParam(r, "database"), chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	resp := findResponse{Documents: make([]documentResponse, len(found))}
	for i, d := range found {
		data, err := kvdoc.MarshalExtJSON(d.Doc)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Documents[i] = documentResponse{Did: d.Did, Document: data}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DropCollection handles DELETE /databases/{database}/collections/{collection}.
func (s *Server) DropCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.schema.DropCollection(r.Context(), chi.URLParam(r, "database"), chi.URLParam(r, "collection")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DropDatabase handles DELETE /databases/{database}.
func (s *Server) DropDatabase(w http.ResponseWriter, r *http.Request) {
	if err := s.schema.DropDatabase(r.Context(), chi.URLParam(r, "database")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListIndexes handles GET /databases/{database}/collections/{collection}/indexes.
func (s *Server) ListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := s.schema.ListIndexes(chi.URLParam(r, "database"), chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	resp := indexListResponse{Indexes: make([]indexResponse, len(indexes))}
	for i, ix := range indexes {
		resp.Indexes[i] = indexToResponse(ix)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateIndex handles POST /databases/{database}/collections/{collection}/indexes.
func (s *Server) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if !decodeBody(w, r, &req) {
		return
	}
	keys, err := keysFromRequest(req.Keys)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	created, err := s.schema.CreateIndex(r.Context(),
		chi.URLParam(r, "database"), chi.URLParam(r, "collection"), req.Name, req.Unique, keys)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, createIndexResponse{Name: req.Name, Created: created})
}

// DropIndex handles DELETE /databases/{database}/collections/{collection}/indexes/{index}.
func (s *Server) DropIndex(w http.ResponseWriter, r *http.Request) {
	err := s.schema.DropIndex(r.Context(),
		chi.URLParam(r, "database"), chi.URLParam(r, "collection"), chi.URLParam(r, "index"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMetadata handles GET /metadata.
func (s *Server) GetMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshotToResponse(s.schema.Snapshot()))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Client errors carry the full message; it only names user input.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// commitConflictHandler reports the element a concurrent commit claimed first.
func commitConflictHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrCommitConflict) {
		return false
	}
	var cce *domain.CommitConflictError
	if errors.As(err, &cce) {
		writeJSON(w, http.StatusConflict, conflictResponse{
			Code:       codeCommitConflict,
			Message:    domain.ErrCommitConflict.Error(),
			Kind:       cce.Kind,
			Name:       cce.Name,
			Identifier: cce.Identifier,
		})
		return true
	}
	writeError(w, http.StatusConflict, codeCommitConflict, domain.ErrCommitConflict.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
