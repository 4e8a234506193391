package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aleksaelezovic/sparqlgraph/pkg/cache"
	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/results"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/scanner"
	"github.com/aleksaelezovic/sparqlgraph/pkg/transform"
)

// TransformRequest is the body of POST /transform. Results is either a
// SPARQL JSON results document or a string holding a document of type
// ResultsType.
type TransformRequest struct {
	Config      json.RawMessage `json:"config"`
	Query       string          `json:"query"`
	Results     json.RawMessage `json:"results"`
	ResultsType string          `json:"resultsType,omitempty"`
}

// handleRoot provides information about the endpoint
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, r, http.StatusNotFound, "Not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"name": "sparqlgraph",
		"endpoints": map[string]string{
			"POST /transform": "Transform SPARQL results into a node/edge graph",
			"POST /scan":      "Extract prefixes, triple patterns and VALUES from a query",
			"GET /metrics":    "Prometheus metrics",
		},
	})
}

// handleTransform runs a transformation. Identical requests are served
// from the cache when one is configured.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req TransformRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	if len(req.Config) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "Missing 'config'")
		return
	}
	if len(req.Results) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "Missing 'results'")
		return
	}

	key := cache.NewKey(req.Config, []byte(req.Query), req.Results, []byte(req.ResultsType))
	if s.cache != nil {
		g, err := s.cache.Graph(key)
		switch {
		case err == nil:
			s.metrics.RecordCache("graphs", true)
			w.Header().Set("X-Cache", "hit")
			s.writeJSON(w, http.StatusOK, g)
			return
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCache("graphs", false)
		default:
			s.logger.Warn("graph cache lookup failed", "key", key.String(), "error", err)
		}
	}

	var cfg transform.Config
	if err := json.Unmarshal(req.Config, &cfg); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid config: %v", err))
		return
	}

	res, err := decodeResults(req.Results, req.ResultsType)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid results: %v", err))
		return
	}

	g, err := s.transform(r, &cfg, req.Query, res.Rows())
	if err != nil {
		s.writeError(w, r, transformStatus(err), err.Error())
		return
	}

	if s.cache != nil {
		if err := s.cache.PutGraph(key, g); err != nil {
			s.logger.Warn("failed to cache graph", "key", key.String(), "error", err)
		}
		w.Header().Set("X-Cache", "miss")
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) transform(r *http.Request, cfg *transform.Config, query string, rows []results.Row) (*graph.Graph, error) {
	flavour := "simple"
	if cfg.IsVerbose() {
		flavour = "verbose"
	}

	start := time.Now()
	t, err := transform.New(cfg, query, transform.WithLogger(s.logger))
	if err != nil {
		s.metrics.RecordTransform(flavour, "error", time.Since(start), len(rows), 0, 0)
		return nil, err
	}
	g, err := t.Transform(r.Context(), rows)
	if err != nil {
		s.metrics.RecordTransform(flavour, "error", time.Since(start), len(rows), 0, 0)
		return nil, err
	}
	s.metrics.RecordTransform(flavour, "success", time.Since(start), len(rows), len(g.Nodes), len(g.Edges))
	return g, nil
}

// decodeResults accepts an inline JSON document or a string in the
// format named by contentType.
func decodeResults(raw json.RawMessage, contentType string) (*results.Results, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var doc string
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return results.Decode(strings.NewReader(doc), contentType)
	}
	return results.DecodeJSON(bytes.NewReader(trimmed))
}

// transformStatus maps transformation errors to HTTP status codes.
func transformStatus(err error) int {
	var cfgErr *transform.ConfigError
	var scanErr *scanner.ScanError
	switch {
	case errors.As(err, &cfgErr),
		errors.As(err, &scanErr),
		errors.Is(err, transform.ErrInvalidConfig),
		errors.Is(err, transform.ErrUnknownPrefix),
		errors.Is(err, transform.ErrMissingQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleScan returns what the scanner recognizes in the query sent as the
// request body.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	query := string(body)
	if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(query)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "Failed to parse form")
			return
		}
		query = form.Get("query")
	}
	if strings.TrimSpace(query) == "" {
		s.writeError(w, r, http.StatusBadRequest, "Empty query")
		return
	}

	key := cache.NewKey([]byte(query))
	if s.cache != nil {
		if cached, err := s.cache.Scan(key); err == nil {
			s.metrics.RecordCache("scans", true)
			w.Header().Set("X-Cache", "hit")
			s.writeJSON(w, http.StatusOK, cached)
			return
		}
		s.metrics.RecordCache("scans", false)
	}

	result, err := scanner.Scan(query)
	if err != nil {
		s.metrics.RecordScan("error")
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Scan error: %v", err))
		return
	}
	s.metrics.RecordScan("success")

	if s.cache != nil {
		if err := s.cache.PutScan(key, result); err != nil {
			s.logger.Warn("failed to cache scan", "key", key.String(), "error", err)
		}
		w.Header().Set("X-Cache", "miss")
	}
	s.writeJSON(w, http.StatusOK, result)
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		s.writeError(w, r, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	return body, true
}
