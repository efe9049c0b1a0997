package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/ingest"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/registry"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/rerank"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/tenant"
)

// Server exposes the retrieval system over the MCP protocol.
type Server struct {
	config   *ServerConfig
	orch     *ingest.Orchestrator
	reg      *registry.Registry
	retrieve rerank.Config

	graph  index.Index
	vector index.Index
	store  index.Index // fanout over graph + vector; every write goes to both

	// HTTP server
	httpServer *http.Server
	mu         sync.RWMutex
	started    time.Time
	closed     bool

	// Tool handlers
	handlers map[string]ToolHandler
}

// ServerConfig holds MCP server configuration.
type ServerConfig struct {
	// Addr to listen on (default: ":8080")
	Addr string
	// ReadTimeout for requests
	ReadTimeout time.Duration
	// WriteTimeout for responses
	WriteTimeout time.Duration
	// RequestTimeout bounds one tool call end to end
	RequestTimeout time.Duration
	// MaxRequestSize in bytes (default: 10MB)
	MaxRequestSize int64
	// EnableCORS for cross-origin requests
	EnableCORS bool
}

// DefaultServerConfig returns sensible defaults for the MCP server.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:           ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 120 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		EnableCORS:     true,
	}
}

// ToolHandler is a function that handles a tool call
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// NewServer wires the ingestion orchestrator, retrieval pipeline and both
// backend adapters into an MCP tool surface.
func NewServer(orch *ingest.Orchestrator, retrieve rerank.Config, graph, vector index.Index, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	s := &Server{
		config:   config,
		orch:     orch,
		reg:      registry.New(graph, vector),
		retrieve: retrieve,
		graph:    graph,
		vector:   vector,
		store:    index.NewFanout(graph, vector),
		handlers: make(map[string]ToolHandler),
	}

	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.handlers[ToolIngestDocument] = s.handleIngestDocument
	s.handlers[ToolIngestBatch] = s.handleIngestBatch
	s.handlers[ToolGetContext] = s.handleGetContext
	s.handlers[ToolGetTenantStats] = s.handleGetTenantStats
	s.handlers[ToolListProjectIDs] = s.handleListProjectIDs
	s.handlers[ToolListScopes] = s.handleListScopes
	s.handlers[ToolDeleteTenant] = s.handleDeleteTenant
}

// RegisterRoutes registers MCP handlers on an existing http.ServeMux.
//
// Routes registered:
//   - POST /mcp            - Main JSON-RPC endpoint
//   - POST /mcp/initialize - Initialize MCP connection
//   - GET/POST /mcp/tools/list - List available tools
//   - POST /mcp/tools/call - Execute a tool
//   - GET /mcp/health      - Health check
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.started = time.Now()

	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/initialize", s.handleInitialize)
	mux.HandleFunc("/mcp/tools/list", s.handleListTools)
	mux.HandleFunc("/mcp/tools/call", s.handleCallTool)
	mux.HandleFunc("/mcp/health", s.handleHealth)
}

// ServeHTTP implements http.Handler for routing MCP requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	switch r.URL.Path {
	case "/mcp":
		s.handleMCP(w, r)
	case "/mcp/initialize":
		s.handleInitialize(w, r)
	case "/mcp/tools/list":
		s.handleListTools(w, r)
	case "/mcp/tools/call":
		s.handleCallTool(w, r)
	case "/mcp/health":
		s.handleHealth(w, r)
	default:
		http.NotFound(w, r)
	}
}

// Start begins listening for HTTP connections.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("server already closed")
	}

	if addr == "" {
		addr = s.config.Addr
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	if s.config.EnableCORS {
		handler = s.corsMiddleware(mux)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[mcp] server error: %v", err)
		}
	}()

	log.Printf("[mcp] server started on %s", addr)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// MCP Protocol Handlers
// =============================================================================

// handleMCP is the main MCP JSON-RPC endpoint.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req struct {
		JSONRPC string                 `json:"jsonrpc"`
		ID      interface{}            `json:"id"`
		Method  string                 `json:"method"`
		Params  map[string]interface{} `json:"params"`
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSONRPCError(w, nil, -32700, "Parse error", err.Error())
		return
	}

	var result interface{}

	switch req.Method {
	case "initialize":
		result = s.doInitialize()
	case "tools/list":
		result = s.doListTools()
	case "tools/call":
		toolResult, err := s.doCallTool(r.Context(), req.Params)
		if err != nil {
			result = CallToolResponse{
				Content: []Content{{Type: "text", Text: renderToolError(err)}},
				IsError: true,
			}
		} else {
			resultJSON, _ := json.Marshal(toolResult)
			result = CallToolResponse{
				Content: []Content{{Type: "text", Text: string(resultJSON)}},
			}
		}
	default:
		s.writeJSONRPCError(w, req.ID, -32601, "Method not found", req.Method)
		return
	}

	s.writeJSONRPCResult(w, req.ID, result)
}

// handleInitialize handles the initialize request.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.doInitialize())
}

// handleListTools returns the list of available tools.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.doListTools())
}

// handleCallTool executes a tool.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req CallToolRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.doCallTool(r.Context(), map[string]interface{}{
		"name":      req.Name,
		"arguments": req.Arguments,
	})
	if err != nil {
		s.writeJSON(w, http.StatusOK, CallToolResponse{
			Content: []Content{{Type: "text", Text: renderToolError(err)}},
			IsError: true,
		})
		return
	}

	resultJSON, _ := json.Marshal(result)
	s.writeJSON(w, http.StatusOK, CallToolResponse{
		Content: []Content{{Type: "text", Text: string(resultJSON)}},
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.started).String(),
		"version": "1.0.0",
	})
}

// =============================================================================
// MCP Protocol Implementation
// =============================================================================

func (s *Server) doInitialize() InitResponse {
	return InitResponse{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": false,
			},
		},
		ServerInfo: ServerInfo{
			Name:    "nexus-rag MCP Server",
			Version: "1.0.0",
		},
	}
}

func (s *Server) doListTools() ListToolsResponse {
	return ListToolsResponse{Tools: GetToolDefinitions()}
}

func (s *Server) doCallTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]interface{})
	if args == nil {
		args = make(map[string]interface{})
	}

	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	return handler(ctx, args)
}

// CallTool runs an MCP tool by name with the given arguments in process,
// without HTTP.
func (s *Server) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (interface{}, error) {
	return s.doCallTool(ctx, map[string]interface{}{"name": name, "arguments": arguments})
}

// =============================================================================
// Tool Handlers
// =============================================================================

// backendFor resolves a target argument to a write destination. Empty and
// "both" mean the fanout over both backends.
func (s *Server) backendFor(target string) (index.Index, error) {
	switch target {
	case "", "both":
		return s.store, nil
	case "graph":
		return s.graph, nil
	case "vector":
		return s.vector, nil
	default:
		return nil, newToolError(errInvalidTarget)
	}
}

func (s *Server) handleIngestDocument(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	dest, err := s.backendFor(getString(args, "target"))
	if err != nil {
		return nil, err
	}
	req := ingest.Request{
		Text: getString(args, "text"),
		Tenant: tenant.Key{
			ProjectID: getString(args, "project_id"),
			Scope:     getString(args, "tenant_scope"),
		},
		Source:         defaultIfEmpty(getString(args, "source"), "manual"),
		FilePath:       getString(args, "file_path"),
		AutoChunk:      getBool(args, "auto_chunk", true),
		SkipDuplicates: getBool(args, "skip_duplicates", true),
	}

	res, err := s.orch.Ingest(ctx, dest, req)
	if err != nil {
		return nil, newToolError(err)
	}
	return IngestResult{
		Status:        string(res.Status),
		ContentHash:   res.Hash,
		ChunksTotal:   res.ChunksTotal,
		ChunksWritten: res.ChunksWritten,
		ChunksSkipped: res.ChunksSkipped,
	}, nil
}

func (s *Server) handleIngestBatch(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	dest, err := s.backendFor(getString(args, "target"))
	if err != nil {
		return nil, err
	}

	rawDocs, _ := args["documents"].([]interface{})
	if len(rawDocs) == 0 {
		return nil, newToolError(errEmptyBatch)
	}

	// Top-level tenant arguments are the per-item defaults; validation is
	// per item so one bad tenant fails only its own document.
	defaultKey := tenant.Key{
		ProjectID: getString(args, "project_id"),
		Scope:     getString(args, "tenant_scope"),
	}
	skip := getBool(args, "skip_duplicates", true)
	autoChunk := getBool(args, "auto_chunk", true)

	items := make([]ingest.Request, 0, len(rawDocs))
	for _, raw := range rawDocs {
		doc, _ := raw.(map[string]interface{})
		key := defaultKey
		if v := getString(doc, "project_id"); v != "" {
			key.ProjectID = v
		}
		if v := getString(doc, "tenant_scope"); v != "" {
			key.Scope = v
		}
		items = append(items, ingest.Request{
			Text:           getString(doc, "text"),
			Tenant:         key,
			Source:         defaultIfEmpty(getString(doc, "source"), "manual"),
			FilePath:       getString(doc, "file_path"),
			AutoChunk:      autoChunk,
			SkipDuplicates: skip,
		})
	}

	outcome := s.orch.IngestBatch(ctx, dest, items)
	result := BatchResult{
		Ingested: outcome.Ingested,
		Skipped:  outcome.Skipped,
		Errors:   outcome.Errors,
		Chunks:   outcome.Chunks,
	}
	for _, f := range outcome.Failures {
		result.Failures = append(result.Failures, BatchItemFailure{Index: f.Index, Reason: f.Reason})
	}
	return result, nil
}

func (s *Server) handleGetContext(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := getString(args, "query")
	if query == "" {
		return nil, newToolError(errEmptyQuery)
	}
	key := tenant.Key{
		ProjectID: getString(args, "project_id"),
		Scope:     getString(args, "tenant_scope"),
	}
	if err := key.Validate(); err != nil {
		return nil, newToolError(err)
	}

	cfg := s.retrieve
	if n := getInt(args, "top_n", 0); n > 0 {
		cfg.TopN = n
	}
	pipeline := rerank.NewPipeline(cfg)
	doRerank := getBool(args, "rerank", true)

	// An explicit target pins one backend and surfaces its errors directly.
	switch target := getString(args, "target"); target {
	case "graph", "vector":
		idx := s.vector
		if target == "graph" {
			idx = s.graph
		}
		chunks, reranked, err := pipeline.Retrieve(ctx, idx, query, key, doRerank)
		if err != nil {
			return nil, newToolError(err)
		}
		return contextResult(chunks, idx.Name(), false, reranked, key, query), nil
	case "":
	default:
		return nil, newToolError(errInvalidTarget)
	}

	// The vector backend is the primary candidate source; the graph backend
	// serves when it is down. Only both being unreachable fails the call.
	chunks, reranked, err := pipeline.Retrieve(ctx, s.vector, query, key, doRerank)
	if err == nil {
		return contextResult(chunks, s.vector.Name(), false, reranked, key, query), nil
	}
	log.Printf("[mcp] %s retrieval failed, trying %s: %v", s.vector.Name(), s.graph.Name(), err)

	chunks, reranked, gerr := pipeline.Retrieve(ctx, s.graph, query, key, doRerank)
	if gerr != nil {
		return nil, newToolError(err)
	}
	return contextResult(chunks, s.graph.Name(), true, reranked, key, query), nil
}

func contextResult(chunks []string, backend string, partial, reranked bool, key tenant.Key, query string) ContextResult {
	res := ContextResult{
		Chunks:   notNil(chunks),
		Backend:  backend,
		Partial:  partial,
		Reranked: reranked,
	}
	if len(chunks) == 0 {
		res.Message = fmt.Sprintf("No context found for %s for query: %q", key, query)
	}
	return res
}

func (s *Server) handleGetTenantStats(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	key := tenant.Key{
		ProjectID: getString(args, "project_id"),
		Scope:     getString(args, "tenant_scope"),
	}
	stats, err := s.reg.Stats(ctx, key)
	if err != nil {
		return nil, newToolError(err)
	}
	return StatsResult{
		GraphTotal:    stats.GraphTotal,
		GraphChunks:   stats.GraphChunks,
		GraphEntities: stats.GraphEntities,
		VectorDocs:    stats.VectorDocs,
		Total:         stats.Total,
		Partial:       stats.Partial,
	}, nil
}

func (s *Server) handleListProjectIDs(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	listing, err := s.reg.ProjectIDs(ctx)
	if err != nil {
		return nil, newToolError(err)
	}
	return ListResult{Values: notNil(listing.Values), Count: len(listing.Values), Partial: listing.Partial}, nil
}

func (s *Server) handleListScopes(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	listing, err := s.reg.Scopes(ctx, getString(args, "project_id"))
	if err != nil {
		return nil, newToolError(err)
	}
	return ListResult{Values: notNil(listing.Values), Count: len(listing.Values), Partial: listing.Partial}, nil
}

func (s *Server) handleDeleteTenant(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	key := tenant.Key{
		ProjectID: getString(args, "project_id"),
		Scope:     getString(args, "tenant_scope"),
	}
	reports, err := s.reg.DeleteTenant(ctx, key)
	if err != nil {
		return nil, newToolError(err)
	}
	result := DeleteResult{}
	for _, rep := range reports {
		result.Results = append(result.Results, DeleteBackendResult{
			Backend: rep.Backend,
			Status:  rep.Status,
			Error:   rep.Error,
		})
	}
	return result, nil
}

// =============================================================================
// Response Writers
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSONRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message, data string) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
	})
}

// renderToolError serializes an error for the client. Classified tool errors
// carry a stable kind; anything else is internal.
func renderToolError(err error) string {
	te, ok := err.(*toolError)
	if !ok {
		te = newToolError(err)
	}
	out, _ := json.Marshal(map[string]string{
		"error":   te.kind,
		"message": te.message,
	})
	return string(out)
}

// =============================================================================
// Utility Functions
// =============================================================================

// getString safely extracts a string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getInt safely extracts an int from map
func getInt(m map[string]interface{}, key string, defaultVal int) int {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case int64:
			return int(val)
		case float64:
			return int(val)
		}
	}
	return defaultVal
}

// getBool safely extracts a bool from map
func getBool(m map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func defaultIfEmpty(s, defaultVal string) string {
	if s == "" {
		return defaultVal
	}
	return s
}

// notNil keeps empty JSON arrays as [] instead of null.
func notNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
