package mcp

import "encoding/json"

// ============================================================================
// MCP Protocol Types
// ============================================================================

// Tool represents an MCP tool definition
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// InitRequest is the MCP initialize request
type InitRequest struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

// ClientInfo contains client metadata
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitResponse is the MCP initialize response
type InitResponse struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
}

// ServerInfo contains server metadata
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResponse returns available tools
type ListToolsResponse struct {
	Tools []Tool `json:"tools"`
}

// CallToolRequest executes a tool
type CallToolRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// CallToolResponse returns tool execution result
type CallToolResponse struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents tool response content
type Content struct {
	Type string `json:"type"` // "text"
	Text string `json:"text,omitempty"`
}

// ============================================================================
// Tool Output Types
// ============================================================================

// IngestResult - Output from ingest_document
type IngestResult struct {
	Status        string `json:"status"` // ingested | skipped | partial
	ContentHash   string `json:"content_hash"`
	ChunksTotal   int    `json:"chunks_total,omitempty"`
	ChunksWritten int    `json:"chunks_written,omitempty"`
	ChunksSkipped int    `json:"chunks_skipped,omitempty"`
}

// BatchItemFailure - One failed item in a batch, by position
type BatchItemFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult - Output from ingest_documents_batch
type BatchResult struct {
	Ingested int                `json:"ingested"`
	Skipped  int                `json:"skipped"`
	Errors   int                `json:"errors"`
	Chunks   int                `json:"chunks"`
	Failures []BatchItemFailure `json:"failures,omitempty"`
}

// ContextResult - Output from get_context
type ContextResult struct {
	Chunks   []string `json:"chunks"`
	Backend  string   `json:"backend"`            // which backend served the candidates
	Partial  bool     `json:"partial,omitempty"`  // true when a backend had to be skipped
	Reranked bool     `json:"reranked,omitempty"` // true when cross-encoder order was applied
	Message  string   `json:"message,omitempty"`  // set when no context matched
}

// StatsResult - Output from get_tenant_stats
type StatsResult struct {
	GraphTotal    int64 `json:"graph_total"`
	GraphChunks   int64 `json:"graph_chunks"`
	GraphEntities int64 `json:"graph_entities"`
	VectorDocs    int64 `json:"vector_docs"`
	Total         int64 `json:"total"`
	Partial       bool  `json:"partial,omitempty"`
}

// ListResult - Output from list_project_ids and list_scopes
type ListResult struct {
	Values  []string `json:"values"`
	Count   int      `json:"count"`
	Partial bool     `json:"partial,omitempty"`
}

// DeleteResult - Output from delete_tenant_data, one entry per backend
type DeleteResult struct {
	Results []DeleteBackendResult `json:"results"`
}

// DeleteBackendResult is one backend's own deletion outcome
type DeleteBackendResult struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}
