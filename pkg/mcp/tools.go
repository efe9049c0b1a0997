// Package mcp provides tool definitions and server for the nexus-rag MCP
// (Model Context Protocol) surface.
package mcp

import "encoding/json"

// Tool names.
const (
	ToolIngestDocument = "ingest_document"
	ToolIngestBatch    = "ingest_documents_batch"
	ToolGetContext     = "get_context"
	ToolGetTenantStats = "get_tenant_stats"
	ToolListProjectIDs = "list_project_ids"
	ToolListScopes     = "list_scopes"
	ToolDeleteTenant   = "delete_tenant_data"
)

// tenantParams are the project/scope arguments shared by most tools.
func tenantParams() map[string]interface{} {
	return map[string]interface{}{
		"project_id": map[string]interface{}{
			"type":        "string",
			"description": "Project the data belongs to. Required; tenants never see each other's data.",
		},
		"tenant_scope": map[string]interface{}{
			"type":        "string",
			"description": "Scope within the project (e.g. prod, dev, a user id).",
		},
	}
}

// targetParam is the backend selector shared by the ingest and retrieval
// tools. writeDefault is what an omitted value means for that tool.
func targetParam(writeDefault string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"graph", "vector", "both"},
		"description": "Backend to use. Defaults to " + writeDefault + ".",
	}
}

// GetToolDefinitions returns all 7 MCP tool definitions with JSON schemas.
func GetToolDefinitions() []Tool {
	return []Tool{
		getIngestDocumentTool(),
		getIngestBatchTool(),
		getContextTool(),
		getTenantStatsTool(),
		getListProjectIDsTool(),
		getListScopesTool(),
		getDeleteTenantTool(),
	}
}

func getIngestDocumentTool() Tool {
	props := tenantParams()
	props["text"] = map[string]interface{}{
		"type":        "string",
		"description": "Document text to store.",
	}
	props["source"] = map[string]interface{}{
		"type":        "string",
		"description": "Where the text came from (e.g. manual, crawler, upload).",
		"default":     "manual",
	}
	props["file_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Originating file path, if any.",
	}
	props["auto_chunk"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Split oversized documents instead of rejecting them.",
		"default":     true,
	}
	props["skip_duplicates"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Skip content already stored for this tenant (matched by content hash).",
		"default":     true,
	}
	props["target"] = targetParam(`"both"`)
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"text", "project_id", "tenant_scope"},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolIngestDocument,
		Description: `Store one document in the knowledge base. The text is chunked if oversized,
deduplicated by content hash within the tenant, and written to the selected backend (target:
graph, vector, or both; default both). Re-ingesting the same text is safe and reports "skipped".`,
		InputSchema: schemaJSON,
	}
}

func getIngestBatchTool() Tool {
	itemProps := map[string]interface{}{
		"text": map[string]interface{}{
			"type":        "string",
			"description": "Document text to store.",
		},
		"project_id": map[string]interface{}{
			"type":        "string",
			"description": "Overrides the top-level project_id for this item.",
		},
		"tenant_scope": map[string]interface{}{
			"type":        "string",
			"description": "Overrides the top-level tenant_scope for this item.",
		},
		"source": map[string]interface{}{
			"type":        "string",
			"description": "Where the text came from.",
			"default":     "manual",
		},
		"file_path": map[string]interface{}{
			"type":        "string",
			"description": "Originating file path, if any.",
		},
	}
	props := tenantParams()
	props["documents"] = map[string]interface{}{
		"type":        "array",
		"description": "Documents to ingest. Items fail independently; one bad document never aborts the rest.",
		"items": map[string]interface{}{
			"type":       "object",
			"properties": itemProps,
			"required":   []string{"text"},
		},
	}
	props["skip_duplicates"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Skip content already stored for each item's tenant.",
		"default":     true,
	}
	props["auto_chunk"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Split oversized documents instead of rejecting them.",
		"default":     true,
	}
	props["target"] = targetParam(`"both"`)
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"documents"},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolIngestBatch,
		Description: `Store several documents in a single call. The top-level project_id and
tenant_scope are defaults; items may carry their own. Returns aggregate counts plus a per-item
failure list keyed by position in the input.`,
		InputSchema: schemaJSON,
	}
}

func getContextTool() Tool {
	props := tenantParams()
	props["query"] = map[string]interface{}{
		"type":        "string",
		"description": "Natural-language question or topic to retrieve context for.",
	}
	props["top_n"] = map[string]interface{}{
		"type":        "integer",
		"description": "How many chunks to return.",
		"default":     5,
	}
	props["rerank"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Rerank candidates with the cross-encoder when one is configured.",
		"default":     true,
	}
	props["target"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"graph", "vector"},
		"description": "Query only this backend. Defaults to the vector backend with graph fallback.",
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"query", "project_id", "tenant_scope"},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolGetContext,
		Description: `Retrieve the most relevant stored chunks for a query, restricted to the tenant.
By default candidates come from the vector backend (falling back to the graph backend when it is
down); target pins the query to one backend. Candidates are optionally reranked by a cross-encoder;
reranker problems degrade to backend order, never to an error.`,
		InputSchema: schemaJSON,
	}
}

func getTenantStatsTool() Tool {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": tenantParams(),
		"required":   []string{"project_id"},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolGetTenantStats,
		Description: `Report how much data a tenant has in each backend: graph node counts broken
down into chunks and extracted entities, plus the vector document count. Omit tenant_scope to cover
the whole project. "partial" is set when one backend could not be reached.`,
		InputSchema: schemaJSON,
	}
}

func getListProjectIDsTool() Tool {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolListProjectIDs,
		Description: `List every project id present in either backend. The union is deduplicated
and sorted; "partial" is set when one backend could not contribute.`,
		InputSchema: schemaJSON,
	}
}

func getListScopesTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"project_id": map[string]interface{}{
				"type":        "string",
				"description": "Project to list scopes for. Omit to list scopes across all projects.",
			},
		},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolListScopes,
		Description: `List the tenant scopes stored under a project (or across all projects when
project_id is omitted).`,
		InputSchema: schemaJSON,
	}
}

func getDeleteTenantTool() Tool {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": tenantParams(),
		"required":   []string{"project_id"},
	}
	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: ToolDeleteTenant,
		Description: `Delete all of a tenant's data from both backends. Omit tenant_scope to delete
the whole project. Each backend reports its own outcome; a failure in one backend never hides a
successful delete in the other.`,
		InputSchema: schemaJSON,
	}
}
