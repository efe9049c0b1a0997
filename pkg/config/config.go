// Package config loads server settings from the environment. Every knob has
// a working default so a bare `nexus-rag` against local services comes up
// without any configuration.
package config

import (
	"fmt"
	"time"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/envutil"
)

// Config carries everything the server and its backends need.
type Config struct {
	// HTTP surface.
	ListenAddr     string
	RequestTimeout time.Duration

	// Ingestion limits.
	MaxDocumentSize int
	ChunkSize       int
	ChunkOverlap    int

	// Retrieval shape.
	RerankerEnabled bool
	RerankerURL     string
	CandidateK      int
	TopN            int

	// Backends.
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPassword string
	QdrantHost    string
	QdrantPort    int
	Collection    string
	VectorSize    int

	// Model services.
	OllamaURL      string
	EmbedModel     string
	LLMModel       string
	ModelTimeout   time.Duration
	ExtractEnabled bool
}

// Load reads the environment and applies defaults.
func Load() Config {
	return Config{
		ListenAddr:     envutil.Get("LISTEN_ADDR", ":8080"),
		RequestTimeout: envutil.GetDurationOrSeconds("REQUEST_TIMEOUT", 120*time.Second),

		MaxDocumentSize: envutil.GetInt("MAX_DOCUMENT_SIZE", 512*1024),
		ChunkSize:       envutil.GetInt("INGEST_CHUNK_SIZE", 2048),
		ChunkOverlap:    envutil.GetInt("INGEST_CHUNK_OVERLAP", 256),

		RerankerEnabled: envutil.GetBoolLoose("RERANKER_ENABLED", false),
		RerankerURL:     envutil.Get("RERANKER_URL", ""),
		CandidateK:      envutil.GetInt("RERANKER_CANDIDATE_K", 20),
		TopN:            envutil.GetInt("RERANKER_TOP_N", 5),

		Neo4jURL:      envutil.Get("NEO4J_URL", "bolt://localhost:7687"),
		Neo4jUser:     envutil.Get("NEO4J_USER", "neo4j"),
		Neo4jPassword: envutil.Get("NEO4J_PASSWORD", "password"),
		QdrantHost:    envutil.Get("QDRANT_HOST", "localhost"),
		QdrantPort:    envutil.GetInt("QDRANT_PORT", 6334),
		Collection:    envutil.Get("QDRANT_COLLECTION", "nexus_rag"),
		VectorSize:    envutil.GetInt("VECTOR_SIZE", 768),

		OllamaURL:      envutil.Get("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:     envutil.Get("EMBED_MODEL", "nomic-embed-text"),
		LLMModel:       envutil.Get("LLM_MODEL", "llama3.1:8b"),
		ModelTimeout:   envutil.GetDurationOrSeconds("MODEL_TIMEOUT", 300*time.Second),
		ExtractEnabled: envutil.GetBoolLoose("EXTRACT_ENABLED", true),
	}
}

// Validate rejects settings that cannot work together.
func (c Config) Validate() error {
	if c.MaxDocumentSize <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_SIZE must be positive, got %d", c.MaxDocumentSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("INGEST_CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("INGEST_CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("RERANKER_TOP_N must be positive, got %d", c.TopN)
	}
	if c.CandidateK < c.TopN {
		return fmt.Errorf("RERANKER_CANDIDATE_K (%d) must be at least RERANKER_TOP_N (%d)", c.CandidateK, c.TopN)
	}
	if c.RerankerEnabled && c.RerankerURL == "" {
		return fmt.Errorf("RERANKER_URL is required when RERANKER_ENABLED is set")
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("VECTOR_SIZE must be positive, got %d", c.VectorSize)
	}
	if c.QdrantPort <= 0 || c.QdrantPort > 65535 {
		return fmt.Errorf("QDRANT_PORT out of range: %d", c.QdrantPort)
	}
	return nil
}
