// Package main runs the nexus-rag MCP server: a multi-tenant retrieval
// service that stores documents in a Neo4j property graph and a Qdrant
// vector collection and answers context queries over both.
//
// Usage:
//
//	go build -o nexus-rag ./cmd/nexus-rag
//	./nexus-rag
//
// All settings come from the environment; see pkg/config for the knobs and
// their defaults.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhargavchippada/mcp-nexus-rag/pkg/config"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/index"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/ingest"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/mcp"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/ollama"
	"github.com/bhargavchippada/mcp-nexus-rag/pkg/rerank"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	models := ollama.NewClient(ollama.Config{
		APIURL:     cfg.OllamaURL,
		EmbedModel: cfg.EmbedModel,
		LLMModel:   cfg.LLMModel,
		Timeout:    cfg.ModelTimeout,
	})

	var generate index.GenerateFunc
	if cfg.ExtractEnabled {
		generate = models.Generate
	}
	graph := index.NewGraphIndex(index.GraphConfig{
		URL:      cfg.Neo4jURL,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
	}, generate)
	vector := index.NewVectorIndex(index.VectorConfig{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		Collection: cfg.Collection,
		VectorSize: cfg.VectorSize,
	}, models)

	if cfg.RerankerEnabled {
		rerank.SetScorerFactory(func() (rerank.Scorer, error) {
			return rerank.NewHTTPScorer(rerank.CrossEncoderConfig{URL: cfg.RerankerURL})
		})
	}

	orch := ingest.NewOrchestrator(ingest.Config{
		MaxDocumentSize: cfg.MaxDocumentSize,
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
	})

	serverCfg := mcp.DefaultServerConfig()
	serverCfg.Addr = cfg.ListenAddr
	serverCfg.RequestTimeout = cfg.RequestTimeout
	server := mcp.NewServer(orch, rerank.Config{
		Enabled:    cfg.RerankerEnabled,
		CandidateK: cfg.CandidateK,
		TopN:       cfg.TopN,
	}, graph, vector, serverCfg)

	if err := server.Start(cfg.ListenAddr); err != nil {
		log.Fatalf("start server: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	index.ResetConnections(ctx)
}
