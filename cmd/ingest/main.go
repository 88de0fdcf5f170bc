package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironroggers/ops-tracker/internal/config"
	"github.com/ironroggers/ops-tracker/internal/database"
	"github.com/ironroggers/ops-tracker/internal/di"
	"github.com/ironroggers/ops-tracker/internal/knowledge"
	"github.com/ironroggers/ops-tracker/internal/logger"
	"github.com/ironroggers/ops-tracker/internal/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		tenant    = flag.String("tenant", "default", "Tenant (domain) whose Milvus connection receives the chunks")
		docID     = flag.String("doc", "", "Document id, used as the collection name")
		file      = flag.String("file", "", "JSON array of chunks, or a plain text document")
		chunkSize = flag.Int("chunk-size", 800, "Characters per chunk for plain text input")
		overlap   = flag.Int("overlap", 100, "Overlapping characters between plain text chunks")
		s3Key     = flag.String("s3-key", "", "Source key recorded on plain text chunks")
		s3URL     = flag.String("s3-url", "", "Source url recorded on plain text chunks")
	)
	flag.Parse()

	if *docID == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetAppConfig()

	inputs, err := readChunks(*file, knowledge.NewChunker(*chunkSize, *overlap), knowledge.ChunkInput{
		S3Key:    *s3Key,
		S3URL:    *s3URL,
		FileType: strings.TrimPrefix(filepath.Ext(*file), "."),
	})
	if err != nil {
		log.Fatalf("Failed to read chunks: %v", err)
	}

	ctx := context.Background()
	rdb, err := database.InitRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
	}
	defer database.CloseRedis(rdb)

	container := di.InitContainer()
	if err := di.RegisterProviders(container, cfg, di.Overrides{
		Connections: &di.Connections{Redis: rdb},
	}); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	err = container.Invoke(func(indexer *knowledge.Indexer, emb *knowledge.EmbeddingService, milvus *middleware.MilvusService) error {
		defer milvus.DisconnectAll()
		if !emb.Ready() {
			logger.Warn("Embedding provider not configured, chunks will be stored with zero vectors")
		}
		n, err := indexer.IndexChunks(ctx, *tenant, *docID, inputs)
		if err != nil {
			return err
		}
		logger.Info("Document indexed",
			zap.String("tenant", *tenant),
			zap.String("doc_id", *docID),
			zap.String("collection", knowledge.NormalizeCollectionName(*docID)),
			zap.Int("chunks", n))
		return nil
	})
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
}

// readChunks .json 文件按分块数组解析，其他文件按纯文本切分
func readChunks(path string, chunker *knowledge.Chunker, base knowledge.ChunkInput) ([]knowledge.ChunkInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var inputs []knowledge.ChunkInput
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return inputs, nil
	}

	inputs := chunker.SplitDocument(string(data), base)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s has no text", path)
	}
	return inputs, nil
}
