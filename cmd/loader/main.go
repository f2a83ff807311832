// The loader populates the shared clinical knowledge partition from a
// directory of reference documents. It is the only writer of that partition;
// the api binary treats it as read-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/neurowatch/neuromonitor/internal/config"
	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/chunking"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/embedding/ollama"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/extractor"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/resilience"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/vector/memory"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/vector/qdrant"
	"github.com/neurowatch/neuromonitor/internal/observability/logging"
)

// vectorStore is what the loader needs from a partition store. Both backends
// implement it; DeletePartition is deliberately absent from the request-path
// port.
type vectorStore interface {
	EnsurePartition(ctx context.Context, partition string, vectorSize int) error
	AppendChunks(ctx context.Context, partition string, chunks []domain.DocumentChunk, vectors [][]float32) error
	DeletePartition(ctx context.Context, partition string) error
}

type loader struct {
	registry *extractor.Registry
	splitter *chunking.Splitter
	embedder *ollama.Embedder
	store    vectorStore

	ensured bool

	indexedFiles int
	totalChunks  int
	skipped      int
	failed       int
}

func main() {
	dir := flag.String("dir", "./system_data", "directory of reference documents to index")
	rebuild := flag.Bool("rebuild", false, "drop the shared partition before loading")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logging.Setup("loader", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dir, *rebuild); err != nil {
		slog.Error("load failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, dir string, rebuild bool) error {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var ocr *extractor.OCRClient
	if cfg.OCRServiceURL != "" {
		ocr = extractor.NewOCRClient(cfg.OCRServiceURL,
			time.Duration(cfg.OCRTimeoutSeconds)*time.Second, executor)
	}

	var store vectorStore
	switch strings.ToLower(cfg.VectorBackend) {
	case "memory":
		slog.Warn("in-memory vector backend selected; indexed data is discarded at exit")
		store = memory.New()
	default:
		store = qdrant.New(cfg.QdrantURL, time.Duration(cfg.VectorTimeoutSeconds)*time.Second)
	}

	l := &loader{
		registry: extractor.NewRegistry(ocr),
		splitter: chunking.NewSplitter(cfg.LoaderChunkSize, cfg.ChunkOverlap, cfg.MinChunkChars),
		embedder: ollama.NewEmbedder(cfg.OllamaURL, cfg.OllamaEmbedModel,
			time.Duration(cfg.EmbedTimeoutSeconds)*time.Second, executor),
		store: store,
	}

	if rebuild {
		if err := l.store.DeletePartition(ctx, domain.SharedPartition); err != nil {
			return fmt.Errorf("drop shared partition: %w", err)
		}
		slog.Info("dropped shared partition for rebuild")
	}

	if err := l.loadDir(ctx, dir); err != nil {
		return err
	}

	slog.Info("load complete",
		"dir", dir,
		"files", l.indexedFiles,
		"chunks", l.totalChunks,
		"skipped", l.skipped,
		"failed", l.failed,
	)
	if l.failed > 0 {
		return fmt.Errorf("%d file(s) failed to index", l.failed)
	}
	if l.indexedFiles == 0 {
		return fmt.Errorf("no supported documents found in %s", dir)
	}
	return nil
}

func (l *loader) loadDir(ctx context.Context, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.registry.Supports(d.Name()) {
			slog.Warn("skipping unsupported file", "file", d.Name())
			l.skipped++
			return nil
		}

		chunks, err := l.indexFile(ctx, path, d.Name())
		switch {
		case err != nil:
			// One bad document must not abort the whole load.
			slog.Error("index failed", "file", d.Name(), "error", err)
			l.failed++
		case chunks == 0:
			slog.Warn("no usable chunks", "file", d.Name())
			l.skipped++
		default:
			slog.Info("indexed", "file", d.Name(), "chunks", chunks)
			l.indexedFiles++
			l.totalChunks += chunks
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	return nil
}

func (l *loader) indexFile(ctx context.Context, path, name string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text, err := l.registry.Extract(ctx, name, data)
	if err != nil {
		return 0, err
	}
	parts := l.splitter.Split(text)
	if len(parts) == 0 {
		return 0, nil
	}

	vectors, err := l.embedder.Embed(ctx, parts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if !l.ensured {
		if err := l.store.EnsurePartition(ctx, domain.SharedPartition, len(vectors[0])); err != nil {
			return 0, fmt.Errorf("ensure shared partition: %w", err)
		}
		l.ensured = true
	}

	now := time.Now().UTC()
	chunks := make([]domain.DocumentChunk, len(parts))
	for i := 0; i < len(parts); i++ {
		chunks[i] = domain.DocumentChunk{
			Text:           parts[i],
			SourceFile:     name,
			ChunkIndex:     i,
			OwnerPartition: domain.SharedPartition,
			IndexedAt:      now,
		}
	}
	if err := l.store.AppendChunks(ctx, domain.SharedPartition, chunks, vectors); err != nil {
		return 0, fmt.Errorf("append chunks: %w", err)
	}
	return len(chunks), nil
}
