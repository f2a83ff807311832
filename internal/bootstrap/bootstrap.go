// Package bootstrap wires configuration, infrastructure and usecases into
// the running application.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neurowatch/neuromonitor/internal/config"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
	"github.com/neurowatch/neuromonitor/internal/core/usecase"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/alert/nats"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/chunking"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/embedding/ollama"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/extractor"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/llm/groq"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/repository/postgres"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/resilience"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/storage/localfs"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/vector/memory"
	"github.com/neurowatch/neuromonitor/internal/infrastructure/vector/qdrant"
	"github.com/neurowatch/neuromonitor/internal/policy"
)

type App struct {
	Config config.Config
	Policy *policy.Table

	Ingestor   ports.ReportIngestor
	Gate       ports.GateReader
	Chat       ports.ChatService
	Monitoring ports.MonitoringService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	table, err := policy.Load()
	if err != nil {
		return nil, fmt.Errorf("load clinical policy: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	uploads := postgres.NewUploadRepository(db)
	sessions := postgres.NewSessionRepository(db)
	chats := postgres.NewChatRepository(db)

	archive, err := localfs.New(cfg.ReportArchivePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init report archive: %w", err)
	}

	// One executor for every outbound dependency so breaker state is shared
	// across requests.
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	alerts, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSAlertSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect alert broker: %w", err)
	}

	llm := groq.New(cfg.GroqURL, cfg.GroqAPIKey, cfg.GroqModel,
		time.Duration(cfg.LLMTimeoutSeconds)*time.Second, executor)
	answers := groq.NewAnswerGenerator(llm)
	questions := groq.NewQuestionGenerator(llm)
	riskModel := groq.NewRiskModel(llm)

	embedder := ollama.NewEmbedder(cfg.OllamaURL, cfg.OllamaEmbedModel,
		time.Duration(cfg.EmbedTimeoutSeconds)*time.Second, executor)

	var ocr *extractor.OCRClient
	if cfg.OCRServiceURL != "" {
		ocr = extractor.NewOCRClient(cfg.OCRServiceURL,
			time.Duration(cfg.OCRTimeoutSeconds)*time.Second, executor)
	}
	reports := extractor.NewRegistry(ocr)

	var store ports.PartitionStore
	switch strings.ToLower(cfg.VectorBackend) {
	case "memory":
		store = memory.New()
	default:
		store = qdrant.New(cfg.QdrantURL, time.Duration(cfg.VectorTimeoutSeconds)*time.Second)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkChars)

	gate := usecase.NewGateUseCase(uploads)
	retriever := usecase.NewDualRetriever(embedder, store, usecase.RetrievalLimits{
		SharedTopK:  cfg.RetrievalSharedTopK,
		PatientTopK: cfg.RetrievalPatientTopK,
		Budget:      cfg.RetrievalBudget,
	})
	risk := usecase.NewRiskEngine(riskModel, table)

	ingest := usecase.NewReportIngestUseCase(uploads, archive, reports, chunker, embedder, store,
		usecase.IngestLimits{
			MaxUploadBytes: cfg.UploadMaxBytes,
			MinTextChars:   cfg.MinExtractedChars,
		})
	chat := usecase.NewChatUseCase(gate, chats, retriever, answers, risk, alerts,
		usecase.ChatLimits{HistoryContext: cfg.ChatHistoryContext})
	monitoring := usecase.NewMonitoringUseCase(gate, sessions, retriever, questions, risk, alerts, table,
		usecase.MonitoringLimits{DefaultMaxQuestions: cfg.SessionDefaultMaxQuestions})

	return &App{
		Config: cfg,
		Policy: table,

		Ingestor:   ingest,
		Gate:       gate,
		Chat:       chat,
		Monitoring: monitoring,

		closeFn: func() {
			alerts.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
