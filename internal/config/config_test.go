package config

import "testing"

func TestLoadRetrievalAndSessionDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_SHARED_TOP_K", "")
	t.Setenv("RETRIEVAL_PATIENT_TOP_K", "")
	t.Setenv("RETRIEVAL_BUDGET", "")
	t.Setenv("SESSION_DEFAULT_MAX_QUESTIONS", "")
	t.Setenv("CHAT_HISTORY_CONTEXT_MESSAGES", "")
	t.Setenv("UPLOAD_MAX_BYTES", "")

	cfg := Load()
	if cfg.RetrievalSharedTopK != 3 || cfg.RetrievalPatientTopK != 3 {
		t.Fatalf("expected 3/3 retrieval top-k defaults, got %d/%d",
			cfg.RetrievalSharedTopK, cfg.RetrievalPatientTopK)
	}
	if cfg.RetrievalBudget != 6 {
		t.Fatalf("expected default retrieval budget 6, got %d", cfg.RetrievalBudget)
	}
	if cfg.SessionDefaultMaxQuestions != 5 {
		t.Fatalf("expected default max questions 5, got %d", cfg.SessionDefaultMaxQuestions)
	}
	if cfg.ChatHistoryContext != 2 {
		t.Fatalf("expected default chat history context 2, got %d", cfg.ChatHistoryContext)
	}
	if cfg.UploadMaxBytes != 10<<20 {
		t.Fatalf("expected default upload cap 10MiB, got %d", cfg.UploadMaxBytes)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("CHUNK_SIZE", "256")
	t.Setenv("LOADER_CHUNK_SIZE", "1024")
	t.Setenv("UPLOAD_MAX_BYTES", "2097152")
	t.Setenv("API_RATE_LIMIT_RPS", "5")

	cfg := Load()
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected vector backend override, got %q", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 256 {
		t.Fatalf("expected chunk size 256, got %d", cfg.ChunkSize)
	}
	if cfg.LoaderChunkSize != 1024 {
		t.Fatalf("expected loader chunk size 1024, got %d", cfg.LoaderChunkSize)
	}
	if cfg.UploadMaxBytes != 2097152 {
		t.Fatalf("expected upload cap override, got %d", cfg.UploadMaxBytes)
	}
	if cfg.APIRateLimitRPS != 5 {
		t.Fatalf("expected rate limit override, got %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("UPLOAD_MAX_BYTES", "ten megabytes")

	cfg := Load()
	if cfg.ChunkSize != 500 {
		t.Fatalf("expected malformed CHUNK_SIZE to fall back to 500, got %d", cfg.ChunkSize)
	}
	if cfg.UploadMaxBytes != 10<<20 {
		t.Fatalf("expected malformed UPLOAD_MAX_BYTES to fall back, got %d", cfg.UploadMaxBytes)
	}
}
