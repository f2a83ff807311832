package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestChatRepositoryListRecentReturnsChronological(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewChatRepository(db)
	now := time.Now()
	// SQL returns newest first; the repository reverses into chronological order.
	rows := sqlmock.NewRows([]string{"id", "patient_id", "question", "answer", "risk_level", "risk_reasons", "sources", "created_at"}).
		AddRow("m-2", "p1", "second question", "second answer", "LOW", []byte(`[]`), []byte(`["shared/guide.md"]`), now).
		AddRow("m-1", "p1", "first question", "first answer", "LOW", []byte(`[]`), []byte(`[]`), now.Add(-time.Minute))

	mock.ExpectQuery("FROM chat_messages").
		WithArgs("p1", 2).
		WillReturnRows(rows)

	history, err := repo.ListRecent(context.Background(), "p1", 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(history))
	}
	if history[0].Question != "first question" || history[1].Question != "second question" {
		t.Fatalf("expected chronological order, got %q then %q", history[0].Question, history[1].Question)
	}
	if len(history[0].Sources) != 0 {
		t.Fatalf("expected no sources on first exchange, got %v", history[0].Sources)
	}
	if len(history[1].Sources) != 1 || history[1].Sources[0] != "shared/guide.md" {
		t.Fatalf("unexpected sources: %v", history[1].Sources)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatRepositoryListRecentZeroLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewChatRepository(db)
	history, err := repo.ListRecent(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if history != nil {
		t.Fatalf("expected no query for zero limit, got %v", history)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
