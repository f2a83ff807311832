// Package localfs archives raw uploaded reports on disk, one directory per
// patient. The archive copy is written before any processing so a failed
// ingestion can be replayed without asking the patient to re-upload.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if basePath == "" {
		basePath = "./data/reports"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// Save stores the raw report and returns its archive key. The uuid prefix
// keeps repeated uploads of the same filename from clobbering each other.
func (a *Archive) Save(_ context.Context, patientID, filename string, data io.Reader) (string, error) {
	dir := filepath.Join(a.basePath, patientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create patient archive dir: %w", err)
	}

	key := filepath.Join(patientID, uuid.NewString()+"_"+filepath.Base(filename))
	path := filepath.Join(a.basePath, key)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return key, nil
}

func (a *Archive) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := filepath.Join(a.basePath, key)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	return f, nil
}
