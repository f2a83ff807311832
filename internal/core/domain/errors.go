package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNoMedicalReport   = errors.New("no medical report on file")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionComplete   = errors.New("session already complete")
	ErrQuestionPending   = errors.New("question awaiting answer")
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrPartitionNotFound = errors.New("partition not found")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
