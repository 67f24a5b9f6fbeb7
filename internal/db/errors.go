package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

var (
	// ErrNotFound indicates the requested frame record does not exist.
	ErrNotFound = errors.New("frame record not found")

	// ErrTransactionConflict indicates concurrent writes to the same record.
	// Callers may retry the upsert.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrDimensionMismatch indicates a vector whose length differs from the HNSW index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// wrapQueryError maps known SurrealDB query errors onto sentinel errors.
// Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		case strings.Contains(msg, "dimension"):
			return fmt.Errorf("%w: %s", ErrDimensionMismatch, msg)
		}
	}
	return err
}
