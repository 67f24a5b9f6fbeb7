package db

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestSchemaSQLDimension(t *testing.T) {
	for _, dim := range []int{384, 768, 1536} {
		sql := SchemaSQL(dim)
		assert.Contains(t, sql, "HNSW DIMENSION "+strconv.Itoa(dim)+" DIST COSINE")
		assert.Contains(t, sql, "DEFINE TABLE IF NOT EXISTS frame_spec")
		assert.NotContains(t, sql, "%d")
	}
}

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}, ErrTransactionConflict},
		{"dimension", &surrealdb.QueryError{Message: "Incorrect vector dimension (3). Expected a vector of 384 dimension."}, ErrDimensionMismatch},
		{"other query error", &surrealdb.QueryError{Message: "Parse error"}, nil},
		{"plain error", errors.New("socket closed"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapQueryError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
