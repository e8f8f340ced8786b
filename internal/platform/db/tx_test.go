package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestSerializationFailureDetection(t *testing.T) {
	wrapped := fmt.Errorf("platform/db: commit tx: %w", &pgconn.PgError{Code: "40001"})
	assert.True(t, isSerializationFailure(wrapped))

	assert.False(t, isSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isSerializationFailure(errors.New("boom")))
	assert.False(t, isSerializationFailure(nil))
}
