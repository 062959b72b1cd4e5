package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Connection("patient", "source unreachable", cause)

	msg := err.Error()
	assert.Contains(t, msg, "connection error")
	assert.Contains(t, msg, "[table=patient]")
	assert.Contains(t, msg, "source unreachable")
	assert.Contains(t, msg, "connection refused")
}

func TestError_IsMatchesByKind(t *testing.T) {
	err := Configuration("patient", "no incremental column")

	assert.True(t, errors.Is(err, &Error{Kind: KindConfiguration}))
	assert.False(t, errors.Is(err, &Error{Kind: KindQuery}))
}

func TestError_IsMatchesThroughWrapping(t *testing.T) {
	inner := Query("appointment", "fetch page", errors.New("deadlock"))
	wrapped := fmt.Errorf("copy failed: %w", inner)

	assert.True(t, errors.Is(wrapped, &Error{Kind: KindQuery}))

	var got *Error
	assert.True(t, errors.As(wrapped, &got))
	assert.Equal(t, "appointment", got.Table)
	assert.Equal(t, "fetch page", got.Operation)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("lock wait timeout")
	err := Transaction("claim", "commit", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestError_WithDetail(t *testing.T) {
	err := Configuration("", "bad batch size").WithDetail("batch_size", -1)
	assert.Equal(t, -1, err.Details["batch_size"])

	err.WithDetail("source", "config file")
	assert.Len(t, err.Details, 2)
}

func TestExtraction_Details(t *testing.T) {
	err := Extraction("procedurelog", "incremental", 25000, errors.New("server gone"))

	assert.Equal(t, KindExtraction, err.Kind)
	assert.Equal(t, "extract", err.Operation)
	assert.Equal(t, "incremental", err.Details["extraction_strategy"])
	assert.Equal(t, 25000, err.Details["batch_size"])
}

func TestLoading_Details(t *testing.T) {
	err := Loading("patient", "full_table", 5000, "opendental_repl", errors.New("duplicate entry"))

	assert.Equal(t, KindLoading, err.Kind)
	assert.Equal(t, "load", err.Operation)
	assert.Equal(t, 5000, err.Details["chunk_size"])
	assert.Equal(t, "opendental_repl", err.Details["target_schema"])

	bare := Loading("patient", "full_table", 5000, "", nil)
	assert.NotContains(t, bare.Details, "target_schema")
}
