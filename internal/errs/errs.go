// Package errs defines the error kinds raised by the replication engine.
package errs

import (
	"fmt"
	"strings"
)

// Kind classifies a replication error.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindConnection    Kind = "connection"
	KindQuery         Kind = "query"
	KindTransaction   Kind = "transaction"
	KindExtraction    Kind = "extraction"
	KindLoading       Kind = "loading"
)

// Error is the common shape of all replication errors. It carries the table
// and operation being processed plus a free-form details map for diagnostics.
type Error struct {
	Kind      Kind
	Message   string
	Table     string
	Operation string
	Details   map[string]any
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Table != "" {
		fmt.Fprintf(&b, " [table=%s]", e.Table)
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, " [op=%s]", e.Operation)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying low-level error for errors.Is/As chaining.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two replication errors by kind so callers can branch with
// errors.Is(err, &errs.Error{Kind: errs.KindConfiguration}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetail attaches a key/value pair to the details map and returns the
// error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Configuration reports missing or invalid configuration. Callers treat it as
// fatal for the affected table (or for startup when raised during construction).
func Configuration(table, msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg, Table: table}
}

// Connection reports a failure to establish or maintain a database connection.
func Connection(table, msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: msg, Table: table, Err: cause}
}

// Query reports a failed SQL statement.
func Query(table, operation string, cause error) *Error {
	return &Error{Kind: KindQuery, Message: "query failed", Table: table, Operation: operation, Err: cause}
}

// Transaction reports a failed transaction begin/commit/rollback.
func Transaction(table, operation string, cause error) *Error {
	return &Error{Kind: KindTransaction, Message: "transaction failed", Table: table, Operation: operation, Err: cause}
}

// Extraction reports a read-side failure for a table. Strategy and batch size
// are recorded in the details map for diagnostics.
func Extraction(table, strategy string, batchSize int, cause error) *Error {
	e := &Error{Kind: KindExtraction, Message: "extraction failed", Table: table, Operation: "extract", Err: cause}
	return e.WithDetail("extraction_strategy", strategy).WithDetail("batch_size", batchSize)
}

// Loading reports a write-side failure for a table.
func Loading(table, strategy string, chunkSize int, targetSchema string, cause error) *Error {
	e := &Error{Kind: KindLoading, Message: "loading failed", Table: table, Operation: "load", Err: cause}
	e.WithDetail("loading_strategy", strategy).WithDetail("chunk_size", chunkSize)
	if targetSchema != "" {
		e.WithDetail("target_schema", targetSchema)
	}
	return e
}
