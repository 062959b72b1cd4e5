package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple table name", input: "patient", expected: "`patient`"},
		{name: "with underscore", input: "etl_copy_status", expected: "`etl_copy_status`"},
		{name: "mixed case column", input: "DateTStamp", expected: "`DateTStamp`"},
		{name: "numeric suffix", input: "claim2", expected: "`claim2`"},
		{name: "empty string", input: "", expected: "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteIdentifier_EscapeBackticks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single backtick", input: "pat`ient", expected: "`pat``ient`"},
		{name: "multiple backticks", input: "pa`tie`nt", expected: "`pa``tie``nt`"},
		{name: "backtick at start", input: "`patient", expected: "```patient`"},
		{name: "backtick at end", input: "patient`", expected: "`patient```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"patient", "etl_copy_status", "DateTStamp", "claim2", "___", "PROCEDURELOG"}
	for _, name := range valid {
		assert.True(t, IsValidIdentifier(name), "%q should be valid", name)
	}

	invalid := []string{
		"",
		"my table",
		"my-table",
		"opendental.patient",
		"pat`ient",
		"table@123",
		"patient; DROP TABLE patient--",
		"table$name",
		"count(*)",
		"pat'ient",
	}
	for _, name := range invalid {
		assert.False(t, IsValidIdentifier(name), "%q should be invalid", name)
	}
}

func TestQuoteIdentifierSafe(t *testing.T) {
	t.Run("valid identifiers pass through quoted", func(t *testing.T) {
		got, err := QuoteIdentifierSafe("procedurelog")
		require.NoError(t, err)
		assert.Equal(t, "`procedurelog`", got)
	})

	t.Run("invalid identifier rejected", func(t *testing.T) {
		got, err := QuoteIdentifierSafe("patient; DROP TABLE patient--")
		assert.Error(t, err)
		assert.Empty(t, got)
		assert.IsType(t, &InvalidIdentifierError{}, err)
		assert.Contains(t, err.Error(), "invalid identifier")
	})
}

func TestInvalidIdentifierError_Error(t *testing.T) {
	err := &InvalidIdentifierError{Name: "bad@table"}
	assert.Equal(t,
		"invalid identifier: bad@table (must contain only alphanumeric characters and underscores)",
		err.Error())
}
