package sqlutil

import (
	"fmt"
	"strings"
)

// Placeholders returns a comma-separated list of n parameter placeholders.
// Example: Placeholders(3) -> "?, ?, ?"
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// QuoteColumns quotes every column name with backticks.
func QuoteColumns(columns []string) []string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdentifier(c)
	}
	return quoted
}

// BuildInsertQuery constructs a multi-row INSERT statement for the given table
// and columns. rowCount is the number of VALUES tuples.
// Example: INSERT INTO `patient` (`PatNum`, `LName`) VALUES (?, ?), (?, ?)
func BuildInsertQuery(table string, columns []string, rowCount int) string {
	tuple := "(" + Placeholders(len(columns)) + ")"
	tuples := make([]string, rowCount)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		QuoteIdentifier(table),
		strings.Join(QuoteColumns(columns), ", "),
		strings.Join(tuples, ", "),
	)
}

// BuildUpsertQuery constructs a multi-row INSERT ... ON DUPLICATE KEY UPDATE
// statement. The primary key column is excluded from the update clause so an
// existing row keeps its identity while every other column is refreshed from
// the incoming values.
func BuildUpsertQuery(table string, columns []string, primaryKey string, rowCount int) string {
	insert := BuildInsertQuery(table, columns, rowCount)

	var updates []string
	for _, col := range columns {
		if strings.EqualFold(col, primaryKey) {
			continue
		}
		q := QuoteIdentifier(col)
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", q, q))
	}
	if len(updates) == 0 {
		// Single-column table whose only column is the key: nothing to update,
		// refresh the key against itself to keep the statement valid.
		q := QuoteIdentifier(primaryKey)
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", q, q))
	}

	return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
}

// FlattenRows flattens row tuples into a single argument slice for use with
// the statements built above.
func FlattenRows(rows [][]any) []any {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}
