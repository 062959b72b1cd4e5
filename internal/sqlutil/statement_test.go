package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "", Placeholders(-1))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}

func TestQuoteColumns(t *testing.T) {
	assert.Equal(t, []string{"`PatNum`", "`LName`"}, QuoteColumns([]string{"PatNum", "LName"}))
	assert.Empty(t, QuoteColumns(nil))
}

func TestBuildInsertQuery(t *testing.T) {
	got := BuildInsertQuery("patient", []string{"PatNum", "LName"}, 2)
	assert.Equal(t,
		"INSERT INTO `patient` (`PatNum`, `LName`) VALUES (?, ?), (?, ?)",
		got)
}

func TestBuildInsertQuery_SingleRow(t *testing.T) {
	got := BuildInsertQuery("definition", []string{"DefNum"}, 1)
	assert.Equal(t, "INSERT INTO `definition` (`DefNum`) VALUES (?)", got)
}

func TestBuildUpsertQuery_ExcludesPrimaryKey(t *testing.T) {
	got := BuildUpsertQuery("patient", []string{"PatNum", "LName", "FName"}, "PatNum", 1)
	assert.Equal(t,
		"INSERT INTO `patient` (`PatNum`, `LName`, `FName`) VALUES (?, ?, ?)"+
			" ON DUPLICATE KEY UPDATE `LName` = VALUES(`LName`), `FName` = VALUES(`FName`)",
		got)
	assert.NotContains(t, got, "`PatNum` = VALUES")
}

func TestBuildUpsertQuery_CaseInsensitivePrimaryKey(t *testing.T) {
	got := BuildUpsertQuery("patient", []string{"patnum", "LName"}, "PatNum", 1)
	assert.NotContains(t, got, "`patnum` = VALUES")
	assert.Contains(t, got, "`LName` = VALUES(`LName`)")
}

func TestBuildUpsertQuery_KeyOnlyTable(t *testing.T) {
	// A table whose only column is the key still needs a valid update clause.
	got := BuildUpsertQuery("lookup", []string{"id"}, "id", 1)
	assert.Contains(t, got, "ON DUPLICATE KEY UPDATE `id` = VALUES(`id`)")
}

func TestBuildUpsertQuery_MultiRow(t *testing.T) {
	got := BuildUpsertQuery("appointment", []string{"AptNum", "AptDateTime"}, "AptNum", 3)
	assert.Contains(t, got, "VALUES (?, ?), (?, ?), (?, ?)")
}

func TestFlattenRows(t *testing.T) {
	rows := [][]any{
		{1, "a"},
		{2, "b"},
	}
	assert.Equal(t, []any{1, "a", 2, "b"}, FlattenRows(rows))
	assert.Nil(t, FlattenRows(nil))
	assert.Nil(t, FlattenRows([][]any{}))
}
