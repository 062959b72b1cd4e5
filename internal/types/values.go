// Package types contains shared value helpers used across multiple packages
// to avoid import cycles.
package types

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ToInt64 converts an interface{} to int64.
// Supports int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, and float64.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	default:
		return 0
	}
}

// mysqlTimeFormat is the literal format MySQL accepts for DATETIME/TIMESTAMP
// values bound as strings.
const mysqlTimeFormat = "2006-01-02 15:04:05"

// FormatValue renders a scanned database value as the string form used for
// watermark bookkeeping. The MySQL driver returns []byte for most text-ish
// columns and time.Time when parseTime is enabled.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case time.Time:
		return t.Format(mysqlTimeFormat)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// CleanValue sanitizes a single scanned value before it is written to the
// target. NULLs and well-known scalar types pass through unchanged; strings
// lose control characters (tab, newline and carriage return are kept); any
// other type is reduced to a printable string, or NULL when no printable
// representation exists. A malformed value must never abort a whole batch.
func CleanValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return stripControl(string(t))
	case string:
		return stripControl(t)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return t
	default:
		s := fmt.Sprintf("%v", t)
		if !printable(s) {
			return nil
		}
		return s
	}
}

// CleanRow sanitizes every value of a scanned row in place and returns it.
func CleanRow(row []any) []any {
	for i, v := range row {
		row[i] = CleanValue(v)
	}
	return row
}

// stripControl removes control characters from s, keeping tab, newline and
// carriage return.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// printable reports whether s is a useful string representation rather than a
// generic pointer dump like "&{...}" or "0xc000123456".
func printable(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "&{") || strings.HasPrefix(s, "{") {
		return false
	}
	for _, r := range s {
		if r == unicode.ReplacementChar {
			return false
		}
	}
	return true
}
