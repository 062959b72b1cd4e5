package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int64
	}{
		{"int64", int64(42), 42},
		{"int", 7, 7},
		{"int32", int32(-3), -3},
		{"uint64", uint64(100), 100},
		{"uint8", uint8(255), 255},
		{"float64", float64(12.9), 12},
		{"float32", float32(3.5), 3},
		{"string is not numeric", "42", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToInt64(tt.in))
		})
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"bytes", []byte("2024-01-15 10:30:00"), "2024-01-15 10:30:00"},
		{"string", "hello", "hello"},
		{"time", ts, "2024-01-15 10:30:00"},
		{"int64", int64(1500), "1500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestCleanValue(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, CleanValue(nil))
	})

	t.Run("scalars pass through", func(t *testing.T) {
		assert.Equal(t, int64(5), CleanValue(int64(5)))
		assert.Equal(t, 2.5, CleanValue(2.5))
		assert.Equal(t, true, CleanValue(true))
		ts := time.Now()
		assert.Equal(t, ts, CleanValue(ts))
	})

	t.Run("strings lose control characters", func(t *testing.T) {
		assert.Equal(t, "abc", CleanValue("a\x00b\x1bc"))
	})

	t.Run("bytes become cleaned strings", func(t *testing.T) {
		assert.Equal(t, "note", CleanValue([]byte("no\x00te")))
	})

	t.Run("tab newline carriage return survive", func(t *testing.T) {
		assert.Equal(t, "a\tb\nc\rd", CleanValue("a\tb\nc\rd"))
	})

	t.Run("unprintable fallback becomes NULL", func(t *testing.T) {
		assert.Nil(t, CleanValue(struct{ X int }{1}))
	})
}

func TestCleanRow(t *testing.T) {
	row := []any{int64(1), "na\x00me", nil, []byte("ok")}
	got := CleanRow(row)
	assert.Equal(t, []any{int64(1), "name", nil, "ok"}, got)
}
