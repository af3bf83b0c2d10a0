package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

func TestFilterClause(t *testing.T) {
	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tests := []struct {
		name     string
		filter   orders.Filter
		wantSQL  string
		wantArgs []any
	}{
		{name: "empty", filter: orders.Filter{}, wantSQL: "", wantArgs: nil},
		{
			name:     "table trimmed",
			filter:   orders.Filter{Table: " 5 "},
			wantSQL:  " WHERE btrim(table_id) = $1",
			wantArgs: []any{"5"},
		},
		{
			name:     "all fields",
			filter:   orders.Filter{Table: "5", Status: orders.StatusReady, From: from, To: to},
			wantSQL:  " WHERE btrim(table_id) = $1 AND status = $2 AND created_at >= $3 AND created_at < $4",
			wantArgs: []any{"5", "ready", from, to},
		},
		{
			name:     "status only",
			filter:   orders.Filter{Status: orders.StatusPending},
			wantSQL:  " WHERE status = $1",
			wantArgs: []any{"pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := filterClause(tt.filter)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompletedAt(t *testing.T) {
	got, err := completedAt("")
	require.NoError(t, err)
	assert.Nil(t, got)

	stamp := time.Date(2026, 3, 14, 10, 0, 0, 123, time.UTC)
	got, err = completedAt(stamp.Format(time.RFC3339Nano))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(stamp))

	_, err = completedAt("yesterday")
	assert.Error(t, err)
}
