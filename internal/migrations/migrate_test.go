package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestInitSchema(t *testing.T) {
	b, err := files.ReadFile("0001_init.sql")
	require.NoError(t, err)

	sql := string(b)
	for _, table := range []string{"events", "tickets", "payouts", "scheduler_locks", "carts", "processed_payments", "producers"} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
	assert.Contains(t, sql, "order_id      UUID NOT NULL UNIQUE")
	assert.Contains(t, sql, "CHECK ((status = 'pending') = (expires_at IS NOT NULL))")
}
