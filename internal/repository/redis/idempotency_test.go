package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, 2*time.Hour)
	key := KeyIdemReservation(1, "abc")

	mock.ExpectSetNX(key, "LOCK", 30*time.Second).SetVal(true)
	ok, err := s.AcquireLock(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectGet(key).SetVal("LOCK")
	_, found, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectSet(key, `RES:{"order_id":"x"}`, 2*time.Hour).SetVal("OK")
	require.NoError(t, s.SaveResult(ctx, key, `{"order_id":"x"}`))

	mock.ExpectGet(key).SetVal(`RES:{"order_id":"x"}`)
	res, found, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"order_id":"x"}`, res)

	mock.ExpectGet(key).RedisNil()
	_, found, err = s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}
