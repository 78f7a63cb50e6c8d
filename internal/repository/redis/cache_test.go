package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counts struct {
	Full int64 `json:"full"`
	Half int64 `json:"half"`
}

func TestGetOrSetJSON_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := KeyEventAvailability(7)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, `{"full":2,"half":1}`, 15*time.Second).SetVal("OK")

	calls := 0
	got, err := GetOrSetJSON(context.Background(), c, key, 15*time.Second, func(context.Context) (counts, error) {
		calls++
		return counts{Full: 2, Half: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, counts{Full: 2, Half: 1}, got)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := KeyEventAvailability(7)

	mock.ExpectGet(key).SetVal(`{"full":5,"half":0}`)

	got, err := GetOrSetJSON(context.Background(), c, key, time.Second, func(context.Context) (counts, error) {
		t.Fatal("loader must not run on a hit")
		return counts{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, counts{Full: 5}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_LoaderError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := KeyEventSummary(3)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()

	boom := errors.New("boom")
	_, err := GetOrSetJSON(context.Background(), c, key, time.Second, func(context.Context) (counts, error) {
		return counts{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_CorruptEntryIsReloaded(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := KeyEventAvailability(4)

	mock.ExpectGet(key).SetVal(`{"full":`)
	mock.ExpectGet(key).SetVal(`{"full":`)
	mock.ExpectSet(key, `{"full":1,"half":0}`, time.Second).SetVal("OK")

	got, err := GetOrSetJSON(context.Background(), c, key, time.Second, func(context.Context) (counts, error) {
		return counts{Full: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, counts{Full: 1}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_CacheDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := KeyEventSummary(4)

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, `{"full":3,"half":2}`, time.Second).SetErr(errors.New("connection refused"))

	got, err := GetOrSetJSON(context.Background(), c, key, time.Second, func(context.Context) (counts, error) {
		return counts{Full: 3, Half: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, counts{Full: 3, Half: 2}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectDel(KeyEventSummary(9), KeyEventAvailability(9)).SetVal(2)

	require.NoError(t, c.InvalidateEvent(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateEvent_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectDel(KeyEventSummary(9), KeyEventAvailability(9)).SetErr(errors.New("readonly"))

	assert.ErrorContains(t, c.InvalidateEvent(context.Background(), 9), "invalidate event 9")
}
