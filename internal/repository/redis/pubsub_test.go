package redis

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestPublishInventoryChanged(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewInventoryPubSub(db)

	mock.Regexp().ExpectPublish(ChannelInventoryChanged(), `"event_id":42`).SetVal(1)

	assert.NoError(t, p.PublishInventoryChanged(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}
