package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payroll-core/internal/service/mq"
	"payroll-core/pkg/utils/lock"
)

func TestRedisLockExclusive(t *testing.T) {
	rdb := connectRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("payroll:test:%d", time.Now().UnixNano())

	a := lock.NewRedisLock(rdb)
	b := lock.NewRedisLock(rdb)

	tokenA, ok, err := a.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	// 错误的 token 既不能释放也不能续期
	require.NoError(t, b.Release(ctx, key, "not-the-owner"))
	ok, err = b.Refresh(ctx, key, "not-the-owner", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Refresh(ctx, key, tokenA, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ttl, err := rdb.PTTL(ctx, "lock:"+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 10*time.Second)

	require.NoError(t, a.Release(ctx, key, tokenA))
	tokenB, ok, err := b.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, key, tokenB))
}

func TestRedisStreamDelivers(t *testing.T) {
	rdb := connectRedis(t)
	topic := fmt.Sprintf("payroll_test_%d", time.Now().UnixNano())
	t.Cleanup(func() { rdb.Del(context.Background(), topic) })

	producer := mq.NewRedisProducer(rdb, 1000)
	consumer := mq.NewRedisConsumer(rdb, "payroll-test-group", "consumer-1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 消费者组从 $ 开始读，需要先于消息创建
	require.NoError(t, rdb.XGroupCreateMkStream(ctx, topic, "payroll-test-group", "$").Err())
	require.NoError(t, producer.Publish(ctx, topic, "0xabc", []byte(`{"request_id":"r1"}`)))

	received := make(chan *mq.Message, 1)
	go func() {
		_ = consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			received <- msg
			cancel()
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, "0xabc", msg.Key)
		assert.JSONEq(t, `{"request_id":"r1"}`, string(msg.Payload))
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			t.Fatal("message not delivered")
		}
	}
}
