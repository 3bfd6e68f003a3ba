package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishToStream_StringifiesValues(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	id, err := PublishToStream(ctx, client, "test:stream", 0, map[string]interface{}{
		"s":   "text",
		"i":   42,
		"i64": int64(-62),
		"b":   true,
		"m":   map[string]int{"a": 1},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "test:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	values := msgs[0].Values
	assert.Equal(t, "text", values["s"])
	assert.Equal(t, "42", values["i"])
	assert.Equal(t, "-62", values["i64"])
	assert.Equal(t, "true", values["b"])
	assert.Equal(t, `{"a":1}`, values["m"])
}

func TestPublishJSONToStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	_, err := PublishJSONToStream(ctx, client, "json:stream", 100, map[string]interface{}{"gateway": "Study"})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "json:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "Study", decoded["gateway"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}
