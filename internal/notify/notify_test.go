package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msgs     []amqp.Publishing
	err      error
	closed   bool
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange = exchange
	c.key = key
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type funcNotifier func(ctx context.Context, title, body string) error

func (f funcNotifier) Notify(ctx context.Context, title, body string) error { return f(ctx, title, body) }

func TestAMQPNotifier_PublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	n := NewAMQP(ch, "")
	sent := time.Date(2026, 3, 14, 15, 23, 0, 0, time.UTC)
	n.now = func() time.Time { return sent }

	require.NoError(t, n.Notify(context.Background(), "Goal!", "Rovers, 23'"))

	assert.Equal(t, DefaultExchange, ch.exchange)
	assert.Equal(t, RoutingKey, ch.key)
	require.Len(t, ch.msgs, 1)
	msg := ch.msgs[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var got Message
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, Message{Title: "Goal!", Body: "Rovers, 23'", SentAt: sent}, got)
}

func TestAMQPNotifier_PublishFailure(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	err := NewAMQP(ch, "custom").Notify(context.Background(), "Red card", "United, 31'")
	assert.ErrorContains(t, err, "channel closed")
}

func TestAMQPNotifier_CancelledContext(t *testing.T) {
	ch := &fakeChannel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewAMQP(ch, "").Notify(ctx, "Goal!", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ch.msgs)
}

func TestAMQPNotifier_Close(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, NewAMQP(ch, "").Close())
	assert.True(t, ch.closed)
}

func TestMulti_TriesEveryNotifier(t *testing.T) {
	var calls []string
	failing := funcNotifier(func(_ context.Context, title, _ string) error {
		calls = append(calls, "failing:"+title)
		return errors.New("push gateway down")
	})
	ok := funcNotifier(func(_ context.Context, title, _ string) error {
		calls = append(calls, "ok:"+title)
		return nil
	})

	err := Multi{failing, ok, LogNotifier{}}.Notify(context.Background(), "Match started", "kick-off")
	assert.ErrorContains(t, err, "push gateway down")
	assert.Equal(t, []string{"failing:Match started", "ok:Match started"}, calls)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Notify(context.Background(), "x", "y"))
}
