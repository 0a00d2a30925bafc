// Package queue is the internal dispatch topic between the webhook and the
// record builder, kept as a Redis list per topic.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"graphmail/models"
)

const deadLetterSuffix = ":failed"

// RedisTopic publishes with RPUSH and receives with BLPOP, so each message is
// handed to exactly one consumer in arrival order.
type RedisTopic struct {
	client       *redis.Client
	blockTimeout time.Duration
}

func NewRedisTopic(client *redis.Client, blockTimeout time.Duration) *RedisTopic {
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}
	return &RedisTopic{client: client, blockTimeout: blockTimeout}
}

// DeadLetterKey names the list that collects messages a consumer gave up on.
func DeadLetterKey(topic string) string {
	return topic + deadLetterSuffix
}

// Publish wraps payload in an envelope and appends it to the topic. The payload
// must already be JSON; it is forwarded byte-for-byte.
func (t *RedisTopic) Publish(ctx context.Context, topic, subject string, payload []byte) (string, error) {
	if !json.Valid(payload) {
		return "", errors.New("payload is not valid JSON")
	}
	msg := models.QueueMessage{
		ID:          uuid.NewString(),
		Topic:       topic,
		Subject:     subject,
		Message:     json.RawMessage(payload),
		PublishedAt: time.Now().UTC(),
	}
	data, err := Encode(msg)
	if err != nil {
		return "", err
	}
	if err := t.client.RPush(ctx, topic, data).Err(); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return msg.ID, nil
}

// Receive blocks for up to the configured timeout. It returns (nil, nil) when
// nothing arrived so callers can check their context and poll again.
func (t *RedisTopic) Receive(ctx context.Context, topic string) (*models.QueueMessage, error) {
	res, err := t.client.BLPop(ctx, t.blockTimeout, topic).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receive from %s: %w", topic, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("receive from %s: unexpected reply of %d elements", topic, len(res))
	}
	return Decode([]byte(res[1]))
}

// DeadLetter parks msg on the topic's failure list with the reason attached.
func (t *RedisTopic) DeadLetter(ctx context.Context, msg *models.QueueMessage, reason string) error {
	parked := *msg
	parked.Error = reason
	data, err := Encode(parked)
	if err != nil {
		return err
	}
	key := DeadLetterKey(msg.Topic)
	if err := t.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("dead-letter to %s: %w", key, err)
	}
	return nil
}

func Encode(msg models.QueueMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode queue message: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*models.QueueMessage, error) {
	var msg models.QueueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode queue message: %w", err)
	}
	return &msg, nil
}
