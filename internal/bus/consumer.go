package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/pkg/logger"
)

// HandlerFunc processes one decoded envelope. Handlers must be duplicate-safe:
// the bus delivers at least once.
type HandlerFunc func(ctx context.Context, env *Envelope) error

// Consumer reads envelopes off redis streams with a consumer group and dispatches
// on the eventType discriminator. One message failing is logged and never halts
// the loop; unknown event types are logged and dropped.
type Consumer struct {
	rdb      *redis.Client
	streams  []string
	group    string
	workers  int
	block    time.Duration
	handlers map[string]HandlerFunc
}

func NewConsumer(rdb *redis.Client, streams []string, group string, workers int, block time.Duration) *Consumer {
	if workers <= 0 {
		workers = 4
	}
	if block <= 0 {
		block = 2 * time.Second
	}
	return &Consumer{
		rdb:      rdb,
		streams:  streams,
		group:    group,
		workers:  workers,
		block:    block,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle maps an eventType to exactly one handler. Call before Start.
func (c *Consumer) Handle(eventType string, fn HandlerFunc) {
	c.handlers[eventType] = fn
}

// Start creates the consumer group on each stream and launches the worker pool.
// Returns a stop function.
func (c *Consumer) Start(ctx context.Context) (func(), error) {
	for _, s := range c.streams {
		err := c.rdb.XGroupCreateMkStream(ctx, s, c.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("create group on %s: %w", s, err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	for i := 0; i < c.workers; i++ {
		name := fmt.Sprintf("%s-%s", c.group, uuid.New().String()[:8])
		go c.loop(runCtx, name)
	}
	return cancel, nil
}

func (c *Consumer) loop(ctx context.Context, consumer string) {
	ids := make([]string, len(c.streams))
	for i := range ids {
		ids[i] = ">"
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: consumer,
			Streams:  append(append([]string{}, c.streams...), ids...),
			Count:    16,
			Block:    c.block,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("bus read failed", zap.Error(err))
			time.Sleep(c.block)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				c.process(ctx, stream.Stream, msg)
			}
		}
	}
}

// process decodes and dispatches one message, then acks. Failures are logged and
// acked anyway: the producers re-emit on their side and every handler is
// duplicate-safe, so poison messages must not wedge the group.
func (c *Consumer) process(ctx context.Context, stream string, msg redis.XMessage) {
	defer func() {
		if err := c.rdb.XAck(ctx, stream, c.group, msg.ID).Err(); err != nil && ctx.Err() == nil {
			logger.Warn("bus ack failed", zap.String("stream", stream), zap.String("id", msg.ID), zap.Error(err))
		}
	}()

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		logger.Warn("bus message without payload", zap.String("stream", stream), zap.String("id", msg.ID))
		return
	}
	env, err := Decode(raw)
	if err != nil {
		logger.Warn("bus message undecodable", zap.String("stream", stream), zap.String("id", msg.ID), zap.Error(err))
		return
	}

	fn, ok := c.handlers[env.EventType]
	if !ok {
		logger.Warn("unknown event type dropped", zap.String("eventType", env.EventType), zap.String("stream", stream))
		return
	}
	if err := fn(ctx, env); err != nil {
		logger.Error("event handler failed",
			zap.String("eventType", env.EventType),
			zap.String("stream", stream),
			zap.String("id", msg.ID),
			zap.Error(err))
	}
}
