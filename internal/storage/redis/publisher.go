package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"liquidityArb/internal/model"
)

// Config holds connection parameters for the publisher.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Publisher broadcasts opportunities as JSON on a Redis Pub/Sub channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher connects and pings Redis before returning.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("redis channel is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Publisher{rdb: rdb, channel: cfg.Channel}, nil
}

// PutOpportunities publishes each opportunity in a single pipeline round trip.
func (p *Publisher) PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, opp := range opps {
		payload, err := json.Marshal(opp)
		if err != nil {
			return fmt.Errorf("marshal opportunity: %w", err)
		}
		pipe.Publish(ctx, p.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
