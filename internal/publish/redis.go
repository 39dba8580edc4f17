// Package publish fans decoded readings out to redis subscribers.
package publish

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/output"
)

// Options names the channel and key space used by a Publisher.
type Options struct {
	Channel   string
	KeyPrefix string
}

// Publisher publishes the JSON rendering of every snapshot on a channel
// and keeps the latest one per meter under a plain key.
type Publisher struct {
	client redis.UniversalClient
	opts   Options
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

func New(client redis.UniversalClient, opts Options) *Publisher {
	return &Publisher{client: client, opts: opts}
}

// LatestKey is the key holding the last reading of the named meter.
func (p *Publisher) LatestKey(name string) string {
	return p.opts.KeyPrefix + "meter:" + name + ":latest"
}

// Publish sends s in one pipeline.
func (p *Publisher) Publish(ctx context.Context, s meter.Snapshot) error {
	body, err := output.Object(s)
	if err != nil {
		return err
	}
	pipe := p.client.Pipeline()
	pipe.Publish(ctx, p.opts.Channel, body)
	pipe.Set(ctx, p.LatestKey(s.Name), body, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", s.Name, err)
	}
	return nil
}
