// Package notify carries change signals between writers and passive listeners.
// Signals only say that something changed; listeners refetch to learn what.
package notify

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/jobtracker/internal/common"
)

// Topics mirror the tables whose changes listeners care about.
const (
	TopicIdentities = "identities"
	TopicProfiles   = "profiles"
	TopicJobs       = "job_cards"
	TopicWorkItems  = "job_processes"
	TopicMachines   = "machines"
)

// Operations.
const (
	OpInsert          = "insert"
	OpUpdate          = "update"
	OpDelete          = "delete"
	OpPasswordChanged = "password_changed"
	OpRolesChanged    = "roles_changed"
)

type Event struct {
	Topic string    `json:"topic"`
	Op    string    `json:"op"`
	Key   string    `json:"key,omitempty"`
	At    time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broker fans events out to subscribers. Delivery is best effort: a subscriber that
// falls behind misses events rather than blocking publishers.
type Broker interface {
	Publisher
	// Subscribe returns a channel that is closed when ctx is done or the broker closes.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

const subscriberBuffer = 64

// New returns a Redis-backed broker when cfg names a reachable server and an in-process
// broker otherwise.
func New(ctx context.Context, cfg common.NotifyConfig, logger *slog.Logger) Broker {
	if cfg.RedisAddr == "" {
		logger.Info("change feed using in-memory broker")
		return NewMemory(logger)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  -1,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, using in-memory broker", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return NewMemory(logger)
	}
	logger.Info("change feed using redis", "addr", cfg.RedisAddr, "channel", cfg.Channel)
	return NewRedis(client, cfg.Channel, logger)
}

// PublishQuietly publishes ev and logs instead of failing. Writers call it after their
// transaction commits, when the write itself already succeeded.
func PublishQuietly(ctx context.Context, p Publisher, logger *slog.Logger, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("notify.publish.failed", "topic", ev.Topic, "op", ev.Op, "key", ev.Key, "error", err)
	}
}
