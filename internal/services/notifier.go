package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"shopsquad/internal/store"
)

// ChangesChannel is the pub/sub channel squad writes are announced on
const ChangesChannel = "shopsquad:squads"

// RedisNotifier fans squad changes out to every server process over Redis pub/sub
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

var _ store.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, channel: ChangesChannel, logger: logger}
}

// Publish announces change to all subscribers
func (n *RedisNotifier) Publish(ctx context.Context, change store.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change for squad %s: %w", change.SquadID, err)
	}
	return nil
}

// Subscribe returns a channel of changes. Call the cancel func when done; the
// channel is closed once the subscription has shut down.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan store.Change, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	pubsub := n.client.Subscribe(subCtx, n.channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}

	changes := make(chan store.Change, 16)

	go func() {
		defer func() {
			_ = pubsub.Close()
			close(changes)
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var change store.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.logger.Warn("dropping malformed squad change", "channel", n.channel, "error", err)
					continue
				}

				select {
				case changes <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return changes, cancel, nil
}
