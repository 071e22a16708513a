package redis

import (
	"context"
	"time"

	"devportal-billing/internal/usecase"
)

var _ usecase.NotificationDeduper = (*NotificationDedupe)(nil)

// NotificationDedupe is a best-effort fast path for replayed settlement
// notifications. A Redis outage only removes the shortcut; the conditional
// status transition in Postgres still guarantees exactly-once apply.
type NotificationDedupe struct {
	cli RedisClient
	ttl time.Duration
}

func NewNotificationDedupe(cli RedisClient, ttl time.Duration) *NotificationDedupe {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NotificationDedupe{cli: cli, ttl: ttl}
}

func (d *NotificationDedupe) key(sessionID string) string {
	return "billing:settled:" + sessionID
}

func (d *NotificationDedupe) Seen(ctx context.Context, sessionID string) bool {
	v, err := d.cli.Get(ctx, d.key(sessionID))
	return err == nil && v != ""
}

func (d *NotificationDedupe) MarkProcessed(ctx context.Context, sessionID string) {
	// errors are deliberately dropped; this is an optimization only
	_, _ = d.cli.SetNX(ctx, d.key(sessionID), "1", d.ttl)
}
