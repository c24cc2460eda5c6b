// Package cooldown keeps transient alert state in Redis: a firing flag per
// rule and a TTL'd key that is the single source of truth for the cooldown
// window. State survives restarts, so a redeploy never replays notifications.
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Tracker struct {
	rdb *redis.Client
}

// New creates a Tracker backed by Redis.
func New(redisURL, password string) (*Tracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Tracker{rdb: rdb}, nil
}

// Close shuts down the Redis connection.
func (t *Tracker) Close() error {
	return t.rdb.Close()
}

func cooldownKey(ruleID int64) string { return fmt.Sprintf("alert:cooldown:%d", ruleID) }
func firingKey(ruleID int64) string   { return fmt.Sprintf("alert:firing:%d", ruleID) }

// InCooldown returns true while the rule's cooldown key has not expired.
func (t *Tracker) InCooldown(ctx context.Context, ruleID int64) bool {
	exists, err := t.rdb.Exists(ctx, cooldownKey(ruleID)).Result()
	return err == nil && exists > 0
}

// StartCooldown opens a suppression window; the key's TTL is the window.
func (t *Tracker) StartCooldown(ctx context.Context, ruleID int64, window time.Duration) {
	t.rdb.Set(ctx, cooldownKey(ruleID), time.Now().UTC().Format(time.RFC3339), window)
}

// SetFiring marks the rule as currently breached.
func (t *Tracker) SetFiring(ctx context.Context, ruleID int64) {
	t.rdb.Set(ctx, firingKey(ruleID), "1", 0)
}

// ClearFiring resets the breach marker once the condition no longer matches.
func (t *Tracker) ClearFiring(ctx context.Context, ruleID int64) {
	t.rdb.Del(ctx, firingKey(ruleID)) //nolint:errcheck
}

// IsFiring reports whether the rule is currently breached.
func (t *Tracker) IsFiring(ctx context.Context, ruleID int64) bool {
	exists, err := t.rdb.Exists(ctx, firingKey(ruleID)).Result()
	return err == nil && exists > 0
}
