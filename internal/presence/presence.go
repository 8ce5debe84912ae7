// Package presence keeps a redis board of who is currently on site, fed by scan events.
package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set backing the board.
const DefaultKey = "rfidaccess:presence"

// zsetClient is the part of *redis.Client the board needs.
type zsetClient interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
}

// Entry is one person on site and when they entered.
type Entry struct {
	PersonID int64     `json:"person_id"`
	Since    time.Time `json:"since"`
}

// Board scores each on-site person by entry time; entries older than ttl are treated as gone.
type Board struct {
	client zsetClient
	key    string
	ttl    time.Duration
	now    func() time.Time
}

func NewBoard(client zsetClient, key string, ttl time.Duration) *Board {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Board{client: client, key: key, ttl: ttl, now: time.Now}
}

// Apply updates the board for one scan. Denied scans change nothing.
func (b *Board) Apply(ctx context.Context, personID int64, action string, granted bool, at time.Time) error {
	if !granted {
		return nil
	}
	member := strconv.FormatInt(personID, 10)
	switch action {
	case "in":
		return b.client.ZAdd(ctx, b.key, redis.Z{Score: float64(at.Unix()), Member: member}).Err()
	case "out":
		return b.client.ZRem(ctx, b.key, member).Err()
	}
	return fmt.Errorf("unknown action %q", action)
}

// OnSite lists people whose last granted entry is within ttl, oldest first, and prunes the rest.
func (b *Board) OnSite(ctx context.Context) ([]Entry, error) {
	cutoff := b.now().Add(-b.ttl).Unix()
	if err := b.client.ZRemRangeByScore(ctx, b.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}
	zs, err := b.client.ZRangeByScoreWithScores(ctx, b.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		id, err := strconv.ParseInt(fmt.Sprint(z.Member), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{PersonID: id, Since: time.Unix(int64(z.Score), 0).UTC()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out, nil
}
