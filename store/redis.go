package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	coinsKey    = "courserush:coins"
	equippedKey = "courserush:equipped"
	dailyTTL    = 48 * time.Hour
)

// 余额存于有序集合，便于金币排行榜；加减在脚本内完成以保证不小于 0
var awardScript = redis.NewScript(`
local v = tonumber(redis.call('ZINCRBY', KEYS[1], ARGV[2], ARGV[1]))
if v < 0 then
	redis.call('ZADD', KEYS[1], 0, ARGV[1])
	return 0
end
return v
`)

var spendScript = redis.NewScript(`
local cur = tonumber(redis.call('ZSCORE', KEYS[1], ARGV[1]) or '0')
local amt = tonumber(ARGV[2])
if amt < 0 or cur < amt then
	return {0, cur}
end
local v = tonumber(redis.call('ZINCRBY', KEYS[1], -amt, ARGV[1]))
return {1, v}
`)

// Redis 余额、道具、装备与每日领取的 redis 实现
type Redis struct {
	rdb *redis.Client
}

// NewRedis 解析 redis://... 地址并探测连通性
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedisClient 使用已有客户端
func NewRedisClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Close() error { return r.rdb.Close() }

func inventoryKey(id string) string { return "courserush:inv:" + id }

func dailyKey(id, day string) string { return "courserush:daily:" + id + ":" + day }

func wrap(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (r *Redis) Balance(ctx context.Context, id string) (int64, error) {
	v, err := r.rdb.ZScore(ctx, coinsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap(err)
	}
	return int64(v), nil
}

func (r *Redis) Award(ctx context.Context, id string, delta int64) (int64, error) {
	v, err := awardScript.Run(ctx, r.rdb, []string{coinsKey}, id, delta).Int64()
	if err != nil {
		return 0, wrap(err)
	}
	return v, nil
}

func (r *Redis) Spend(ctx context.Context, id string, amount int64) (bool, int64, error) {
	res, err := spendScript.Run(ctx, r.rdb, []string{coinsKey}, id, amount).Int64Slice()
	if err != nil {
		return false, 0, wrap(err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected spend reply %v", ErrUnavailable, res)
	}
	return res[0] == 1, res[1], nil
}

func (r *Redis) TopBalances(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := r.rdb.ZRevRangeWithScores(ctx, coinsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Entry{ID: id, Total: int64(z.Score)})
	}
	return out, nil
}

func (r *Redis) HasItem(ctx context.Context, id, item string) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, inventoryKey(id), item).Result()
	return ok, wrap(err)
}

func (r *Redis) AddItem(ctx context.Context, id, item string) (bool, error) {
	n, err := r.rdb.SAdd(ctx, inventoryKey(id), item).Result()
	return n == 1, wrap(err)
}

func (r *Redis) ListItems(ctx context.Context, id string) ([]string, error) {
	items, err := r.rdb.SMembers(ctx, inventoryKey(id)).Result()
	if err != nil {
		return nil, wrap(err)
	}
	sort.Strings(items)
	return items, nil
}

func (r *Redis) Equip(ctx context.Context, id, item string) error {
	return wrap(r.rdb.HSet(ctx, equippedKey, id, item).Err())
}

func (r *Redis) Equipped(ctx context.Context, id string) (string, error) {
	v, err := r.rdb.HGet(ctx, equippedKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, wrap(err)
}

func (r *Redis) ClaimDaily(ctx context.Context, id, day string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, dailyKey(id, day), 1, dailyTTL).Result()
	return ok, wrap(err)
}
