package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetWithExpiration 设置键值对并设置过期时间
func SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return Rdb.Set(ctx, key, value, expiration).Err()
}

// GetValue 获取字符串类型的值，不存在时返回空串
func GetValue(ctx context.Context, key string) (string, error) {
	value, err := Rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetIfAbsent 键不存在时写入，返回是否写入成功
func SetIfAbsent(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return Rdb.SetNX(ctx, key, value, expiration).Result()
}

// Exists 判断键是否存在
func Exists(ctx context.Context, key string) (bool, error) {
	n, err := Rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReplaceSetIfVersion versionKey 的值仍等于 version 时整体替换集合并设置过期时间，返回是否写入
// 空集合写入占位成员，区分“未缓存”和“缓存为空”
func ReplaceSetIfVersion(ctx context.Context, key, versionKey, version string, members []string, placeholder string, expiration time.Duration) (bool, error) {
	values := make([]interface{}, 0, len(members)+1)
	values = append(values, placeholder)
	for _, m := range members {
		values = append(values, m)
	}

	written := false
	err := Rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SAdd(ctx, key, values...)
			pipe.Expire(ctx, key, expiration)
			return nil
		})
		written = err == nil
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return written, err
}

// BumpVersion 递增版本号并删除关联键，使基于旧版本的回填失效
func BumpVersion(ctx context.Context, versionKey string, expiration time.Duration, keys ...string) error {
	pipe := Rdb.TxPipeline()
	pipe.Incr(ctx, versionKey)
	pipe.Expire(ctx, versionKey, expiration)
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// CachedSetMember 在同一事务内读取集合是否存在及成员关系
func CachedSetMember(ctx context.Context, key string, member string) (cached bool, isMember bool, err error) {
	var (
		exists *redis.IntCmd
		found  *redis.BoolCmd
	)
	_, err = Rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		found = pipe.SIsMember(ctx, key, member)
		return nil
	})
	if err != nil {
		return false, false, err
	}
	return exists.Val() > 0, found.Val(), nil
}

// DeleteKey 删除一个或多个键
func DeleteKey(ctx context.Context, keys ...string) error {
	return Rdb.Del(ctx, keys...).Err()
}
