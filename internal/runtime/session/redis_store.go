package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig Redis 会话存储配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisStore 多实例共享的会话存储；每个会话一个 JSON 值，空闲 TTL 由 Redis 过期实现。
// 追加对话走 AppendTurn（WATCH/MULTI 乐观事务），不同实例的并发写入不会丢轮次
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 存储并校验连接
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "chatbot:session:"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Get 实现 SessionStore
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// Put 实现 SessionStore
func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	raw, err := json.Marshal(s)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.rdb.Set(ctx, r.key(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// maxAppendRetries WATCH 冲突时的最大重试次数
const maxAppendRetries = 64

// AppendTurn 实现 TurnAppender：读取、追加、写回在同一个 WATCH 事务内完成，
// 期间 key 被其他客户端修改则整体重试
func (r *RedisStore) AppendTurn(ctx context.Context, id, user, assistant string) error {
	key := r.key(id)
	txf := func(tx *redis.Tx) error {
		s := New(id)
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get session: %w", err)
		default:
			if err := json.Unmarshal(raw, s); err != nil {
				return fmt.Errorf("decode session %s: %w", id, err)
			}
		}
		s.AddTurn(user, assistant, time.Time{})
		out, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxAppendRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis append session: %w", err)
		}
		return nil
	}
	return fmt.Errorf("redis append session %s: gave up after %d conflicting writes", id, maxAppendRetries)
}

// Delete 实现 SessionStore
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Close 关闭连接；会话数据保留在 Redis 中由 TTL 回收
func (r *RedisStore) Close(ctx context.Context) error {
	return r.rdb.Close()
}
