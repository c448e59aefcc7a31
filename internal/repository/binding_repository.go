// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionBindingRepository 维护 (用户, 日期) 到会话 ID 的持久映射，
// 客户端凭它在重新打开某一天的日记时接回同一个会话。
// 映射可能指向已被删除的会话（陈旧），由调用方负责检测并重建。
type SessionBindingRepository interface {
	// Get 返回绑定的会话 ID；没有绑定时返回 0 而非错误。
	Get(ctx context.Context, userID uint, date string) (uint, error)
	Set(ctx context.Context, userID uint, date string, sessionID uint) error
	Delete(ctx context.Context, userID uint, date string) error
}

type redisSessionBindingRepository struct {
	redisClient *redis.Client
}

// NewSessionBindingRepository 创建一个基于 Redis 的 SessionBindingRepository。
func NewSessionBindingRepository(redisClient *redis.Client) SessionBindingRepository {
	return &redisSessionBindingRepository{redisClient: redisClient}
}

func bindingKey(userID uint, date string) string {
	return fmt.Sprintf("user:%d:entry:%s:session", userID, date)
}

// Get 从 Redis 获取日期绑定的会话 ID。
func (r *redisSessionBindingRepository) Get(ctx context.Context, userID uint, date string) (uint, error) {
	val, err := r.redisClient.Get(ctx, bindingKey(userID, date)).Result()
	if err == redis.Nil {
		return 0, nil // 尚无绑定
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get session binding: %w", err)
	}
	sessionID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session binding value %q: %w", val, err)
	}
	return uint(sessionID), nil
}

// Set 在 Redis 中写入日期到会话的绑定。
func (r *redisSessionBindingRepository) Set(ctx context.Context, userID uint, date string, sessionID uint) error {
	err := r.redisClient.Set(ctx, bindingKey(userID, date), strconv.FormatUint(uint64(sessionID), 10), 30*24*time.Hour).Err()
	if err != nil {
		return fmt.Errorf("failed to set session binding: %w", err)
	}
	return nil
}

// Delete 移除日期到会话的绑定。
func (r *redisSessionBindingRepository) Delete(ctx context.Context, userID uint, date string) error {
	return r.redisClient.Del(ctx, bindingKey(userID, date)).Err()
}

// memorySessionBindingRepository 是 SessionBindingRepository 的进程内实现，
// 用于测试或无 Redis 的本地运行。
type memorySessionBindingRepository struct {
	mu       sync.RWMutex
	bindings map[string]uint
}

// NewMemorySessionBindingRepository 创建一个内存版 SessionBindingRepository。
func NewMemorySessionBindingRepository() SessionBindingRepository {
	return &memorySessionBindingRepository{bindings: make(map[string]uint)}
}

func (r *memorySessionBindingRepository) Get(_ context.Context, userID uint, date string) (uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindings[bindingKey(userID, date)], nil
}

func (r *memorySessionBindingRepository) Set(_ context.Context, userID uint, date string, sessionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[bindingKey(userID, date)] = sessionID
	return nil
}

func (r *memorySessionBindingRepository) Delete(_ context.Context, userID uint, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, bindingKey(userID, date))
	return nil
}
