package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

// Cache wraps a Backend with a Redis copy of the full task list. Every write
// through the cache evicts the copy.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
	key   string
}

var _ Backend = (*Cache)(nil)

// NewCache creates a caching Backend wrapper using the provided Redis client and
// TTL. namespace separates task lists of different partitions.
func NewCache(base Backend, client *redis.Client, namespace string, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, key: tasksCacheKey(namespace)}
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasks(ctx); ok {
		return tasks, nil
	}
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.storeTasks(ctx, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	created, err := c.base.CreateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	c.Evict(ctx)
	return created, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, fn Mutator) (domain.Task, error) {
	updated, err := c.base.UpdateTask(ctx, id, fn)
	if err != nil {
		return domain.Task{}, err
	}
	c.Evict(ctx)
	return updated, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.Evict(ctx)
	return nil
}

// Evict drops the cached task list.
func (c *Cache) Evict(ctx context.Context) {
	if err := evictKey(ctx, c.redis, c.key); err != nil {
		log.WithError(err).Warn("failed to evict tasks cache entry")
	}
}

// EvictTasks drops the task list cached under namespace by any Cache sharing
// the Redis instance.
func EvictTasks(ctx context.Context, client *redis.Client, namespace string) error {
	return evictKey(ctx, client, tasksCacheKey(namespace))
}

func evictKey(ctx context.Context, client *redis.Client, key string) error {
	if client == nil {
		return nil
	}
	return client.Del(ctx, key).Err()
}

func (c *Cache) loadTasks(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, c.key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.key, data, c.ttl).Err()
}

func tasksCacheKey(namespace string) string {
	return "tasks:" + namespace
}
