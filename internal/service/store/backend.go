package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	partitionRepo "proof_bridge/internal/repository/partition"
	redisSvc "proof_bridge/internal/service/redis"
	"sync"
	"time"
)

type (
	MemoryBackend struct {
		mu    sync.Mutex
		items map[string][]byte
	}

	// RedisBackend keeps each partition as a JSON string under a prefixed key.
	RedisBackend struct {
		redis  *redisSvc.RedisService
		prefix string
	}

	// MongoBackend keeps each partition as a document in the partitions
	// collection.
	MongoBackend struct {
		repo *partitionRepo.PartitionRepo
	}
)

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
	_ Backend = (*MongoBackend)(nil)
)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, name string) (map[string]any, error) {
	b.mu.Lock()
	data, ok := b.items[name]
	b.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decode(data)
}

func (b *MemoryBackend) Save(_ context.Context, name string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[name] = data
	return nil
}

func NewRedisBackend(redis *redisSvc.RedisService, prefix string) *RedisBackend {
	return &RedisBackend{redis: redis, prefix: prefix}
}

func (b *RedisBackend) key(name string) string {
	return fmt.Sprintf("%s%s", b.prefix, name)
}

func (b *RedisBackend) Load(ctx context.Context, name string) (map[string]any, error) {
	v, err := b.redis.Get(ctx, b.key(name))
	if errors.Is(err, redisSvc.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(v))
}

func (b *RedisBackend) Save(ctx context.Context, name string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.redis.Set(ctx, b.key(name), data, 0)
}

func NewMongoBackend(repo *partitionRepo.PartitionRepo) *MongoBackend {
	return &MongoBackend{repo: repo}
}

func (b *MongoBackend) Load(ctx context.Context, name string) (map[string]any, error) {
	doc, err := b.repo.GetByName(ctx, name)
	if err != nil || doc == nil {
		return nil, err
	}
	return decode([]byte(doc.Value))
}

func (b *MongoBackend) Save(ctx context.Context, name string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.repo.Put(ctx, &partitionRepo.Document{
		Name:      name,
		Value:     string(data),
		UpdatedAt: time.Now().UTC(),
	})
}

func decode(data []byte) (map[string]any, error) {
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("store: corrupt partition: %w", err)
	}
	return value, nil
}
