package redis

import (
	"context"
	"sort"
	"time"

	"github.com/juju/errors"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/store"
	"github.com/warriorguo/graphflow/types"
)

var (
	_ store.Store = &redisStore{}
)

/**
 * redisStore keeps every value as a plain string key
 *   <keyPrefix>:<prefix>|<key>
 * and indexes the keys of each prefix in a set
 *   <keyPrefix>:<prefix>
 * so List does not need SCAN.
 */
type redisStore struct {
	client    *goredis.Client
	keyPrefix string
}

// NewRedisStore connects to the server described by config and pings it.
func NewRedisStore(ctx context.Context, config *types.RedisConfig) (store.Store, error) {
	if config == nil {
		return nil, errors.BadRequestf("redis config is nil")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Annotatef(err, "failed to connect to redis at %s", config.Addr)
	}

	log.Infof("redis store ready on %s db %d", config.Addr, config.DB)
	return NewRedisStoreWithClient(client, config.KeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client, the store owns it from now on.
func NewRedisStoreWithClient(client *goredis.Client, keyPrefix string) store.Store {
	if keyPrefix == "" {
		keyPrefix = "graphflow"
	}
	return &redisStore{client: client, keyPrefix: keyPrefix}
}

func (s *redisStore) valueKey(prefix, key string) string {
	return s.keyPrefix + ":" + prefix + "|" + key
}

func (s *redisStore) indexKey(prefix string) string {
	return s.keyPrefix + ":" + prefix
}

func (s *redisStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.valueKey(prefix, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, errors.Annotatef(err, "failed to get value for prefix=%s, key=%s", prefix, key)
	}
	return value, nil
}

func (s *redisStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.valueKey(prefix, key), value, 0)
		pipe.SAdd(ctx, s.indexKey(prefix), key)
		return nil
	})
	if err != nil {
		return errors.Annotatef(err, "failed to set value for prefix=%s, key=%s", prefix, key)
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, prefix, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.valueKey(prefix, key))
		pipe.SRem(ctx, s.indexKey(prefix), key)
		return nil
	})
	if err != nil {
		return errors.Annotatef(err, "failed to remove value for prefix=%s, key=%s", prefix, key)
	}
	return nil
}

// List walks the keys of prefix in sorted order.
func (s *redisStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	keys, err := s.client.SMembers(ctx, s.indexKey(prefix)).Result()
	if err != nil {
		return errors.Annotatef(err, "failed to list keys for prefix=%s", prefix)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !iterator(key) {
			break
		}
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
