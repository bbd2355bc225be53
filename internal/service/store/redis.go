package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// DefaultRedisKey is the list key used when none is configured.
const DefaultRedisKey = "mock-interviewer:interviews"

// RedisOptions 连接参数。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Limit    int
}

// RedisStore keeps the list in a Redis list, newest at the head.
type RedisStore struct {
	client *redis.Client
	key    string
	limit  int
	clock  clock.Clock
	log    *zap.Logger
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string, limit int, clk clock.Clock, logger *zap.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, key: key, limit: normalizeLimit(limit), clock: clk, log: logger}
}

func (s *RedisStore) Save(ctx context.Context, record interview.SavedInterview) (interview.SavedInterview, error) {
	record = stamp(record, s.clock.Now())
	data, err := json.Marshal(record)
	if err != nil {
		return interview.SavedInterview{}, fmt.Errorf("encode interview: %w", err)
	}
	// 同 id 的旧记录先移除，与内存和文件实现保持一致。
	_, previous, err := s.lookup(ctx, record.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return interview.SavedInterview{}, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" {
			pipe.LRem(ctx, s.key, 1, previous)
		}
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, int64(s.limit-1))
		return nil
	})
	if err != nil {
		return interview.SavedInterview{}, fmt.Errorf("save interview: %w", err)
	}
	return record, nil
}

func (s *RedisStore) List(ctx context.Context) ([]interview.SavedInterview, error) {
	raws, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	list := make([]interview.SavedInterview, 0, len(raws))
	for _, raw := range raws {
		var record interview.SavedInterview
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.log.Warn("skipping unreadable interview", zap.Error(err))
			continue
		}
		list = append(list, record)
	}
	return list, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (interview.SavedInterview, error) {
	record, _, err := s.lookup(ctx, id)
	return record, err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, raw, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.client.LRem(ctx, s.key, 1, raw).Err(); err != nil {
		return fmt.Errorf("delete interview: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear interviews: %w", err)
	}
	return nil
}

// lookup returns the record and its raw list element, needed by LREM.
func (s *RedisStore) lookup(ctx context.Context, id string) (interview.SavedInterview, string, error) {
	if id == "" {
		return interview.SavedInterview{}, "", ErrInvalidID
	}
	raws, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return interview.SavedInterview{}, "", fmt.Errorf("read interviews: %w", err)
	}
	for _, raw := range raws {
		var record interview.SavedInterview
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		if record.ID == id {
			return record, raw, nil
		}
	}
	return interview.SavedInterview{}, "", ErrNotFound
}
