package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Source hands out schedule snapshots. Each call returns an independent copy.
type Source interface {
	Snapshot(ctx context.Context) (Config, error)
}

// RedisStore keeps the admin-editable schedule as a JSON document.
// Writes are last-write-wins; readers take a snapshot per request.
type RedisStore struct {
	client   *redis.Client
	clinicID string
	key      string
}

func NewRedisStore(client *redis.Client, clinicID string) *RedisStore {
	return &RedisStore{
		client:   client,
		clinicID: clinicID,
		key:      fmt.Sprintf("clinic:%s:schedule", clinicID),
	}
}

// ClinicID is the clinic whose schedule this store holds.
func (s *RedisStore) ClinicID() string {
	return s.clinicID
}

func (s *RedisStore) encode(cfg Config) ([]byte, error) {
	cfg, err := cfg.ForClinic(s.clinicID)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Snapshot(ctx context.Context) (Config, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Config{}, ErrScheduleNotFound
		}
		return Config{}, fmt.Errorf("load schedule: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode schedule: %w", err)
	}
	return cfg, nil
}

// Save validates and replaces the stored schedule.
func (s *RedisStore) Save(ctx context.Context, cfg Config) error {
	data, err := s.encode(cfg)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// Bootstrap stores cfg only when no schedule exists yet. It reports whether it wrote.
func (s *RedisStore) Bootstrap(ctx context.Context, cfg Config) (bool, error) {
	data, err := s.encode(cfg)
	if err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, s.key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("bootstrap schedule: %w", err)
	}
	return ok, nil
}

// Static serves a fixed schedule.
type Static struct {
	cfg Config
}

func NewStatic(cfg Config) *Static {
	return &Static{cfg: cfg.Clone()}
}

func (s *Static) Snapshot(context.Context) (Config, error) {
	return s.cfg.Clone(), nil
}
