package storage

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/kanban"
)

// BoardKeyPrefix namespaces board snapshots per owner.
const BoardKeyPrefix = "pm-tasks:"

// RedisBoardStore keeps each owner's board as one JSON document, rewritten
// in full on every save.
type RedisBoardStore struct {
	client *redis.Client
}

func NewRedisBoardStore(client *redis.Client) *RedisBoardStore {
	return &RedisBoardStore{client: client}
}

func (s *RedisBoardStore) Load(ctx context.Context, owner string) (domain.Columns, bool, error) {
	data, err := s.client.Get(ctx, BoardKeyPrefix+owner).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cols domain.Columns
	if err := sonic.Unmarshal(data, &cols); err != nil {
		return nil, false, fmt.Errorf("%w: %v", kanban.ErrCorruptSnapshot, err)
	}
	return cols, true, nil
}

func (s *RedisBoardStore) Save(ctx context.Context, owner string, cols domain.Columns) error {
	data, err := sonic.Marshal(cols)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, BoardKeyPrefix+owner, data, 0).Err()
}
