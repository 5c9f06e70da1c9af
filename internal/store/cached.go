package store

import (
	"context"
	"errors"
	"time"

	"gwi.com/interview-coach/internal/cache"
	"gwi.com/interview-coach/internal/utils"
)

const cacheKeyPrefix = "questions:"

// CachedStore caches Find results of the wrapped store. Any write drops every
// cached result. Cache failures fall through to the wrapped store.
type CachedStore struct {
	QuestionStore
	cache  cache.CacheService
	ttl    time.Duration
	logger utils.Logger
}

var _ QuestionStore = (*CachedStore)(nil)

func NewCachedStore(inner QuestionStore, c cache.CacheService, ttl time.Duration, logger utils.Logger) *CachedStore {
	return &CachedStore{
		QuestionStore: inner,
		cache:         c,
		ttl:           ttl,
		logger:        logger,
	}
}

func (s *CachedStore) Find(ctx context.Context, filter Filter) ([]QuestionRecord, error) {
	key := cacheKeyPrefix + filter.Key()

	var records []QuestionRecord
	err := s.cache.Get(ctx, key, &records)
	if err == nil {
		if records == nil {
			records = []QuestionRecord{}
		}
		return records, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Question cache read failed", "key", key, "error", err)
	}

	records, err = s.QuestionStore.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, records, s.ttl); err != nil {
		s.logger.Warn("Question cache write failed", "key", key, "error", err)
	}
	return records, nil
}

func (s *CachedStore) Create(ctx context.Context, record *QuestionRecord) error {
	if err := s.QuestionStore.Create(ctx, record); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, id string, update QuestionUpdate) error {
	if err := s.QuestionStore.Update(ctx, id, update); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.QuestionStore.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedStore) Seed(ctx context.Context, records []QuestionRecord) (int, error) {
	n, err := s.QuestionStore.Seed(ctx, records)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, cacheKeyPrefix+"*"); err != nil {
		s.logger.Warn("Question cache invalidation failed", "error", err)
	}
}
