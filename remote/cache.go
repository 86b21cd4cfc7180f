package remote

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

// backend mirrors engine.Backend so the cache can wrap any implementation
// without importing the engine package.
type backend interface {
	FetchBoard(ctx context.Context, projectID string) (map[string][]domain.Issue, error)
	FetchStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error)
	FetchWipLimits(ctx context.Context, projectID string) (map[string]*int, error)
	UpdateIssue(ctx context.Context, issueID string, patch domain.IssuePatch) (domain.Issue, error)
	CreateStatus(ctx context.Context, projectID string, draft domain.StatusDraft) (domain.CustomStatus, error)
	UpdateStatus(ctx context.Context, statusID string, patch domain.StatusPatch) (domain.CustomStatus, error)
	DeleteStatus(ctx context.Context, statusID string) error
	PutWipLimit(ctx context.Context, projectID, status string, limit *int) (*int, error)
}

// Cache wraps a backend with Redis-backed caching for the three fetch calls.
// Issue and status mutations do not carry a project id, so any mutation
// evicts the keys of every project this process has cached. Redis being
// unreachable degrades to the inner backend and never fails a call.
type Cache struct {
	base   backend
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger

	mu       sync.Mutex
	projects map[string]struct{}
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("remote.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{
		base:     base,
		redis:    client,
		ttl:      ttl,
		logger:   logger,
		projects: map[string]struct{}{},
	}
}

func (c *Cache) FetchBoard(ctx context.Context, projectID string) (map[string][]domain.Issue, error) {
	var grouped map[string][]domain.Issue
	if c.load(ctx, boardCacheKey(projectID), projectID, &grouped) {
		return grouped, nil
	}

	grouped, err := c.base.FetchBoard(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, boardCacheKey(projectID), projectID, grouped)
	return grouped, nil
}

func (c *Cache) FetchStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error) {
	var statuses []domain.CustomStatus
	if c.load(ctx, statusesCacheKey(projectID), projectID, &statuses) {
		return statuses, nil
	}

	statuses, err := c.base.FetchStatuses(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, statusesCacheKey(projectID), projectID, statuses)
	return statuses, nil
}

func (c *Cache) FetchWipLimits(ctx context.Context, projectID string) (map[string]*int, error) {
	var limits map[string]*int
	if c.load(ctx, wipLimitsCacheKey(projectID), projectID, &limits) {
		return limits, nil
	}

	limits, err := c.base.FetchWipLimits(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, wipLimitsCacheKey(projectID), projectID, limits)
	return limits, nil
}

// Mutations evict even when the inner call fails: a transport error leaves
// the server state unknown and the engine refreshes right after.

func (c *Cache) UpdateIssue(ctx context.Context, issueID string, patch domain.IssuePatch) (domain.Issue, error) {
	issue, err := c.base.UpdateIssue(ctx, issueID, patch)
	c.evict(ctx)
	if err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

func (c *Cache) CreateStatus(ctx context.Context, projectID string, draft domain.StatusDraft) (domain.CustomStatus, error) {
	status, err := c.base.CreateStatus(ctx, projectID, draft)
	c.evict(ctx)
	if err != nil {
		return domain.CustomStatus{}, err
	}
	return status, nil
}

func (c *Cache) UpdateStatus(ctx context.Context, statusID string, patch domain.StatusPatch) (domain.CustomStatus, error) {
	status, err := c.base.UpdateStatus(ctx, statusID, patch)
	c.evict(ctx)
	if err != nil {
		return domain.CustomStatus{}, err
	}
	return status, nil
}

func (c *Cache) DeleteStatus(ctx context.Context, statusID string) error {
	err := c.base.DeleteStatus(ctx, statusID)
	c.evict(ctx)
	return err
}

func (c *Cache) PutWipLimit(ctx context.Context, projectID, status string, limit *int) (*int, error) {
	stored, err := c.base.PutWipLimit(ctx, projectID, status, limit)
	c.evict(ctx)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (c *Cache) load(ctx context.Context, key, projectID string, v any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the inner backend without failing.
			c.logger.WithError(err).WithField("key", key).Error("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	c.remember(projectID)
	return true
}

func (c *Cache) store(ctx context.Context, key, projectID string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("cache store failed")
		return
	}
	c.remember(projectID)
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	c.mu.Lock()
	keys := make([]string, 0, len(c.projects)*3)
	for id := range c.projects {
		keys = append(keys, boardCacheKey(id), statusesCacheKey(id), wipLimitsCacheKey(id))
	}
	c.mu.Unlock()
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).Error("cache evict failed")
	}
}

func (c *Cache) remember(projectID string) {
	c.mu.Lock()
	c.projects[projectID] = struct{}{}
	c.mu.Unlock()
}

func boardCacheKey(projectID string) string     { return "board:" + projectID }
func statusesCacheKey(projectID string) string  { return "statuses:" + projectID }
func wipLimitsCacheKey(projectID string) string { return "wiplimits:" + projectID }
