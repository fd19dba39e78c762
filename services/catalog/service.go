package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/upb/cluster-policy-builder/internal/observability"
	"github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source provides the remote option lists
type Source interface {
	ListNodeTypes(ctx context.Context) ([]models.Option, error)
	ListZones(ctx context.Context) ([]models.Option, error)
	ListRegions(ctx context.Context) ([]models.Option, error)
	ListInstancePools(ctx context.Context) ([]models.Option, error)
	ListInstanceProfiles(ctx context.Context) ([]models.Option, error)
	ListSparkVersions(ctx context.Context) ([]models.Option, error)
	ListPolicyFamilies(ctx context.Context) ([]models.PolicyFamily, error)
	GetPolicyFamily(ctx context.Context, id string) (*models.PolicyFamily, error)
}

// PolicyLister lists the stored policies
type PolicyLister interface {
	List(ctx context.Context) ([]models.PolicySummary, error)
}

// Config controls cache sizing
type Config struct {
	MaxEntries int
	TTL        time.Duration
	// FetchTimeout bounds a shared fetch once it no longer follows the
	// context of the caller that started it
	FetchTimeout time.Duration
}

const (
	cacheOptions  = "options"
	cacheFamilies = "families"
	cachePolicies = "policies"

	sourcePolicyList = "policies"
	sourceFamilyList = "families"
)

// Service serves cached catalog option lists, policy families and the
// policy list. Every snapshot is keyed by a cursor: bumping the cursor makes
// all earlier snapshots unreachable.
type Service struct {
	source   Source
	policies PolicyLister

	options  *Cache[[]models.Option]
	families *Cache[[]models.PolicyFamily]
	list     *Cache[[]models.PolicySummary]

	catalogCursor atomic.Uint64
	policyCursor  atomic.Uint64
	group         singleflight.Group
	fetchTimeout  time.Duration

	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a new catalog Service
func NewService(source Source, policies PolicyLister, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = time.Minute
	}
	return &Service{
		source:       source,
		policies:     policies,
		options:      NewCache[[]models.Option](cfg.MaxEntries, cfg.TTL),
		families:     NewCache[[]models.PolicyFamily](cfg.MaxEntries, cfg.TTL),
		list:         NewCache[[]models.PolicySummary](cfg.MaxEntries, cfg.TTL),
		fetchTimeout: cfg.FetchTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Options returns the option list of source
func (s *Service) Options(ctx context.Context, source policy.OptionSourceName) ([]models.Option, error) {
	if !known(source) {
		return nil, fmt.Errorf("%w: %s", services.ErrUnknownSource, source)
	}
	if source == policy.SourcePolicyFamilies {
		families, err := s.Families(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]models.Option, len(families))
		for i, f := range families {
			out[i] = models.Option{Value: f.ID, Label: f.Name}
		}
		return out, nil
	}

	key := CacheKey{Source: string(source), Cursor: s.catalogCursor.Load()}
	return load(ctx, s, s.options, cacheOptions, key, func(ctx context.Context) ([]models.Option, error) {
		return s.fetch(ctx, source)
	})
}

// OptionValues returns the bare values of source. It lets the constraint
// builder check enumerated domains against the current snapshot.
func (s *Service) OptionValues(ctx context.Context, source policy.OptionSourceName) ([]string, error) {
	options, err := s.Options(ctx, source)
	if err != nil {
		return nil, err
	}
	return models.OptionValues(options), nil
}

// Families returns every policy family
func (s *Service) Families(ctx context.Context) ([]models.PolicyFamily, error) {
	key := CacheKey{Source: sourceFamilyList, Cursor: s.catalogCursor.Load()}
	return load(ctx, s, s.families, cacheFamilies, key, s.source.ListPolicyFamilies)
}

// Family returns one policy family, consulting the family list snapshot first
func (s *Service) Family(ctx context.Context, id string) (*models.PolicyFamily, error) {
	key := CacheKey{Source: sourceFamilyList, Cursor: s.catalogCursor.Load()}
	if families, ok := s.families.Get(key); ok {
		for i := range families {
			if families[i].ID == id {
				f := families[i]
				return &f, nil
			}
		}
	}

	single := CacheKey{Source: "family/" + id, Cursor: key.Cursor}
	found, err := load(ctx, s, s.families, cacheFamilies, single, func(ctx context.Context) ([]models.PolicyFamily, error) {
		f, err := s.source.GetPolicyFamily(ctx, id)
		if err != nil {
			return nil, err
		}
		return []models.PolicyFamily{*f}, nil
	})
	if err != nil {
		return nil, err
	}
	f := found[0]
	return &f, nil
}

// Policies lists stored policies whose name or id contains query, ignoring case
func (s *Service) Policies(ctx context.Context, query string) ([]models.PolicySummary, error) {
	key := CacheKey{Source: sourcePolicyList, Cursor: s.policyCursor.Load()}
	all, err := load(ctx, s, s.list, cachePolicies, key, s.policies.List)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.PolicySummary, 0, len(all))
	for _, p := range all {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.ID), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Refresh bumps the catalog cursor and returns the new value
func (s *Service) Refresh() uint64 {
	cursor := s.catalogCursor.Add(1)
	removed := 0
	for _, source := range policy.OptionSources {
		removed += s.options.InvalidateBefore(string(source), cursor)
	}
	s.families.Clear()

	s.logger.Info("catalog refreshed",
		zap.Uint64("cursor", cursor),
		zap.Int("dropped_snapshots", removed))
	return cursor
}

// BumpPolicies makes the next policy list reflect the remote store
func (s *Service) BumpPolicies() uint64 {
	cursor := s.policyCursor.Add(1)
	s.list.InvalidateBefore(sourcePolicyList, cursor)
	return cursor
}

// Warm prefetches every option list concurrently
func (s *Service) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, source := range policy.OptionSources {
		source := source
		g.Go(func() error {
			if _, err := s.Options(ctx, source); err != nil {
				return fmt.Errorf("warm %s: %w", source, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("catalog warm-up incomplete", zap.Error(err))
		return err
	}
	s.logger.Info("catalog warmed", zap.Int("sources", len(policy.OptionSources)))
	return nil
}

// Stats returns statistics of every cache
func (s *Service) Stats() map[string]CacheStats {
	return map[string]CacheStats{
		cacheOptions:  s.options.Stats(),
		cacheFamilies: s.families.Stats(),
		cachePolicies: s.list.Stats(),
	}
}

// StartCleanupWorker removes expired entries every interval until stopCh closes
func (s *Service) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	s.logger.Info("started catalog cache cleanup worker",
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.options.CleanupExpired() + s.families.CleanupExpired() + s.list.CleanupExpired()
			if removed > 0 {
				s.logger.Debug("removed expired catalog entries", zap.Int("count", removed))
			}
		case <-stopCh:
			return
		}
	}
}

func (s *Service) fetch(ctx context.Context, source policy.OptionSourceName) ([]models.Option, error) {
	switch source {
	case policy.SourceNodeTypes:
		return s.source.ListNodeTypes(ctx)
	case policy.SourceZones:
		return s.source.ListZones(ctx)
	case policy.SourceRegions:
		return s.source.ListRegions(ctx)
	case policy.SourceInstancePools:
		return s.source.ListInstancePools(ctx)
	case policy.SourceInstanceProfiles:
		return s.source.ListInstanceProfiles(ctx)
	case policy.SourceSparkVersions:
		return s.source.ListSparkVersions(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", services.ErrUnknownSource, source)
	}
}

// load returns the cached snapshot under key or fetches it once, however
// many callers miss concurrently
func load[T any](ctx context.Context, s *Service, cache *Cache[T], name string, key CacheKey, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := cache.Get(key); ok {
		s.metrics.RecordCacheLookup(name, true)
		return v, nil
	}
	s.metrics.RecordCacheLookup(name, false)

	// The shared fetch outlives any single waiter; each waiter still stops at
	// its own deadline.
	ch := s.group.DoChan(name+":"+key.String(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		val, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		cache.Set(key, val)
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("catalog fetch failed",
				zap.String("cache", name),
				zap.String("key", key.String()),
				zap.Error(res.Err))
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func known(source policy.OptionSourceName) bool {
	for _, s := range policy.OptionSources {
		if s == source {
			return true
		}
	}
	return false
}
