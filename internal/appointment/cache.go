package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
)

// companyCatalog is the read model of one company at one catalog version.
type companyCatalog struct {
	company  Company
	version  int64
	loc      *time.Location
	registry *availability.BlockRegistry
}

// catalogCache holds catalogs and templates keyed by catalog version, so a
// template or block change is visible on the next read without explicit
// invalidation across nodes.
type catalogCache struct {
	c *cache.Cache
}

func newCatalogCache(ttl time.Duration) *catalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &catalogCache{c: cache.New(ttl, 2*ttl)}
}

func catalogKey(companyID uuid.UUID, version int64) string {
	return fmt.Sprintf("catalog:%s:%d", companyID, version)
}

func templateKey(id uuid.UUID, version int64) string {
	return fmt.Sprintf("template:%s:%d", id, version)
}

// catalog returns the current catalog of companyID. The version is always
// read from the store; only the company row and its blocks are cached.
func (s *Service) catalog(ctx context.Context, companyID uuid.UUID) (*companyCatalog, error) {
	version, err := s.repo.CatalogVersion(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load catalog version: %w", err)
	}

	key := catalogKey(companyID, version)
	if cached, found := s.cache.c.Get(key); found {
		s.metrics.CacheLookup(true)
		return cached.(*companyCatalog), nil
	}
	s.metrics.CacheLookup(false)

	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	blocks, err := s.repo.ListActiveBlocks(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	loc := company.Location()
	cat := &companyCatalog{
		company:  *company,
		version:  version,
		loc:      loc,
		registry: availability.NewBlockRegistry(blocks, loc),
	}
	s.cache.c.Set(key, cat, cache.DefaultExpiration)
	return cat, nil
}

func (s *Service) template(ctx context.Context, cat *companyCatalog, id uuid.UUID) (*availability.Template, error) {
	key := templateKey(id, cat.version)
	if cached, found := s.cache.c.Get(key); found {
		return cached.(*availability.Template), nil
	}
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.c.Set(key, tpl, cache.DefaultExpiration)
	return tpl, nil
}

// forget drops the entries of an outdated version early.
func (s *Service) forget(companyID uuid.UUID, version int64) {
	s.cache.c.Delete(catalogKey(companyID, version))
}
