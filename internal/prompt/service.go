package prompt

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"bizlens/internal/domain"
	"bizlens/internal/port"
)

type cacheEntry struct {
	body      string
	fetchedAt time.Time
}

// Service serves the active prompt template per source type, caching reads
// for a freshness window. A stale read inside the TTL is acceptable;
// Invalidate forces the next read to hit the store.
type Service struct {
	repo port.TemplateRepository
	ttl  time.Duration

	mu    sync.RWMutex
	cache map[domain.SourceType]cacheEntry
}

// NewService creates a template Service with the given cache TTL.
func NewService(repo port.TemplateRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		repo:  repo,
		ttl:   ttl,
		cache: map[domain.SourceType]cacheEntry{},
	}
}

// ActiveTemplate returns the active template body for a source type. When
// the store has no active template, the built-in default is served (and
// cached, so an empty store does not mean a query per call).
func (s *Service) ActiveTemplate(ctx context.Context, sourceType domain.SourceType) (string, error) {
	s.mu.RLock()
	entry, ok := s.cache[sourceType]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < s.ttl {
		return entry.body, nil
	}

	tpl, err := s.repo.GetActive(ctx, sourceType)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			body := DefaultTemplate(sourceType)
			s.store(sourceType, body)
			return body, nil
		}
		// Serve the stale entry rather than failing the run when the
		// store is briefly unreachable.
		if ok {
			log.Printf("prompt.Service: template fetch failed, serving stale entry: %v", err)
			return entry.body, nil
		}
		return "", err
	}

	s.store(sourceType, tpl.Body)
	return tpl.Body, nil
}

// Invalidate drops all cached templates. Called after a template edit so the
// next read re-fetches.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[domain.SourceType]cacheEntry{}
}

func (s *Service) store(sourceType domain.SourceType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[sourceType] = cacheEntry{body: body, fetchedAt: time.Now()}
}
