package sde

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"eve-jita-price/internal/logger"
	"eve-jita-price/internal/metrics"
)

// Store owns the catalog load policy.
//
// Eager stores publish the first successful load and serve it for the process
// lifetime. Lazy stores re-read the file for every call; concurrent callers share
// one in-flight read.
type Store struct {
	path    string
	eager   bool
	catalog atomic.Pointer[Catalog]
	group   singleflight.Group
	loads   atomic.Int64
}

// NewStore creates a store for the catalog file at path.
func NewStore(path string, eager bool) *Store {
	return &Store{path: path, eager: eager}
}

// Path returns the catalog file location.
func (s *Store) Path() string { return s.path }

// Eager reports whether the store keeps the catalog in memory.
func (s *Store) Eager() bool { return s.eager }

// Preload loads and publishes the catalog in eager mode. It is a no-op for lazy
// stores and for eager stores that already hold a catalog.
func (s *Store) Preload(ctx context.Context) error {
	if !s.eager || s.catalog.Load() != nil {
		return nil
	}
	_, err := s.Catalog(ctx)
	return err
}

// Catalog returns the published catalog, loading it when none is published.
func (s *Store) Catalog(ctx context.Context) (*Catalog, error) {
	if c := s.catalog.Load(); c != nil {
		return c, nil
	}

	ch := s.group.DoChan(s.path, func() (interface{}, error) {
		if c := s.catalog.Load(); c != nil {
			return c, nil
		}
		c, err := s.load()
		if err != nil {
			return nil, err
		}
		if s.eager {
			s.catalog.Store(c)
		}
		return c, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Catalog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether a catalog is published.
func (s *Store) Loaded() bool {
	return s.catalog.Load() != nil
}

// Size returns the published catalog length, or 0.
func (s *Store) Size() int {
	if c := s.catalog.Load(); c != nil {
		return c.Len()
	}
	return 0
}

// Loads returns how many times the file has been read.
func (s *Store) Loads() int64 {
	return s.loads.Load()
}

func (s *Store) load() (*Catalog, error) {
	s.loads.Add(1)
	start := time.Now()
	c, err := Load(s.path)
	if err != nil {
		logger.Error("Catalog", "Load failed", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	metrics.CatalogItems.Set(float64(c.Len()))
	logger.Success("Catalog", "Loaded item types",
		zap.String("path", s.path),
		zap.Int("types", c.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return c, nil
}
