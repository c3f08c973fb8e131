// Package inquiry runs a price inquiry from free text to report.
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"eve-jita-price/internal/config"
	"eve-jita-price/internal/engine"
	"eve-jita-price/internal/logger"
	"eve-jita-price/internal/metrics"
	"eve-jita-price/internal/report"
	"eve-jita-price/internal/resolver"
	"eve-jita-price/internal/sde"
)

// Outcome classifies how an inquiry ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeEmpty   Outcome = "empty"
	OutcomeSpecial Outcome = "special"
	OutcomeMissing Outcome = "not-found"
	OutcomeTooMany Outcome = "too-many"
	OutcomeFailed  Outcome = "failed"
)

// CatalogSource hands out the item catalog for one inquiry.
type CatalogSource interface {
	Catalog(ctx context.Context) (*sde.Catalog, error)
}

// Quoter prices resolved items against a region.
type Quoter interface {
	Quote(ctx context.Context, regionID int32, items []sde.Item) []engine.PriceQuote
}

// Request is one user inquiry.
type Request struct {
	Command  string
	RegionID int32
	Text     string
}

// Reply is what the caller sends back. Preface, when set, goes out before Text.
type Reply struct {
	ID      string
	Preface string
	Text    string
	Outcome Outcome
}

// Options are the runtime settings that can change while the service runs.
type Options struct {
	MaxSearch     int
	SpecialFields []config.SpecialField
}

// OptionsFrom extracts the runtime options from cfg.
func OptionsFrom(cfg *config.Config) Options {
	c := cfg.Clone()
	return Options{MaxSearch: c.MaxSearch, SpecialFields: c.SpecialFields}
}

// Service answers price inquiries.
type Service struct {
	catalog CatalogSource
	quoter  Quoter
	format  report.Formatter

	mu   sync.RWMutex
	opts Options
}

// NewService creates a Service.
func NewService(catalog CatalogSource, quoter Quoter, format report.Formatter, opts Options) *Service {
	return &Service{catalog: catalog, quoter: quoter, format: format, opts: opts}
}

// Options returns a copy of the current runtime options.
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := s.opts
	o.SpecialFields = append([]config.SpecialField(nil), s.opts.SpecialFields...)
	return o
}

// SetOptions replaces the runtime options. In-flight inquiries keep the old ones.
func (s *Service) SetOptions(o Options) {
	s.mu.Lock()
	s.opts = o
	s.mu.Unlock()
}

// Formatter returns the report formatter in use.
func (s *Service) Formatter() report.Formatter { return s.format }

// Ask answers one inquiry. The returned error is set only when the catalog could
// not be read; every other outcome is a user-facing Reply.
//
// Once items are resolved the price fetches run to completion even if ctx is
// cancelled, so an abandoned inquiry still finishes within the retry bound.
func (s *Service) Ask(ctx context.Context, req Request) (Reply, error) {
	start := time.Now()
	opts := s.Options()
	reply := Reply{ID: xid.New().String()}
	log := []zap.Field{
		zap.String("id", reply.ID),
		zap.String("command", req.Command),
		zap.Int32("region_id", req.RegionID),
		zap.String("query", req.Text),
	}

	done := func(o Outcome) (Reply, error) {
		reply.Outcome = o
		metrics.Inquiries.WithLabelValues(string(o)).Inc()
		logger.Info("Inquiry", "Answered", append(log,
			zap.String("outcome", string(o)),
			zap.Duration("took", time.Since(start)),
		)...)
		return reply, nil
	}

	query := strings.TrimSpace(req.Text)
	if query == "" {
		reply.Text = s.format.Labels.EmptyQuery
		return done(OutcomeEmpty)
	}

	if field, ok := findSpecial(opts.SpecialFields, query); ok {
		if field.Direct() {
			reply.Text = field.Response
			return done(OutcomeSpecial)
		}
		reply.Preface = field.Response
	}

	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		metrics.Inquiries.WithLabelValues(string(OutcomeFailed)).Inc()
		logger.Error("Inquiry", "Catalog unavailable", append(log, zap.Error(err))...)
		reply.Outcome = OutcomeFailed
		reply.Text = s.format.Labels.Unavail
		return reply, fmt.Errorf("inquiry %s: %w", reply.ID, err)
	}

	items, err := resolver.Resolve(query, cat, opts.MaxSearch)
	var tooMany *resolver.TooManyResultsError
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		reply.Text = s.format.NotFound(query)
		return done(OutcomeMissing)
	case errors.As(err, &tooMany):
		reply.Text = s.format.TooMany(tooMany.Count)
		return done(OutcomeTooMany)
	case err != nil:
		reply.Text = s.format.Labels.EmptyQuery
		return done(OutcomeEmpty)
	}

	log = append(log, zap.Int("items", len(items)))
	quotes := s.quoter.Quote(context.WithoutCancel(ctx), req.RegionID, items)
	reply.Text = s.format.Format(engine.Aggregate(quotes))
	return done(OutcomeOK)
}

func findSpecial(fields []config.SpecialField, query string) (config.SpecialField, bool) {
	for _, f := range fields {
		if f.MonitoringContent == query {
			return f, true
		}
	}
	return config.SpecialField{}, false
}
