package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
	"github.com/samirrijal/crimescope/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/crimescope/internal/core/usecases")

// FetchOptions tweaks a single Fetch call.
type FetchOptions struct {
	// ForceRefresh skips the cache lookup and overwrites the stored entry.
	ForceRefresh bool
}

// CrimeService is the cache-first acquisition engine: it resolves a
// boundary, serves from cache when it can and otherwise queries the
// upstream segment by segment, bisecting oversized areas.
type CrimeService struct {
	boundaries *BoundaryService
	segmenter  *Segmenter
	source     ports.CrimeSource
	cache      ports.CacheStore
	events     ports.EventPublisher
	cfg        FetcherConfig
	group      singleflight.Group
	now        func() time.Time

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by every caller waiting on one upstream
// fetch. It is cancelled when the last of them leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewCrimeService creates a new CrimeService. events may be nil.
func NewCrimeService(
	boundaries *BoundaryService,
	source ports.CrimeSource,
	cache ports.CacheStore,
	events ports.EventPublisher,
	cfg FetcherConfig,
) *CrimeService {
	return &CrimeService{
		boundaries: boundaries,
		segmenter:  NewSegmenter(cfg.MaxVertices),
		source:     source,
		cache:      cache,
		events:     events,
		cfg:        cfg,
		now:        time.Now,
		flights:    make(map[string]*flight),
	}
}

// Key resolves the descriptor and returns its cache key and query polygon.
func (s *CrimeService) Key(ctx context.Context, d domain.BoundaryDescriptor, period domain.Period) (string, domain.Polygon, error) {
	if len(period.Months) == 0 {
		return "", nil, domain.ErrEmptyPeriod
	}
	poly, err := s.boundaries.Resolve(ctx, d)
	if err != nil {
		return "", nil, err
	}
	return CacheKey(poly, period, s.cfg.KeyPrecision), poly, nil
}

// Cached reports whether a result for the request is already stored.
func (s *CrimeService) Cached(ctx context.Context, d domain.BoundaryDescriptor, period domain.Period) (string, bool, error) {
	key, _, err := s.Key(ctx, d, period)
	if err != nil {
		return "", false, err
	}
	ok, err := s.cache.Has(ctx, key)
	if err != nil {
		return key, false, fmt.Errorf("cache lookup %s: %w", key, err)
	}
	return key, ok, nil
}

// Fetch returns all street-level crimes inside the boundary for the period.
// Partial coverage is reported in the result, not as an error; only
// boundary problems and cancellation fail the call.
func (s *CrimeService) Fetch(ctx context.Context, d domain.BoundaryDescriptor, period domain.Period, opts FetchOptions) (*domain.FetchResult, error) {
	ctx, span := tracer.Start(ctx, "CrimeService.Fetch", trace.WithAttributes(
		attribute.String("boundary.kind", d.Kind.String()),
		attribute.String("period", period.Label()),
		attribute.Bool("force_refresh", opts.ForceRefresh),
	))
	defer span.End()

	res, err := s.fetch(ctx, d, period, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("cache.key", res.Key),
		attribute.Bool("from_cache", res.FromCache),
		attribute.Int("records", len(res.Records)),
		attribute.Bool("complete", res.Coverage.Complete),
	)
	return res, nil
}

func (s *CrimeService) fetch(ctx context.Context, d domain.BoundaryDescriptor, period domain.Period, opts FetchOptions) (*domain.FetchResult, error) {
	key, poly, err := s.Key(ctx, d, period)
	if err != nil {
		return nil, err
	}

	env := geospatial.Envelope(poly)
	if !opts.ForceRefresh {
		if res, ok := s.lookup(ctx, key, period, env); ok {
			return res, nil
		}
	}

	name := key
	if opts.ForceRefresh {
		name += "|refresh"
	}
	fctx := s.join(ctx, name)
	defer s.leave(name)

	for {
		ch := s.group.DoChan(name, func() (any, error) {
			// Another caller may have filled the entry while we waited.
			if !opts.ForceRefresh {
				if res, ok := s.lookup(fctx, key, period, env); ok {
					return res, nil
				}
			}
			return s.fetchUpstream(fctx, key, poly, period, opts.ForceRefresh)
		})

		select {
		case r := <-ch:
			if r.Err != nil {
				// The shared fetch only sees cancellation once every waiter
				// has gone; report this caller's own reason if it has one.
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				// Joined a fetch its callers had already abandoned.
				if errors.Is(r.Err, context.Canceled) {
					continue
				}
				return nil, r.Err
			}
			res := *r.Val.(*domain.FetchResult)
			return &res, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// join registers the caller on the flight for name and returns the context
// the shared fetch runs under. It keeps ctx's values but not its deadline
// or cancellation.
func (s *CrimeService) join(ctx context.Context, name string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[name]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[name] = f
	}
	f.waiters++
	return f.ctx
}

func (s *CrimeService) leave(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[name]
	if !ok {
		return
	}
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		delete(s.flights, name)
	}
}

func (s *CrimeService) lookup(ctx context.Context, key string, period domain.Period, env domain.Bounds) (*domain.FetchResult, bool) {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logging.FromContext(ctx).Warn("cache read failed, treating as miss", "key", key, "error", err)
		}
		metrics.CacheMisses.WithLabelValues("crimes").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("crimes").Inc()
	metrics.FetchesTotal.WithLabelValues("cache").Inc()
	return &domain.FetchResult{
		Key:       key,
		Period:    period.Label(),
		Bounds:    env,
		Records:   entry.Records,
		Coverage:  entry.Coverage,
		FromCache: true,
		FetchedAt: entry.FetchedAt,
	}, true
}

// merger accumulates records across segments, dropping duplicates and
// records outside the requested area.
type merger struct {
	records domain.RecordSet
	seen    map[domain.DedupKey]struct{}
	clipped int
	dupes   int
}

func (m *merger) add(seg Segment, recs domain.RecordSet) {
	for _, r := range recs {
		if r.Month == "" {
			r.Month = seg.Month.String()
		}
		if !seg.Keep(r.Location()) {
			m.clipped++
			continue
		}
		k := r.DedupKey()
		if _, dup := m.seen[k]; dup {
			m.dupes++
			continue
		}
		m.seen[k] = struct{}{}
		m.records = append(m.records, r)
	}
}

func (s *CrimeService) fetchUpstream(ctx context.Context, key string, poly domain.Polygon, period domain.Period, refresh bool) (*domain.FetchResult, error) {
	log := logging.FromContext(ctx).With("key", key, "period", period.Label())
	env := geospatial.Envelope(poly)

	if s.cfg.Coverage != (domain.Bounds{}) && !s.cfg.Coverage.Intersects(env) {
		log.Info("request outside upstream coverage, skipping")
		metrics.FetchesTotal.WithLabelValues("outside_coverage").Inc()
		return &domain.FetchResult{
			Key:     key,
			Period:  period.Label(),
			Bounds:  env,
			Records: domain.RecordSet{},
			Coverage: domain.Coverage{Abandoned: []domain.SegmentReport{{
				Month:  period.Label(),
				Bounds: env,
				Reason: "outside upstream coverage",
			}}},
			FetchedAt: s.now().UTC(),
		}, nil
	}

	var stale []string
	for _, m := range period.Months {
		if !m.WithinWindow(s.now()) {
			stale = append(stale, m.String())
		}
	}
	if len(stale) > 0 {
		log.Warn("months outside the upstream data window, expect empty results",
			"months", stale,
			"window_months", domain.DataWindowMonths,
		)
	}

	queue := s.segmenter.Segment(poly, period)
	log.Debug("fetching from upstream", "segments", len(queue))

	m := &merger{records: domain.RecordSet{}, seen: make(map[domain.DedupKey]struct{})}
	var cov domain.Coverage
	calls := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg := queue[0]
		queue = queue[1:]

		raw, err := s.source.StreetCrimes(ctx, seg.Polygon, seg.Month)
		calls++
		if err == nil && s.cfg.ResultCeiling > 0 && len(raw) >= s.cfg.ResultCeiling {
			err = &domain.OversizedResultError{Count: len(raw)}
		}

		switch {
		case err == nil:
			recs, dropped := NormalizeCrimes(raw)
			if dropped > 0 {
				metrics.RecordsDropped.WithLabelValues("no_location").Add(float64(dropped))
			}
			m.add(seg, recs)
			metrics.SegmentsTotal.WithLabelValues("ok").Inc()

		case ctx.Err() != nil:
			return nil, ctx.Err()

		case domain.IsRetryable(err):
			if seg.Depth >= s.cfg.MaxDepth {
				log.Warn("segment abandoned at max depth", "month", seg.Month.String(), "depth", seg.Depth, "error", err)
				cov.Abandoned = append(cov.Abandoned, report(seg, err))
				metrics.SegmentsTotal.WithLabelValues("abandoned").Inc()
				continue
			}
			log.Debug("bisecting segment",
				"month", seg.Month.String(),
				"depth", seg.Depth,
				"span_m", int(geospatial.DiagonalMeters(seg.Bounds())),
				"error", err,
			)
			queue = append(queue, seg.Bisect()...)
			metrics.SegmentsTotal.WithLabelValues("bisected").Inc()

		default:
			log.Warn("segment failed", "month", seg.Month.String(), "error", err)
			cov.Failed = append(cov.Failed, report(seg, err))
			metrics.SegmentsTotal.WithLabelValues("failed").Inc()
		}
	}

	if m.clipped > 0 {
		metrics.RecordsDropped.WithLabelValues("outside_boundary").Add(float64(m.clipped))
	}
	if m.dupes > 0 {
		metrics.RecordsDropped.WithLabelValues("duplicate").Add(float64(m.dupes))
	}
	cov.Complete = len(cov.Abandoned) == 0 && len(cov.Failed) == 0

	res := &domain.FetchResult{
		Key:           key,
		Period:        period.Label(),
		Bounds:        env,
		Records:       m.records,
		Coverage:      cov,
		FetchedAt:     s.now().UTC(),
		UpstreamCalls: calls,
	}
	metrics.FetchesTotal.WithLabelValues("upstream").Inc()
	metrics.RecordsReturned.Observe(float64(len(res.Records)))

	// Failed segments are transient; caching them would pin the gap.
	if len(cov.Failed) == 0 {
		entry := &domain.CacheEntry{Key: key, Records: res.Records, Coverage: cov, FetchedAt: res.FetchedAt}
		if err := s.cache.Put(ctx, entry); err != nil {
			werr := &domain.CacheWriteError{Key: key, Err: err}
			log.Error("cache write failed", "error", werr)
			metrics.CacheWriteErrors.Inc()
		}
	} else {
		log.Warn("not caching result with failed segments", "failed", len(cov.Failed))
	}

	log.Info("fetch complete",
		"records", len(res.Records),
		"upstream_calls", calls,
		"complete", cov.Complete,
		"abandoned", len(cov.Abandoned),
		"failed", len(cov.Failed),
	)

	s.publish(ctx, res, refresh)
	return res, nil
}

func (s *CrimeService) publish(ctx context.Context, res *domain.FetchResult, refresh bool) {
	if s.events == nil {
		return
	}
	ev := &domain.FetchEvent{
		ID:        uuid.NewString(),
		Key:       res.Key,
		Period:    res.Period,
		Bounds:    res.Bounds,
		Records:   len(res.Records),
		Complete:  res.Coverage.Complete,
		Refreshed: refresh,
		At:        res.FetchedAt,
	}
	if err := s.events.PublishFetchCompleted(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish fetch event failed", "key", res.Key, "error", err)
	}
}

func report(seg Segment, err error) domain.SegmentReport {
	r := domain.SegmentReport{
		Month:  seg.Month.String(),
		Bounds: seg.Bounds(),
		Depth:  seg.Depth,
		Reason: err.Error(),
	}
	var fe *domain.FetchError
	var oe *domain.OversizedResultError
	switch {
	case errors.As(err, &fe):
		r.Status = fe.Status
	case errors.As(err, &oe):
		r.Status = oe.Status
	}
	return r
}
