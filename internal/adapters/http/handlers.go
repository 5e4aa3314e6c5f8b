package http

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/usecases"
)

// CrimesResponse is the body of GET /v1/crimes.
type CrimesResponse struct {
	Key           string          `json:"key"`
	Period        string          `json:"period"`
	Bounds        domain.Bounds   `json:"bounds"`
	FromCache     bool            `json:"from_cache"`
	FetchedAt     time.Time       `json:"fetched_at"`
	UpstreamCalls int             `json:"upstream_calls"`
	Coverage      domain.Coverage `json:"coverage"`
	// OutsideCoverage is set when the area lies wholly outside the region
	// police.uk publishes data for; an empty result is then expected.
	OutsideCoverage bool             `json:"outside_coverage"`
	Count           int              `json:"count"`
	Records         domain.RecordSet `json:"records"`
	Pagination      *Pagination      `json:"pagination,omitempty"`
}

// CrimeStatusResponse is the body of GET /v1/crimes/status.
type CrimeStatusResponse struct {
	Key    string `json:"key"`
	Period string `json:"period"`
	Cached bool   `json:"cached"`
}

// CategoryCount is one row of GET /v1/crimes/summary.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CrimeSummaryResponse aggregates a record set by category and month.
type CrimeSummaryResponse struct {
	Key        string          `json:"key"`
	Period     string          `json:"period"`
	FromCache  bool            `json:"from_cache"`
	Complete   bool            `json:"complete"`
	Total      int             `json:"total"`
	Categories []CategoryCount `json:"categories"`
	Months     map[string]int  `json:"months"`
}

// CrimesHandler returns street-level crimes for a boundary and period,
// served from cache when possible.
func CrimesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		desc, err := parseBoundary(c, deps.KMLEnabled)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		period, err := parsePeriod(c.Query("date"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		offset, limit, err := parsePage(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		refresh := c.QueryBool("refresh", false)

		res, err := deps.Crimes.Fetch(c.UserContext(), desc, period, usecases.FetchOptions{ForceRefresh: refresh})
		if err != nil {
			return errFetch(c, err)
		}

		resp := CrimesResponse{
			Key:             res.Key,
			Period:          res.Period,
			Bounds:          res.Bounds,
			FromCache:       res.FromCache,
			FetchedAt:       res.FetchedAt,
			UpstreamCalls:   res.UpstreamCalls,
			Coverage:        res.Coverage,
			OutsideCoverage: !domain.UKBounds.Intersects(res.Bounds),
			Count:           len(res.Records),
			Records:         res.Records,
		}
		if limit > 0 {
			pg := Pagination{Offset: offset, Limit: limit, Total: len(res.Records)}
			resp.Records = page(res.Records, pg)
			resp.Pagination = &pg
			SetLinkHeaders(c, pg)
		}

		setCacheHeaders(c, res, refresh)
		return c.JSON(resp)
	}
}

// CrimeStatusHandler reports whether a query is already cached, without
// touching the upstream.
func CrimeStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		desc, err := parseBoundary(c, deps.KMLEnabled)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		period, err := parsePeriod(c.Query("date"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		key, cached, err := deps.Crimes.Cached(c.UserContext(), desc, period)
		if err != nil {
			if domain.IsBoundaryError(err) {
				return errFetch(c, err)
			}
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "no-cache")
		return c.JSON(CrimeStatusResponse{Key: key, Period: period.Label(), Cached: cached})
	}
}

// CrimeSummaryHandler returns per-category and per-month counts for the
// same query as CrimesHandler.
func CrimeSummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		desc, err := parseBoundary(c, deps.KMLEnabled)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		period, err := parsePeriod(c.Query("date"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Crimes.Fetch(c.UserContext(), desc, period, usecases.FetchOptions{})
		if err != nil {
			return errFetch(c, err)
		}

		setCacheHeaders(c, res, false)
		return c.JSON(summarize(res))
	}
}

func summarize(res *domain.FetchResult) CrimeSummaryResponse {
	byCategory := make(map[string]int)
	months := make(map[string]int)
	for _, r := range res.Records {
		byCategory[r.Category]++
		months[r.Month]++
	}

	cats := make([]CategoryCount, 0, len(byCategory))
	for cat, n := range byCategory {
		cats = append(cats, CategoryCount{Category: cat, Count: n})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Count != cats[j].Count {
			return cats[i].Count > cats[j].Count
		}
		return cats[i].Category < cats[j].Category
	})

	return CrimeSummaryResponse{
		Key:        res.Key,
		Period:     res.Period,
		FromCache:  res.FromCache,
		Complete:   res.Coverage.Complete,
		Total:      len(res.Records),
		Categories: cats,
		Months:     months,
	}
}

func setCacheHeaders(c *fiber.Ctx, res *domain.FetchResult, refresh bool) {
	if res.FromCache {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	if res.Coverage.Complete {
		c.Set("X-Coverage", "complete")
	} else {
		c.Set("X-Coverage", "partial")
	}
	switch {
	case refresh:
		c.Set("Cache-Control", "no-store")
	case !res.Coverage.Complete:
		c.Set("Cache-Control", "public, max-age=60")
	}
}
