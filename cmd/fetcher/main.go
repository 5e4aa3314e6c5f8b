package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/samirrijal/crimescope/internal/adapters/kml"
	"github.com/samirrijal/crimescope/internal/bootstrap"
	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/usecases"
	"github.com/samirrijal/crimescope/internal/pkg/config"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
)

// job is one (area, month) fetch.
type job struct {
	name  string
	desc  domain.BoundaryDescriptor
	month domain.Month
}

func main() {
	var (
		date        = pflag.StringP("date", "d", "", "month YYYY-MM or range YYYY-MM..YYYY-MM (default: two months ago)")
		kmlDir      = pflag.String("kml-dir", "", "directory of KML boundaries (default: kml.dir from config)")
		forces      = pflag.StringSlice("force", nil, "only fetch KML areas of these police forces")
		bboxes      = pflag.StringArray("bbox", nil, "extra south,west,north,east area, repeatable")
		refresh     = pflag.Bool("refresh", false, "ignore cached results and fetch again")
		concurrency = pflag.IntP("concurrency", "c", 2, "areas fetched in parallel")
	)
	pflag.Parse()

	cfg, err := config.Load("crimescope-fetcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if *kmlDir != "" {
		cfg.KML.Dir = *kmlDir
	}

	period, err := parsePeriod(*date)
	if err != nil {
		log.Fatalf("date: %v", err)
	}

	jobs, err := buildJobs(cfg.KML.Dir, *forces, *bboxes, period)
	if err != nil {
		log.Fatalf("areas: %v", err)
	}
	if len(jobs) == 0 {
		log.Fatalf("nothing to fetch: no KML files under %q and no --bbox given", cfg.KML.Dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.NewEngine(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	slog.Info("CrimeScope batch fetch", "jobs", len(jobs), "period", period.Label(), "refresh", *refresh)

	if *concurrency < 1 {
		*concurrency = 1
	}
	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, *concurrency)
		records  atomic.Int64
		cached   atomic.Int64
		partial  atomic.Int64
		failures atomic.Int64
	)
	start := time.Now()

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			res, err := engine.Crimes.Fetch(ctx, j.desc, domain.SingleMonth(j.month), usecases.FetchOptions{ForceRefresh: *refresh})
			if err != nil {
				failures.Add(1)
				slog.Error("fetch failed", "area", j.name, "month", j.month.String(), "error", err)
				return
			}
			records.Add(int64(len(res.Records)))
			if res.FromCache {
				cached.Add(1)
			}
			if !res.Coverage.Complete {
				partial.Add(1)
			}
			slog.Info("fetched",
				"area", j.name,
				"month", j.month.String(),
				"records", len(res.Records),
				"from_cache", res.FromCache,
				"complete", res.Coverage.Complete,
				"key", res.Key,
			)
		}(j)
	}
	wg.Wait()

	slog.Info("batch fetch complete",
		"jobs", len(jobs),
		"records", records.Load(),
		"from_cache", cached.Load(),
		"partial", partial.Load(),
		"failed", failures.Load(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	if failures.Load() > 0 || ctx.Err() != nil {
		os.Exit(1)
	}
}

// parsePeriod defaults to the latest month police.uk has normally published.
func parsePeriod(s string) (domain.Period, error) {
	if s == "" {
		now := time.Now().UTC()
		return domain.SingleMonth(domain.MonthOf(time.Date(now.Year(), now.Month()-2, 1, 0, 0, 0, 0, time.UTC))), nil
	}
	return domain.ParsePeriod(s)
}

// buildJobs expands areas × months; each month is cached separately, the
// way police.uk publishes them.
func buildJobs(dir string, forces, bboxes []string, period domain.Period) ([]job, error) {
	var areas []job

	for _, b := range bboxes {
		box, err := geospatial.ParseBBox(b)
		if err != nil {
			return nil, err
		}
		areas = append(areas, job{name: "bbox " + b, desc: domain.BoundingBox(box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)})
	}

	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			found, err := kml.Discover(dir)
			if err != nil {
				return nil, err
			}
			only := make(map[string]bool, len(forces))
			for _, f := range forces {
				only[strings.ToLower(strings.TrimSpace(f))] = true
			}
			for _, a := range found {
				if len(only) > 0 && !only[strings.ToLower(a.Force)] {
					continue
				}
				name := a.Name
				if a.Force != "" {
					name = a.Force + "/" + a.Name
				}
				areas = append(areas, job{name: name, desc: domain.KMLBoundary(a.Rel)})
			}
		} else if len(bboxes) == 0 {
			return nil, err
		}
	}

	jobs := make([]job, 0, len(areas)*len(period.Months))
	for _, m := range period.Months {
		for _, a := range areas {
			a.month = m
			jobs = append(jobs, a)
		}
	}
	return jobs, nil
}
