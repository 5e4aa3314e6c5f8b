package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/pflag"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/crimescope/internal/adapters/nats"
	"github.com/samirrijal/crimescope/internal/bootstrap"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/config"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
	"github.com/samirrijal/crimescope/internal/pkg/telemetry"
	"github.com/samirrijal/crimescope/internal/workflows"
)

const scheduleID = "crimescope-refresh-schedule"

func main() {
	once := pflag.Bool("once", false, "start one refresh run, wait for it and exit")
	month := pflag.String("month", "", "month to refresh with --once (default: latest published)")
	pflag.Parse()

	cfg, err := config.Load("crimescope-refresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Refreshed areas are announced so API instances can push them to maps.
	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	engine, err := bootstrap.NewEngine(ctx, cfg, events)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.RefreshWorkflow)
	w.RegisterActivity(&workflows.RefreshActivities{
		Crimes: engine.Crimes,
		KMLDir: cfg.KML.Dir,
		BBoxes: cfg.Temporal.BBoxes,
	})

	if *once {
		if err := w.Start(); err != nil {
			log.Fatalf("worker: %v", err)
		}
		defer w.Stop()
		runOnce(ctx, c, cfg.Temporal.TaskQueue, *month)
		return
	}

	if cfg.Temporal.Cron != "" {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:           scheduleID,
			TaskQueue:    cfg.Temporal.TaskQueue,
			CronSchedule: cfg.Temporal.Cron,
		}, workflows.RefreshWorkflow, workflows.RefreshInput{})
		if err != nil {
			log.Fatalf("schedule refresh: %v", err)
		}
		slog.Info("refresh scheduled", "cron", cfg.Temporal.Cron, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	}

	slog.Info("refresh worker started", "task_queue", cfg.Temporal.TaskQueue, "kml_dir", cfg.KML.Dir, "bboxes", len(cfg.Temporal.BBoxes))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// runOnce starts a single refresh and waits for it to finish.
func runOnce(ctx context.Context, c client.Client, queue, month string) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "crimescope-refresh-" + time.Now().UTC().Format("20060102T150405"),
		TaskQueue: queue,
	}, workflows.RefreshWorkflow, workflows.RefreshInput{Month: month})
	if err != nil {
		log.Fatalf("start refresh: %v", err)
	}
	slog.Info("refresh started", "workflow_id", run.GetID())

	var res workflows.RefreshResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("refresh: %v", err)
	}
	slog.Info("refresh done", "month", res.Month, "refreshed", len(res.Reports), "failed", res.Failed)
}
