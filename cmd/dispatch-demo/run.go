package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	dispatch "github.com/mivens/go-dispatch"
	"github.com/mivens/go-dispatch/core"
	obs "github.com/mivens/go-dispatch/observability/prometheus"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Build a dispatcher from a config file and push demo tasks through every queue",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML dispatcher config",
			},
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"t"},
				Value:   20,
				Usage:   "Tasks to post per queue",
			},
		},

		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	// 1. Get flags
	configPath := c.String("config")
	tasksPerQueue := c.Int("tasks")

	// 2. Validate (format only)
	if tasksPerQueue < 1 {
		return cli.Exit("tasks must be at least 1", 1)
	}

	// 3. Build the dispatcher
	cfg := dispatch.DefaultConfig()
	if configPath != "" {
		loaded, err := dispatch.LoadConfig(configPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
		}
		cfg = loaded
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter(cfg.MetricsNamespace, reg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to register metrics: %v", err), 1)
	}
	schedCfg := core.DefaultSchedulerConfig()
	schedCfg.Metrics = exporter

	d, err := dispatch.NewDispatcherFromConfig(cfg, schedCfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to build dispatcher: %v", err), 1)
	}
	defer d.Shutdown()

	// 4. Push work through every registered queue
	queues := d.Queues()
	for _, q := range queues {
		for i := 0; i < tasksPerQueue; i++ {
			q.PostTaskWithTraits(func(ctx context.Context) {
				time.Sleep(time.Millisecond)
			}, core.DefaultTaskTraits())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StopTimeout)
	defer cancel()
	for _, q := range queues {
		if err := q.WaitIdle(ctx); err != nil {
			return cli.Exit(fmt.Sprintf("Queue %q did not drain: %v", q.Name(), err), 1)
		}
	}

	// 5. Format output
	stats := lo.Map(queues, func(q dispatch.Queue, _ int) core.QueueStats {
		return q.Stats()
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	fmt.Printf("✓ %d tasks drained across %d queues (workers=%d)\n",
		tasksPerQueue*len(queues), len(queues), cfg.Workers)
	for _, s := range stats {
		fmt.Printf("  %-20s %-10s priority=%-11s pending=%d running=%d\n",
			s.Name, s.Discipline, s.Priority, s.Pending, s.Running)
	}

	byDiscipline := lo.CountValuesBy(stats, func(s core.QueueStats) string {
		return s.Discipline
	})
	fmt.Printf("  disciplines: serial=%d concurrent=%d main=%d\n",
		byDiscipline["serial"], byDiscipline["concurrent"], byDiscipline["main"])

	families, err := reg.Gather()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to gather metrics: %v", err), 1)
	}
	fmt.Printf("  metric families under %q: %d\n", cfg.MetricsNamespace, len(families))

	return nil
}
