package main

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	dispatch "github.com/mivens/go-dispatch"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:    "bench",
		Aliases: []string{"b"},
		Usage:   "Time a data-parallel loop across a worker pool",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   4,
				Usage:   "Worker pool width",
			},
			&cli.IntFlag{
				Name:    "n",
				Value:   1_000_000,
				Usage:   "Iteration count",
			},
			&cli.IntFlag{
				Name:    "rounds",
				Value:   3,
				Usage:   "Timed rounds to run",
			},
		},

		Action: benchAction,
	}
}

func benchAction(c *cli.Context) error {
	// 1. Get flags
	workers := c.Int("workers")
	n := c.Int("n")
	rounds := c.Int("rounds")

	// 2. Validate (format only)
	if workers < 1 {
		return cli.Exit("workers must be at least 1", 1)
	}
	if n < 1 || rounds < 1 {
		return cli.Exit("n and rounds must be at least 1", 1)
	}

	// 3. Run the benchmark
	d := dispatch.NewDispatcher(workers)
	defer d.Shutdown()

	output := make([]int64, n)
	durations := make([]time.Duration, 0, rounds)

	for round := 0; round < rounds; round++ {
		start := time.Now()
		d.ParallelFor(n, func(i int) {
			output[i] = int64(i) * int64(i)
		})
		elapsed := time.Since(start)
		durations = append(durations, elapsed)
		fmt.Printf("  round %d: %v\n", round+1, elapsed)
	}

	// 4. Format output
	total := lo.Sum(durations)
	best := lo.Min(durations)
	fmt.Printf("✓ n=%d workers=%d rounds=%d avg=%v best=%v\n",
		n, workers, rounds, total/time.Duration(rounds), best)

	return nil
}
