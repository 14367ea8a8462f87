package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog/log"

	"toposim/client"
	"toposim/topology"
)

// LoadGenerator drives synthetic traffic at every entry point of a topology.
// Each entry point gets its own worker, paced independently — a slow or
// failing entry point never throttles the others.
type LoadGenerator struct {
	pool *client.Pool
}

// NewLoadGenerator builds a generator that dials targets through pool.
func NewLoadGenerator(pool *client.Pool) *LoadGenerator {
	return &LoadGenerator{pool: pool}
}

// Run spawns one worker per entry point and blocks until ctx is cancelled.
// A worker failure (a failed Call) is logged and does not stop the worker —
// it simply waits for the next tick.
func (g *LoadGenerator) Run(ctx context.Context, entryPoints []topology.EntryPoint) {
	var wg sync.WaitGroup
	for _, ep := range entryPoints {
		wg.Add(1)
		go func(ep topology.EntryPoint) {
			defer wg.Done()
			g.runWorker(ctx, ep)
		}(ep)
	}
	wg.Wait()
}

func (g *LoadGenerator) runWorker(ctx context.Context, ep topology.EntryPoint) {
	limiter := rate.NewLimiter(rate.Limit(ep.RequestsPerSecond), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return // ctx cancelled
		}

		if _, err := g.pool.Call(ep.Service, ep.Method); err != nil {
			log.Warn().
				Str("service", ep.Service).
				Str("method", ep.Method).
				Err(err).
				Msg("entry point request failed")
		}
	}
}
