package render

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/topiccut/internal/pkg/logger"
	"github.com/forPelevin/topiccut/internal/types"
)

// Coordinator fans render tasks out to a bounded pool.
type Coordinator struct {
	r       *Renderer
	workers int
	log     *logger.Logger
}

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int { return runtime.NumCPU() }

func NewCoordinator(r *Renderer, workers int, log *logger.Logger) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{r: r, workers: workers, log: log.WithComponent("coordinator")}
}

func (c *Coordinator) Workers() int { return c.workers }

// Tasks builds one task per valid segment, in input order.
func Tasks(rc types.RunContext, vs []types.ValidatedSegment) []types.RenderTask {
	tasks := make([]types.RenderTask, 0, len(vs))
	for _, v := range vs {
		if !v.Valid {
			continue
		}
		tasks = append(tasks, types.RenderTask{
			Segment:    v,
			SourcePath: rc.SourcePath,
			OutputPath: rc.ClipPath(v.Index),
		})
	}
	return tasks
}

// RenderAll renders every valid segment and returns results in submission
// order. It always waits for every task; one failure does not stop the others.
func (c *Coordinator) RenderAll(ctx context.Context, rc types.RunContext, vs []types.ValidatedSegment) []types.RenderResult {
	tasks := Tasks(rc, vs)
	results := make([]types.RenderResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	log := c.log.FromContext(ctx)
	log.Info("dispatching render tasks", "tasks", len(tasks), "skipped", len(vs)-len(tasks), "workers", c.workers)

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = c.r.Render(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}
	log.Info("render tasks finished", "ok", len(results)-failed, "failed", failed)
	return results
}
