package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/forPelevin/topiccut/internal/domain/segments"
	"github.com/forPelevin/topiccut/internal/pkg/logger"
	"github.com/forPelevin/topiccut/internal/ports"
	"github.com/forPelevin/topiccut/internal/types"
)

var ErrEmptyOutput = errors.New("output file is empty")

// Renderer turns one render task into one clip file. Failures are reported
// in the result and never returned or panicked past Render.
type Renderer struct {
	tc      ports.Transcoder
	timeout time.Duration
	log     *logger.Logger
}

// NewRenderer builds a renderer. A zero timeout lets the transcoder run until it exits.
func NewRenderer(tc ports.Transcoder, timeout time.Duration, log *logger.Logger) *Renderer {
	if log == nil {
		log = logger.Nop()
	}
	return &Renderer{tc: tc, timeout: timeout, log: log.WithComponent("renderer")}
}

func (r *Renderer) Render(ctx context.Context, task types.RenderTask) (res types.RenderResult) {
	seg := task.Segment
	res = types.RenderResult{Index: seg.Index}
	log := r.log.FromContext(ctx).With(
		"index", seg.Index,
		"start_time", seg.StartTime,
		"end_time", seg.EndTime,
		"output", task.OutputPath,
	)

	defer func() {
		if p := recover(); p != nil {
			res = types.RenderResult{Index: seg.Index, Err: fmt.Errorf("render panic: %v", p)}
			log.Error("render failed", "error", res.Err.Error())
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now()
	log.Debug("render started")
	if err := r.tc.Cut(ctx, task.SourcePath, seg.StartTime, seg.EndTime, task.OutputPath); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("render timed out after %s: %w", r.timeout, err)
		}
		res.Err = err
		log.Error("render failed", "error", err.Error())
		return res
	}
	if err := checkOutput(task.OutputPath); err != nil {
		res.Err = err
		log.Error("render failed", "error", err.Error())
		return res
	}

	res.OK = true
	res.OutputPath = task.OutputPath
	res.Label = segments.Label(seg)
	log.Info("render completed", "duration_ms", time.Since(started).Milliseconds())
	return res
}

// checkOutput rejects missing and zero-byte files; both mean the encode did
// not produce a usable clip even if the process exited cleanly.
func checkOutput(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	if st.IsDir() {
		return fmt.Errorf("output %s is a directory", path)
	}
	if st.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyOutput)
	}
	return nil
}
