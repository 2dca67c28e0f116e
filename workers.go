package td2d

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/gramaziokohler/td2d/internal/detection"
)

// errNotRun marks candidates skipped because the run was cancelled.
var errNotRun = errors.New("candidate not processed")

// outcome is the result of one candidate.
type outcome struct {
	index int
	det   *Detection
	err   error
}

// process runs every candidate on a bounded pool of workers and returns the
// outcomes indexed by candidate. Each worker gets its own timeout. On
// cancellation no new candidates start and the outcomes of those never run
// carry errNotRun.
//
// A worker gives up on its candidate as soon as the candidate's context
// ends, so a stage that ignores cancellation cannot hold up the run. The
// abandoned candidate finishes in the background and its result is
// discarded.
func (d *Detector) process(ctx context.Context, r *run, cands []detection.Candidate) []outcome {
	out := make([]outcome, len(cands))
	for i := range out {
		out[i] = outcome{index: i, err: errNotRun}
	}
	if len(cands) == 0 {
		return out
	}

	workers := d.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := make(chan struct{}, workers)
	results := make(chan outcome, len(cands))
	var wg sync.WaitGroup

dispatch:
	for i := range cands {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(c *detection.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- d.attempt(ctx, r, c)
		}(&cands[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single writer.
	for o := range results {
		out[o.index] = o
	}
	return out
}

// attempt runs one candidate under its timeout.
func (d *Detector) attempt(ctx context.Context, r *run, c *detection.Candidate) outcome {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if d.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	begin := time.Now()
	done := make(chan outcome, 1)
	go func() {
		det, err := d.candidate(cctx, r, c)
		done <- outcome{index: c.Index, det: det, err: err}
	}()

	select {
	case o := <-done:
		// A candidate that finished past its budget counts as timed out.
		if o.err == nil && d.timeout > 0 && time.Since(begin) > d.timeout {
			o.det, o.err = nil, context.DeadlineExceeded
		}
		return o
	case <-cctx.Done():
		return outcome{index: c.Index, err: cctx.Err()}
	}
}
