package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/pkg/logging"
)

// Mode selects how FanOut schedules per-target calls.
type Mode string

const (
	ModeParallel   Mode = "parallel"
	ModeSequential Mode = "sequential"
)

// ParseMode maps "parallel"/"sequential" to a Mode; empty means parallel.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeParallel:
		return ModeParallel, true
	case ModeSequential:
		return ModeSequential, true
	default:
		return "", false
	}
}

// TargetFunc performs the operation against one target.
type TargetFunc func(ctx context.Context, req *Request, target string) (*api.Envelope, error)

// BatchResult aggregates the per-target envelopes of a FanOut.
type BatchResult struct {
	PerTarget  map[string]*api.Envelope
	Targets    []string
	Total      int
	Successful int
	Failed     int
	Mode       Mode
}

// MarshalJSON renders the batch using the wire names of the tool contract.
func (b *BatchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"per_target":       b.PerTarget,
		"targets":          b.Targets,
		"total":            b.Total,
		"successful_count": b.Successful,
		"failed_count":     b.Failed,
		"execution_mode":   b.Mode,
	})
}

// FanOut runs fn once per target. The request must already carry a resolved
// credential, so the batch shares one credential lookup.
//
// Parallel mode joins all targets; one target's failure never cancels
// another. Sequential mode runs in order and keeps going after failures.
// Errors and panics become that target's error envelope.
func (p *Pipeline) FanOut(ctx context.Context, req *Request, targets []string, mode Mode, fn TargetFunc) *BatchResult {
	targets = dedupe(targets)
	results := make([]*api.Envelope, len(targets))

	runOne := func(i int) {
		results[i] = p.runTarget(ctx, req, targets[i], fn)
	}

	if mode == ModeSequential {
		for i := range targets {
			runOne(i)
		}
	} else {
		mode = ModeParallel
		var g errgroup.Group
		for i := range targets {
			g.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	batch := &BatchResult{
		PerTarget: make(map[string]*api.Envelope, len(targets)),
		Targets:   targets,
		Total:     len(targets),
		Mode:      mode,
	}
	for i, t := range targets {
		env := results[i]
		batch.PerTarget[t] = env
		if env.IsSuccess() {
			batch.Successful++
		} else {
			batch.Failed++
		}
		p.metrics.RecordFanOutTarget(string(mode), string(env.Status))
	}
	return batch
}

func (p *Pipeline) runTarget(ctx context.Context, req *Request, target string, fn TargetFunc) (env *api.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logging.Error("FanOut", err, "%s panicked for target %s", req.Operation, target)
			env = NormalizeError(req.Operation, err)
		}
		if env != nil {
			env.With("target", target)
		}
	}()

	env, err := fn(ctx, req, target)
	if err != nil {
		logging.Warn("FanOut", "%s failed for target %s: %v", req.Operation, target, err)
		return NormalizeError(req.Operation, err)
	}
	if env == nil {
		env = api.Success(nil)
	}
	return env
}
