package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/metrics"
	"alpacon-mcp/internal/remote"
)

var multiOp = Operation{
	Name:            "execute_command_multi_server",
	IdentifierLists: []ListRule{{Field: "server_ids", Required: true, NonEmpty: true}},
	Required:        []string{"command"},
}

func fanOutInvoke(p *Pipeline, mode Mode, fn TargetFunc) InvokeFunc {
	return func(ctx context.Context, req *Request) (*api.Envelope, error) {
		return api.Success(p.FanOut(ctx, req, req.IdentifierLists["server_ids"], mode, fn)), nil
	}
}

func TestFanOut_PartialFailure(t *testing.T) {
	for _, mode := range []Mode{ModeParallel, ModeSequential} {
		t.Run(string(mode), func(t *testing.T) {
			p := newPipeline()
			fn := func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
				assert.Equal(t, testToken, req.Token)
				if target == validID2 {
					return nil, &remote.Error{Kind: remote.KindStatus, StatusCode: 500}
				}
				return api.Success(map[string]interface{}{"id": "cmd-" + target}), nil
			}

			env := p.Execute(context.Background(), multiOp, map[string]interface{}{
				"workspace":  "prod",
				"command":    "uptime",
				"server_ids": []interface{}{validID, validID2, validID3},
			}, fanOutInvoke(p, mode, fn))

			require.Equal(t, api.StatusSuccess, env.Status)
			batch := env.Data.(*BatchResult)
			assert.Equal(t, 3, batch.Total)
			assert.Equal(t, 2, batch.Successful)
			assert.Equal(t, 1, batch.Failed)
			assert.Equal(t, mode, batch.Mode)
			assert.Equal(t, api.StatusError, batch.PerTarget[validID2].Status)
			assert.Equal(t, api.StatusSuccess, batch.PerTarget[validID].Status)
			target, _ := batch.PerTarget[validID2].Get("target")
			assert.Equal(t, validID2, target)
		})
	}
}

func TestFanOut_AllFailedStillBatchSuccess(t *testing.T) {
	p := newPipeline()
	req := &Request{Operation: "op", Token: testToken}
	batch := p.FanOut(context.Background(), req, []string{validID, validID2}, ModeParallel,
		func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
			return nil, errors.New("nope")
		})
	assert.Equal(t, 2, batch.Failed)
	assert.Equal(t, 0, batch.Successful)
	assert.Equal(t, "Failed in op: nope", batch.PerTarget[validID].Message)
}

func TestFanOut_EmptyTargetsRejected(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32
	fn := func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
		calls.Add(1)
		return api.Success(nil), nil
	}

	for _, ids := range []interface{}{[]interface{}{}, nil, ""} {
		args := map[string]interface{}{"workspace": "prod", "command": "ls"}
		if ids != nil {
			args["server_ids"] = ids
		}
		env := p.Execute(context.Background(), multiOp, args, fanOutInvoke(p, ModeParallel, fn))
		assert.Equal(t, api.StatusError, env.Status)
		assert.Equal(t, "server_ids", env.Field)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestFanOut_MissingCredentialAbortsBatch(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32
	fn := func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
		calls.Add(1)
		return api.Success(nil), nil
	}

	env := p.Execute(context.Background(), multiOp, map[string]interface{}{
		"workspace":  "unknown",
		"command":    "ls",
		"server_ids": []interface{}{validID, validID2},
	}, fanOutInvoke(p, ModeParallel, fn))

	assert.Equal(t, api.StatusError, env.Status)
	assert.Contains(t, env.Message, "No token found for unknown.ap1")
	assert.Equal(t, int32(0), calls.Load())
}

func TestFanOut_PanicIsolatedPerTarget(t *testing.T) {
	p := newPipeline()
	req := &Request{Operation: "op"}
	batch := p.FanOut(context.Background(), req, []string{validID, validID2}, ModeSequential,
		func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
			if target == validID {
				panic("bad target")
			}
			return api.Success(nil), nil
		})
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, batch.Successful)
	assert.Contains(t, batch.PerTarget[validID].Message, "panic: bad target")
}

func TestFanOut_ParallelIsConcurrent(t *testing.T) {
	p := newPipeline()
	req := &Request{Operation: "op"}

	var wg sync.WaitGroup
	wg.Add(3)
	fn := func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
		wg.Done()
		// Every target waits for the others; only concurrent scheduling finishes.
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return api.Success(nil), nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("targets did not run concurrently")
		}
	}

	batch := p.FanOut(context.Background(), req, []string{validID, validID2, validID3}, ModeParallel, fn)
	assert.Equal(t, 3, batch.Successful)
}

func TestFanOut_SequentialOrderAndDedupe(t *testing.T) {
	p := newPipeline()
	req := &Request{Operation: "op"}

	var order []string
	batch := p.FanOut(context.Background(), req, []string{validID2, validID, validID2}, ModeSequential,
		func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
			order = append(order, target)
			return api.Success(nil), nil
		})

	assert.Equal(t, []string{validID2, validID}, order)
	assert.Equal(t, 2, batch.Total)
	assert.Len(t, batch.PerTarget, 2)
}

func TestFanOut_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	p := New(fakeStore{}, Options{Metrics: m})
	p.FanOut(context.Background(), &Request{Operation: "op"}, []string{validID}, ModeParallel,
		func(ctx context.Context, req *Request, target string) (*api.Envelope, error) {
			return api.Success(nil), nil
		})
	assert.Same(t, m, p.Metrics())
}

func TestBatchResultJSON(t *testing.T) {
	b := &BatchResult{
		PerTarget:  map[string]*api.Envelope{validID: api.Success("x")},
		Targets:    []string{validID},
		Total:      1,
		Successful: 1,
		Mode:       ModeParallel,
	}
	data, err := json.Marshal(b)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["total"])
	assert.EqualValues(t, 1, raw["successful_count"])
	assert.EqualValues(t, 0, raw["failed_count"])
	assert.Equal(t, "parallel", raw["execution_mode"])
	perTarget := raw["per_target"].(map[string]interface{})
	assert.Equal(t, "success", perTarget[validID].(map[string]interface{})["status"])
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeParallel, m)
	m, ok = ParseMode("sequential")
	assert.True(t, ok)
	assert.Equal(t, ModeSequential, m)
	_, ok = ParseMode("random")
	assert.False(t, ok)
}
