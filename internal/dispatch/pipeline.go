package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/internal/metrics"
	"alpacon-mcp/internal/validation"
	"alpacon-mcp/pkg/logging"
)

// CredentialSource resolves a stored credential. *credentials.Store
// satisfies it.
type CredentialSource interface {
	Get(region, workspace string) (credentials.Credential, bool)
}

// InvokeFunc performs the operation once all stages have passed. It returns
// either a result envelope or an error that the pipeline normalizes.
type InvokeFunc func(ctx context.Context, req *Request) (*api.Envelope, error)

// Options configures a Pipeline.
type Options struct {
	// Regions is the allowed region set (default: validation.KnownRegions).
	Regions []string
	// DefaultRegion applies when a call omits region (default: ap1).
	DefaultRegion string
	Metrics       *metrics.Metrics
}

// Pipeline applies the same ordered stages to every operation:
// region, workspace, identifiers, identifier lists, paths, required
// arguments, operation validators, credential. Only then is the handler
// invoked, and every outcome leaves as an envelope.
type Pipeline struct {
	store         CredentialSource
	regions       []string
	defaultRegion string
	metrics       *metrics.Metrics
}

// New creates a Pipeline backed by store.
func New(store CredentialSource, opts Options) *Pipeline {
	p := &Pipeline{
		store:         store,
		regions:       opts.Regions,
		defaultRegion: opts.DefaultRegion,
		metrics:       opts.Metrics,
	}
	if len(p.regions) == 0 {
		p.regions = validation.KnownRegions
	}
	if p.defaultRegion == "" {
		p.defaultRegion = validation.DefaultRegion
	}
	return p
}

// Metrics returns the metrics sink used by the pipeline (may be nil).
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Stages returns the ordered validation and credential stages for op.
func (p *Pipeline) Stages(op Operation) []Stage {
	stages := []Stage{p.regionStage}
	if !op.RegionOnly {
		stages = append(stages, workspaceStage)
	}
	if len(op.Identifiers) > 0 {
		stages = append(stages, identifierStage(op.Identifiers))
	}
	if len(op.IdentifierLists) > 0 {
		stages = append(stages, identifierListStage(op.IdentifierLists))
	}
	if len(op.Paths) > 0 {
		stages = append(stages, pathStage(op.Paths))
	}
	if len(op.Required) > 0 {
		stages = append(stages, requiredStage(op.Required))
	}
	stages = append(stages, op.Validators...)
	if !op.Local && !op.RegionOnly {
		stages = append(stages, p.credentialStage)
	}
	return stages
}

// Wrap binds op and invoke into a reusable handler.
func (p *Pipeline) Wrap(op Operation, invoke InvokeFunc) func(ctx context.Context, args map[string]interface{}) *api.Envelope {
	stages := p.Stages(op)
	return func(ctx context.Context, args map[string]interface{}) *api.Envelope {
		return p.run(ctx, op, stages, args, invoke)
	}
}

// Execute runs op once against args.
func (p *Pipeline) Execute(ctx context.Context, op Operation, args map[string]interface{}, invoke InvokeFunc) *api.Envelope {
	return p.run(ctx, op, p.Stages(op), args, invoke)
}

func (p *Pipeline) run(ctx context.Context, op Operation, stages []Stage, args map[string]interface{}, invoke InvokeFunc) *api.Envelope {
	start := time.Now()
	if args == nil {
		args = map[string]interface{}{}
	}
	req := &Request{
		Operation:       op.Name,
		Args:            Args(args),
		Identifiers:     map[string]string{},
		IdentifierLists: map[string][]string{},
	}

	logging.Info("Dispatch", "%s called with: %v", op.Name, logging.RedactArgs(args))

	env := p.process(ctx, op, req, stages, invoke)

	p.metrics.RecordToolCall(op.Name, string(env.Status), time.Since(start))
	switch env.Status {
	case api.StatusSuccess:
		logging.Info("Dispatch", "%s completed successfully", op.Name)
	case api.StatusTimeout:
		logging.Warn("Dispatch", "%s timed out for %s.%s", op.Name, req.Workspace, req.Region)
	default:
		logging.Debug("Dispatch", "%s returned error: %s", op.Name, env.Message)
	}
	return env
}

// process runs the stages and then the handler. A panic in either becomes
// an error envelope.
func (p *Pipeline) process(ctx context.Context, op Operation, req *Request, stages []Stage, invoke InvokeFunc) (env *api.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logging.Error("Dispatch", err, "%s panicked for %s.%s\n%s", op.Name, req.Workspace, req.Region, debug.Stack())
			env = NormalizeError(op.Name, err).
				With("workspace", req.Workspace).
				With("region", req.Region)
		}
	}()

	if env := p.runStages(ctx, req, stages); env != nil {
		return env
	}
	return p.invoke(ctx, op, req, invoke)
}

func (p *Pipeline) runStages(ctx context.Context, req *Request, stages []Stage) *api.Envelope {
	for _, stage := range stages {
		if env := stage(ctx, req); env != nil {
			return env
		}
	}
	return nil
}

// invoke calls the handler, converting errors into envelopes, and echoes
// the call context.
func (p *Pipeline) invoke(ctx context.Context, op Operation, req *Request, invoke InvokeFunc) *api.Envelope {
	result, err := invoke(ctx, req)
	if err != nil {
		logging.Error("Dispatch", err, "%s failed for %s.%s", op.Name, req.Workspace, req.Region)
		return NormalizeError(op.Name, err).
			With("workspace", req.Workspace).
			With("region", req.Region)
	}
	if result == nil {
		result = api.Success(nil)
	}
	if result.Status == api.StatusSuccess {
		echoContext(result, op, req)
	} else {
		result.With("workspace", req.Workspace).With("region", req.Region)
	}
	return result
}

// echoContext merges region, workspace, identifiers and echo arguments into
// a success envelope without overwriting fields the handler already set.
func echoContext(env *api.Envelope, op Operation, req *Request) {
	ctx := map[string]interface{}{"region": req.Region}
	if req.Workspace != "" {
		ctx["workspace"] = req.Workspace
	}
	for k, v := range req.Identifiers {
		ctx[k] = v
	}
	for _, name := range op.Echo {
		if req.Args.Has(name) {
			ctx[name] = req.Args[name]
		}
	}
	env.WithAll(ctx)
}
