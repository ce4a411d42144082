package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/uber-go/tally/v4"

	"github.com/roach88/flowrt/internal/flow"
	"github.com/roach88/flowrt/internal/ir"
	"github.com/roach88/flowrt/internal/store"
	"github.com/roach88/flowrt/internal/trace"
)

// Harness runs scenarios. A Harness holds no per-run state and may run many
// scenarios, one at a time or concurrently.
type Harness struct {
	logger  *slog.Logger
	tokens  trace.TokenGenerator
	store   *store.Store
	metrics tally.Scope
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger for the harness and the run loops it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithTokens sets the flow token generator. Use a fixed generator for golden
// comparison.
func WithTokens(gen trace.TokenGenerator) Option {
	return func(h *Harness) {
		h.tokens = gen
	}
}

// WithStore persists every run and its trace to st.
func WithStore(st *store.Store) Option {
	return func(h *Harness) {
		h.store = st
	}
}

// WithMetrics reports run loop metrics to scope.
func WithMetrics(scope tally.Scope) Option {
	return func(h *Harness) {
		h.metrics = scope
	}
}

// New creates a harness. Defaults: slog.Default, UUIDv7 flow tokens, no
// store, no metrics.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:  slog.Default(),
		tokens:  trace.UUIDv7Generator{},
		metrics: tally.NoopScope,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with default options.
func Run(s *ir.Scenario) (*Result, error) {
	return New().Run(context.Background(), s)
}

// Run executes a scenario and returns the result.
//
// The returned error covers invalid scenarios, cancellation and store
// failures. Unmet expectations are reported in Result.Errors.
func (h *Harness) Run(ctx context.Context, s *ir.Scenario) (*Result, error) {
	if err := ValidateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	flowToken := h.tokens.Generate()
	logger := h.logger.With("scenario", s.Name, "flow_token", flowToken)

	loop := flow.NewRunLoop(
		flow.WithID("scenario:"+s.Name),
		flow.WithLogger(logger),
		flow.WithMetrics(h.metrics),
	)
	defer loop.Dispose()

	x := &execution{
		scenario: s,
		loop:     loop,
		log:      trace.NewLog(),
		logger:   logger,
		result:   NewResult(s.Name, flowToken),
		sources:  make(map[string]flow.Observable[ir.Value]),
		ucasts:   make(map[string]*flow.Ucast[ir.Value]),
		mcasts:   make(map[string]*flow.Multicaster[ir.Value]),
		merges:   make(map[string]*flow.Merge[ir.Value]),
		probes:   make(map[string]*flow.Probe[ir.Value]),
		subs:     make(map[string]flow.Subscription),
	}

	if err := x.build(); err != nil {
		return nil, err
	}
	if err := x.steps(ctx); err != nil {
		return nil, err
	}
	x.check()

	result := x.result
	result.Trace = x.log.Events()

	logger.Info("scenario finished",
		"pass", result.Pass,
		"events", len(result.Trace),
		"failures", len(result.Errors),
	)

	if h.store != nil {
		if err := h.persist(ctx, s, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (h *Harness) persist(ctx context.Context, s *ir.Scenario, result *Result) error {
	hash, err := ir.ScenarioHash(s)
	if err != nil {
		return fmt.Errorf("hash scenario %q: %w", s.Name, err)
	}

	run := store.Run{
		FlowToken:     result.FlowToken,
		Scenario:      s.Name,
		ScenarioHash:  hash,
		Passed:        result.Pass,
		Failures:      result.Errors,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if err := h.store.WriteRun(ctx, run, result.Trace); err != nil {
		return fmt.Errorf("persist run %q: %w", s.Name, err)
	}
	return nil
}

// execution is the state of one scenario run. It lives on the run loop's
// goroutine, which is the goroutine calling Harness.Run.
type execution struct {
	scenario *ir.Scenario
	loop     *flow.RunLoop
	log      *trace.Log
	logger   *slog.Logger
	result   *Result

	sources map[string]flow.Observable[ir.Value]
	ucasts  map[string]*flow.Ucast[ir.Value]
	mcasts  map[string]*flow.Multicaster[ir.Value]
	merges  map[string]*flow.Merge[ir.Value]

	probes map[string]*flow.Probe[ir.Value]
	subs   map[string]flow.Subscription
}

// build creates the declared operators in declaration order.
func (x *execution) build() error {
	for _, spec := range x.scenario.Operators {
		src, err := x.newOperator(spec)
		if err != nil {
			return fmt.Errorf("operator %q: %w", spec.Name, err)
		}
		x.sources[spec.Name] = src
	}
	return nil
}

func (x *execution) newOperator(spec ir.OperatorSpec) (flow.Observable[ir.Value], error) {
	switch spec.Kind {
	case ir.KindUcast:
		u := flow.NewUcast[ir.Value](x.loop)
		x.ucasts[spec.Name] = u
		return u, nil

	case ir.KindMulticaster:
		m := flow.NewMulticaster[ir.Value](x.loop)
		x.mcasts[spec.Name] = m
		return m, nil

	case ir.KindMerge:
		inputs := make([]flow.Observable[ir.Value], len(spec.Sources))
		for i, name := range spec.Sources {
			inputs[i] = x.sources[name]
		}
		var m *flow.Merge[ir.Value]
		if spec.Sealed {
			m = flow.Merged(x.loop, inputs...)
		} else {
			m = flow.NewMerge(x.loop, inputs...)
		}
		x.merges[spec.Name] = m
		return m, nil

	case ir.KindJust:
		items, err := ir.FromAnyList(spec.Items)
		if err != nil {
			return nil, err
		}
		return flow.Just(x.loop, items...), nil

	case ir.KindRange:
		return flow.RangeOf(x.loop, int(spec.Start), int(spec.Count), func(i int) ir.Value {
			return ir.Int(i)
		}), nil

	case ir.KindEmpty:
		return flow.Empty[ir.Value](x.loop), nil

	case ir.KindFail:
		failure, err := parseError(spec.Error)
		if err != nil {
			return nil, err
		}
		return flow.Fail[ir.Value](x.loop, failure), nil

	default:
		return nil, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}

// steps runs every step, draining the loop after each one unless the
// scenario is manual.
func (x *execution) steps(ctx context.Context) error {
	for i, step := range x.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if err := x.step(i, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		if !x.scenario.Manual {
			x.loop.Drain()
		}
		x.logger.Debug("step done",
			"step", i,
			"op", step.Op,
			"target", step.Target,
			"observer", step.Observer,
			"pending", x.loop.Pending(),
		)
	}
	return nil
}

func (x *execution) step(i int, step ir.Step) error {
	switch step.Op {
	case ir.OpPush:
		items, err := ir.FromAnyList(step.Items)
		if err != nil {
			return err
		}
		if u, ok := x.ucasts[step.Target]; ok {
			for _, item := range items {
				u.Push(item)
			}
			return nil
		}
		x.mcasts[step.Target].Push(items...)

	case ir.OpClose:
		if u, ok := x.ucasts[step.Target]; ok {
			u.Close()
			return nil
		}
		x.mcasts[step.Target].Close()

	case ir.OpAbort:
		failure, err := parseError(step.Error)
		if err != nil {
			return err
		}
		if u, ok := x.ucasts[step.Target]; ok {
			u.Abort(failure)
			return nil
		}
		x.mcasts[step.Target].Abort(failure)

	case ir.OpSubscribe:
		policy, _ := flow.ParseProbePolicy(step.Policy)
		probe := flow.NewProbe[ir.Value](policy)
		x.probes[step.Observer] = probe
		rec := trace.NewRecorder[ir.Value](x.log, step.Observer, probe, ir.Format)
		x.subs[step.Observer] = x.sources[step.Target].Subscribe(rec)

	case ir.OpRequest:
		n := int(step.N)
		if step.Unbounded {
			n = flow.Unbounded
		}
		x.subs[step.Observer].Request(n)

	case ir.OpDispose:
		x.subs[step.Observer].Dispose()
		x.probes[step.Observer].Dispose()

	case ir.OpAdd:
		m := x.merges[step.Target]
		if !m.Add(x.sources[step.Source]) {
			reason := "merge has failed"
			if m.Sealed() {
				reason = "merge is sealed"
			}
			x.result.AddError(fmt.Sprintf("step %d: add %q to merge %q: %s", i, step.Source, step.Target, reason))
		}

	case ir.OpSeal:
		x.merges[step.Target].Seal()

	case ir.OpRun:
		x.loop.Drain()
	}
	return nil
}

// check evaluates the expectations and the protocol rules every probe must
// satisfy.
func (x *execution) check() {
	for _, name := range slices.Sorted(maps.Keys(x.probes)) {
		probe := x.probes[name]
		if probe.Terminals > 1 {
			x.result.AddError(fmt.Sprintf("observer %q: %d terminal events", name, probe.Terminals))
		}
		if probe.Late > 0 {
			x.result.AddError(fmt.Sprintf("observer %q: %d events after terminal or dispose", name, probe.Late))
		}
	}

	for _, exp := range x.scenario.Expect {
		if exp.Events != nil {
			actual := x.log.Signals(exp.Observer)
			if !slices.Equal(actual, exp.Events) {
				x.result.AddError(fmt.Sprintf("observer %q: events\n  expected: %v\n  actual: %v",
					exp.Observer, exp.Events, actual))
			}
		}
		if exp.Disposed != nil {
			if actual := x.subs[exp.Observer].Disposed(); actual != *exp.Disposed {
				x.result.AddError(fmt.Sprintf("observer %q: disposed = %t, expected %t",
					exp.Observer, actual, *exp.Disposed))
			}
		}
		if exp.State != "" {
			if actual := x.probes[exp.Observer].State().String(); actual != exp.State {
				x.result.AddError(fmt.Sprintf("observer %q: state = %s, expected %s",
					exp.Observer, actual, exp.State))
			}
		}
	}
}

// parseError turns "domain:code[: message]" into a *flow.Error.
func parseError(s string) (*flow.Error, error) {
	spec, err := ir.ParseErrorSpec(s)
	if err != nil {
		return nil, err
	}
	return flow.NewError(spec.Domain, spec.Code, spec.Message), nil
}
