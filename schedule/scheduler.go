// Package schedule runs one route's subrequest graph to completion,
// implementing the wave-based parallel mode and the declared-order
// sequential mode described in spec.md §4.4.
package schedule

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/gatewayd/adapters/clock"
	"github.com/artpar/gatewayd/client"
	"github.com/artpar/gatewayd/condition"
	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/value"
)

// Registry is the subset of client.Registry the scheduler needs —
// narrowed to an interface so tests can substitute fake clients without
// constructing a real client.Registry.
type Registry interface {
	Get(id string) (client.Client, bool)
}

var _ Registry = (*client.Registry)(nil)

// Metrics is the subset of metrics.Collector the scheduler instruments,
// narrowed so tests don't need a real Prometheus registry.
type Metrics interface {
	ObserveSubrequest(clientID, kind, outcome string, seconds float64)
}

// Clock abstracts time so subrequest-duration metrics can be tested with
// clock.Fake instead of a real wall clock.
type Clock interface {
	Now() time.Time
}

var _ Clock = clock.Real{}

// Scheduler executes a RouteSpec's subrequests against a Registry.
type Scheduler struct {
	registry Registry
	metrics  Metrics
	clock    Clock
}

// New builds a Scheduler bound to registry.
func New(registry Registry) *Scheduler {
	return &Scheduler{registry: registry, clock: clock.Real{}}
}

// NewWithMetrics builds a Scheduler that also records per-subrequest
// outcome and duration, mirroring app.NewGatewayServiceWithMetrics.
func NewWithMetrics(registry Registry, m Metrics) *Scheduler {
	return &Scheduler{registry: registry, metrics: m, clock: clock.Real{}}
}

// Run executes route's subrequests (in the mode route declares) against
// req, returning the AggregateResult Value described in spec.md §4.4:
// `{ subrequests: [...], subrequests_by_name: {...}, count }`.
func (s *Scheduler) Run(ctx context.Context, route gateway.RouteSpec, req gateway.IncomingRequest) (value.Value, error) {
	gctx := gateway.NewContext(req)

	if route.ExecutionMode == gateway.ExecutionSequential {
		return s.runSequential(ctx, route, gctx)
	}
	return s.runParallel(ctx, route, gctx)
}

func (s *Scheduler) runSequential(ctx context.Context, route gateway.RouteSpec, gctx *gateway.Context) (value.Value, error) {
	ordered := make([]value.Value, len(route.Subrequests))

	for i, spec := range route.Subrequests {
		if !condition.Evaluate(spec.Condition, gctx) {
			v := gateway.Skipped()
			ordered[i] = v
			gctx.SetSubrequestResult(spec.Name, v)
			continue
		}

		v, err := s.execute(ctx, spec, gctx)
		if err != nil {
			return value.Value{}, err
		}
		ordered[i] = v
		gctx.SetSubrequestResult(spec.Name, v)
	}

	return aggregate(route.Subrequests, ordered), nil
}

func (s *Scheduler) runParallel(ctx context.Context, route gateway.RouteSpec, gctx *gateway.Context) (value.Value, error) {
	n := len(route.Subrequests)
	ordered := make([]value.Value, n)
	processed := make([]bool, n)
	indegree := make([]int, n)

	nameToIdx := make(map[string]int, n)
	for i, spec := range route.Subrequests {
		if spec.Name != "" {
			nameToIdx[spec.Name] = i
		}
	}

	adjacency := make([][]int, n)
	for i, spec := range route.Subrequests {
		indegree[i] = len(spec.DependsOn)
		for _, dep := range spec.DependsOn {
			depIdx, ok := nameToIdx[dep]
			if !ok {
				continue // load-time validation guarantees this never happens
			}
			adjacency[depIdx] = append(adjacency[depIdx], i)
		}
	}

	pending := n
	for pending > 0 {
		var wave []int
		for i := 0; i < n; i++ {
			if !processed[i] && indegree[i] == 0 {
				wave = append(wave, i)
			}
		}
		if len(wave) == 0 {
			break // unreachable when the graph was validated acyclic at load time
		}

		waveCtx := gctx // pinned: siblings in this wave never see each other's results

		var toRun []int
		for _, idx := range wave {
			spec := route.Subrequests[idx]
			if !condition.Evaluate(spec.Condition, waveCtx) {
				ordered[idx] = gateway.Skipped()
				continue
			}
			toRun = append(toRun, idx)
		}

		errs := make([]error, len(toRun))
		vals := make([]value.Value, len(toRun))
		var g errgroup.Group
		for pos, idx := range toRun {
			pos, idx := pos, idx
			spec := route.Subrequests[idx]
			g.Go(func() error {
				v, err := s.execute(ctx, spec, waveCtx)
				vals[pos] = v
				errs[pos] = err
				return nil // errors are collected manually so siblings always finish
			})
		}
		_ = g.Wait()

		firstErrPos := -1
		for pos, err := range errs {
			if err != nil && (firstErrPos == -1 || toRun[pos] < toRun[firstErrPos]) {
				firstErrPos = pos
			}
		}
		if firstErrPos != -1 {
			return value.Value{}, errs[firstErrPos]
		}

		for pos, idx := range toRun {
			ordered[idx] = vals[pos]
		}

		for _, idx := range wave {
			processed[idx] = true
			spec := route.Subrequests[idx]
			gctx.SetSubrequestResult(spec.Name, ordered[idx])
			for _, dep := range adjacency[idx] {
				indegree[dep]--
			}
		}
		pending -= len(wave)
	}

	return aggregate(route.Subrequests, ordered), nil
}

func (s *Scheduler) execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error) {
	start := s.clock.Now()
	cli, ok := s.registry.Get(spec.ClientID)
	if !ok {
		err := gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, spec.ClientID, spec.Name, "client not registered")
		s.observe(spec, start, err)
		return value.Value{}, err
	}
	v, err := cli.Execute(ctx, spec, gctx)
	s.observe(spec, start, err)
	return v, err
}

func (s *Scheduler) observe(spec gateway.SubrequestSpec, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveSubrequest(spec.ClientID, string(spec.Type), outcome, s.clock.Now().Sub(start).Seconds())
}

// aggregate builds the `{subrequests, subrequests_by_name, count}`
// AggregateResult Value, in declared order regardless of completion
// order (spec.md §5).
func aggregate(specs []gateway.SubrequestSpec, ordered []value.Value) value.Value {
	byName := value.NewObject()
	for i, spec := range specs {
		if spec.Name != "" {
			byName.Set(spec.Name, ordered[i])
		}
	}

	out := value.NewObject()
	out.Set("subrequests", value.Array(ordered))
	out.Set("subrequests_by_name", value.FromObject(byName))
	out.Set("count", value.Integer(int64(len(specs))))
	return value.FromObject(out)
}
