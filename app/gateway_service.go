// Package app ties the route matcher, scheduler and transformer into the
// single request-handling operation described in spec.md §4.6: match,
// schedule, transform, serialize.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/adapters/clock"
	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/domain/route"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/schedule"
	"github.com/artpar/gatewayd/transform"
	"github.com/artpar/gatewayd/value"
)

// RouteMetrics is the subset of metrics.Collector GatewayService
// instruments, narrowed so tests don't need a real Prometheus registry.
type RouteMetrics interface {
	ObserveRoute(method, pathPattern string, status int, seconds float64)
}

// Scheduler is the subset of schedule.Scheduler GatewayService depends on,
// narrowed so tests can substitute a fake without a real client.Registry.
type Scheduler interface {
	Run(ctx context.Context, route gateway.RouteSpec, req gateway.IncomingRequest) (value.Value, error)
}

var _ Scheduler = (*schedule.Scheduler)(nil)

// Clock abstracts the time source for route-latency metrics. Both
// constructors set clock.Real{}; neither accepts another Clock.
type Clock interface {
	Now() time.Time
}

var _ Clock = clock.Real{}

// GatewayService handles one matched request end to end, mirroring the
// teacher's ProxyService.Handle orchestration role.
type GatewayService struct {
	matcher   *route.Matcher
	scheduler Scheduler
	log       zerolog.Logger
	metrics   RouteMetrics
	clock     Clock
}

// NewGatewayService builds a GatewayService bound to matcher and scheduler.
func NewGatewayService(matcher *route.Matcher, scheduler Scheduler, log zerolog.Logger) *GatewayService {
	return &GatewayService{matcher: matcher, scheduler: scheduler, log: log, clock: clock.Real{}}
}

// NewGatewayServiceWithMetrics builds a GatewayService that also records
// per-route latency and outcome, mirroring the teacher's
// NewProxyHandlerWithMetrics constructor variant.
func NewGatewayServiceWithMetrics(matcher *route.Matcher, scheduler Scheduler, log zerolog.Logger, m RouteMetrics) *GatewayService {
	return &GatewayService{matcher: matcher, scheduler: scheduler, log: log, metrics: m, clock: clock.Real{}}
}

// ServeHTTP implements http.Handler: match -> schedule -> transform ->
// serialize, per spec.md §4.6.
func (g *GatewayService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := g.clock.Now()

	match, pathMatchedElsewhere := g.matcher.Match(r.Method, r.Host, r.URL.Path)
	if match == nil {
		if pathMatchedElsewhere {
			g.finish(w, r.Method, "", http.StatusMethodNotAllowed, start, &gatewayerr.MethodNotAllowedError{Path: r.URL.Path, Method: r.Method})
		} else {
			g.finish(w, r.Method, "", http.StatusNotFound, start, &gatewayerr.NotFoundError{Path: r.URL.Path})
		}
		return
	}

	req, err := toIncomingRequest(r, match.PathParams)
	if err != nil {
		g.finish(w, r.Method, match.Route.PathPattern, gatewayerr.StatusFor(err), start, err)
		return
	}

	aggregate, err := g.scheduler.Run(ctx, *match.Route, req)
	if err != nil {
		g.log.Warn().Err(err).Str("path", r.URL.Path).Msg("subrequest execution failed")
		g.finish(w, r.Method, match.Route.PathPattern, gatewayerr.StatusFor(err), start, err)
		return
	}

	result, err := transform.Apply(match.Route.ResponseTransform, aggregate)
	if err != nil {
		g.finish(w, r.Method, match.Route.PathPattern, gatewayerr.StatusFor(err), start, err)
		return
	}

	writeValue(w, http.StatusOK, result)
	g.observe(r.Method, match.Route.PathPattern, http.StatusOK, start)
}

// finish writes the error envelope and records metrics for a request that
// never reached a successful response.
func (g *GatewayService) finish(w http.ResponseWriter, method, pathPattern string, status int, start time.Time, err error) {
	writeError(w, err)
	g.observe(method, pathPattern, status, start)
}

func (g *GatewayService) observe(method, pathPattern string, status int, start time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.ObserveRoute(method, pathPattern, status, g.clock.Now().Sub(start).Seconds())
}

func toIncomingRequest(r *http.Request, pathParams map[string]string) (gateway.IncomingRequest, error) {
	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[strings.ToLower(k)] = vs[len(vs)-1]
		}
	}

	body, err := readBody(r)
	if err != nil {
		return gateway.IncomingRequest{}, err
	}

	return gateway.IncomingRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		PathParams:  pathParams,
		QueryParams: query,
		Headers:     headers,
		Body:        body,
	}, nil
}

// readBody implements spec.md §3's body rule: parsed as JSON when
// Content-Type is JSON, otherwise the raw body as a String. A request
// with no body resolves to Null. r.ContentLength alone can't gate this
// (-1 for chunked/unknown-length requests that still carry a body), so
// the body is always read fully.
func readBody(r *http.Request) (value.Value, error) {
	if r.Body == nil {
		return value.Null(), nil
	}
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return value.Value{}, fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return value.Null(), nil
	}

	if isJSONContentType(r.Header.Get("Content-Type")) {
		parsed, err := value.ParseJSON(data)
		if err != nil {
			return value.Value{}, &gatewayerr.InterpolationError{Message: fmt.Sprintf("malformed JSON body: %s", err)}
		}
		return parsed, nil
	}
	return value.String(string(data)), nil
}

// isJSONContentType reports whether contentType names a JSON media type,
// ignoring parameters (e.g. "application/json; charset=utf-8") and
// accepting "+json" structured syntax suffixes (e.g. "application/merge-patch+json").
func isJSONContentType(contentType string) bool {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// writeValue serializes v as the response body with status code.
func writeValue(w http.ResponseWriter, status int, v value.Value) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = value.WriteJSON(w, v)
}

// writeError serializes err as the §7 error envelope:
// { "error", "kind", "client_id"?, "subrequest"? }.
func writeError(w http.ResponseWriter, err error) {
	out := value.NewObject()
	out.Set("error", value.String(err.Error()))
	out.Set("kind", value.String(string(gatewayerr.KindOf(err))))

	if se, ok := err.(*gatewayerr.SubrequestError); ok {
		if se.ClientID != "" {
			out.Set("client_id", value.String(se.ClientID))
		}
		if se.SubrequestID != "" {
			out.Set("subrequest", value.String(se.SubrequestID))
		}
	}

	writeValue(w, gatewayerr.StatusFor(err), value.FromObject(out))
}
