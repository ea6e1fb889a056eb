// Package route matches an incoming method/host/path against the
// configured RouteSpec list, per spec.md §4.6, extracting `:name`/`*name`
// path parameters. Patterns are rewritten into chi's `{name}`/`*` form and
// compiled and matched by chi's own router; this package adds the declaration-order/priority first-match-wins
// selection and the host-pattern matching that chi's trie doesn't model
// (spec.md only defines a single, host-agnostic route list; host
// matching and priority are SPEC_FULL.md supplemental features).
package route

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/gatewayd/domain/gateway"
)

// MatchResult is a successful match: the chosen route and its extracted
// path parameters.
type MatchResult struct {
	Route      *gateway.RouteSpec
	PathParams map[string]string
}

var noopHandler = func(http.ResponseWriter, *http.Request) {}

type compiledRoute struct {
	idx    int
	route  *gateway.RouteSpec
	method chi.Router // registered for exactly route.Method; gives param extraction
	path   chi.Router // registered for any method; used to detect 405 vs 404

	wildcard string // declared name of a trailing `*name` capture

	hostExact    string
	hostWildcard string
	hostRegex    *regexp.Regexp
}

// Matcher holds the compiled, priority-ordered route list.
type Matcher struct {
	routes []compiledRoute
}

// NewMatcher compiles specs into a Matcher. Routes are evaluated in
// priority-descending order, ties broken by declaration order.
func NewMatcher(specs []gateway.RouteSpec) (*Matcher, error) {
	compiled := make([]compiledRoute, len(specs))
	for i := range specs {
		cr := compiledRoute{idx: i, route: &specs[i]}
		if err := compileHostPattern(&cr, specs[i].HostPattern, specs[i].HostMatchType); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}

		method := strings.ToUpper(specs[i].Method)
		if method == "" {
			return nil, fmt.Errorf("route %d: method is required", i)
		}

		// chi spells a segment capture `{name}` and the catch-all `*`.
		segs := strings.Split(specs[i].PathPattern, "/")
		for k, s := range segs {
			if strings.HasPrefix(s, ":") {
				segs[k] = "{" + s[1:] + "}"
			} else if strings.HasPrefix(s, "*") {
				cr.wildcard, segs[k] = s[1:], "*"
			}
		}
		pattern := strings.Join(segs, "/")

		methodMux := chi.NewRouter()
		methodMux.MethodFunc(method, pattern, noopHandler)
		cr.method = methodMux

		pathMux := chi.NewRouter()
		pathMux.Handle(pattern, http.HandlerFunc(noopHandler))
		cr.path = pathMux

		compiled[i] = cr
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].route.Priority != compiled[j].route.Priority {
			return compiled[i].route.Priority > compiled[j].route.Priority
		}
		return compiled[i].idx < compiled[j].idx
	})

	return &Matcher{routes: compiled}, nil
}

// Match finds the first route (in priority/declaration order) whose host
// and method+path match. The second return reports whether some route's
// path matched on its host with a different method, letting the caller
// distinguish 404 (no path matched) from 405 (path matched, wrong method).
func (m *Matcher) Match(method, host, path string) (result *MatchResult, pathMatchedElsewhere bool) {
	method = strings.ToUpper(method)

	for i := range m.routes {
		cr := &m.routes[i]
		if !matchHost(cr, host) {
			continue
		}

		rctx := chi.NewRouteContext()
		if cr.method.Match(rctx, method, path) {
			params := make(map[string]string, len(rctx.URLParams.Keys))
			for k, key := range rctx.URLParams.Keys {
				if key == "*" {
					key = cr.wildcard
				}
				if k < len(rctx.URLParams.Values) {
					params[key] = rctx.URLParams.Values[k]
				}
			}
			return &MatchResult{Route: cr.route, PathParams: params}, false
		}

		pctx := chi.NewRouteContext()
		if cr.path.Match(pctx, method, path) {
			pathMatchedElsewhere = true
		}
	}

	return nil, pathMatchedElsewhere
}

// compileHostPattern mirrors the teacher's domain/route host-matching
// scheme (exact/wildcard/regex), adapted to gateway.HostMatchType.
func compileHostPattern(cr *compiledRoute, hostPattern string, hostMatchType gateway.HostMatchType) error {
	if hostPattern == "" {
		return nil
	}

	if hostMatchType == gateway.HostMatchNone {
		if strings.HasPrefix(hostPattern, "*.") {
			hostMatchType = gateway.HostMatchWildcard
		} else {
			hostMatchType = gateway.HostMatchExact
		}
	}

	switch hostMatchType {
	case gateway.HostMatchExact:
		cr.hostExact = strings.ToLower(hostPattern)

	case gateway.HostMatchWildcard:
		if !strings.HasPrefix(hostPattern, "*.") {
			return fmt.Errorf("invalid wildcard host pattern %q: must start with \"*.\"", hostPattern)
		}
		cr.hostWildcard = strings.ToLower(hostPattern[1:])

	case gateway.HostMatchRegex:
		regex, err := regexp.Compile("(?i)" + hostPattern)
		if err != nil {
			return err
		}
		cr.hostRegex = regex
	}

	return nil
}

func matchHost(cr *compiledRoute, host string) bool {
	if cr.hostExact == "" && cr.hostWildcard == "" && cr.hostRegex == nil {
		return true
	}

	host = normalizeHost(host)

	if cr.hostExact != "" {
		return host == cr.hostExact
	}

	if cr.hostWildcard != "" {
		if !strings.HasSuffix(host, cr.hostWildcard) {
			return false
		}
		prefix := host[:len(host)-len(cr.hostWildcard)]
		return prefix != "" && !strings.Contains(prefix, ".")
	}

	if cr.hostRegex != nil {
		return cr.hostRegex.MatchString(host)
	}

	return false
}

// normalizeHost strips the port and a trailing dot, and lowercases.
func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		if !strings.Contains(host, "]") || idx > strings.Index(host, "]") {
			host = host[:idx]
		}
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
