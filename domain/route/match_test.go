package route_test

import (
	"testing"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/domain/route"
)

func TestMatcherExactPath(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/api/users"},
		{Method: "GET", PathPattern: "/api/posts"},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, _ := m.Match("GET", "", "/api/users")
	if res == nil || res.Route.PathPattern != "/api/users" {
		t.Fatalf("expected /api/users match, got %#v", res)
	}

	res, pathMatched := m.Match("GET", "", "/api/unknown")
	if res != nil {
		t.Fatal("expected no match for unknown path")
	}
	if pathMatched {
		t.Fatal("expected pathMatched false for a path no route declares")
	}
}

func TestMatcherNamedSegmentCapture(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/users/:id"},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, _ := m.Match("GET", "", "/users/123")
	if res == nil {
		t.Fatal("expected match")
	}
	if res.PathParams["id"] != "123" {
		t.Fatalf("expected id=123, got %v", res.PathParams)
	}
}

func TestMatcherWildcardCapture(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/assets/*rest"},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, _ := m.Match("GET", "", "/assets/css/site.css")
	if res == nil {
		t.Fatal("expected match")
	}
	if res.PathParams["rest"] != "css/site.css" {
		t.Fatalf("expected rest=css/site.css, got %v", res.PathParams)
	}
}

func TestMatcherMethodMismatchReportsPathMatchedElsewhere(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/api/data"},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, pathMatched := m.Match("POST", "", "/api/data")
	if res != nil {
		t.Fatal("expected no match for wrong method")
	}
	if !pathMatched {
		t.Fatal("expected pathMatched true so the caller reports 405, not 404")
	}
}

func TestMatcherFirstMatchWinsByDeclarationOrder(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/api/*rest"},
		{Method: "GET", PathPattern: "/api/special"},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, _ := m.Match("GET", "", "/api/special")
	if res == nil || res.Route.PathPattern != "/api/*rest" {
		t.Fatalf("expected first-declared wildcard route to win, got %#v", res)
	}
}

func TestMatcherPriorityOverridesDeclarationOrder(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/api/*rest", Priority: 0},
		{Method: "GET", PathPattern: "/api/special", Priority: 10},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, _ := m.Match("GET", "", "/api/special")
	if res == nil || res.Route.PathPattern != "/api/special" {
		t.Fatalf("expected higher-priority exact route to win, got %#v", res)
	}
}

func TestMatcherHostExact(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/", HostPattern: "api.example.com", HostMatchType: gateway.HostMatchExact},
		{Method: "GET", PathPattern: "/", HostPattern: "admin.example.com", HostMatchType: gateway.HostMatchExact},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	res, _ := m.Match("GET", "admin.example.com:8080", "/")
	if res == nil || res.Route.HostPattern != "admin.example.com" {
		t.Fatalf("expected admin host route, got %#v", res)
	}

	res, _ = m.Match("GET", "other.example.com", "/")
	if res != nil {
		t.Fatal("expected no match for unrelated host")
	}
}

func TestMatcherHostWildcard(t *testing.T) {
	specs := []gateway.RouteSpec{
		{Method: "GET", PathPattern: "/", HostPattern: "*.example.com", HostMatchType: gateway.HostMatchWildcard},
	}
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	if res, _ := m.Match("GET", "tenant1.example.com", "/"); res == nil {
		t.Fatal("expected wildcard host match")
	}
	if res, _ := m.Match("GET", "a.b.example.com", "/"); res != nil {
		t.Fatal("expected wildcard to reject multi-segment subdomains")
	}
}

func TestMatcherEmptyRoutes(t *testing.T) {
	m, err := route.NewMatcher(nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	res, pathMatched := m.Match("GET", "", "/anything")
	if res != nil || pathMatched {
		t.Fatal("expected no match for empty route list")
	}
}
