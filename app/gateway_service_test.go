package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/app"
	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/domain/route"
	"github.com/artpar/gatewayd/value"
)

type fakeScheduler struct {
	result value.Value
	err    error
	got    gateway.RouteSpec
	gotReq gateway.IncomingRequest
}

func (f *fakeScheduler) Run(_ context.Context, r gateway.RouteSpec, req gateway.IncomingRequest) (value.Value, error) {
	f.got = r
	f.gotReq = req
	return f.result, f.err
}

func newMatcher(t *testing.T, specs []gateway.RouteSpec) *route.Matcher {
	t.Helper()
	m, err := route.NewMatcher(specs)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func TestGatewayServiceMatchedRouteReturns200(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "GET", PathPattern: "/users/:id"}}
	agg := value.NewObject()
	agg.Set("count", value.Integer(1))
	sched := &fakeScheduler{result: value.FromObject(agg)}

	svc := app.NewGatewayService(newMatcher(t, specs), sched, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
	if sched.got.PathPattern != "/users/:id" {
		t.Errorf("scheduler received route %+v", sched.got)
	}
}

func TestGatewayServiceUnmatchedPathReturns404(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "GET", PathPattern: "/users/:id"}}
	svc := app.NewGatewayService(newMatcher(t, specs), &fakeScheduler{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGatewayServiceWrongMethodReturns405(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "GET", PathPattern: "/users/:id"}}
	svc := app.NewGatewayService(newMatcher(t, specs), &fakeScheduler{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/users/42", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestGatewayServiceSchedulerErrorSerializesEnvelope(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "GET", PathPattern: "/x"}}
	sched := &fakeScheduler{err: &gatewayErrStub{}}
	svc := app.NewGatewayService(newMatcher(t, specs), sched, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "boom" {
		t.Errorf("error = %v, want boom", body["error"])
	}
}

func TestGatewayServiceJSONBodyParsedRegardlessOfContentLength(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "POST", PathPattern: "/echo"}}
	sched := &fakeScheduler{result: value.Null()}
	svc := app.NewGatewayService(newMatcher(t, specs), sched, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"bob"}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1 // chunked/unknown-length, as a real client may send

	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := sched.gotReq.Body
	if body.Kind() != value.KindObject {
		t.Fatalf("expected JSON body to be parsed as an object, got kind %v", body.Kind())
	}
	nameField, present := body.Object().Get("name")
	if !present || nameField.String() != "bob" {
		t.Fatalf("expected body.name = bob, got %+v present=%v", nameField, present)
	}
}

func TestGatewayServiceNonJSONBodyKeptAsRawString(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "POST", PathPattern: "/echo"}}
	sched := &fakeScheduler{result: value.Null()}
	svc := app.NewGatewayService(newMatcher(t, specs), sched, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello world"))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sched.gotReq.Body.Kind() != value.KindString || sched.gotReq.Body.String() != "hello world" {
		t.Fatalf("expected raw string body, got %+v", sched.gotReq.Body)
	}
}

func TestGatewayServiceMalformedJSONBodyReturns400(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "POST", PathPattern: "/echo"}}
	sched := &fakeScheduler{result: value.Null()}
	svc := app.NewGatewayService(newMatcher(t, specs), sched, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

type gatewayErrStub struct{}

func (e *gatewayErrStub) Error() string { return "boom" }

type fakeRouteMetrics struct {
	calls []string
}

func (m *fakeRouteMetrics) ObserveRoute(method, pathPattern string, status int, seconds float64) {
	m.calls = append(m.calls, fmt.Sprintf("%s %s %d", method, pathPattern, status))
}

func TestGatewayServiceWithMetricsRecordsEveryOutcome(t *testing.T) {
	specs := []gateway.RouteSpec{{Method: "GET", PathPattern: "/users/:id"}}
	agg := value.NewObject()
	sched := &fakeScheduler{result: value.FromObject(agg)}
	m := &fakeRouteMetrics{}

	svc := app.NewGatewayServiceWithMetrics(newMatcher(t, specs), sched, zerolog.Nop(), m)

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if len(m.calls) != 1 || m.calls[0] != "GET /users/:id 200" {
		t.Fatalf("metrics calls = %v, want [GET /users/:id 200]", m.calls)
	}

	req = httptest.NewRequest(http.MethodGet, "/unknown", nil)
	rec = httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if len(m.calls) != 2 || m.calls[1] != "GET  404" {
		t.Fatalf("metrics calls = %v, want second entry 'GET  404'", m.calls)
	}
}
