package gateway

import (
	"strings"

	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// IncomingRequest is frozen for the lifetime of one route execution, per
// spec.md §3.
type IncomingRequest struct {
	Method      string
	Path        string
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string // lowercased keys, last-wins
	Body        value.Value
}

// toValue builds the `request.*` root seen by interpolation and the
// response template.
func (r IncomingRequest) toValue() value.Value {
	path := value.NewObject()
	for k, v := range r.PathParams {
		path.Set(k, value.String(v))
	}
	query := value.NewObject()
	for k, v := range r.QueryParams {
		query.Set(k, value.String(v))
	}
	headers := value.NewObject()
	for k, v := range r.Headers {
		headers.Set(strings.ToLower(k), value.String(v))
	}

	req := value.NewObject()
	req.Set("method", value.String(r.Method))
	req.Set("path", value.FromObject(path))
	req.Set("query", value.FromObject(query))
	req.Set("headers", value.FromObject(headers))
	req.Set("body", r.Body)
	return value.FromObject(req)
}

// Context is the evaluation environment seen by interpolation and
// conditions: `request.*`, `subrequest.<name>.*`, and (only inside a
// response template) `response`.
type Context struct {
	request      IncomingRequest
	subrequests  *value.Object // name -> SubrequestResult value, insertion order preserved
	response     *value.Value  // set only while rendering a response template
}

// NewContext builds the initial Context for a route execution, before
// any subrequest has completed.
func NewContext(req IncomingRequest) *Context {
	return &Context{request: req, subrequests: value.NewObject()}
}

// Clone returns a shallow copy whose subrequest map can be extended
// independently — used per wave in parallel mode so concurrently
// dispatched siblings do not observe each other's writes.
func (c *Context) Clone() *Context {
	return &Context{request: c.request, subrequests: c.subrequests.Clone(), response: c.response}
}

// SetSubrequestResult records a completed (or skipped) subrequest result
// under name so later Context builds can resolve `subrequest.<name>.*`.
func (c *Context) SetSubrequestResult(name string, result value.Value) {
	if name == "" {
		return
	}
	c.subrequests.Set(name, result)
}

// SetResponse binds `response` for the duration of response-template
// rendering.
func (c *Context) SetResponse(v value.Value) {
	c.response = &v
}

// Root builds the `value.Value` tree interpolation resolves paths
// against: `request`, `subrequest`, and (if bound) `response`.
func (c *Context) Root() value.Value {
	root := value.NewObject()
	root.Set("request", c.request.toValue())
	root.Set("subrequest", value.FromObject(c.subrequests))
	if c.response != nil {
		root.Set("response", *c.response)
	}
	return value.FromObject(root)
}

// Request exposes the frozen incoming request.
func (c *Context) Request() IncomingRequest { return c.request }

// PathParam implements condition.Lookup.
func (c *Context) PathParam(name string) (string, bool) {
	v, ok := c.request.PathParams[name]
	return v, ok
}

// QueryParam implements condition.Lookup.
func (c *Context) QueryParam(name string) (string, bool) {
	v, ok := c.request.QueryParams[name]
	return v, ok
}

// Header implements condition.Lookup, matching case-insensitively.
func (c *Context) Header(name string) (string, bool) {
	v, ok := c.request.Headers[strings.ToLower(name)]
	return v, ok
}

// ResolvePath implements condition.Lookup: it resolves a dotted path
// against the same `request`/`subrequest` tree interpolation uses,
// letting a condition reference "subrequest.<name>.*". A missing path
// or one that resolves to Null reports ok=false.
func (c *Context) ResolvePath(path string) (value.Value, bool) {
	segs, err := interpolate.ParsePath(path)
	if err != nil {
		return value.Value{}, false
	}
	v, err := interpolate.ResolveSegments(c.Root(), segs)
	if err != nil || v.IsNull() {
		return value.Value{}, false
	}
	return v, true
}

// Skipped is the sentinel Value placed under a subrequest's name when
// its condition evaluated false.
func Skipped() value.Value {
	o := value.NewObject()
	o.Set("skipped", value.Bool(true))
	return value.FromObject(o)
}

// IsSkipped reports whether v is the Skipped sentinel.
func IsSkipped(v value.Value) bool {
	if v.Kind() != value.KindObject || v.Object() == nil {
		return false
	}
	skipped, ok := v.Object().Get("skipped")
	return ok && skipped.Kind() == value.KindBool && skipped.Bool()
}
