// Package config loads and validates the gateway's YAML configuration:
// the `clients` and `routes` top-level keys described in spec.md §6.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/gatewayd/condition"
	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
)

// Config is the fully validated, ready-to-wire configuration.
type Config struct {
	Clients map[string]gateway.ClientSpec
	Routes  []gateway.RouteSpec
}

// Load reads path, expands `${ENV_VAR}` references, parses the YAML
// document (rejecting unknown fields), converts it into domain types and
// validates the spec.md §3 invariants. Any failure is a *gatewayerr.ConfigError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gatewayerr.NewConfigError("read config: %s", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, gatewayerr.NewConfigError("parse config: %s", err)
	}

	return raw.build()
}

// --- raw (YAML-shaped) structures -----------------------------------

type rawConfig struct {
	Clients map[string]rawClient `yaml:"clients"`
	Routes  []rawRoute           `yaml:"routes"`
}

type rawClient struct {
	Type           string            `yaml:"type"`
	BaseURL        string            `yaml:"base_url"`
	DefaultHeaders map[string]string `yaml:"default_headers"`
	ConnString     string            `yaml:"conn_string"`
	Path           string            `yaml:"path"`
	Database       string            `yaml:"database"`
	MinConns       int               `yaml:"min_conns"`
	MaxConns       int               `yaml:"max_conns"`
	Timeout        string            `yaml:"timeout"`
}

type rawRoute struct {
	Method            string          `yaml:"method"`
	PathPattern       string          `yaml:"path_pattern"`
	HostPattern       string          `yaml:"host_pattern"`
	HostMatchType     string          `yaml:"host_match_type"`
	Priority          int             `yaml:"priority"`
	ExecutionMode     string          `yaml:"execution_mode"`
	Subrequests       []rawSubrequest `yaml:"subrequests"`
	ResponseTransform *rawTransform   `yaml:"response_transform"`
}

type rawSubrequest struct {
	Name      string        `yaml:"name"`
	ClientID  string        `yaml:"client_id"`
	Type      string        `yaml:"type"`
	DependsOn []string      `yaml:"depends_on"`
	Condition *rawCondition `yaml:"condition"`

	Method  string            `yaml:"method"`
	URI     string            `yaml:"uri"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`

	Query  string   `yaml:"query"`
	Params []string `yaml:"params"`

	MongoOp    string `yaml:"mongo_op"`
	Collection string `yaml:"collection"`
	Filter     string `yaml:"filter"`
	Document   string `yaml:"document"`
	Update     string `yaml:"update"`
	Limit      *int64 `yaml:"limit"`

	RedisOp    string `yaml:"redis_op"`
	Key        string `yaml:"key"`
	Value      any    `yaml:"value"`
	Field      string `yaml:"field"`
	Expiration *int64 `yaml:"expiration"`
}

type rawCondition struct {
	Kind       string         `yaml:"kind"`
	Negate     bool           `yaml:"negate"`
	Field      string         `yaml:"field"`
	Value      string         `yaml:"value"`
	Pattern    string         `yaml:"pattern"`
	Header     string         `yaml:"header"`
	Param      string         `yaml:"param"`
	Conditions []rawCondition `yaml:"conditions"`
	Condition  *rawCondition  `yaml:"condition"`
}

type rawTransform struct {
	Filter        string            `yaml:"filter"`
	FieldMappings map[string]string `yaml:"field_mappings"`
	IncludeFields []string          `yaml:"include_fields"`
	ExcludeFields []string          `yaml:"exclude_fields"`
	Template      string            `yaml:"template"`
}

// --- conversion + validation ------------------------------------------

func (raw rawConfig) build() (*Config, error) {
	clients := make(map[string]gateway.ClientSpec, len(raw.Clients))
	for id, rc := range raw.Clients {
		spec, err := rc.toSpec(id)
		if err != nil {
			return nil, err
		}
		clients[id] = spec
	}

	routes := make([]gateway.RouteSpec, len(raw.Routes))
	for i, rr := range raw.Routes {
		spec, err := rr.toSpec(clients)
		if err != nil {
			return nil, gatewayerr.NewConfigError("routes[%d]: %s", i, err)
		}
		routes[i] = spec
	}

	return &Config{Clients: clients, Routes: routes}, nil
}

func (rc rawClient) toSpec(id string) (gateway.ClientSpec, error) {
	kind := gateway.ClientKind(rc.Type)
	switch kind {
	case gateway.ClientHTTP, gateway.ClientPostgres, gateway.ClientMySQL,
		gateway.ClientSQLite, gateway.ClientMongo, gateway.ClientRedis:
	default:
		return gateway.ClientSpec{}, gatewayerr.NewConfigError("clients.%s: unknown type %q", id, rc.Type)
	}

	timeout, err := parseOptionalDuration(rc.Timeout)
	if err != nil {
		return gateway.ClientSpec{}, gatewayerr.NewConfigError("clients.%s: timeout: %s", id, err)
	}

	spec := gateway.ClientSpec{
		ID:             id,
		Kind:           kind,
		BaseURL:        rc.BaseURL,
		DefaultHeaders: rc.DefaultHeaders,
		ConnString:     rc.ConnString,
		Path:           rc.Path,
		Database:       rc.Database,
		MinConns:       rc.MinConns,
		MaxConns:       rc.MaxConns,
		Timeout:        timeout,
	}

	switch kind {
	case gateway.ClientMySQL:
		spec.ConnString = strings.TrimPrefix(spec.ConnString, "mysql://")
	case gateway.ClientSQLite:
		spec.Path = normalizeSQLitePath(spec.ConnString, spec.Path)
	}

	return spec.WithDefaults(), nil
}

// normalizeSQLitePath resolves the `sqlite://path` / `sqlite::memory:`
// conn_string forms from spec.md §6 into the bare path NewSQLite expects.
func normalizeSQLitePath(connString, path string) string {
	if path != "" {
		return path
	}
	if connString == "sqlite::memory:" {
		return ":memory:"
	}
	return strings.TrimPrefix(connString, "sqlite://")
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func (rr rawRoute) toSpec(clients map[string]gateway.ClientSpec) (gateway.RouteSpec, error) {
	if rr.Method == "" {
		return gateway.RouteSpec{}, fmt.Errorf("method is required")
	}
	if rr.PathPattern == "" {
		return gateway.RouteSpec{}, fmt.Errorf("path_pattern is required")
	}

	mode := gateway.ExecutionMode(rr.ExecutionMode)
	if mode == "" {
		mode = gateway.ExecutionParallel
	}
	if mode != gateway.ExecutionParallel && mode != gateway.ExecutionSequential {
		return gateway.RouteSpec{}, fmt.Errorf("execution_mode must be %q or %q, got %q", gateway.ExecutionParallel, gateway.ExecutionSequential, mode)
	}

	hostMatchType := gateway.HostMatchType(rr.HostMatchType)
	switch hostMatchType {
	case gateway.HostMatchNone, gateway.HostMatchExact, gateway.HostMatchWildcard, gateway.HostMatchRegex:
	default:
		return gateway.RouteSpec{}, fmt.Errorf("host_match_type %q is invalid", rr.HostMatchType)
	}

	named := make(map[string]bool, len(rr.Subrequests))
	subreqs := make([]gateway.SubrequestSpec, len(rr.Subrequests))
	for i, rs := range rr.Subrequests {
		spec, err := rs.toSpec(clients, named)
		if err != nil {
			return gateway.RouteSpec{}, fmt.Errorf("subrequests[%d] %q: %w", i, rs.Name, err)
		}
		subreqs[i] = spec
		if spec.Name != "" {
			named[spec.Name] = true
		}
	}

	transform, err := rr.ResponseTransform.toSpec()
	if err != nil {
		return gateway.RouteSpec{}, fmt.Errorf("response_transform: %w", err)
	}

	return gateway.RouteSpec{
		Method:            strings.ToUpper(rr.Method),
		PathPattern:       rr.PathPattern,
		HostPattern:       rr.HostPattern,
		HostMatchType:     hostMatchType,
		Priority:          rr.Priority,
		ExecutionMode:     mode,
		Subrequests:       subreqs,
		ResponseTransform: transform,
	}, nil
}

// toSpec converts one subrequest, enforcing invariants 1-4 of spec.md §3:
// client_id exists, type matches the client's variant, depends_on names
// only earlier-declared named subrequests.
func (rs rawSubrequest) toSpec(clients map[string]gateway.ClientSpec, named map[string]bool) (gateway.SubrequestSpec, error) {
	clientSpec, ok := clients[rs.ClientID]
	if !ok {
		return gateway.SubrequestSpec{}, fmt.Errorf("client_id %q is not registered", rs.ClientID)
	}

	kind := gateway.ClientKind(rs.Type)
	if kind != clientSpec.Kind {
		return gateway.SubrequestSpec{}, fmt.Errorf("type %q does not match client %q's type %q", rs.Type, rs.ClientID, clientSpec.Kind)
	}

	for _, dep := range rs.DependsOn {
		if !named[dep] {
			return gateway.SubrequestSpec{}, fmt.Errorf("depends_on %q must name an earlier, named subrequest", dep)
		}
	}

	cond, err := rs.Condition.toCondition()
	if err != nil {
		return gateway.SubrequestSpec{}, fmt.Errorf("condition: %w", err)
	}

	return gateway.SubrequestSpec{
		Name:      rs.Name,
		ClientID:  rs.ClientID,
		Type:      kind,
		DependsOn: rs.DependsOn,
		Condition: cond,

		Method:  rs.Method,
		URI:     rs.URI,
		Headers: rs.Headers,
		Body:    rs.Body,

		Query:  rs.Query,
		Params: rs.Params,

		MongoOp:    rs.MongoOp,
		Collection: rs.Collection,
		Filter:     rs.Filter,
		Document:   rs.Document,
		Update:     rs.Update,
		Limit:      rs.Limit,

		RedisOp:    rs.RedisOp,
		Key:        rs.Key,
		Value:      rs.Value,
		Field:      rs.Field,
		Expiration: rs.Expiration,
	}, nil
}

// toCondition converts the YAML condition tree into condition.Condition,
// compiling fieldmatches patterns eagerly (spec.md §7: bad regex is a
// ConfigError raised at startup).
func (rc *rawCondition) toCondition() (condition.Condition, error) {
	if rc == nil {
		return condition.Always(), nil
	}

	var c condition.Condition
	switch condition.Kind(rc.Kind) {
	case condition.KindAlways, "":
		c = condition.Always()
	case condition.KindFieldExists:
		c = condition.FieldExists(rc.Field)
	case condition.KindFieldEquals:
		c = condition.FieldEquals(rc.Field, rc.Value)
	case condition.KindFieldMatches:
		pattern, err := condition.CompilePattern(rc.Pattern)
		if err != nil {
			return condition.Condition{}, err
		}
		c = condition.FieldMatches(rc.Field, pattern)
	case condition.KindHeaderExists:
		c = condition.HeaderExists(rc.Header)
	case condition.KindHeaderEquals:
		c = condition.HeaderEquals(rc.Header, rc.Value)
	case condition.KindQueryExists:
		c = condition.QueryExists(rc.Param)
	case condition.KindQueryEquals:
		c = condition.QueryEquals(rc.Param, rc.Value)
	case condition.KindAnd, condition.KindOr:
		subs := make([]condition.Condition, len(rc.Conditions))
		for i := range rc.Conditions {
			sub, err := (&rc.Conditions[i]).toCondition()
			if err != nil {
				return condition.Condition{}, err
			}
			subs[i] = sub
		}
		if condition.Kind(rc.Kind) == condition.KindAnd {
			c = condition.And(subs...)
		} else {
			c = condition.Or(subs...)
		}
	case condition.KindNot:
		inner, err := rc.Condition.toCondition()
		if err != nil {
			return condition.Condition{}, err
		}
		c = condition.Not(inner)
	default:
		return condition.Condition{}, fmt.Errorf("unknown condition kind %q", rc.Kind)
	}

	return c.WithNegate(rc.Negate), nil
}

// toSpec converts the optional response_transform block, rejecting the
// include_fields/exclude_fields-both-present combination at load time
// (see DESIGN.md's Open Question decision for spec.md §9(a)).
func (rt *rawTransform) toSpec() (*gateway.Transform, error) {
	if rt == nil {
		return nil, nil
	}
	if rt.IncludeFields != nil && rt.ExcludeFields != nil {
		return nil, fmt.Errorf("include_fields and exclude_fields are mutually exclusive")
	}
	return &gateway.Transform{
		Filter:        rt.Filter,
		FieldMappings: rt.FieldMappings,
		IncludeFields: rt.IncludeFields,
		ExcludeFields: rt.ExcludeFields,
		Template:      rt.Template,
	}, nil
}
