// Package gateway holds the declarative configuration types that drive
// route matching, subrequest execution and response transformation, as
// described in spec.md §3.
package gateway

import (
	"time"

	"github.com/artpar/gatewayd/condition"
)

// ClientKind identifies which backend variant a ClientSpec configures.
type ClientKind string

const (
	ClientHTTP     ClientKind = "http"
	ClientPostgres ClientKind = "postgres"
	ClientMySQL    ClientKind = "mysql"
	ClientSQLite   ClientKind = "sqlite"
	ClientMongo    ClientKind = "mongodb"
	ClientRedis    ClientKind = "redis"
)

// Default pool/timeout values applied when a ClientSpec omits them.
const (
	DefaultMinConns = 1
	DefaultMaxConns = 10
	DefaultTimeout  = 30 * time.Second
)

// ClientSpec is a tagged record describing one backend connection,
// keyed by id in the registry.
type ClientSpec struct {
	ID   string
	Kind ClientKind

	// http
	BaseURL        string
	DefaultHeaders map[string]string

	// postgres / mysql / sqlite / mongodb / redis
	ConnString string
	Path       string // sqlite file path ("" or ":memory:" for in-memory)
	Database   string // mongodb

	MinConns int
	MaxConns int
	Timeout  time.Duration
}

// WithDefaults returns a copy of s with unset pool/timeout fields filled
// in from the package defaults.
func (s ClientSpec) WithDefaults() ClientSpec {
	if s.MinConns == 0 {
		s.MinConns = DefaultMinConns
	}
	if s.MaxConns == 0 {
		s.MaxConns = DefaultMaxConns
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	return s
}

// SubrequestSpec describes one backend call within a route.
type SubrequestSpec struct {
	Name      string // optional; required if referenced by a later subrequest
	ClientID  string
	Type      ClientKind
	DependsOn []string
	Condition condition.Condition

	// HTTP
	Method  string
	URI     string
	Headers map[string]string
	Body    any // string or an interpolatable JSON tree (map[string]any / []any / scalar)

	// SQL
	Query  string
	Params []string // each element interpolated then bound positionally

	// Mongo
	MongoOp    string // find | findone | insert | update | delete
	Collection string
	Filter     string // interpolated, must parse as JSON
	Document   string // interpolated, must parse as JSON
	Update     string // interpolated, must parse as JSON
	Limit      *int64

	// Redis
	RedisOp    string // get | set | del | exists | hget | hset
	Key        string
	Value      any
	Field      string
	Expiration *int64 // seconds
}

// ExecutionMode selects how a route's subrequests are scheduled.
type ExecutionMode string

const (
	ExecutionParallel   ExecutionMode = "parallel"
	ExecutionSequential ExecutionMode = "sequential"
)

// Transform is the optional response-shaping pipeline applied to a
// route's AggregateResult, per spec.md §4.5.
type Transform struct {
	Filter        string
	FieldMappings map[string]string // source -> target, top-level only
	IncludeFields []string          // mutually exclusive with ExcludeFields
	ExcludeFields []string
	Template      string
}

// RouteSpec is one entry of the configured route list.
type RouteSpec struct {
	Method           string
	PathPattern      string
	HostPattern      string
	HostMatchType    HostMatchType
	Priority         int
	ExecutionMode    ExecutionMode
	Subrequests      []SubrequestSpec
	ResponseTransform *Transform
}

// HostMatchType mirrors the teacher's host-matching scheme, adapted
// here as a supplemental route-selection feature alongside path/method.
type HostMatchType string

const (
	HostMatchNone     HostMatchType = ""
	HostMatchExact    HostMatchType = "exact"
	HostMatchWildcard HostMatchType = "wildcard"
	HostMatchRegex    HostMatchType = "regex"
)
