// Package gatewayerr defines the typed error taxonomy shared by every
// stage of request handling, as described in spec.md §7.
package gatewayerr

import "fmt"

// Kind tags which taxonomy bucket an error belongs to for HTTP status
// mapping and JSON serialization.
type Kind string

const (
	KindConfig          Kind = "config"
	KindInterpolation   Kind = "interpolation"
	KindSubrequest      Kind = "subrequest"
	KindTransform       Kind = "transform"
	KindNotFound        Kind = "not_found"
	KindMethodNotAllowed Kind = "method_not_allowed"
)

// SubrequestKind distinguishes the failure modes a backend client can
// normalize its driver errors into.
type SubrequestKind string

const (
	SubrequestTimeout       SubrequestKind = "Timeout"
	SubrequestConnect       SubrequestKind = "Connect"
	SubrequestProtocol      SubrequestKind = "Protocol"
	SubrequestBackend       SubrequestKind = "Backend"
	SubrequestSerialization SubrequestKind = "Serialization"
)

// ConfigError reports a configuration fault: unknown client_id, type
// mismatch, a depends_on that does not name an earlier subrequest, bad
// regex, malformed YAML. These are raised at startup; the Mongo and Redis
// clients also return one at request time for an unknown operation name,
// which config loading does not check.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// InterpolationError is raised per subrequest when "${…}" syntax is
// malformed.
type InterpolationError struct {
	Message      string
	SubrequestID string
}

func (e *InterpolationError) Error() string { return e.Message }

// SubrequestError is the normalized failure shape every backend client
// returns on execute failure.
type SubrequestError struct {
	Kind         SubrequestKind
	ClientID     string
	SubrequestID string
	Message      string
}

func (e *SubrequestError) Error() string {
	if e.SubrequestID != "" {
		return fmt.Sprintf("subrequest %q (client %q): %s", e.SubrequestID, e.ClientID, e.Message)
	}
	return fmt.Sprintf("client %q: %s", e.ClientID, e.Message)
}

// NewSubrequestError builds a SubrequestError.
func NewSubrequestError(kind SubrequestKind, clientID, subrequestID, message string) *SubrequestError {
	return &SubrequestError{Kind: kind, ClientID: clientID, SubrequestID: subrequestID, Message: message}
}

// TransformError covers a missing filter path, an include/exclude
// conflict discovered at runtime, or a template that renders non-JSON.
type TransformError struct {
	Message string
}

func (e *TransformError) Error() string { return e.Message }

// NewTransformError builds a TransformError with a formatted message.
func NewTransformError(format string, args ...any) *TransformError {
	return &TransformError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError means no configured route matched the request path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no route matches path %q", e.Path)
}

// MethodNotAllowedError means a route pattern matched but not for this
// HTTP method.
type MethodNotAllowedError struct {
	Path    string
	Method  string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed for %q", e.Method, e.Path)
}

// KindOf classifies err into a taxonomy Kind, defaulting to "" (an
// unclassified error, mapped to HTTP 500) when err matches none of the
// known types.
func KindOf(err error) Kind {
	switch err.(type) {
	case *ConfigError:
		return KindConfig
	case *InterpolationError:
		return KindInterpolation
	case *SubrequestError:
		return KindSubrequest
	case *TransformError:
		return KindTransform
	case *NotFoundError:
		return KindNotFound
	case *MethodNotAllowedError:
		return KindMethodNotAllowed
	default:
		return ""
	}
}

// StatusFor maps err to the HTTP status code spec.md §7 assigns to its
// taxonomy bucket.
func StatusFor(err error) int {
	switch e := err.(type) {
	case *ConfigError:
		return 500
	case *InterpolationError:
		return 400
	case *TransformError:
		return 400
	case *NotFoundError:
		return 404
	case *MethodNotAllowedError:
		return 405
	case *SubrequestError:
		switch e.Kind {
		case SubrequestTimeout:
			return 504
		case SubrequestConnect, SubrequestProtocol, SubrequestBackend, SubrequestSerialization:
			return 502
		default:
			return 502
		}
	default:
		return 500
	}
}
