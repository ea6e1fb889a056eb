// Package condition evaluates the boolean predicate trees attached to
// subrequests and routes, as described in spec.md §4.2.
package condition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// Kind identifies which condition variant a Condition node holds.
type Kind string

const (
	KindAlways       Kind = "always"
	KindFieldExists  Kind = "fieldexists"
	KindFieldEquals  Kind = "fieldequals"
	KindFieldMatches Kind = "fieldmatches"
	KindHeaderExists Kind = "headerexists"
	KindHeaderEquals Kind = "headerequals"
	KindQueryExists  Kind = "queryexists"
	KindQueryEquals  Kind = "queryequals"
	KindAnd          Kind = "and"
	KindOr           Kind = "or"
	KindNot          Kind = "not"
)

// Condition is a single node of a boolean predicate tree (immutable value
// type). Absent condition = always, per spec.md §4.2.
type Condition struct {
	Kind   Kind
	Negate bool

	// fieldexists / fieldequals / fieldmatches
	Field   string
	Value   string
	Pattern *regexp.Regexp

	// headerexists / headerequals
	Header string

	// queryexists / queryequals
	Param string

	// and / or
	Conditions []Condition

	// not
	Condition *Condition
}

// Always returns the unconditionally-true node.
func Always() Condition { return Condition{Kind: KindAlways} }

// FieldExists returns a node that checks path params then query params
// for the named field.
func FieldExists(field string) Condition {
	return Condition{Kind: KindFieldExists, Field: field}
}

// FieldEquals returns a node that checks the named field (path then
// query params) equals value.
func FieldEquals(field, value string) Condition {
	return Condition{Kind: KindFieldEquals, Field: field, Value: value}
}

// FieldMatches returns a node that anchored-regex matches the named
// field (path then query params) against pattern. Compile errors are a
// configuration-time failure; callers should surface CompilePattern's
// error instead of calling this with an invalid pattern.
func FieldMatches(field string, pattern *regexp.Regexp) Condition {
	return Condition{Kind: KindFieldMatches, Field: field, Pattern: pattern}
}

// HeaderExists returns a node checking presence of header (case-insensitive).
func HeaderExists(header string) Condition {
	return Condition{Kind: KindHeaderExists, Header: header}
}

// HeaderEquals returns a node checking header equals value (case-insensitive name).
func HeaderEquals(header, value string) Condition {
	return Condition{Kind: KindHeaderEquals, Header: header, Value: value}
}

// QueryExists returns a node checking presence of query param.
func QueryExists(param string) Condition {
	return Condition{Kind: KindQueryExists, Param: param}
}

// QueryEquals returns a node checking a query param equals value.
func QueryEquals(param, value string) Condition {
	return Condition{Kind: KindQueryEquals, Param: param, Value: value}
}

// And returns a node requiring all of conditions to hold, short-circuiting
// on the first false.
func And(conditions ...Condition) Condition {
	return Condition{Kind: KindAnd, Conditions: conditions}
}

// Or returns a node requiring any of conditions to hold, short-circuiting
// on the first true.
func Or(conditions ...Condition) Condition {
	return Condition{Kind: KindOr, Conditions: conditions}
}

// Not returns a node that is the logical negation of inner. Equivalent to
// setting Negate on inner directly, but mirrors the `not { condition }`
// config shape.
func Not(inner Condition) Condition {
	return Condition{Kind: KindNot, Condition: &inner}
}

// WithNegate returns a copy of c with its post-evaluation negation flag
// set to negate.
func (c Condition) WithNegate(negate bool) Condition {
	c.Negate = negate
	return c
}

// CompilePattern compiles pattern as an anchored regex for use with
// fieldmatches. Compilation errors are meant to surface at config-load
// time, not at request time.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("condition: invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Lookup is the minimal set of request accessors a Condition needs to
// evaluate against. Implementations are case-insensitive for Header.
//
// ResolvePath resolves a dotted path expression (e.g.
// "subrequest.cache_check.value") against the same evaluation context
// interpolation uses, per spec.md §2 item 3 ("the Condition Evaluator
// operates over the same context" as interpolation). It reports ok=false
// when the path is missing or resolves to Null.
type Lookup interface {
	PathParam(name string) (string, bool)
	QueryParam(name string) (string, bool)
	Header(name string) (string, bool)
	ResolvePath(path string) (value.Value, bool)
}

// Evaluate walks c against lookup and returns its boolean result,
// applying c.Negate last. Missing referenced fields evaluate to false,
// never error.
func Evaluate(c Condition, lookup Lookup) bool {
	return evaluate(c, lookup) != c.Negate
}

func evaluate(c Condition, lookup Lookup) bool {
	switch c.Kind {
	case "", KindAlways:
		return true
	case KindFieldExists:
		_, ok := fieldValue(c.Field, lookup)
		return ok
	case KindFieldEquals:
		v, ok := fieldValue(c.Field, lookup)
		return ok && interpolate.Stringify(v) == c.Value
	case KindFieldMatches:
		v, ok := fieldValue(c.Field, lookup)
		if !ok || c.Pattern == nil {
			return false
		}
		return c.Pattern.MatchString(interpolate.Stringify(v))
	case KindHeaderExists:
		_, ok := lookup.Header(c.Header)
		return ok
	case KindHeaderEquals:
		v, ok := lookup.Header(c.Header)
		return ok && v == c.Value
	case KindQueryExists:
		_, ok := lookup.QueryParam(c.Param)
		return ok
	case KindQueryEquals:
		v, ok := lookup.QueryParam(c.Param)
		return ok && v == c.Value
	case KindAnd:
		for _, sub := range c.Conditions {
			if !Evaluate(sub, lookup) {
				return false
			}
		}
		return true
	case KindOr:
		for _, sub := range c.Conditions {
			if Evaluate(sub, lookup) {
				return true
			}
		}
		return false
	case KindNot:
		if c.Condition == nil {
			return true
		}
		return !Evaluate(*c.Condition, lookup)
	}
	return false
}

// fieldValue resolves field against lookup. A dotted path (containing
// ".") routes through ResolvePath against the full evaluation context —
// this is what lets a condition gate on a sibling subrequest's result,
// e.g. "subrequest.cache_check.value". A bare name checks path params
// then query params, per spec.md §4.2.
func fieldValue(field string, lookup Lookup) (value.Value, bool) {
	if strings.Contains(field, ".") {
		return lookup.ResolvePath(field)
	}
	if v, ok := lookup.PathParam(field); ok {
		return value.String(v), true
	}
	if v, ok := lookup.QueryParam(field); ok {
		return value.String(v), true
	}
	return value.Value{}, false
}
