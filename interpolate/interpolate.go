// Package interpolate resolves "${...}" path expressions against a Context
// of named values. It is used by subrequest URIs, headers, bodies, SQL
// params, Mongo filters, Redis keys, and response templates.
package interpolate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/gatewayd/value"
)

// Error is raised when a "${...}" expression is malformed. Resolution of a
// well-formed but missing path never raises an Error; it resolves to Null.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("interpolation: %s: %s", e.Path, e.Reason)
}

// segment is one step of a resolved path: a bare/bracketed field name or an
// array index.
type segment struct {
	field string
	index int
	isIdx bool
}

// Resolve interpolates every "${EXPR}" occurrence in field against root.
//
// If field is exactly one "${EXPR}" with no surrounding text, the resolved
// Value is returned as-is (type preserved: a Number stays a Number). In
// every other case string splicing is performed and a String Value is
// returned, with missing values rendered as empty string and "$$"
// unescaped to a literal "$".
func Resolve(field string, root value.Value) (value.Value, error) {
	expr, ok := soleExpression(field)
	if ok {
		v, err := resolvePath(root, expr)
		if err != nil {
			return value.Value{}, err
		}
		return v, nil
	}

	var out strings.Builder
	i := 0
	for i < len(field) {
		c := field[i]
		if c == '$' && i+1 < len(field) && field[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		if c == '$' && i+1 < len(field) && field[i+1] == '{' {
			end := findClosingBrace(field, i+2)
			if end < 0 {
				return value.Value{}, &Error{Path: field, Reason: "unterminated ${...} expression"}
			}
			expr := field[i+2 : end]
			v, err := resolvePath(root, expr)
			if err != nil {
				return value.Value{}, err
			}
			out.WriteString(renderString(v))
			i = end + 1
			continue
		}
		out.WriteByte(c)
		i++
	}
	return value.String(out.String()), nil
}

// ResolveString is a convenience wrapper around Resolve that always
// returns a string (used by headers, URIs, Redis keys, Mongo JSON strings).
func ResolveString(field string, root value.Value) (string, error) {
	v, err := Resolve(field, root)
	if err != nil {
		return "", err
	}
	return renderString(v), nil
}

// Stringify renders v the same way string splicing does, so condition
// equality/regex matching stays consistent with interpolation's own
// textual form of a value.
func Stringify(v value.Value) string {
	return renderString(v)
}

// renderString implements rule 2 of §4.1: Null renders as empty string
// when the host field is a String; any other Value is rendered by its
// natural textual form (numbers without quotes, objects/arrays as JSON).
func renderString(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return ""
	case value.KindString:
		return v.String()
	case value.KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case value.KindInteger:
		return strconv.FormatInt(v.Integer(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	default:
		b, err := json.Marshal(value.ToAny(v))
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// soleExpression reports whether field is exactly "${EXPR}" with nothing
// else around it, returning EXPR.
func soleExpression(field string) (string, bool) {
	if !strings.HasPrefix(field, "${") || !strings.HasSuffix(field, "}") {
		return "", false
	}
	end := findClosingBrace(field, 2)
	if end != len(field)-1 {
		return "", false
	}
	return field[2:end], true
}

func findClosingBrace(s string, start int) int {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// resolvePath parses and resolves a dotted path expression such as
// `request.path.id`, `subrequest.user.body.0.name`, or
// `request.headers["X-Trace-Id"]`.
func resolvePath(root value.Value, expr string) (value.Value, error) {
	segs, err := ParsePath(expr)
	if err != nil {
		return value.Value{}, &Error{Path: expr, Reason: err.Error()}
	}
	return ResolveSegments(root, segs)
}

// ResolveSegments walks root following segs, a path already parsed by
// ParsePath. Missing intermediate fields resolve to Null rather than
// erroring: only malformed syntax is an error, per §4.1 rule 4.
func ResolveSegments(root value.Value, segs []Segment) (value.Value, error) {
	cur := root
	for _, s := range segs {
		if s.IsIndex {
			if cur.Kind() != value.KindArray {
				cur = value.Null()
				continue
			}
			arr := cur.Array()
			if s.Index < 0 || s.Index >= len(arr) {
				cur = value.Null()
				continue
			}
			cur = arr[s.Index]
			continue
		}
		if cur.Kind() != value.KindObject || cur.Object() == nil {
			cur = value.Null()
			continue
		}
		v, ok := cur.Object().Get(s.Field)
		if !ok {
			cur = value.Null()
			continue
		}
		cur = v
	}
	return cur, nil
}

// Segment is one parsed step of a dotted path expression.
type Segment struct {
	Field   string
	Index   int
	IsIndex bool
}

func toSegment(s segment) Segment {
	return Segment{Field: s.field, Index: s.index, IsIndex: s.isIdx}
}

// ParsePath parses a dotted-path expression into a sequence of Segments.
// Supported forms: a leading bare identifier, `.ident`, `.N` (array
// index), and `["literal"]` (field name that may contain characters
// illegal in a bare identifier, such as header names).
func ParsePath(expr string) ([]Segment, error) {
	s, err := parsePath(expr)
	if err != nil {
		return nil, err
	}
	out := make([]Segment, len(s))
	for i, seg := range s {
		out[i] = toSegment(seg)
	}
	return out, nil
}

func parsePath(expr string) ([]segment, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	var segs []segment
	i := 0
	n := len(expr)

	// Leading bare identifier (the root name, e.g. "request" or a header
	// lookup context already bound by the caller).
	start := i
	for i < n && isIdentByte(expr[i]) {
		i++
	}
	if i == start {
		return nil, fmt.Errorf("expected identifier at position %d", start)
	}
	segs = append(segs, segment{field: expr[start:i]})

	for i < n {
		switch expr[i] {
		case '.':
			i++
			if i < n && isDigit(expr[i]) {
				numStart := i
				for i < n && isDigit(expr[i]) {
					i++
				}
				idx, err := strconv.Atoi(expr[numStart:i])
				if err != nil {
					return nil, fmt.Errorf("invalid array index at position %d", numStart)
				}
				segs = append(segs, segment{index: idx, isIdx: true})
				continue
			}
			fieldStart := i
			for i < n && isIdentByte(expr[i]) {
				i++
			}
			if i == fieldStart {
				return nil, fmt.Errorf("expected field name after '.' at position %d", fieldStart)
			}
			segs = append(segs, segment{field: expr[fieldStart:i]})
		case '[':
			i++
			if i >= n || expr[i] != '"' {
				return nil, fmt.Errorf("expected '\"' after '[' at position %d", i)
			}
			i++
			litStart := i
			for i < n && expr[i] != '"' {
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated string literal")
			}
			lit := expr[litStart:i]
			i++ // consume closing quote
			if i >= n || expr[i] != ']' {
				return nil, fmt.Errorf("expected ']' at position %d", i)
			}
			i++
			segs = append(segs, segment{field: lit})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", expr[i], i)
		}
	}

	return segs, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
