// Package transform implements the response-shaping pipeline applied
// to a route's AggregateResult, per spec.md §4.5: filter ->
// field_mappings -> include/exclude -> template.
package transform

import (
	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// Apply runs t's pipeline stages over aggregate in the fixed order
// spec.md §4.5 defines. A nil t is identity. Includes and excludes are
// mutually exclusive — config-load validation should already reject
// that combination, so a route that reaches here with both set is
// treated as exclude being ignored in favor of include.
func Apply(t *gateway.Transform, aggregate value.Value) (value.Value, error) {
	if t == nil {
		return aggregate, nil
	}

	v := aggregate

	if t.Filter != "" {
		filtered, err := applyFilter(t.Filter, v)
		if err != nil {
			return value.Value{}, err
		}
		v = filtered
	}

	if len(t.FieldMappings) > 0 {
		v = applyFieldMappings(t.FieldMappings, v)
	}

	// t.IncludeFields != nil (not len(...) > 0) distinguishes "unset" from
	// an explicit empty list: include_fields: [] must produce an empty
	// object, per spec.md §8, not pass the aggregate through unchanged.
	if t.IncludeFields != nil {
		v = applyIncludeFields(t.IncludeFields, v)
	} else if len(t.ExcludeFields) > 0 {
		v = applyExcludeFields(t.ExcludeFields, v)
	}

	if t.Template != "" {
		rendered, err := applyTemplate(t.Template, v)
		if err != nil {
			return value.Value{}, err
		}
		v = rendered
	}

	return v, nil
}

// applyFilter selects a subtree of v using the same dotted-path grammar
// as interpolation, wrapped in a synthetic "${...}" expression so the
// existing path resolver can be reused without duplicating its parser.
func applyFilter(path string, v value.Value) (value.Value, error) {
	result, err := interpolate.Resolve("${"+path+"}", v)
	if err != nil {
		return value.Value{}, gatewayerr.NewTransformError("filter path %q: %s", path, err)
	}
	return result, nil
}

// applyFieldMappings renames top-level keys of an Object result
// (source -> target); non-Object results pass through unchanged.
func applyFieldMappings(mappings map[string]string, v value.Value) value.Value {
	if v.Kind() != value.KindObject || v.Object() == nil {
		return v
	}
	out := value.NewObject()
	for _, key := range v.Object().Keys() {
		field, _ := v.Object().Get(key)
		target := key
		if mapped, ok := mappings[key]; ok {
			target = mapped
		}
		out.Set(target, field)
	}
	return value.FromObject(out)
}

// applyIncludeFields keeps only the listed top-level keys of an Object
// result; non-Object results pass through unchanged.
func applyIncludeFields(fields []string, v value.Value) value.Value {
	if v.Kind() != value.KindObject || v.Object() == nil {
		return v
	}
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	out := value.NewObject()
	for _, key := range v.Object().Keys() {
		if !keep[key] {
			continue
		}
		field, _ := v.Object().Get(key)
		out.Set(key, field)
	}
	return value.FromObject(out)
}

// applyExcludeFields drops the listed top-level keys of an Object
// result; non-Object results pass through unchanged.
func applyExcludeFields(fields []string, v value.Value) value.Value {
	if v.Kind() != value.KindObject || v.Object() == nil {
		return v
	}
	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		drop[f] = true
	}
	out := value.NewObject()
	for _, key := range v.Object().Keys() {
		if drop[key] {
			continue
		}
		field, _ := v.Object().Get(key)
		out.Set(key, field)
	}
	return value.FromObject(out)
}

// applyTemplate renders template with `response` bound to v; the
// rendered string must parse as JSON, becoming the final body.
func applyTemplate(template string, v value.Value) (value.Value, error) {
	root := value.NewObject()
	root.Set("response", v)

	rendered, err := interpolate.ResolveString(template, value.FromObject(root))
	if err != nil {
		return value.Value{}, gatewayerr.NewTransformError("template: %s", err)
	}

	parsed, err := value.ParseJSON([]byte(rendered))
	if err != nil {
		return value.Value{}, gatewayerr.NewTransformError("template did not render valid JSON: %s", err)
	}
	return parsed, nil
}
