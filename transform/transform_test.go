package transform

import (
	"testing"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/value"
)

func aggregateFixture() value.Value {
	user := value.NewObject()
	user.Set("id", value.Integer(7))
	user.Set("name", value.String("alice"))
	user.Set("internal_note", value.String("secret"))

	byName := value.NewObject()
	byName.Set("user", value.FromObject(user))

	agg := value.NewObject()
	agg.Set("subrequests_by_name", value.FromObject(byName))
	agg.Set("count", value.Integer(1))
	return value.FromObject(agg)
}

func TestApplyNilTransformIsIdentity(t *testing.T) {
	agg := aggregateFixture()
	got, err := Apply(nil, agg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, agg) {
		t.Fatal("expected identity transform")
	}
}

func TestApplyFilterSelectsSubtree(t *testing.T) {
	agg := aggregateFixture()
	got, err := Apply(&gateway.Transform{Filter: "subrequests_by_name.user"}, agg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, ok := got.Object().Get("name")
	if !ok || name.String() != "alice" {
		t.Fatalf("expected filtered subtree to expose name, got %#v", got)
	}
}

func TestApplyFieldMappingsRenamesTopLevelKeys(t *testing.T) {
	agg := aggregateFixture()
	filtered, _ := Apply(&gateway.Transform{Filter: "subrequests_by_name.user"}, agg)
	got, err := Apply(&gateway.Transform{FieldMappings: map[string]string{"id": "user_id"}}, filtered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.Object().Get("id"); ok {
		t.Fatal("expected source key id to be renamed away")
	}
	renamed, ok := got.Object().Get("user_id")
	if !ok || renamed.Integer() != 7 {
		t.Fatal("expected renamed key user_id to carry original value")
	}
}

func TestApplyIncludeExcludeAreMutuallyExclusivePreferringInclude(t *testing.T) {
	user := value.NewObject()
	user.Set("id", value.Integer(1))
	user.Set("name", value.String("bob"))
	user.Set("secret", value.String("x"))

	got, err := Apply(&gateway.Transform{
		IncludeFields: []string{"id", "name"},
		ExcludeFields: []string{"name"},
	}, value.FromObject(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Object().Len() != 2 {
		t.Fatalf("expected include to win, got %d fields", got.Object().Len())
	}
	if _, ok := got.Object().Get("secret"); ok {
		t.Fatal("expected secret to be dropped by include list")
	}
}

func TestApplyIncludeFieldsEmptyListProducesEmptyObject(t *testing.T) {
	user := value.NewObject()
	user.Set("id", value.Integer(1))
	user.Set("name", value.String("bob"))

	got, err := Apply(&gateway.Transform{IncludeFields: []string{}}, value.FromObject(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Object().Len() != 0 {
		t.Fatalf("expected include_fields: [] to produce an empty object, got %d fields", got.Object().Len())
	}
}

func TestApplyUnsetIncludeFieldsIsPassthrough(t *testing.T) {
	user := value.NewObject()
	user.Set("id", value.Integer(1))

	got, err := Apply(&gateway.Transform{}, value.FromObject(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Object().Len() != 1 {
		t.Fatalf("expected unset include_fields to pass the aggregate through unchanged, got %d fields", got.Object().Len())
	}
}

func TestApplyExcludeFieldsDropsListed(t *testing.T) {
	user := value.NewObject()
	user.Set("id", value.Integer(1))
	user.Set("secret", value.String("x"))

	got, err := Apply(&gateway.Transform{ExcludeFields: []string{"secret"}}, value.FromObject(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.Object().Get("secret"); ok {
		t.Fatal("expected secret to be excluded")
	}
	if _, ok := got.Object().Get("id"); !ok {
		t.Fatal("expected id to survive exclude")
	}
}

func TestApplyTemplateRendersJSON(t *testing.T) {
	agg := aggregateFixture()
	got, err := Apply(&gateway.Transform{Template: `{"total": ${response.count}}`}, agg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total, ok := got.Object().Get("total")
	if !ok || total.Integer() != 1 {
		t.Fatalf("expected templated total 1, got %#v", got)
	}
}

func TestApplyTemplateNonJSONIsTransformError(t *testing.T) {
	agg := aggregateFixture()
	_, err := Apply(&gateway.Transform{Template: "not json at all"}, agg)
	if err == nil {
		t.Fatal("expected TransformError for non-JSON template output")
	}
	if _, ok := err.(*gatewayerr.TransformError); !ok {
		t.Fatalf("expected *gatewayerr.TransformError, got %T", err)
	}
}

func TestApplyFilterMissingPathIsNull(t *testing.T) {
	agg := aggregateFixture()
	got, err := Apply(&gateway.Transform{Filter: "subrequests_by_name.missing"}, agg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind() != value.KindNull {
		t.Fatalf("expected Null for missing filter path, got %#v", got)
	}
}
