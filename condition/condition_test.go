package condition

import (
	"testing"

	"github.com/artpar/gatewayd/value"
)

type fakeLookup struct {
	path   map[string]string
	query  map[string]string
	header map[string]string
	paths  map[string]value.Value
}

func (f fakeLookup) PathParam(name string) (string, bool)  { v, ok := f.path[name]; return v, ok }
func (f fakeLookup) QueryParam(name string) (string, bool) { v, ok := f.query[name]; return v, ok }
func (f fakeLookup) Header(name string) (string, bool)     { v, ok := f.header[name]; return v, ok }

func (f fakeLookup) ResolvePath(path string) (value.Value, bool) {
	v, ok := f.paths[path]
	if !ok || v.IsNull() {
		return value.Value{}, false
	}
	return v, true
}

func newLookup() fakeLookup {
	return fakeLookup{
		path:   map[string]string{"id": "42"},
		query:  map[string]string{"verbose": "true"},
		header: map[string]string{"X-Role": "admin"},
	}
}

func TestAlwaysAndAbsent(t *testing.T) {
	lk := newLookup()
	if !Evaluate(Always(), lk) {
		t.Fatal("always should be true")
	}
	if !Evaluate(Condition{}, lk) {
		t.Fatal("zero-value condition (absent) should default to always")
	}
}

func TestFieldExistsChecksPathThenQuery(t *testing.T) {
	lk := newLookup()
	if !Evaluate(FieldExists("id"), lk) {
		t.Fatal("expected path param id to satisfy fieldexists")
	}
	if !Evaluate(FieldExists("verbose"), lk) {
		t.Fatal("expected query param verbose to satisfy fieldexists")
	}
	if Evaluate(FieldExists("missing"), lk) {
		t.Fatal("expected missing field to be false")
	}
}

func TestFieldEquals(t *testing.T) {
	lk := newLookup()
	if !Evaluate(FieldEquals("id", "42"), lk) {
		t.Fatal("expected id == 42")
	}
	if Evaluate(FieldEquals("id", "43"), lk) {
		t.Fatal("expected id != 43")
	}
	if Evaluate(FieldEquals("missing", "anything"), lk) {
		t.Fatal("missing field should never equal")
	}
}

func TestFieldMatches(t *testing.T) {
	re, err := CompilePattern(`[0-9]+`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	lk := newLookup()
	if !Evaluate(FieldMatches("id", re), lk) {
		t.Fatal("expected id to match digits pattern")
	}

	reAlpha, err := CompilePattern(`[a-z]+`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if Evaluate(FieldMatches("id", reAlpha), lk) {
		t.Fatal("anchored pattern should not match digits-only field against alpha")
	}
}

func TestCompilePatternIsAnchored(t *testing.T) {
	re, err := CompilePattern(`ab`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.MatchString("xaby") {
		t.Fatal("expected anchored match to reject substring-only match")
	}
	if !re.MatchString("ab") {
		t.Fatal("expected exact match to succeed")
	}
}

func TestCompilePatternInvalid(t *testing.T) {
	if _, err := CompilePattern("("); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestHeaderAndQueryVariants(t *testing.T) {
	lk := newLookup()
	if !Evaluate(HeaderExists("X-Role"), lk) {
		t.Fatal("expected header to exist")
	}
	if !Evaluate(HeaderEquals("X-Role", "admin"), lk) {
		t.Fatal("expected header equality")
	}
	if !Evaluate(QueryExists("verbose"), lk) {
		t.Fatal("expected query param to exist")
	}
	if !Evaluate(QueryEquals("verbose", "true"), lk) {
		t.Fatal("expected query equality")
	}
	if Evaluate(QueryEquals("verbose", "false"), lk) {
		t.Fatal("expected query inequality to be false")
	}
}

func TestAndShortCircuits(t *testing.T) {
	lk := newLookup()
	c := And(FieldExists("id"), FieldEquals("id", "42"), QueryExists("verbose"))
	if !Evaluate(c, lk) {
		t.Fatal("expected conjunction to hold")
	}
	c2 := And(FieldExists("id"), FieldEquals("id", "99"))
	if Evaluate(c2, lk) {
		t.Fatal("expected conjunction to fail on mismatched equality")
	}
}

func TestOrShortCircuits(t *testing.T) {
	lk := newLookup()
	c := Or(FieldEquals("id", "99"), QueryEquals("verbose", "true"))
	if !Evaluate(c, lk) {
		t.Fatal("expected disjunction to hold via second branch")
	}
	c2 := Or(FieldEquals("id", "99"), QueryEquals("verbose", "false"))
	if Evaluate(c2, lk) {
		t.Fatal("expected disjunction to fail when all branches false")
	}
}

func TestNotNegatesInner(t *testing.T) {
	lk := newLookup()
	if Evaluate(Not(FieldExists("id")), lk) {
		t.Fatal("expected not(exists) to be false when field exists")
	}
	if !Evaluate(Not(FieldExists("missing")), lk) {
		t.Fatal("expected not(exists) to be true when field is missing")
	}
}

func TestNegateFlagEquivalentToNot(t *testing.T) {
	lk := newLookup()
	viaNot := Evaluate(Not(FieldExists("id")), lk)
	viaFlag := Evaluate(FieldExists("id").WithNegate(true), lk)
	if viaNot != viaFlag {
		t.Fatal("expected not{} and negate:true to be equivalent")
	}
}

func TestEmptyAndIsVacuouslyTrue(t *testing.T) {
	lk := newLookup()
	if !Evaluate(And(), lk) {
		t.Fatal("expected empty and{} to be vacuously true")
	}
}

func TestFieldExistsResolvesDottedSubrequestPath(t *testing.T) {
	lk := newLookup()
	lk.paths = map[string]value.Value{
		"subrequest.cache_check.value": value.String("cached-body"),
	}
	if !Evaluate(FieldExists("subrequest.cache_check.value"), lk) {
		t.Fatal("expected dotted subrequest path to resolve")
	}

	miss := newLookup()
	miss.paths = map[string]value.Value{
		"subrequest.cache_check.value": value.Null(),
	}
	if Evaluate(FieldExists("subrequest.cache_check.value"), miss) {
		t.Fatal("expected Null subrequest field to report not-exists")
	}
	if !Evaluate(Not(FieldExists("subrequest.cache_check.value")), miss) {
		t.Fatal("expected negated fieldexists to gate the fallback subrequest on a cache miss")
	}
}

func TestFieldEqualsResolvesDottedSubrequestPath(t *testing.T) {
	lk := newLookup()
	lk.paths = map[string]value.Value{
		"subrequest.cache_check.status": value.Integer(200),
	}
	if !Evaluate(FieldEquals("subrequest.cache_check.status", "200"), lk) {
		t.Fatal("expected dotted subrequest field to stringify and compare")
	}
	if Evaluate(FieldEquals("subrequest.cache_check.status", "404"), lk) {
		t.Fatal("expected mismatched dotted field comparison to be false")
	}
}

func TestEmptyOrIsVacuouslyFalse(t *testing.T) {
	lk := newLookup()
	if Evaluate(Or(), lk) {
		t.Fatal("expected empty or{} to be vacuously false")
	}
}
