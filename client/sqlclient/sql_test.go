package sqlclient

import (
	"testing"

	"github.com/artpar/gatewayd/value"
)

func TestBindValueRules(t *testing.T) {
	cases := []struct {
		name string
		in   value.Value
		want any
	}{
		{"null", value.Null(), nil},
		{"bool", value.Bool(true), true},
		{"integer", value.Integer(7), int64(7)},
		{"float", value.Float(1.5), float64(1.5)},
		{"string", value.String("hi"), "hi"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := bindValue(c.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %#v, want %#v", got, c.want)
			}
		})
	}
}

func TestBindValueArrayObjectSerializesToJSON(t *testing.T) {
	arr := value.Array([]value.Value{value.Integer(1), value.Integer(2)})
	got, err := bindValue(arr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[1,2]" {
		t.Fatalf("got %v", got)
	}
}

func TestCellToValueConversions(t *testing.T) {
	if v := cellToValue(nil); v.Kind() != value.KindNull {
		t.Fatal("expected Null")
	}
	if v := cellToValue(int64(9)); v.Kind() != value.KindInteger || v.Integer() != 9 {
		t.Fatal("expected Integer(9)")
	}
	if v := cellToValue([]byte("hello")); v.Kind() != value.KindString || v.String() != "hello" {
		t.Fatal("expected String(hello) from []byte cell")
	}
	if v := cellToValue(3.5); v.Kind() != value.KindFloat || v.Float() != 3.5 {
		t.Fatal("expected Float(3.5)")
	}
}
