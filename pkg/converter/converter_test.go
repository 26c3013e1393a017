package converter

import (
	"reflect"
	"testing"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

type color string

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		raw  string
		typ  reflect.Type
		want any
	}{
		{"3.1412", reflect.TypeOf(float64(0)), 3.1412},
		{"2.5", reflect.TypeOf(float32(0)), float32(2.5)},
		{"false", reflect.TypeOf(true), false},
		{"TRUE", reflect.TypeOf(true), true},
		{"42", reflect.TypeOf(0), 42},
		{" 42 ", reflect.TypeOf(int64(0)), int64(42)},
		{"-7", reflect.TypeOf(int8(0)), int8(-7)},
		{"300", reflect.TypeOf(int8(0)), "300"},
		{"7", reflect.TypeOf(uint16(0)), uint16(7)},
		{"-1", reflect.TypeOf(uint(0)), "-1"},
		{"hahaha", reflect.TypeOf(0), "hahaha"},
		{"yes", reflect.TypeOf(true), "yes"},
		{" padded ", reflect.TypeOf(""), " padded "},
		{"red", reflect.TypeOf(color("")), color("red")},
		{"x", reflect.TypeOf([]int{}), "x"},
	}
	for _, tt := range tests {
		got := CoerceValue(tt.raw, tt.typ)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("CoerceValue(%q, %v) = %#v, want %#v", tt.raw, tt.typ, got, tt.want)
		}
	}
}

func TestCoerceValue_Table(t *testing.T) {
	raw := `{"headers":["id","name"],"rows":[["1","a"]]}`
	got, ok := CoerceValue(raw, reflect.TypeOf(schema.Table{})).(schema.Table)
	if !ok {
		t.Fatalf("expected schema.Table")
	}
	if len(got.Headers) != 2 || got.Rows[0][1] != "a" {
		t.Errorf("table = %+v", got)
	}
	ptr, ok := CoerceValue(raw, reflect.TypeOf(&schema.Table{})).(*schema.Table)
	if !ok || ptr.Headers[0] != "id" {
		t.Errorf("pointer table = %#v", ptr)
	}
	if s := CoerceValue("not json", reflect.TypeOf(schema.Table{})); s != "not json" {
		t.Errorf("invalid table json = %#v, want raw string", s)
	}
}

func TestCoerce(t *testing.T) {
	table := schema.Table{Headers: []string{"h"}}
	raw := []any{"1", "x", table, table, "extra"}
	types := []reflect.Type{
		reflect.TypeOf(0),
		reflect.TypeOf(0),
		reflect.TypeOf(schema.Table{}),
		reflect.TypeOf(&schema.Table{}),
	}
	got := Coerce(raw, types)
	if got[0] != 1 {
		t.Errorf("got[0] = %#v, want 1", got[0])
	}
	if got[1] != "x" {
		t.Errorf("got[1] = %#v, want \"x\"", got[1])
	}
	if _, ok := got[2].(schema.Table); !ok {
		t.Errorf("got[2] = %T, want schema.Table", got[2])
	}
	if p, ok := got[3].(*schema.Table); !ok || p.Headers[0] != "h" {
		t.Errorf("got[3] = %#v, want *schema.Table", got[3])
	}
	if got[4] != "extra" {
		t.Errorf("got[4] = %#v, want \"extra\"", got[4])
	}
}
