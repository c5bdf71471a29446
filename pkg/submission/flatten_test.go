package submission

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsheet/pkg/answers"
)

func TestBuildRow_Scenario(t *testing.T) {
	value, err := answers.Parse([]byte(`{"personal":{"name":"A","age":null},"goals":{"list":[{"name":"x","amount":5}]}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	row, err := BuildRow(value)
	if err != nil {
		t.Fatalf("build row: %v", err)
	}

	want := Row{
		"personal.name: A",
		"personal.age: NA",
		`goals.list: [{"name":"x","amount":5}]`,
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRow_NumberFormatting(t *testing.T) {
	value, err := answers.Parse([]byte(`{"a":1.5e-7,"f":-0}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	row, err := BuildRow(value)
	if err != nil {
		t.Fatalf("build row: %v", err)
	}
	if diff := cmp.Diff(Row{"a: 1.5e-7", "f: 0"}, row); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatten_Leaves(t *testing.T) {
	tests := []struct {
		name  string
		value answers.Value
		want  []string
	}{
		{name: "null", value: answers.Null{}, want: []string{"f: NA"}},
		{name: "empty string", value: answers.String(""), want: []string{"f: NA"}},
		{name: "whitespace is kept", value: answers.String(" "), want: []string{"f:  "}},
		{name: "integer number", value: answers.Number(1500), want: []string{"f: 1500"}},
		{name: "fraction", value: answers.Number(2.75), want: []string{"f: 2.75"}},
		{name: "small number uses short exponent", value: answers.Number(1.5e-7), want: []string{"f: 1.5e-7"}},
		{name: "large number uses signed exponent", value: answers.Number(1e21), want: []string{"f: 1e+21"}},
		{name: "negative zero", value: answers.Number(math.Copysign(0, -1)), want: []string{"f: 0"}},
		{name: "line separator stays raw", value: answers.List{answers.String("a\u2028b")}, want: []string{"f: [\"a\u2028b\"]"}},
		{name: "bool", value: answers.Bool(false), want: []string{"f: false"}},
		{name: "operator text", value: answers.String(">=6months"), want: []string{"f: >=6months"}},
		{name: "empty list", value: answers.List{}, want: []string{"f: []"}},
		{
			name:  "nested list is not walked",
			value: answers.List{answers.List{answers.Null{}, answers.String("<b>")}},
			want:  []string{`f: [[null,"<b>"]]`},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Flatten(tc.value, "f")
			if err != nil {
				t.Fatalf("flatten: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlatten_OrderAndDeterminism(t *testing.T) {
	value, err := answers.Parse([]byte(`{"z":{"b":1,"a":{"y":"","x":"v"}},"m":null}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	first, err := Flatten(value, "")
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	second, _ := Flatten(value, "")

	want := []string{"z.b: 1", "z.a.y: NA", "z.a.x: v", "m: NA"}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("flatten is not deterministic (-first +second):\n%s", diff)
	}
}

func TestBuildRow_RejectsNonMapping(t *testing.T) {
	for _, value := range []answers.Value{answers.String("x"), answers.List{}, answers.Null{}, nil} {
		_, err := BuildRow(value)
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("BuildRow(%#v) error = %v, want malformed input", value, err)
		}
	}
}

func TestCodeStatusMapping(t *testing.T) {
	for _, code := range []Code{CodeMalformedInput, CodeStoreRejected, CodeStoreUnavailable} {
		if got := CodeForStatus(code.HTTPStatus()); got != code {
			t.Fatalf("CodeForStatus(%d) = %s, want %s", code.HTTPStatus(), got, code)
		}
	}
	if got := CodeUnknown.HTTPStatus(); got != 500 {
		t.Fatalf("unknown code status = %d, want 500", got)
	}
}
