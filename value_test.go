package fits

import (
	"errors"
	"testing"
)

func TestValueConstructorsAndAccessors(t *testing.T) {
	t.Parallel()

	if b, ok := BoolValue(true).AsBool(); !ok || !b {
		t.Error("BoolValue(true).AsBool() should return (true, true)")
	}

	if i, ok := IntValue(42).AsInt(); !ok || i != 42 {
		t.Error("IntValue(42).AsInt() should return (42, true)")
	}

	if f, ok := FloatValue(2.5).AsFloat(); !ok || f != 2.5 {
		t.Error("FloatValue(2.5).AsFloat() should return (2.5, true)")
	}

	if s, ok := StringValue("NGC 6543").AsString(); !ok || s != "NGC 6543" {
		t.Error("StringValue.AsString() should return the string")
	}

	// Integers convert to float on request.
	if f, ok := IntValue(7).AsFloat(); !ok || f != 7 {
		t.Error("IntValue(7).AsFloat() should return (7, true)")
	}

	// Cross-kind access fails, never converts.
	if _, ok := StringValue("7").AsInt(); ok {
		t.Error("AsInt on a string should fail")
	}

	if _, ok := FloatValue(1).AsBool(); ok {
		t.Error("AsBool on a float should fail")
	}

	if _, ok := Undefined().AsFloat(); ok {
		t.Error("AsFloat on undefined should fail")
	}
}

func TestValueString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"true", BoolValue(true), "T"},
		{"false", BoolValue(false), "F"},
		{"int", IntValue(-17), "-17"},
		{"float keeps a marker", FloatValue(2), "2."},
		{"float fraction", FloatValue(0.5), "0.5"},
		{"string quoted and padded", StringValue("Jane"), "'Jane    '"},
		{"string quote doubled", StringValue("O'Hara"), "'O''Hara  '"},
		{"undefined is empty", Undefined(), ""},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := testCase.v.String(); got != testCase.want {
				t.Errorf("String() = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Value
	}{
		{"undefined", "", Undefined()},
		{"undefined whitespace", "   ", Undefined()},
		{"true", "T", BoolValue(true)},
		{"false", "F", BoolValue(false)},
		{"int", "2880", IntValue(2880)},
		{"negative int", "-32", IntValue(-32)},
		{"real", "3.125", FloatValue(3.125)},
		{"exponent", "1.5E3", FloatValue(1500)},
		{"fortran exponent", "1.5D3", FloatValue(1500)},
		{"leading dot", ".5", FloatValue(0.5)},
		{"string", "'Jane    '", StringValue("Jane")},
		{"string doubled quote", "'O''Hara'", StringValue("O'Hara")},
		{"empty string", "''", StringValue("")},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseValue(testCase.text)
			if err != nil {
				t.Fatalf("ParseValue(%q) failed: %v", testCase.text, err)
			}

			if got != testCase.want {
				t.Errorf("ParseValue(%q) = %+v, want %+v", testCase.text, got, testCase.want)
			}
		})
	}
}

func TestParseValueErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseValue("(1.0, 2.0)")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("complex value should fail with ErrUnsupportedType, got %v", err)
	}

	for _, bad := range []string{"'unterminated", "12x4", "1.2.3", "True"} {
		_, err := ParseValue(bad)
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("ParseValue(%q) should fail with ErrCorrupt, got %v", bad, err)
		}
	}
}

func TestValueStringRoundTrip(t *testing.T) {
	t.Parallel()

	values := []Value{
		BoolValue(true),
		BoolValue(false),
		IntValue(0),
		IntValue(-9223372036854775808),
		FloatValue(32768),
		FloatValue(-1.25e-7),
		StringValue(""),
		StringValue("a / b"),
		StringValue("it's"),
		Undefined(),
	}

	for _, v := range values {
		back, err := ParseValue(v.String())
		if err != nil {
			t.Fatalf("ParseValue(%q) failed: %v", v.String(), err)
		}

		if back != v {
			t.Errorf("round trip changed %+v to %+v (text %q)", v, back, v.String())
		}
	}
}
