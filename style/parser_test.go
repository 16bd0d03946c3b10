// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package style

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/schema"
)

func testSchema() schema.Schema {
	return schema.Schema{
		"speed": schema.Number(0, 120),
		"line":  schema.Category("red", "green", "blue", "yellow", "purple"),
	}
}

func evalFloat(t *testing.T, src string) float64 {
	t.Helper()
	n, err := ParseExpr(src, testSchema())
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", src, err)
	}
	if n.Type() != expr.TypeFloat {
		t.Fatalf("ParseExpr(%q) type = %v, want float", src, n.Type())
	}
	return n.Eval(&expr.EvalEnv{}).Float
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 * 3 ^ 2", 18},
		{"2 ^ 3 ^ 2", 512}, // right-associative
		{"-2 ^ 2", -4},
		{"10 - 2 - 3", 5},
		{"7 % 4", 3},
		{"8 / 2 / 2", 2},
		{"-3 * 2", -6},
		{"max(1, min(5, 3))", 3},
		{"pow(2, 10)", 1024},
		{"sqrt(abs(-16))", 4},
	}
	for _, tt := range tests {
		if got := evalFloat(t, tt.src); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestParseSheet(t *testing.T) {
	src := `
color: ramp(top($line, 3), prism)
width: linear($speed, 0, 120) * 8
strokeColor: #0008
strokeWidth: 0.5
`
	decls, err := Parse(src, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if len(decls) != 4 {
		t.Fatalf("parsed %d channels, want 4", len(decls))
	}
	for c, root := range decls {
		if root.Type() != c.ValueType() {
			t.Errorf("%s type = %v, want %v", c, root.Type(), c.ValueType())
		}
	}

	width := decls[Width]
	env := &expr.EvalEnv{Feature: fakeFeature{"speed": 60}}
	if got := width.Eval(env).Float; math.Abs(got-4) > 1e-9 {
		t.Errorf("width at speed 60 = %v, want 4", got)
	}
}

func TestParseExprForms(t *testing.T) {
	s := testSchema()
	tests := []struct {
		name string
		src  string
		typ  expr.Type
	}{
		{"named color", "red", expr.TypeColor},
		{"hex short", "#f00", expr.TypeColor},
		{"hex alpha", "#ff000080", expr.TypeColor},
		{"rgba", "rgba(1, 0, 0, 1)", expr.TypeColor},
		{"hsv", "hsv(0.5, 1, 1)", expr.TypeColor},
		{"cielab", "cielab(50, 10, -10)", expr.TypeColor},
		{"xyz", "xyz(0.3, 0.4, 0.5)", expr.TypeColor},
		{"case-insensitive call", "setOpacity(red, 0.5)", expr.TypeColor},
		{"blend", "blend(red, blue, 0.25)", expr.TypeColor},
		{"ramp palette", "ramp(top($line, 3), prism)", expr.TypeColor},
		{"ramp colors", "ramp($line, #f00, #0f0, #00f, #fff, #000)", expr.TypeColor},
		{"property arith", "$speed / 2 + 1", expr.TypeFloat},
		{"linear inferred", "linear($speed)", expr.TypeFloat},
		{"cubic explicit", "cubic($speed, 0, 60)", expr.TypeFloat},
		{"near", "near($speed, 60, 5, 20)", expr.TypeFloat},
		{"zoom scaled", "zoom() * 2", expr.TypeFloat},
		{"animate blend", "blend(red, blue, animate(2))", expr.TypeColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseExpr(tt.src, s)
			if err != nil {
				t.Fatalf("ParseExpr(%q): %v", tt.src, err)
			}
			if n.Type() != tt.typ {
				t.Errorf("type = %v, want %v", n.Type(), tt.typ)
			}
		})
	}
}

func TestAnimatedDetection(t *testing.T) {
	s := testSchema()
	anim, err := ParseExpr("blend(red, blue, animate(2))", s)
	if err != nil {
		t.Fatal(err)
	}
	if !anim.IsAnimated() {
		t.Error("animate-driven blend should be animated")
	}

	still, err := ParseExpr("blend(red, blue, zoom())", s)
	if err != nil {
		t.Fatal(err)
	}
	if still.IsAnimated() {
		t.Error("zoom-driven blend should not be animated")
	}
}

func TestParseErrors(t *testing.T) {
	s := testSchema()
	tests := []struct {
		name string
		src  string
	}{
		{"unknown channel", "glow: 1"},
		{"duplicate channel", "width: 1\nwidth: 2"},
		{"missing colon", "width 1"},
		{"channel type mismatch", "width: red"},
		{"color channel number", "color: 3"},
		{"unknown function", "width: warp(1)"},
		{"wrong arity", "width: sqrt(1, 2)"},
		{"unknown name", "color: turquoiseish"},
		{"palette outside ramp", "color: prism"},
		{"unknown property", "width: $altitude"},
		{"trailing tokens", "width: 1 2"},
		{"unclosed paren", "width: (1 + 2"},
		{"unclosed call", "width: sqrt(1"},
		{"animate dynamic duration", "width: animate($speed)"},
		{"ramp stop not constant", "color: ramp($speed, rgba(1, 0, 0, $speed), #00f)"},
		{"operator type mismatch", "width: red + 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, s)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.src)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error = %T (%v), want *ParseError", err, err)
			}
		})
	}
}

func TestParseErrorWrapsTypeError(t *testing.T) {
	_, err := Parse("width: red + 1", testSchema())
	if err == nil {
		t.Fatal("want error")
	}
	var te *expr.TypeError
	if !errors.As(err, &te) {
		t.Errorf("error %v does not wrap *expr.TypeError", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatal("not a ParseError")
	}
	if pe.Line != 1 {
		t.Errorf("error line = %d, want 1", pe.Line)
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("width: 1\ncolor: nosuchthing", testSchema())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v", err)
	}
	if pe.Line != 2 {
		t.Errorf("error line = %d, want 2", pe.Line)
	}
}

// fakeFeature backs Eval in parser and style tests.
type fakeFeature map[string]float64

func (f fakeFeature) Property(name string) (float64, bool) {
	v, ok := f[name]
	return v, ok
}
