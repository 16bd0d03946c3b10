// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package schema

import (
	"errors"
	"fmt"
	"testing"
)

func TestMatchSelf(t *testing.T) {
	schemas := []Schema{
		nil,
		{},
		{"temp": Number(0, 100)},
		{"type": Category("a", "b", "c")},
		{"temp": Number(-5, 5), "type": Category("x", "y")},
	}
	for i, s := range schemas {
		if err := Match(s, s); err != nil {
			t.Errorf("schema %d: Match(s, s) = %v, want nil", i, err)
		}
	}
}

func TestMatchUndefined(t *testing.T) {
	s := Schema{"temp": Number(0, 1)}
	if err := Match(nil, s); err != nil {
		t.Errorf("Match(nil, s) = %v, want nil", err)
	}
	if err := Match(s, nil); err != nil {
		t.Errorf("Match(s, nil) = %v, want nil", err)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Schema
		wantErr bool
	}{
		{
			name: "disjoint properties",
			a:    Schema{"temp": Number(0, 1)},
			b:    Schema{"type": Category("a")},
		},
		{
			name: "shared property same kind",
			a:    Schema{"temp": Number(0, 1)},
			b:    Schema{"temp": Number(-10, 10)},
		},
		{
			name:    "kind mismatch",
			a:       Schema{"temp": Number(0, 1)},
			b:       Schema{"temp": Category("hot", "cold")},
			wantErr: true,
		},
		{
			name:    "category name lists differ",
			a:       Schema{"type": Category("a", "b")},
			b:       Schema{"type": Category("b", "a")},
			wantErr: true,
		},
		{
			name: "equal category lists",
			a:    Schema{"type": Category("a", "b")},
			b:    Schema{"type": Category("a", "b")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Match(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Errorf("Match() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMismatch) {
				t.Errorf("Match() error = %v, want ErrMismatch", err)
			}
		})
	}
}

func TestNewCategoryOrder(t *testing.T) {
	got := NewCategory(map[string]int{
		"bus":   10,
		"train": 50,
		"tram":  10,
		"ferry": 3,
	})
	want := []string{"train", "bus", "tram", "ferry"}
	if len(got.Names) != len(want) {
		t.Fatalf("Names = %v, want %v", got.Names, want)
	}
	for i := range want {
		if got.Names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, got.Names[i], want[i])
		}
	}
}

func TestNewCategoryClamp(t *testing.T) {
	counts := make(map[string]int, 300)
	for i := 0; i < 300; i++ {
		counts[fmt.Sprintf("cat%03d", i)] = 300 - i
	}
	got := NewCategory(counts)
	if len(got.Names) != MaxCategories {
		t.Fatalf("len(Names) = %d, want %d", len(got.Names), MaxCategories)
	}
	if last := got.Names[len(got.Names)-1]; last != OthersName {
		t.Errorf("last name = %q, want %q", last, OthersName)
	}
	// Most frequent name keeps id 0.
	if got.Names[0] != "cat000" {
		t.Errorf("Names[0] = %q, want cat000", got.Names[0])
	}
}

func TestCategoryID(t *testing.T) {
	plain := Category("a", "b")
	if id, ok := plain.CategoryID("b"); !ok || id != 1 {
		t.Errorf("CategoryID(b) = %d, %v, want 1, true", id, ok)
	}
	if _, ok := plain.CategoryID("missing"); ok {
		t.Error("CategoryID(missing) ok = true, want false")
	}

	folded := Category("a", "b", OthersName)
	if id, ok := folded.CategoryID("zzz"); !ok || id != 2 {
		t.Errorf("CategoryID(zzz) = %d, %v, want others id 2, true", id, ok)
	}

	if _, ok := Number(0, 1).CategoryID("a"); ok {
		t.Error("CategoryID on number ok = true, want false")
	}
}

func TestPropertyTypeEqual(t *testing.T) {
	if !Number(0, 1).Equal(Number(-100, 100)) {
		t.Error("numeric types with different ranges should be equal")
	}
	if Number(0, 1).Equal(Category("a")) {
		t.Error("number should not equal category")
	}
	if !Category("a", "b").Equal(Category("a", "b")) {
		t.Error("identical categories should be equal")
	}
	if Category("a", "b").Equal(Category("a")) {
		t.Error("categories with different lengths should differ")
	}
}
