// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package schema describes the property types of a dataset.
//
// A Schema maps property names to abstract value types: numeric
// properties carry their dataset-wide min/max, category properties
// carry an ordered name list whose positions are the category ids.
// Styles are validated against a Schema at construction time, and a
// style may only attach to a dataframe whose schema matches.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// MaxCategories is the largest number of distinct category ids a
// property may carry. Datasets with higher cardinality fold the excess
// into the OthersName bucket instead of failing.
const MaxCategories = 256

// OthersName is the synthetic category that absorbs values beyond
// MaxCategories-1 distinct names.
const OthersName = "__others"

// ErrMismatch is returned by Match when two schemas disagree on a
// property's type.
var ErrMismatch = errors.New("geoviz: schema mismatch")

// Kind discriminates property types.
type Kind uint8

const (
	// KindNumber is a numeric property with a known global range.
	KindNumber Kind = iota

	// KindCategory is a categorical property with a fixed name list.
	KindCategory
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindCategory:
		return "category"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// PropertyType describes one property of a dataset.
//
// For KindNumber, Min and Max hold the dataset-wide value range used
// to normalize ramp inputs. For KindCategory, Names holds the category
// names ordered by descending frequency; a name's slice index is its
// category id, stable for the lifetime of the dataset.
type PropertyType struct {
	Kind  Kind
	Min   float64
	Max   float64
	Names []string
}

// Number returns a numeric property type with the given global range.
func Number(min, max float64) PropertyType {
	return PropertyType{Kind: KindNumber, Min: min, Max: max}
}

// Category returns a categorical property type with ids assigned by
// argument order. Use NewCategory to derive the order from counts.
func Category(names ...string) PropertyType {
	return PropertyType{Kind: KindCategory, Names: names}
}

// NewCategory builds a categorical property type from per-name
// frequency counts. Ids are assigned by descending count, ties broken
// lexicographically so the assignment is deterministic for a dataset.
// If more than MaxCategories-1 distinct names exist, the least
// frequent ones fold into a trailing OthersName bucket.
func NewCategory(counts map[string]int) PropertyType {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := counts[names[i]], counts[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	if len(names) > MaxCategories-1 {
		names = names[:MaxCategories-1]
		names = append(names, OthersName)
	}
	return PropertyType{Kind: KindCategory, Names: names}
}

// CategoryID returns the id for a category name, or the OthersName id
// when the name was folded away. The second result is false only when
// the type is not categorical or the name is unknown and no others
// bucket exists.
func (t PropertyType) CategoryID(name string) (int, bool) {
	if t.Kind != KindCategory {
		return 0, false
	}
	for i, n := range t.Names {
		if n == name {
			return i, true
		}
	}
	if len(t.Names) > 0 && t.Names[len(t.Names)-1] == OthersName {
		return len(t.Names) - 1, true
	}
	return 0, false
}

// Equal reports whether two property types are interchangeable.
// Numeric types compare by kind only (ranges may differ per dataset
// revision); categorical types require identical name lists.
func (t PropertyType) Equal(o PropertyType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == KindCategory {
		if len(t.Names) != len(o.Names) {
			return false
		}
		for i := range t.Names {
			if t.Names[i] != o.Names[i] {
				return false
			}
		}
	}
	return true
}

// Schema maps property names to their types. A nil Schema means
// "undefined" and matches anything.
type Schema map[string]PropertyType

// Property returns the type for a property name.
func (s Schema) Property(name string) (PropertyType, bool) {
	t, ok := s[name]
	return t, ok
}

// Match reports whether two schemas are compatible: every property
// present in both must have equal types. A nil schema matches
// anything. The returned error names the first offending property.
func Match(a, b Schema) error {
	if a == nil || b == nil {
		return nil
	}
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tb, ok := b[name]
		if !ok {
			continue
		}
		if ta := a[name]; !ta.Equal(tb) {
			return fmt.Errorf("%w: property %q is %s vs %s",
				ErrMismatch, name, ta.Kind, tb.Kind)
		}
	}
	return nil
}
