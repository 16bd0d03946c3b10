// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import (
	"fmt"

	"github.com/gogpu/geoviz/schema"
)

// propertyNode reads one feature property. Categorical properties
// evaluate to their category id.
type propertyNode struct {
	base
	name  string
	ptype schema.PropertyType
}

// Prop returns a reference to a feature property, validated against
// the schema. Referencing a property the schema does not define is a
// type error.
func Prop(name string, s schema.Schema) (Node, error) {
	t, ok := s.Property(name)
	if !ok {
		return nil, typeErrorf("property", "unknown property $%s", name)
	}
	return &propertyNode{name: name, ptype: t}, nil
}

func (n *propertyNode) Type() Type { return TypeFloat }

func (n *propertyNode) EmitSource(ctx *EmitContext) string {
	return fmt.Sprintf("property%d[fid]", ctx.PropertySlot(n.name))
}

func (n *propertyNode) AfterLink(p Program)                  {}
func (n *propertyNode) BeforeDraw(*FrameState, UniformStore) {}
func (n *propertyNode) IsAnimated() bool                     { return false }

func (n *propertyNode) Eval(env *EvalEnv) Value {
	if env.Feature == nil {
		return FloatVal(0)
	}
	v, _ := env.Feature.Property(n.name)
	return FloatVal(v)
}

func (n *propertyNode) Children() []Node                { return nil }
func (n *propertyNode) ReplaceChild(old, new Node) bool { return false }

// Properties returns the distinct feature properties the graph
// references, in first-seen order. Callers use it to enforce the
// MaxPropertySlots budget before a graph reaches the compiler.
func Properties(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(n, func(c Node) {
		p, ok := c.(*propertyNode)
		if !ok || seen[p.name] {
			return
		}
		seen[p.name] = true
		names = append(names, p.name)
	})
	return names
}

// categorized is implemented by nodes whose float value is a category
// id with a known cardinality. Ramp uses it to map ids onto samples.
type categorized interface {
	categoryCount() int
}

// numericRange is implemented by nodes with a known dataset value
// range. Ramp uses it to normalize raw numeric inputs.
type numericRange interface {
	propertyRange() (min, max float64, ok bool)
}

func (n *propertyNode) categoryCount() int {
	if n.ptype.Kind != schema.KindCategory {
		return 0
	}
	return len(n.ptype.Names)
}

func (n *propertyNode) propertyRange() (float64, float64, bool) {
	if n.ptype.Kind != schema.KindNumber {
		return 0, 0, false
	}
	return n.ptype.Min, n.ptype.Max, true
}
