// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package style parses the declarative styling language and manages
// the four styled channels of a layer.
//
// A style source is line-oriented: each line declares one channel,
//
//	color: ramp(top($line, 5), prism)
//	width: linear($speed, 0, 120) * 8
//	strokeColor: #0008
//	strokeWidth: 0.5
//
// Expressions reference feature properties as $name, palettes and
// named colors by identifier, and the closed set of builtin functions.
// Parsing validates property references against the dataset schema and
// types every expression at construction, so a Style that parses is a
// Style that compiles.
package style

import (
	"fmt"
	"time"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/schema"
)

// Channel identifies one of the four styled channels.
type Channel uint8

const (
	// Color is the fill color channel.
	Color Channel = iota

	// Width is the point diameter or line width channel, in pixels.
	Width

	// StrokeColor is the outline color channel.
	StrokeColor

	// StrokeWidth is the outline width channel, in pixels.
	StrokeWidth

	// NumChannels is the channel count, for per-channel arrays.
	NumChannels
)

var channelNames = [NumChannels]string{"color", "width", "strokeColor", "strokeWidth"}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// ValueType returns the expression type the channel requires.
func (c Channel) ValueType() expr.Type {
	if c == Color || c == StrokeColor {
		return expr.TypeColor
	}
	return expr.TypeFloat
}

// ChannelByName resolves a declaration key to its channel. Keys are
// exact: "color", "width", "strokeColor", "strokeWidth".
func ChannelByName(name string) (Channel, bool) {
	for c, n := range channelNames {
		if n == name {
			return Channel(c), true
		}
	}
	return 0, false
}

// defaultColor is the fill used when a style declares no color.
var defaultColor = expr.Color{R: 0x4a / 255.0, G: 0x90 / 255.0, B: 0xe2 / 255.0, A: 1}

// Style is a complete four-channel styling. Channels a source does not
// declare keep their defaults: a fixed fill color, width 1, no stroke.
//
// A Style is not safe for concurrent use. Edits happen on the
// goroutine driving the renderer.
type Style struct {
	roots    [NumChannels]expr.Node
	schema   schema.Schema
	onChange func(Channel)
}

// New returns a style with all channels at their defaults.
func New() *Style {
	st := &Style{}
	st.install(Color, expr.ConstColor(defaultColor))
	st.install(Width, expr.Const(1))
	st.install(StrokeColor, expr.ConstColor(expr.Color{}))
	st.install(StrokeWidth, expr.Const(0))
	return st
}

// FromSource parses src and returns the style it declares. Channels
// the source leaves out keep their defaults. The style remembers the
// schema it was validated against; it may only attach to dataframes
// whose schemas match.
func FromSource(src string, s schema.Schema) (*Style, error) {
	decls, err := Parse(src, s)
	if err != nil {
		return nil, err
	}
	st := New()
	st.schema = s
	for c, root := range decls {
		if err := checkBudget(c, root); err != nil {
			return nil, err
		}
		st.install(c, root)
	}
	return st, nil
}

// checkBudget rejects graphs that together reference more distinct
// properties than a compiled program can bind, so an over-budget
// expression fails at the edit instead of inside the next frame.
func checkBudget(c Channel, roots ...expr.Node) error {
	seen := make(map[string]bool)
	for _, root := range roots {
		for _, name := range expr.Properties(root) {
			seen[name] = true
		}
	}
	if len(seen) > expr.MaxPropertySlots {
		return fmt.Errorf("geoviz: %s: expression references %d properties, budget is %d",
			c, len(seen), expr.MaxPropertySlots)
	}
	return nil
}

// Schema returns the schema the style was validated against. A nil
// schema means the style references no properties and attaches to any
// dataframe.
func (st *Style) Schema() schema.Schema { return st.schema }

// install assigns the root and points its notification hook at this
// style, so graph rewires mark exactly the owning channel.
func (st *Style) install(c Channel, root expr.Node) {
	st.roots[c] = root
	expr.SetNotify(root, func() { st.fire(c) })
}

func (st *Style) fire(c Channel) {
	if st.onChange != nil {
		st.onChange(c)
	}
}

// OnChange registers the recompile hook. It fires with the affected
// channel whenever that channel's graph is replaced or rewired.
func (st *Style) OnChange(fn func(Channel)) { st.onChange = fn }

// Root returns the channel's current expression graph.
func (st *Style) Root(c Channel) expr.Node { return st.roots[c] }

// Set replaces the channel's expression. The new graph must match the
// channel's value type.
func (st *Style) Set(c Channel, root expr.Node) error {
	if root == nil {
		return &expr.TypeError{Op: c.String(), Detail: "nil expression"}
	}
	if root.Type() != c.ValueType() {
		return &expr.TypeError{
			Op:     c.String(),
			Detail: fmt.Sprintf("wants %s, got %s", c.ValueType(), root.Type()),
		}
	}
	if err := checkBudget(c, root); err != nil {
		return err
	}
	st.install(c, root)
	st.fire(c)
	return nil
}

// adoptSchema records the first schema the style is validated
// against; later edits must parse against a compatible one.
func (st *Style) adoptSchema(s schema.Schema) error {
	if st.schema == nil {
		st.schema = s
		return nil
	}
	if err := schema.Match(st.schema, s); err != nil {
		return fmt.Errorf("geoviz: style schema mismatch: %w", err)
	}
	return nil
}

// SetSource parses a single expression and assigns it to the channel.
// On error the channel keeps its previous expression.
func (st *Style) SetSource(c Channel, src string, s schema.Schema) error {
	if err := st.adoptSchema(s); err != nil {
		return err
	}
	root, err := ParseExpr(src, s)
	if err != nil {
		return err
	}
	return st.Set(c, root)
}

// BlendTo cross-fades the channel from its current expression to
// target over d. The channel recompiles once now, to draw the running
// blend, and once more when the finished transition collapses.
func (st *Style) BlendTo(c Channel, target expr.Node, d time.Duration) error {
	// The blend compiles both branches into one program, so the
	// budget applies to their combined property set. Checked before
	// the rewire so a rejected target leaves the graph untouched.
	if err := checkBudget(c, st.roots[c], target); err != nil {
		return err
	}
	bn, err := expr.BlendTo(st.roots[c], target, d, expr.EaseLinear)
	if err != nil {
		return err
	}
	st.roots[c] = bn
	st.fire(c)
	return nil
}

// BlendToSource parses a single expression and cross-fades the channel
// to it over d.
func (st *Style) BlendToSource(c Channel, src string, s schema.Schema, d time.Duration) error {
	if err := st.adoptSchema(s); err != nil {
		return err
	}
	target, err := ParseExpr(src, s)
	if err != nil {
		return err
	}
	return st.BlendTo(c, target, d)
}

// Transition cross-fades every channel to the expressions of next.
// The graphs of next move into this style; next must not be used
// afterward.
func (st *Style) Transition(next *Style, d time.Duration) error {
	for c := Channel(0); c < NumChannels; c++ {
		if err := st.BlendTo(c, next.roots[c], d); err != nil {
			return err
		}
	}
	return nil
}

// IsAnimated reports whether any channel can change between frames.
func (st *Style) IsAnimated() bool {
	for _, root := range st.roots {
		if root.IsAnimated() {
			return true
		}
	}
	return false
}

// Collapse folds finished transitions in every channel and returns the
// channels whose graphs changed. The renderer runs this at the end of
// each frame and recompiles exactly the returned channels.
func (st *Style) Collapse() []Channel {
	var changed []Channel
	for c := Channel(0); c < NumChannels; c++ {
		root, did := expr.Collapse(st.roots[c])
		st.roots[c] = root
		if did {
			changed = append(changed, c)
		}
	}
	return changed
}
