// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import "fmt"

// colorSpace enumerates the color constructor spaces.
type colorSpace uint8

const (
	spaceRGBA colorSpace = iota
	spaceHSV
	spaceLab
	spaceXYZ
)

var spaceNames = [...]string{"rgba", "hsv", "cielab", "xyz"}

// colorCtorNode builds a color from per-feature float components.
type colorCtorNode struct {
	base
	space colorSpace
	args  []Node
}

func newColorCtor(space colorSpace, args ...Node) (Node, error) {
	if err := needFloat(spaceNames[space], args...); err != nil {
		return nil, err
	}
	n := &colorCtorNode{space: space, args: args}
	adopt(n, args...)
	return n, nil
}

// RGBA returns a color built from red, green, blue and alpha
// components in [0, 1].
func RGBA(r, g, b, a Node) (Node, error) {
	return newColorCtor(spaceRGBA, r, g, b, a)
}

// HSV returns an opaque color from hue, saturation and value. Hue
// wraps around [0, 1).
func HSV(h, s, v Node) (Node, error) {
	return newColorCtor(spaceHSV, h, s, v)
}

// CIELab returns an opaque color from CIELab coordinates (L in
// [0, 100]), converted through D65 XYZ to sRGB.
func CIELab(l, a, b Node) (Node, error) {
	return newColorCtor(spaceLab, l, a, b)
}

// XYZ returns an opaque color from CIE XYZ (D65) coordinates.
func XYZ(x, y, z Node) (Node, error) {
	return newColorCtor(spaceXYZ, x, y, z)
}

const wgslSRGB = `fn srgb_gamma(c: f32) -> f32 {
    if (c <= 0.0031308) {
        return 12.92 * c;
    }
    return 1.055 * pow(c, 1.0 / 2.4) - 0.055;
}
fn xyz2rgb(x: f32, y: f32, z: f32) -> vec4<f32> {
    let r =  3.2404542 * x - 1.5371385 * y - 0.4985314 * z;
    let g = -0.9692660 * x + 1.8760108 * y + 0.0415560 * z;
    let b =  0.0556434 * x - 0.2040259 * y + 1.0572252 * z;
    return vec4<f32>(clamp(srgb_gamma(r), 0.0, 1.0),
        clamp(srgb_gamma(g), 0.0, 1.0),
        clamp(srgb_gamma(b), 0.0, 1.0), 1.0);
}
`

const wgslHSV = `fn hsv2rgb(h: f32, s: f32, v: f32) -> vec4<f32> {
    let hh = (h - floor(h)) * 6.0;
    let c = v * s;
    let x = c * (1.0 - abs(hh - 2.0 * floor(hh / 2.0) - 1.0));
    let m = v - c;
    var rgb = vec3<f32>(c, 0.0, x);
    if (hh < 1.0) {
        rgb = vec3<f32>(c, x, 0.0);
    } else if (hh < 2.0) {
        rgb = vec3<f32>(x, c, 0.0);
    } else if (hh < 3.0) {
        rgb = vec3<f32>(0.0, c, x);
    } else if (hh < 4.0) {
        rgb = vec3<f32>(0.0, x, c);
    } else if (hh < 5.0) {
        rgb = vec3<f32>(x, 0.0, c);
    }
    return vec4<f32>(rgb + vec3<f32>(m, m, m), 1.0);
}
`

const wgslLab = `fn lab_finv(t: f32) -> f32 {
    let d = 6.0 / 29.0;
    if (t > d) {
        return t * t * t;
    }
    return 3.0 * d * d * (t - 4.0 / 29.0);
}
fn lab2rgb(l: f32, a: f32, b: f32) -> vec4<f32> {
    let fy = (l + 16.0) / 116.0;
    let fx = fy + a / 500.0;
    let fz = fy - b / 200.0;
    return xyz2rgb(0.95047 * lab_finv(fx), lab_finv(fy), 1.08883 * lab_finv(fz));
}
`

func (n *colorCtorNode) Type() Type { return TypeColor }

func (n *colorCtorNode) EmitSource(ctx *EmitContext) string {
	args := make([]string, len(n.args))
	for i, a := range n.args {
		args[i] = a.EmitSource(ctx)
	}
	switch n.space {
	case spaceRGBA:
		return fmt.Sprintf("vec4<f32>(%s, %s, %s, %s)", args[0], args[1], args[2], args[3])
	case spaceHSV:
		ctx.Include("hsv2rgb", wgslHSV)
		return fmt.Sprintf("hsv2rgb(%s, %s, %s)", args[0], args[1], args[2])
	case spaceLab:
		ctx.Include("xyz2rgb", wgslSRGB)
		ctx.Include("lab2rgb", wgslLab)
		return fmt.Sprintf("lab2rgb(%s, %s, %s)", args[0], args[1], args[2])
	default:
		ctx.Include("xyz2rgb", wgslSRGB)
		return fmt.Sprintf("xyz2rgb(%s, %s, %s)", args[0], args[1], args[2])
	}
}

func (n *colorCtorNode) AfterLink(p Program) {
	for _, a := range n.args {
		a.AfterLink(p)
	}
}

func (n *colorCtorNode) BeforeDraw(fs *FrameState, u UniformStore) {
	for _, a := range n.args {
		a.BeforeDraw(fs, u)
	}
}

func (n *colorCtorNode) IsAnimated() bool {
	for _, a := range n.args {
		if a.IsAnimated() {
			return true
		}
	}
	return false
}

func (n *colorCtorNode) Eval(env *EvalEnv) Value {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		vals[i] = a.Eval(env).Float
	}
	switch n.space {
	case spaceRGBA:
		return ColorVal(Color{R: vals[0], G: vals[1], B: vals[2], A: vals[3]})
	case spaceHSV:
		return ColorVal(hsvToRGB(vals[0], vals[1], vals[2]))
	case spaceLab:
		return ColorVal(labToRGB(vals[0], vals[1], vals[2]))
	default:
		return ColorVal(xyzToRGB(vals[0], vals[1], vals[2]))
	}
}

func (n *colorCtorNode) Children() []Node { return n.args }

func (n *colorCtorNode) ReplaceChild(old, new Node) bool {
	slots := make([]*Node, len(n.args))
	for i := range n.args {
		slots[i] = &n.args[i]
	}
	return replaceIn(slots, n, old, new)
}

// setOpacityNode overrides a color's alpha channel.
type setOpacityNode struct {
	base
	color Node
	alpha Node
}

// SetOpacity returns color with its alpha replaced by alpha.
func SetOpacity(color, alpha Node) (Node, error) {
	if color == nil || color.Type() != TypeColor {
		return nil, typeErrorf("setOpacity", "first argument must be a color expression")
	}
	if alpha == nil || alpha.Type() != TypeFloat {
		return nil, typeErrorf("setOpacity", "second argument must be a float expression")
	}
	n := &setOpacityNode{color: color, alpha: alpha}
	adopt(n, color, alpha)
	return n, nil
}

func (n *setOpacityNode) Type() Type { return TypeColor }

func (n *setOpacityNode) EmitSource(ctx *EmitContext) string {
	c := n.color.EmitSource(ctx)
	a := n.alpha.EmitSource(ctx)
	return fmt.Sprintf("vec4<f32>((%s).rgb, %s)", c, a)
}

func (n *setOpacityNode) AfterLink(p Program) {
	n.color.AfterLink(p)
	n.alpha.AfterLink(p)
}

func (n *setOpacityNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.color.BeforeDraw(fs, u)
	n.alpha.BeforeDraw(fs, u)
}

func (n *setOpacityNode) IsAnimated() bool {
	return n.color.IsAnimated() || n.alpha.IsAnimated()
}

func (n *setOpacityNode) Eval(env *EvalEnv) Value {
	c := n.color.Eval(env).Color
	c.A = n.alpha.Eval(env).Float
	return ColorVal(c)
}

func (n *setOpacityNode) Children() []Node { return []Node{n.color, n.alpha} }

func (n *setOpacityNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.color, &n.alpha}, n, old, new)
}
