// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import (
	"fmt"
	"math"
)

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// RGB returns an opaque color from RGB components.
func RGB(r, g, b float64) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// Lerp linearly interpolates between two colors.
func (c Color) Lerp(o Color, t float64) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
		A: c.A + (o.A-c.A)*t,
	}
}

// Vec4 returns the color as a float32 vector in RGBA order.
func (c Color) Vec4() [4]float32 {
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}

// Hex parses a hex color string. Supported forms: "RGB", "RGBA",
// "RRGGBB", "RRGGBBAA", with or without a leading '#'.
func Hex(hex string) (Color, error) {
	orig := hex
	if hex != "" && hex[0] == '#' {
		hex = hex[1:]
	}

	var nibbles [8]uint32
	for i := 0; i < len(hex) && i < len(nibbles); i++ {
		n, ok := hexNibble(hex[i])
		if !ok {
			return Color{}, fmt.Errorf("geoviz: invalid hex color %q", orig)
		}
		nibbles[i] = n
	}

	var r, g, b, a uint32
	a = 255
	switch len(hex) {
	case 3:
		r, g, b = nibbles[0]*17, nibbles[1]*17, nibbles[2]*17
	case 4:
		r, g, b, a = nibbles[0]*17, nibbles[1]*17, nibbles[2]*17, nibbles[3]*17
	case 6:
		r = nibbles[0]<<4 | nibbles[1]
		g = nibbles[2]<<4 | nibbles[3]
		b = nibbles[4]<<4 | nibbles[5]
	case 8:
		r = nibbles[0]<<4 | nibbles[1]
		g = nibbles[2]<<4 | nibbles[3]
		b = nibbles[4]<<4 | nibbles[5]
		a = nibbles[6]<<4 | nibbles[7]
	default:
		return Color{}, fmt.Errorf("geoviz: invalid hex color %q", orig)
	}

	return Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
		A: float64(a) / 255,
	}, nil
}

func hexNibble(c byte) (uint32, bool) {
	switch {
	case '0' <= c && c <= '9':
		return uint32(c - '0'), true
	case 'a' <= c && c <= 'f':
		return uint32(c-'a') + 10, true
	case 'A' <= c && c <= 'F':
		return uint32(c-'A') + 10, true
	}
	return 0, false
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// hsvToRGB converts hue [0,1), saturation [0,1], value [0,1].
func hsvToRGB(h, s, v float64) Color {
	h = h - math.Floor(h)
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return RGB(r, g, b)
}

// D65 reference white for CIELab conversion.
const (
	whiteX = 0.95047
	whiteY = 1.0
	whiteZ = 1.08883
)

// labToRGB converts CIELab (L in [0,100], a/b roughly [-128,128]).
func labToRGB(l, a, b float64) Color {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200
	return xyzToRGB(whiteX*labFinv(fx), whiteY*labFinv(fy), whiteZ*labFinv(fz))
}

func labFinv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}

// xyzToRGB converts CIE XYZ (D65) to sRGB.
func xyzToRGB(x, y, z float64) Color {
	r := 3.2404542*x - 1.5371385*y - 0.4985314*z
	g := -0.9692660*x + 1.8760108*y + 0.0415560*z
	b := 0.0556434*x - 0.2040259*y + 1.0572252*z
	return RGB(clamp01(srgbGamma(r)), clamp01(srgbGamma(g)), clamp01(srgbGamma(b)))
}

func srgbGamma(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}
