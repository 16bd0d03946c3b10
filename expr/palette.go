// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import "strings"

// Palette is a named color scheme with per-cardinality variants.
// Categorical ramps pick the variant matching their category count;
// numeric ramps use the largest variant as a continuous gradient.
type Palette struct {
	Name     string
	Variants map[int][]Color
}

// colors returns the stop list for n categories. Zero n (numeric
// input) and cardinalities beyond the largest variant both return the
// largest variant; otherwise the smallest variant with at least n
// colors wins.
func (p *Palette) colors(n int) []Color {
	best := 0
	for size := range p.Variants {
		if size > best {
			best = size
		}
	}
	if n > 0 {
		chosen := 0
		for size := range p.Variants {
			if size >= n && (chosen == 0 || size < chosen) {
				chosen = size
			}
		}
		if chosen != 0 {
			best = chosen
		}
	}
	return p.Variants[best]
}

// LookupPalette finds a palette by case-insensitive name.
func LookupPalette(name string) (*Palette, bool) {
	p, ok := palettes[strings.ToLower(name)]
	return p, ok
}

// NamedColor finds a web color by case-insensitive name.
func NamedColor(name string) (Color, bool) {
	c, ok := namedColors[strings.ToLower(name)]
	return c, ok
}

func mustHex(s string) Color {
	c, err := Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func hexList(hexes ...string) []Color {
	out := make([]Color, len(hexes))
	for i, h := range hexes {
		out[i] = mustHex(h)
	}
	return out
}

// The vendored palette table. Stops are sRGB hex values.
var palettes = map[string]*Palette{
	"prism": {
		Name: "prism",
		Variants: map[int][]Color{
			3: hexList("#5F4690", "#1D6996", "#38A6A5"),
			4: hexList("#5F4690", "#1D6996", "#38A6A5", "#0F8554"),
			5: hexList("#5F4690", "#1D6996", "#38A6A5", "#0F8554", "#73AF48"),
			6: hexList("#5F4690", "#1D6996", "#38A6A5", "#0F8554", "#73AF48", "#EDAD08"),
			7: hexList("#5F4690", "#1D6996", "#38A6A5", "#0F8554", "#73AF48", "#EDAD08", "#E17C05"),
		},
	},
	"vivid": {
		Name: "vivid",
		Variants: map[int][]Color{
			3: hexList("#E58606", "#5D69B1", "#52BCA3"),
			4: hexList("#E58606", "#5D69B1", "#52BCA3", "#99C945"),
			5: hexList("#E58606", "#5D69B1", "#52BCA3", "#99C945", "#CC61B0"),
			6: hexList("#E58606", "#5D69B1", "#52BCA3", "#99C945", "#CC61B0", "#24796C"),
			7: hexList("#E58606", "#5D69B1", "#52BCA3", "#99C945", "#CC61B0", "#24796C", "#DAA51B"),
		},
	},
	"burg": {
		Name: "burg",
		Variants: map[int][]Color{
			3: hexList("#ffc6c4", "#ee919b", "#672044"),
			4: hexList("#ffc6c4", "#f4a3a8", "#c25b78", "#672044"),
			5: hexList("#ffc6c4", "#f4a3a8", "#e38191", "#ad466c", "#672044"),
			6: hexList("#ffc6c4", "#f6a5a9", "#ea8490", "#d15d74", "#9e3963", "#672044"),
			7: hexList("#ffc6c4", "#f7a8a9", "#ee8a90", "#dc7176", "#c8586c", "#953462", "#672044"),
		},
	},
	"mint": {
		Name: "mint",
		Variants: map[int][]Color{
			3: hexList("#e4f1e1", "#63a6a0", "#0d585f"),
			4: hexList("#e4f1e1", "#89c0b6", "#448c8a", "#0d585f"),
			5: hexList("#e4f1e1", "#9ccdc1", "#63a6a0", "#337f7f", "#0d585f"),
			6: hexList("#e4f1e1", "#abd4c7", "#7ab5ad", "#509693", "#2c7778", "#0d585f"),
			7: hexList("#e4f1e1", "#b4d9cc", "#89c0b6", "#63a6a0", "#448c8a", "#287274", "#0d585f"),
		},
	},
	"teal": {
		Name: "teal",
		Variants: map[int][]Color{
			3: hexList("#d1eeea", "#68abb8", "#2a5674"),
			4: hexList("#d1eeea", "#85c4c9", "#4f90a6", "#2a5674"),
			5: hexList("#d1eeea", "#96d0d1", "#68abb8", "#45829b", "#2a5674"),
			6: hexList("#d1eeea", "#a1d7d6", "#79bbc3", "#599bae", "#40749f", "#2a5674"),
			7: hexList("#d1eeea", "#a8dbd9", "#85c4c9", "#68abb8", "#4f90a6", "#3b738f", "#2a5674"),
		},
	},
	"sunset": {
		Name: "sunset",
		Variants: map[int][]Color{
			3: hexList("#f3e79b", "#eb7f86", "#5c53a5"),
			4: hexList("#f3e79b", "#f8a07e", "#ce6693", "#5c53a5"),
			5: hexList("#f3e79b", "#fab27f", "#eb7f86", "#b13f8b", "#5c53a5"),
			6: hexList("#f3e79b", "#fabc82", "#f59280", "#dc6f8e", "#9c3f8f", "#5c53a5"),
			7: hexList("#f3e79b", "#fac484", "#f8a07e", "#eb7f86", "#ce6693", "#a059a0", "#5c53a5"),
		},
	},
	"temps": {
		Name: "temps",
		Variants: map[int][]Color{
			3: hexList("#009392", "#eeb479", "#cf597e"),
			4: hexList("#009392", "#9ccb86", "#eeb479", "#cf597e"),
			5: hexList("#009392", "#71be83", "#e9e29c", "#ed9c72", "#cf597e"),
			6: hexList("#009392", "#52b684", "#bcd48c", "#edbb8a", "#e6803c", "#cf597e"),
			7: hexList("#009392", "#39b185", "#9ccb86", "#e9e29c", "#eeb479", "#e88471", "#cf597e"),
		},
	},
	"earth": {
		Name: "earth",
		Variants: map[int][]Color{
			3: hexList("#A16928", "#edeac2", "#2887a1"),
			4: hexList("#A16928", "#d6bd8d", "#b5c8b8", "#2887a1"),
			5: hexList("#A16928", "#caa873", "#edeac2", "#98b7b2", "#2887a1"),
			6: hexList("#A16928", "#c29b64", "#e0cfa2", "#cbd5bc", "#85adaf", "#2887a1"),
			7: hexList("#A16928", "#bd925a", "#d6bd8d", "#edeac2", "#b5c8b8", "#79a7ac", "#2887a1"),
		},
	},
}

// namedColors is the web color subset the style language accepts.
var namedColors = map[string]Color{
	"black":       {0, 0, 0, 1},
	"white":       {1, 1, 1, 1},
	"red":         {1, 0, 0, 1},
	"lime":        {0, 1, 0, 1},
	"blue":        {0, 0, 1, 1},
	"yellow":      {1, 1, 0, 1},
	"cyan":        {0, 1, 1, 1},
	"aqua":        {0, 1, 1, 1},
	"magenta":     {1, 0, 1, 1},
	"fuchsia":     {1, 0, 1, 1},
	"green":       {0, 0.5019607843137255, 0, 1},
	"navy":        {0, 0, 0.5019607843137255, 1},
	"maroon":      {0.5019607843137255, 0, 0, 1},
	"olive":       {0.5019607843137255, 0.5019607843137255, 0, 1},
	"purple":      {0.5019607843137255, 0, 0.5019607843137255, 1},
	"teal":        {0, 0.5019607843137255, 0.5019607843137255, 1},
	"silver":      {0.7529411764705882, 0.7529411764705882, 0.7529411764705882, 1},
	"gray":        {0.5019607843137255, 0.5019607843137255, 0.5019607843137255, 1},
	"grey":        {0.5019607843137255, 0.5019607843137255, 0.5019607843137255, 1},
	"orange":      {1, 0.6470588235294118, 0, 1},
	"pink":        {1, 0.7529411764705882, 0.796078431372549, 1},
	"brown":       {0.6470588235294118, 0.16470588235294117, 0.16470588235294117, 1},
	"gold":        {1, 0.8431372549019608, 0, 1},
	"indigo":      {0.29411764705882354, 0, 0.5098039215686274, 1},
	"violet":      {0.9333333333333333, 0.5098039215686274, 0.9333333333333333, 1},
	"crimson":     {0.8627450980392157, 0.0784313725490196, 0.23529411764705882, 1},
	"coral":       {1, 0.4980392156862745, 0.3137254901960784, 1},
	"salmon":      {0.9803921568627451, 0.5019607843137255, 0.4470588235294118, 1},
	"khaki":       {0.9411764705882353, 0.9019607843137255, 0.5490196078431373, 1},
	"turquoise":   {0.25098039215686274, 0.8784313725490196, 0.8156862745098039, 1},
	"transparent": {0, 0, 0, 0},
}
