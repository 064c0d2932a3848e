package core

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownEnum = errors.New("core: unknown enum value")

type Side uint8

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

var sideNames = []string{"front", "back", "double"}

func (s Side) String() string { return enumName(sideNames, int(s)) }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := parseEnum("side", sideNames, b)
	*s = Side(v)
	return err
}

type Blending uint8

const (
	NoBlending Blending = iota
	NormalBlending
	AdditiveBlending
	SubtractiveBlending
	MultiplyBlending
)

var blendingNames = []string{"none", "normal", "additive", "subtractive", "multiply"}

func (b Blending) String() string { return enumName(blendingNames, int(b)) }

func (b *Blending) UnmarshalText(t []byte) error {
	v, err := parseEnum("blending", blendingNames, t)
	*b = Blending(v)
	return err
}

type ToneMapping uint8

const (
	NoToneMapping ToneMapping = iota
	LinearToneMapping
	ReinhardToneMapping
	CineonToneMapping
	ACESFilmicToneMapping
	AgXToneMapping
	NeutralToneMapping
)

var toneMappingNames = []string{"none", "linear", "reinhard", "cineon", "aces", "agx", "neutral"}

func (t ToneMapping) String() string { return enumName(toneMappingNames, int(t)) }

func (t *ToneMapping) UnmarshalText(b []byte) error {
	v, err := parseEnum("tone mapping", toneMappingNames, b)
	*t = ToneMapping(v)
	return err
}

func (t ToneMapping) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

type ColorSpace uint8

const (
	NoColorSpace ColorSpace = iota
	SRGBColorSpace
	LinearSRGBColorSpace
)

var colorSpaceNames = []string{"none", "srgb", "srgb-linear"}

func (c ColorSpace) String() string { return enumName(colorSpaceNames, int(c)) }

func (c *ColorSpace) UnmarshalText(b []byte) error {
	v, err := parseEnum("color space", colorSpaceNames, b)
	*c = ColorSpace(v)
	return err
}

func (c ColorSpace) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

type ShadowMapType uint8

const (
	BasicShadowMap ShadowMapType = iota
	PCFShadowMap
	PCFSoftShadowMap
	VSMShadowMap
)

var shadowMapNames = []string{"basic", "pcf", "pcf-soft", "vsm"}

func (s ShadowMapType) String() string { return enumName(shadowMapNames, int(s)) }

func (s *ShadowMapType) UnmarshalText(b []byte) error {
	v, err := parseEnum("shadow map type", shadowMapNames, b)
	*s = ShadowMapType(v)
	return err
}

func (s ShadowMapType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type DrawMode uint8

const (
	DrawTriangles DrawMode = iota
	DrawLines
	DrawLineStrip
	DrawPoints
)

var drawModeNames = []string{"triangles", "lines", "line-strip", "points"}

func (d DrawMode) String() string { return enumName(drawModeNames, int(d)) }

func enumName(names []string, v int) string {
	if v >= 0 && v < len(names) {
		return names[v]
	}
	return "unknown"
}

func parseEnum(what string, names []string, b []byte) (int, error) {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownEnum, "%s %q", what, s)
}
