package forward

import (
	"os"

	"github.com/gekko3d/forward/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("forward: invalid config")

type ShadowMapConfig struct {
	Enabled    bool               `yaml:"enabled"`
	Type       core.ShadowMapType `yaml:"type"`
	AutoUpdate bool               `yaml:"autoUpdate"`
}

type DebugConfig struct {
	// CheckShaderErrors logs compile diagnostics. Failures are always
	// recorded on the program and material.
	CheckShaderErrors bool `yaml:"checkShaderErrors"`

	// Logging gives a new renderer a debug level stderr logger instead of
	// a silent one.
	Logging bool `yaml:"logging"`
}

// Config holds the renderer flags that are fixed for a frame.
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	SortObjects bool            `yaml:"sortObjects"`
	ShadowMap   ShadowMapConfig `yaml:"shadowMap"`

	ToneMapping         core.ToneMapping `yaml:"toneMapping"`
	ToneMappingExposure float32          `yaml:"toneMappingExposure"`
	OutputColorSpace    core.ColorSpace  `yaml:"outputColorSpace"`

	LocalClippingEnabled bool `yaml:"localClippingEnabled"`
	// ClippingPlanes are world space planes as (nx, ny, nz, constant).
	ClippingPlanes [][4]float32 `yaml:"clippingPlanes"`

	LogarithmicDepth            bool    `yaml:"logarithmicDepth"`
	PremultipliedAlpha          bool    `yaml:"premultipliedAlpha"`
	TransmissionResolutionScale float32 `yaml:"transmissionResolutionScale"`

	ClearColor [4]float32 `yaml:"clearColor"`
	AutoClear  bool       `yaml:"autoClear"`

	Debug DebugConfig `yaml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		SortObjects: true,
		ShadowMap: ShadowMapConfig{
			Type:       core.PCFShadowMap,
			AutoUpdate: true,
		},
		ToneMappingExposure:         1,
		OutputColorSpace:            core.SRGBColorSpace,
		PremultipliedAlpha:          true,
		TransmissionResolutionScale: 1,
		ClearColor:                  [4]float32{0, 0, 0, 1},
		AutoClear:                   true,
		Debug:                       DebugConfig{CheckShaderErrors: true},
	}
}

// ParseConfig reads YAML over DefaultConfig, so omitted keys keep their
// defaults, and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "size %dx%d", c.Width, c.Height)
	}
	if c.ToneMappingExposure < 0 {
		return errors.Wrapf(ErrInvalidConfig, "tone mapping exposure %v", c.ToneMappingExposure)
	}
	if c.TransmissionResolutionScale <= 0 || c.TransmissionResolutionScale > 4 {
		return errors.Wrapf(ErrInvalidConfig, "transmission resolution scale %v", c.TransmissionResolutionScale)
	}
	if c.ShadowMap.Type > core.VSMShadowMap {
		return errors.Wrapf(ErrInvalidConfig, "shadow map type %d", c.ShadowMap.Type)
	}
	if c.ToneMapping > core.NeutralToneMapping {
		return errors.Wrapf(ErrInvalidConfig, "tone mapping %d", c.ToneMapping)
	}
	if c.OutputColorSpace > core.LinearSRGBColorSpace {
		return errors.Wrapf(ErrInvalidConfig, "color space %d", c.OutputColorSpace)
	}
	for i, p := range c.ClippingPlanes {
		if p[0] == 0 && p[1] == 0 && p[2] == 0 {
			return errors.Wrapf(ErrInvalidConfig, "clipping plane %d has a zero normal", i)
		}
	}
	return nil
}

// globalPlanes converts the configured clipping planes.
func (c Config) globalPlanes() []core.Plane {
	if len(c.ClippingPlanes) == 0 {
		return nil
	}
	out := make([]core.Plane, len(c.ClippingPlanes))
	for i, p := range c.ClippingPlanes {
		out[i] = core.NewPlane(mgl32.Vec3{p[0], p[1], p[2]}, p[3]).Normalize()
	}
	return out
}
