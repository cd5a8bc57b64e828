// Package config handles tool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/kotormdl/pkg/mdl"
)

// Config holds all tool settings.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ExportConfig holds settings for writing binary models.
type ExportConfig struct {
	TSL            bool    `yaml:"tsl"`             // Write the second game's layout
	PrimaryUV      bool    `yaml:"primary_uv"`      // Emit the diffuse UV channel
	SecondaryUV    bool    `yaml:"secondary_uv"`    // Emit the lightmap UV channel
	Classification string  `yaml:"classification"`  // Default for imported scenes
	AnimationScale float32 `yaml:"animation_scale"` // Model header animation scale; an ASCII setanimationscale wins
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			TSL:            false,
			PrimaryUV:      true,
			SecondaryUV:    true,
			Classification: "other",
			AnimationScale: 1.0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Options converts the export settings to encoder options.
func (e ExportConfig) Options() mdl.Options {
	return mdl.Options{
		TSL:             e.TSL,
		OmitPrimaryUV:   !e.PrimaryUV,
		OmitSecondaryUV: !e.SecondaryUV,
	}
}

// ModelClassification parses the configured classification.
func (e ExportConfig) ModelClassification() (mdl.Classification, error) {
	if e.Classification == "" {
		return mdl.ClassOther, nil
	}
	c, err := mdl.ParseClassification(e.Classification)
	if err != nil {
		return 0, fmt.Errorf("export.classification: %w", err)
	}
	return c, nil
}

// Apply copies the model-level export settings onto a model built from an
// imported scene. ASCII input takes the scale through ascii.ReadOptions
// instead, so the file's own value is kept.
func (e ExportConfig) Apply(m *mdl.Model) {
	if e.AnimationScale > 0 {
		m.AnimationScale = e.AnimationScale
	}
}
