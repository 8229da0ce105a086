package stack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"hdrfuse/pkg/fusion"
)

// Config selects how the bracket is fused and aligned. It can be read
// from a YAML file and overridden field by field from the CLI.
type Config struct {
	WeightFunction string `yaml:"weight"`
	ResponseCurve  string `yaml:"response"`
	FusionOperator string `yaml:"operator"`

	// Optional calibration files. A non-empty input path replaces the
	// analytic response curve; a non-empty output path persists the
	// curve used, right after fusion.
	ResponseCurveIn  string `yaml:"response_in"`
	ResponseCurveOut string `yaml:"response_out"`

	Aligner     string   `yaml:"aligner"` // "mtb", "external" or "none"
	AlignerExe  string   `yaml:"aligner_exe"`
	AlignerArgs []string `yaml:"aligner_args"`
	AlignerCrop bool     `yaml:"aligner_crop"`

	Tonemapper string `yaml:"tonemapper"`

	Verbosity int `yaml:"verbosity"`
}

func NewConfig() Config {
	return Config{
		WeightFunction: fusion.WeightTriangular,
		ResponseCurve:  fusion.ResponseLinear,
		FusionOperator: fusion.OperatorDebevec,
		Aligner:        "mtb",
	}
}

// LoadConfig reads a YAML config over the defaults.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %w", path, err)
	}
	c := NewConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config parse %s: %w", path, err)
	}
	return c, nil
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("!marshal error: %v", err)
	}
	return string(b)
}
