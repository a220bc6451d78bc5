package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/humanoid"
	"github.com/banshee-data/posemap/internal/imageio"
	"github.com/banshee-data/posemap/internal/keypoints"
	"github.com/banshee-data/posemap/internal/posemap"
)

// DefaultConfigPath is the path to the canonical mapping defaults file.
// It mirrors the built-in joint table and is kept in sync by tests.
const DefaultConfigPath = "config/mapping.defaults.json"

// MappingConfig is the calibration artifact for the pose mapper and the
// detector boundary. Every field is optional; unset fields fall back to
// the built-in defaults through the Get* methods.
type MappingConfig struct {
	// Keypoints below this confidence make dependent joints use their default.
	MinConfidence *float64 `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Detector input: longest image side after preprocessing, in pixels.
	DetectorInputSize *int `json:"detector_input_size,omitempty" validate:"omitempty,gte=16,lte=8192"`
	// DetectorTimeout bounds one external detector run, e.g. "30s".
	DetectorTimeout *string `json:"detector_timeout,omitempty"`

	// Joints overrides entries of the joint table by name.
	Joints []JointEntry `json:"joints,omitempty" validate:"omitempty,max=17,dive"`
}

// JointEntry is the JSON form of one joint table row. Keypoints are BODY25
// names, e.g. "RHip".
type JointEntry struct {
	Name      string   `json:"name" validate:"required"`
	Kind      string   `json:"kind" validate:"required,oneof=segment hinge twist foreshorten"`
	Keypoints []string `json:"keypoints" validate:"required,min=2,max=4,dive,required"`
	Ref       string   `json:"ref,omitempty" validate:"omitempty,oneof=up down"`
	Gain      float64  `json:"gain,omitempty" validate:"gte=0"`
	Sign      float64  `json:"sign"`
	Default   float64  `json:"default"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyMappingConfig returns a MappingConfig with all fields unset.
func EmptyMappingConfig() *MappingConfig {
	return &MappingConfig{}
}

// LoadMappingConfig loads a MappingConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Omitted fields
// keep their defaults, so partial configs are safe.
func LoadMappingConfig(path string) (*MappingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyMappingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *MappingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadMappingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks field ranges and that the resulting joint table is usable.
func (c *MappingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.DetectorTimeout != nil && *c.DetectorTimeout != "" {
		d, err := time.ParseDuration(*c.DetectorTimeout)
		if err != nil {
			return fmt.Errorf("invalid detector_timeout '%s': %w", *c.DetectorTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("detector_timeout must be positive, got %s", d)
		}
	}

	if _, err := c.Table(); err != nil {
		return err
	}
	return nil
}

// GetMinConfidence returns min_confidence or the default.
func (c *MappingConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return posemap.DefaultMinConfidence
	}
	return *c.MinConfidence
}

// GetDetectorInputSize returns detector_input_size or the default.
func (c *MappingConfig) GetDetectorInputSize() int {
	if c.DetectorInputSize == nil {
		return imageio.DefaultInputSize
	}
	return *c.DetectorInputSize
}

// GetDetectorTimeout parses detector_timeout.
func (c *MappingConfig) GetDetectorTimeout() time.Duration {
	if c.DetectorTimeout == nil || *c.DetectorTimeout == "" {
		return keypoints.DefaultDetectorTimeout
	}
	d, err := time.ParseDuration(*c.DetectorTimeout)
	if err != nil {
		return keypoints.DefaultDetectorTimeout
	}
	return d
}

// Table returns the built-in joint table with this config's overrides
// applied. Each joint may be overridden at most once.
func (c *MappingConfig) Table() (posemap.Table, error) {
	table := posemap.DefaultTable()
	seen := make(map[int]bool, len(c.Joints))

	for _, e := range c.Joints {
		pos, ok := humanoid.JointIndex(e.Name)
		if !ok {
			return table, fmt.Errorf("unknown joint %q", e.Name)
		}
		if seen[pos] {
			return table, fmt.Errorf("joint %q overridden more than once", e.Name)
		}
		seen[pos] = true

		spec, err := e.spec()
		if err != nil {
			return table, fmt.Errorf("joint %q: %w", e.Name, err)
		}
		table[pos] = spec
	}

	if err := table.Validate(); err != nil {
		return table, err
	}
	return table, nil
}

// Mapper builds a pose mapper from the effective table and threshold.
func (c *MappingConfig) Mapper() (*posemap.Mapper, error) {
	table, err := c.Table()
	if err != nil {
		return nil, err
	}
	return posemap.NewMapper(table, c.GetMinConfidence())
}

func (e JointEntry) spec() (posemap.JointSpec, error) {
	points := make([]int, len(e.Keypoints))
	for i, name := range e.Keypoints {
		idx, ok := body25.Index(name)
		if !ok {
			return posemap.JointSpec{}, fmt.Errorf("unknown keypoint %q", name)
		}
		points[i] = idx
	}
	return posemap.JointSpec{
		Kind:    posemap.Kind(e.Kind),
		Points:  points,
		Ref:     posemap.Reference(e.Ref),
		Gain:    e.Gain,
		Sign:    e.Sign,
		Default: e.Default,
	}, nil
}

// EntriesFromTable renders a table back into config entries, in joint order.
func EntriesFromTable(t posemap.Table) []JointEntry {
	out := make([]JointEntry, 0, humanoid.NumJoints)
	for pos, s := range t {
		names := make([]string, len(s.Points))
		for i, idx := range s.Points {
			names[i] = body25.Name(idx)
		}
		out = append(out, JointEntry{
			Name:      humanoid.JointName(pos),
			Kind:      string(s.Kind),
			Keypoints: names,
			Ref:       string(s.Ref),
			Gain:      s.Gain,
			Sign:      s.Sign,
			Default:   s.Default,
		})
	}
	return out
}
