package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/humanoid"
	"github.com/banshee-data/posemap/internal/imageio"
	"github.com/banshee-data/posemap/internal/keypoints"
	"github.com/banshee-data/posemap/internal/posemap"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyMappingConfig_Defaults(t *testing.T) {
	cfg := EmptyMappingConfig()

	if got := cfg.GetMinConfidence(); got != posemap.DefaultMinConfidence {
		t.Errorf("GetMinConfidence() = %v, want %v", got, posemap.DefaultMinConfidence)
	}
	if got := cfg.GetDetectorInputSize(); got != imageio.DefaultInputSize {
		t.Errorf("GetDetectorInputSize() = %d, want 368", got)
	} else if got != 368 {
		t.Errorf("GetDetectorInputSize() = %d, want 368", got)
	}
	if got := cfg.GetDetectorTimeout(); got != keypoints.DefaultDetectorTimeout {
		t.Errorf("GetDetectorTimeout() = %v, want 30s", got)
	} else if got != 30*time.Second {
		t.Errorf("GetDetectorTimeout() = %v, want 30s", got)
	}

	table, err := cfg.Table()
	if err != nil {
		t.Fatalf("Table() error: %v", err)
	}
	if diff := cmp.Diff(posemap.DefaultTable(), table); diff != "" {
		t.Errorf("empty config must yield the built-in table (-want +got):\n%s", diff)
	}
}

// TestDefaultsFileMatchesBuiltinTable keeps config/mapping.defaults.json in
// sync with the table compiled into the mapper.
func TestDefaultsFileMatchesBuiltinTable(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if diff := cmp.Diff(EntriesFromTable(posemap.DefaultTable()), cfg.Joints); diff != "" {
		t.Errorf("defaults file drifted from built-in table (-builtin +file):\n%s", diff)
	}
	if cfg.GetMinConfidence() != posemap.DefaultMinConfidence {
		t.Errorf("min_confidence = %v, want %v", cfg.GetMinConfidence(), posemap.DefaultMinConfidence)
	}
	if cfg.GetDetectorInputSize() != EmptyMappingConfig().GetDetectorInputSize() {
		t.Errorf("detector_input_size = %d, want built-in default", cfg.GetDetectorInputSize())
	}
	if cfg.GetDetectorTimeout() != EmptyMappingConfig().GetDetectorTimeout() {
		t.Errorf("detector_timeout = %v, want built-in default", cfg.GetDetectorTimeout())
	}
}

func TestLoadMappingConfig_PartialOverride(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "min_confidence": 0.5,
  "detector_timeout": "2s",
  "joints": [
    {"name": "right_knee", "kind": "hinge", "keypoints": ["RHip", "RKnee", "RAnkle"], "sign": 1, "default": 0.1}
  ]
}`)

	cfg, err := LoadMappingConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetMinConfidence() != 0.5 {
		t.Errorf("GetMinConfidence() = %v, want 0.5", cfg.GetMinConfidence())
	}
	if cfg.GetDetectorTimeout() != 2*time.Second {
		t.Errorf("GetDetectorTimeout() = %v, want 2s", cfg.GetDetectorTimeout())
	}

	m, err := cfg.Mapper()
	if err != nil {
		t.Fatalf("Mapper() error: %v", err)
	}
	table := m.Table()
	if table[humanoid.RightKnee].Default != 0.1 {
		t.Errorf("right_knee default = %v, want 0.1", table[humanoid.RightKnee].Default)
	}
	if diff := cmp.Diff(posemap.DefaultTable()[humanoid.LeftKnee], table[humanoid.LeftKnee]); diff != "" {
		t.Errorf("untouched joints keep their built-in definition:\n%s", diff)
	}

	res := m.Map(body25.NoDetection())
	if res.Ok() {
		t.Error("mapper from config must still report no detection as unmapped")
	}
}

func TestLoadMappingConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{`, "failed to parse config JSON"},
		{"confidence out of range", "c.json", `{"min_confidence": 1.5}`, "MinConfidence"},
		{"input size too small", "c.json", `{"detector_input_size": 4}`, "DetectorInputSize"},
		{"bad timeout", "c.json", `{"detector_timeout": "soon"}`, "invalid detector_timeout"},
		{"negative timeout", "c.json", `{"detector_timeout": "-1s"}`, "must be positive"},
		{"unknown kind", "c.json", `{"joints":[{"name":"right_knee","kind":"spline","keypoints":["RHip","RKnee"],"sign":1}]}`, "Kind"},
		{"unknown joint", "c.json", `{"joints":[{"name":"tail","kind":"hinge","keypoints":["RHip","RKnee","RAnkle"],"sign":1}]}`, `unknown joint "tail"`},
		{"unknown keypoint", "c.json", `{"joints":[{"name":"right_knee","kind":"hinge","keypoints":["RHip","Kneecap","RAnkle"],"sign":1}]}`, `unknown keypoint "Kneecap"`},
		{"duplicate joint", "c.json", `{"joints":[
			{"name":"right_knee","kind":"hinge","keypoints":["RHip","RKnee","RAnkle"],"sign":1},
			{"name":"right_knee","kind":"hinge","keypoints":["RHip","RKnee","RAnkle"],"sign":1}]}`, "more than once"},
		{"missing sign", "c.json", `{"joints":[{"name":"right_knee","kind":"hinge","keypoints":["RHip","RKnee","RAnkle"]}]}`, "sign must be 1 or -1"},
		{"wrong keypoint count", "c.json", `{"joints":[{"name":"right_knee","kind":"hinge","keypoints":["RHip","RKnee"],"sign":1}]}`, "needs 3 keypoints"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadMappingConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoadMappingConfig_MissingFile(t *testing.T) {
	_, err := LoadMappingConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat config file") {
		t.Errorf("expected stat error, got %v", err)
	}
}

func TestLoadMappingConfig_TooLarge(t *testing.T) {
	big := `{"detector_timeout": "1s"` + strings.Repeat(" ", 1024*1024) + `}`
	path := writeConfig(t, "big.json", big)
	_, err := LoadMappingConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestGetters_WithPointers(t *testing.T) {
	cfg := &MappingConfig{
		MinConfidence:     ptrFloat64(0.05),
		DetectorInputSize: ptrInt(656),
		DetectorTimeout:   ptrString("750ms"),
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.GetMinConfidence() != 0.05 {
		t.Errorf("GetMinConfidence() = %v", cfg.GetMinConfidence())
	}
	if cfg.GetDetectorInputSize() != 656 {
		t.Errorf("GetDetectorInputSize() = %d", cfg.GetDetectorInputSize())
	}
	if cfg.GetDetectorTimeout() != 750*time.Millisecond {
		t.Errorf("GetDetectorTimeout() = %v", cfg.GetDetectorTimeout())
	}

	cfg.DetectorTimeout = ptrString("garbage")
	if cfg.GetDetectorTimeout() != 30*time.Second {
		t.Errorf("unparseable timeout should fall back to default, got %v", cfg.GetDetectorTimeout())
	}
}
