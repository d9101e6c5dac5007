package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// DefaultConfigPath is the path to the canonical conversion defaults file.
const DefaultConfigPath = "config/convert.defaults.json"

// ConvertConfig is the conversion configuration. Every field is optional;
// the Get* methods supply defaults for omitted fields, so partial configs
// are safe.
type ConvertConfig struct {
	// Capture selection
	Keyframe       *int     `json:"keyframe,omitempty"` // keep every Nth frame of a segment
	LocationFilter []string `json:"location_filter,omitempty"`
	TestMode       *bool    `json:"test_mode,omitempty"` // no ground truth written, no label gating

	// Output
	CameraType  *string `json:"camera_type,omitempty"` // camera index or "all"
	StartIndex  *int    `json:"start_index,omitempty"`
	IndexLength *int    `json:"index_length,omitempty"`
	WriteImages *bool   `json:"write_images,omitempty"`

	// Reconstruction
	ReturnIndices  []int `json:"return_indices,omitempty"`
	MinLabelPoints *int  `json:"min_label_points,omitempty"`

	// Execution
	Workers *int `json:"workers,omitempty"`
}

func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// DefaultConvertConfig returns a config with every field set to its default.
func DefaultConvertConfig() *ConvertConfig {
	return &ConvertConfig{
		Keyframe:       ptrInt(10),
		LocationFilter: []string{},
		TestMode:       ptrBool(false),
		CameraType:     ptrString("0"),
		StartIndex:     ptrInt(0),
		IndexLength:    ptrInt(15),
		WriteImages:    ptrBool(true),
		ReturnIndices:  []int{0},
		MinLabelPoints: ptrInt(1),
		Workers:        ptrInt(runtime.NumCPU()),
	}
}

// LoadConvertConfig loads a ConvertConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConvertConfig(path string) (*ConvertConfig, error) {
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

	cfg := &ConvertConfig{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *ConvertConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/waymo-kitti/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadConvertConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ConvertConfig) Validate() error {
	if c.Keyframe != nil && *c.Keyframe < 1 {
		return fmt.Errorf("keyframe must be at least 1, got %d", *c.Keyframe)
	}
	if c.CameraType != nil && !strings.EqualFold(*c.CameraType, "all") {
		if i, err := strconv.Atoi(*c.CameraType); err != nil || i < 0 {
			return fmt.Errorf("camera_type must be a camera index or \"all\", got %q", *c.CameraType)
		}
	}
	if c.StartIndex != nil && *c.StartIndex < 0 {
		return fmt.Errorf("start_index must be non-negative, got %d", *c.StartIndex)
	}
	if c.IndexLength != nil && (*c.IndexLength < 1 || *c.IndexLength > 19) {
		return fmt.Errorf("index_length must be between 1 and 19, got %d", *c.IndexLength)
	}
	if c.MinLabelPoints != nil && *c.MinLabelPoints < 0 {
		return fmt.Errorf("min_label_points must be non-negative, got %d", *c.MinLabelPoints)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	seen := map[int]bool{}
	for _, r := range c.ReturnIndices {
		if r < 0 || r > 1 {
			return fmt.Errorf("return_indices entries must be 0 or 1, got %d", r)
		}
		if seen[r] {
			return fmt.Errorf("return_indices repeats %d", r)
		}
		seen[r] = true
	}
	return nil
}

// GetKeyframe returns the keyframe interval or the default.
func (c *ConvertConfig) GetKeyframe() int {
	if c.Keyframe == nil {
		return 10 // default
	}
	return *c.Keyframe
}

// GetLocationFilter returns the accepted locations; empty disables the filter.
func (c *ConvertConfig) GetLocationFilter() []string {
	return c.LocationFilter
}

// AcceptsLocation reports whether a capture at loc passes the location filter.
func (c *ConvertConfig) AcceptsLocation(loc string) bool {
	if len(c.LocationFilter) == 0 {
		return true
	}
	for _, l := range c.LocationFilter {
		if l == loc {
			return true
		}
	}
	return false
}

// GetTestMode returns the test_mode value or the default.
func (c *ConvertConfig) GetTestMode() bool {
	if c.TestMode == nil {
		return false // default
	}
	return *c.TestMode
}

// GetCameraType returns the camera_type value or the default.
func (c *ConvertConfig) GetCameraType() string {
	if c.CameraType == nil {
		return "0" // default
	}
	return *c.CameraType
}

// CameraSelection parses camera_type against a rig with numCameras cameras.
func (c *ConvertConfig) CameraSelection(numCameras int) (sensor.CameraSelection, error) {
	return sensor.ParseCameraSelection(c.GetCameraType(), numCameras)
}

// GetStartIndex returns the first output index or the default.
func (c *ConvertConfig) GetStartIndex() int {
	if c.StartIndex == nil {
		return 0 // default
	}
	return *c.StartIndex
}

// GetIndexLength returns the zero-padded output name width or the default.
func (c *ConvertConfig) GetIndexLength() int {
	if c.IndexLength == nil {
		return 15 // default
	}
	return *c.IndexLength
}

// GetWriteImages returns the write_images value or the default.
func (c *ConvertConfig) GetWriteImages() bool {
	if c.WriteImages == nil {
		return true // default
	}
	return *c.WriteImages
}

// GetReturnIndices returns the laser returns to reconstruct, first return
// only by default.
func (c *ConvertConfig) GetReturnIndices() []int {
	if len(c.ReturnIndices) == 0 {
		return []int{0} // default
	}
	return c.ReturnIndices
}

// GetMinLabelPoints returns the min_label_points value or the default.
func (c *ConvertConfig) GetMinLabelPoints() int {
	if c.MinLabelPoints == nil {
		return 1 // default
	}
	return *c.MinLabelPoints
}

// GetWorkers returns the worker count or the number of CPUs.
func (c *ConvertConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU() // default
	}
	return *c.Workers
}
