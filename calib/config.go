// Package calib is the calibration-registry boundary: it knows which
// cameras and amplifiers carry CTE trap sectors, reads and writes the
// per-night fitted-parameter table, and implements cte.Registry on top of
// both.  All lookups are synchronous read-only file access; a missing or
// malformed calibration file is a fatal configuration error, never
// retried.
package calib

import (
	"fmt"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
)

// CameraConfig describes the CTE calibration of one camera.  CTECols maps
// an amplifier letter to its trap sector columns as comma-separated
// "start:stop" ranges; amplifiers without traps are simply absent.
type CameraConfig struct {
	CTECols map[string]string `koanf:"ctecols" yaml:"ctecols"`
}

// Config is the instrument CTE calibration configuration, keyed by
// lower-case camera identifier.
type Config struct {
	Cameras map[string]CameraConfig `koanf:"cameras" yaml:"cameras"`
}

// LoadConfig reads a YAML calibration config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return cfg, fmt.Errorf("calib: loading config %s: %v", path, err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("calib: decoding config %s: %v", path, err)
	}
	return cfg, nil
}
