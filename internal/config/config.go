package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Detector DetectorConfig `yaml:"detector"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"` // 0 = unlimited websocket clients
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

// DetectorConfig holds the debouncer hold thresholds and the reference
// classifier thresholds. The classifier numbers are uncalibrated defaults
// carried from the original heuristic; swap the classifier before trusting
// them.
type DetectorConfig struct {
	FaceAbsentHold   time.Duration `yaml:"face_absent_hold"`
	FocusLostHold    time.Duration `yaml:"focus_lost_hold"`
	ObjectCooldown   time.Duration `yaml:"object_cooldown"`
	SkinRatio        float64       `yaml:"skin_ratio"`
	GazeOffsetFrac   float64       `yaml:"gaze_offset_frac"`
	DrowsyOffsetFrac float64       `yaml:"drowsy_offset_frac"`

	PhoneEdgeDensity  float64 `yaml:"phone_edge_density"`
	BookEdgeDensity   float64 `yaml:"book_edge_density"`
	DeviceEdgeDensity float64 `yaml:"device_edge_density"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Path: "proctorhub.db",
		},
		Detector: DetectorConfig{
			FaceAbsentHold:    10 * time.Second,
			FocusLostHold:     5 * time.Second,
			ObjectCooldown:    30 * time.Second,
			SkinRatio:         0.05,
			GazeOffsetFrac:    0.3,
			DrowsyOffsetFrac:  0.4,
			PhoneEdgeDensity:  0.10,
			BookEdgeDensity:   0.08,
			DeviceEdgeDensity: 0.12,
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Detector.FaceAbsentHold <= 0 {
		return fmt.Errorf("detector.face_absent_hold must be positive")
	}
	if c.Detector.FocusLostHold <= 0 {
		return fmt.Errorf("detector.focus_lost_hold must be positive")
	}
	if c.Detector.ObjectCooldown < 0 {
		return fmt.Errorf("detector.object_cooldown must not be negative")
	}
	return nil
}
