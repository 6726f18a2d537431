package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the one knobs file the engine reads at boot. Durations
// are spelled in days/seconds in YAML so ops edits stay obvious.
type EngineConfig struct {
	OpenGroveID        string `yaml:"open_grove_id"`
	SystemActorID      string `yaml:"system_actor_id"`
	UndoWindowSeconds  int    `yaml:"undo_window_seconds"`
	RequestTTLDays     int    `yaml:"request_ttl_days"`
	InviteTTLDays      int    `yaml:"invite_ttl_days"`
	TrashRetentionDays int    `yaml:"trash_retention_days"`
	ShareRule          string `yaml:"share_rule"`
}

func (c EngineConfig) UndoWindow() time.Duration {
	return time.Duration(c.UndoWindowSeconds) * time.Second
}

func (c EngineConfig) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLDays) * 24 * time.Hour
}

func (c EngineConfig) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLDays) * 24 * time.Hour
}

func (c EngineConfig) TrashRetention() time.Duration {
	return time.Duration(c.TrashRetentionDays) * 24 * time.Hour
}

func ParseEngineConfigYAML(b []byte) (EngineConfig, error) {
	cfg := EngineConfig{
		SystemActorID:      "system",
		UndoWindowSeconds:  60,
		RequestTTLDays:     30,
		InviteTTLDays:      7,
		TrashRetentionDays: 30,
	}
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return EngineConfig{}, err
	}
	if strings.TrimSpace(cfg.OpenGroveID) == "" {
		return EngineConfig{}, errors.New("engine config: open_grove_id required")
	}
	if strings.TrimSpace(cfg.SystemActorID) == "" {
		return EngineConfig{}, errors.New("engine config: system_actor_id required")
	}
	if cfg.UndoWindowSeconds <= 0 || cfg.RequestTTLDays <= 0 || cfg.InviteTTLDays <= 0 || cfg.TrashRetentionDays <= 0 {
		return EngineConfig{}, errors.New("engine config: durations must be positive")
	}
	return cfg, nil
}

func LoadEngineConfig(path string) (EngineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, err
	}
	return ParseEngineConfigYAML(b)
}

func loadEngineConfigFromEnv() (EngineConfig, error) {
	path := os.Getenv("ENGINE_CONFIG_PATH")
	if path == "" {
		p, err := defaultEngineConfigPath()
		if err != nil {
			return EngineConfig{}, err
		}
		path = p
	}
	return LoadEngineConfig(path)
}

func defaultEngineConfigPath() (string, error) {
	path := "config/engine.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: engine config not found")
}
