// Package config loads the synchronization settings. Every option has a
// documented default; a missing configuration source leaves the defaults
// in effect. Files are YAML and are looked up first in the user config
// directory, then next to the project, with later sources overriding
// earlier ones. A handful of TLSYNC_* environment variables override
// everything (an optional .env file is honored).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name searched for in the user config
// directory and next to the project file.
const FileName = "tlsync.yaml"

const referenceLayout = "2006-01-02 15:04:05"

// Config is the full configuration surface of the sync engine.
type Config struct {
	// ReferenceDateTime anchors relative-day scenes, formatted
	// "2006-01-02 15:04:05".
	ReferenceDateTime string `yaml:"reference_date_time"`

	// NarrativeArc is the name of the timeline arc entity that marks an
	// event as part of the narrative.
	NarrativeArc string `yaml:"narrative_arc"`

	PropertyDescription string `yaml:"property_description"`
	PropertyNotes       string `yaml:"property_notes"`
	PropertyMoonphase   string `yaml:"property_moonphase"`

	RoleCharacter string `yaml:"role_character"`
	RoleLocation  string `yaml:"role_location"`
	RoleItem      string `yaml:"role_item"`

	TypeCharacter string `yaml:"type_character"`
	TypeLocation  string `yaml:"type_location"`
	TypeItem      string `yaml:"type_item"`

	// Colors assigned to events newly created on export, by scene type.
	ColorScene string `yaml:"color_scene"`
	ColorEvent string `yaml:"color_event"`
	ColorPoint string `yaml:"color_point"`

	// ScenesOnly restricts synchronization to normal scenes; notes scenes
	// and their events are then left alone.
	ScenesOnly bool `yaml:"scenes_only"`

	// AddMoonphase maintains a moon phase property on every event.
	AddMoonphase bool `yaml:"add_moonphase"`
}

// Default returns the configuration used when no source overrides it.
func Default() Config {
	return Config{
		ReferenceDateTime:   "2023-01-01 00:00:00",
		NarrativeArc:        "Narrative",
		PropertyDescription: "Description",
		PropertyNotes:       "Notes",
		PropertyMoonphase:   "Moon phase",
		RoleCharacter:       "Participant",
		RoleLocation:        "Location",
		RoleItem:            "Item",
		TypeCharacter:       "Character",
		TypeLocation:        "Location",
		TypeItem:            "Item",
		ColorScene:          "Red",
		ColorEvent:          "Yellow",
		ColorPoint:          "Blue",
		ScenesOnly:          false,
		AddMoonphase:        false,
	}
}

// Load builds the effective configuration for a project located in
// projectDir. Missing files are skipped silently; a file that exists but
// does not parse is an error.
func Load(projectDir string) (Config, error) {
	cfg := Default()

	var paths []string
	if userDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userDir, "tlsync", FileName))
	}
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, FileName))
	}
	for _, path := range paths {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TLSYNC_REFERENCE_DATE_TIME"); v != "" {
		c.ReferenceDateTime = v
	}
	if v := os.Getenv("TLSYNC_NARRATIVE_ARC"); v != "" {
		c.NarrativeArc = v
	}
	if v, ok := boolEnv("TLSYNC_SCENES_ONLY"); ok {
		c.ScenesOnly = v
	}
	if v, ok := boolEnv("TLSYNC_ADD_MOONPHASE"); ok {
		c.AddMoonphase = v
	}
}

func boolEnv(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Reference returns the parsed reference date/time. An unparseable value
// falls back to the default so that synchronization stays deterministic.
func (c Config) Reference() time.Time {
	t, err := time.ParseInLocation(referenceLayout, c.ReferenceDateTime, time.UTC)
	if err != nil {
		t, _ = time.ParseInLocation(referenceLayout, Default().ReferenceDateTime, time.UTC)
	}
	return t
}
