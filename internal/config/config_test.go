package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "Narrative", cfg.NarrativeArc)
	assert.Equal(t, "Participant", cfg.RoleCharacter)
	assert.Equal(t, "2023-01-01 00:00:00", cfg.ReferenceDateTime)
	assert.False(t, cfg.ScenesOnly)
	assert.False(t, cfg.AddMoonphase)
}

func TestLoad_ProjectFileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := "narrative_arc: Story\nscenes_only: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Story", cfg.NarrativeArc)
	assert.True(t, cfg.ScenesOnly)
	// Untouched keys keep their defaults.
	assert.Equal(t, "Description", cfg.PropertyDescription)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().NarrativeArc, cfg.NarrativeArc)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(":\nnot yaml: ["), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TLSYNC_NARRATIVE_ARC", "Hauptstrang")
	t.Setenv("TLSYNC_ADD_MOONPHASE", "true")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Hauptstrang", cfg.NarrativeArc)
	assert.True(t, cfg.AddMoonphase)
}

func TestReference(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Reference())

	cfg.ReferenceDateTime = "1999-12-31 18:30:00"
	assert.Equal(t, time.Date(1999, 12, 31, 18, 30, 0, 0, time.UTC), cfg.Reference())

	// Unparseable values fall back to the default.
	cfg.ReferenceDateTime = "whenever"
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Reference())
}
