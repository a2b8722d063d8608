package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholm/tlsync/internal/jdoc"
	"github.com/nholm/tlsync/internal/store"
)

// Role GUID of the narrative arc relationship after template repair.
const testRoleArcGUID = "F4B59607-2B9F-94BD-24B3-B45DC52A06BC"

func testTimeline() jdoc.Object {
	return jdoc.Object{
		"template": jdoc.Object{
			"rangeProperties": jdoc.Array{jdoc.Object{
				"guid": "DATE-GUID",
				"type": "date",
				"calendar": jdoc.Object{
					"eras": jdoc.Array{jdoc.Object{"name": "AD"}},
				},
			}},
			"colors": jdoc.Array{
				jdoc.Object{"name": "Red", "guid": "RED-GUID"},
				jdoc.Object{"name": "Yellow", "guid": "YELLOW-GUID"},
				jdoc.Object{"name": "Blue", "guid": "BLUE-GUID"},
			},
			"types": jdoc.Array{jdoc.Object{
				"guid":  "8F16537D-A4F6-8D5E-CA8A-31D8A92E0098",
				"name":  "Arc",
				"roles": jdoc.Array{},
			}},
			"properties": jdoc.Array{},
		},
		"entities": jdoc.Array{jdoc.Object{
			"entityType": "8F16537D-A4F6-8D5E-CA8A-31D8A92E0098",
			"guid":       "NARRATIVE-GUID",
			"name":       "Narrative",
			"notes":      "",
		}},
		"events": jdoc.Array{jdoc.Object{
			"title":     "Night one",
			"displayId": "1",
			"tags":      jdoc.Array{},
			"values":    jdoc.Array{},
			"rangeValues": jdoc.Array{jdoc.Object{
				"rangeProperty": "DATE-GUID",
				"position":      jdoc.Object{"precision": "minute", "timestamp": int64(63856578600)},
				"span":          jdoc.Object{},
			}},
			"relationships": jdoc.Array{jdoc.Object{
				"entity":           "NARRATIVE-GUID",
				"role":             testRoleArcGUID,
				"percentAllocated": int64(1),
			}},
		}},
	}
}

func writeTestArchive(t *testing.T, path string, root jdoc.Object) {
	t.Helper()
	data, err := jdoc.MarshalCanonical(root)
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("timeline.json")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "story.aeonzip")
	project := filepath.Join(dir, "story.db")
	writeTestArchive(t, archive, testTimeline())

	out, err := runCommand(t, "import", archive, "--project", project)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 scenes")

	st, err := store.Open(project)
	require.NoError(t, err)
	defer st.Close()
	prj, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, prj.Scenes, 1)
	for _, sc := range prj.Scenes {
		assert.Equal(t, "Night one", sc.Title)
	}
	require.Len(t, prj.Chapters, 1)
}

func TestImportCommand_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	out, err := runCommand(t, "import", filepath.Join(dir, "nope.aeonzip"),
		"--project", filepath.Join(dir, "story.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error")
}

func TestExportCommand_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "story.aeonzip")
	project := filepath.Join(dir, "story.db")
	writeTestArchive(t, archive, testTimeline())

	_, err := runCommand(t, "import", archive, "--project", project)
	require.NoError(t, err)

	out, err := runCommand(t, "export", archive, "--project", project)
	require.NoError(t, err, out)

	// The previous archive survives as a backup.
	_, err = os.Stat(archive + ".bak")
	require.NoError(t, err)

	// The written archive still opens and keeps its event.
	out2, err := runCommand(t, "inspect", archive)
	require.NoError(t, err)
	assert.Contains(t, out2, "1 events")
}

func TestExportCommand_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	_, err := runCommand(t, "export", filepath.Join(dir, "nope.aeonzip"),
		"--project", filepath.Join(dir, "story.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMoonphaseCommand_AddsProperty(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "story.aeonzip")
	project := filepath.Join(dir, "story.db")
	writeTestArchive(t, archive, testTimeline())

	_, err := runCommand(t, "import", archive, "--project", project)
	require.NoError(t, err)

	_, err = runCommand(t, "moonphase", archive, "--project", project)
	require.NoError(t, err)

	out, err := runCommand(t, "inspect", archive, "--format", "json")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	// Notes, description, and moon phase.
	assert.Equal(t, float64(3), data["properties"])
}

func TestInspectCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "story.aeonzip")
	writeTestArchive(t, archive, testTimeline())

	out, err := runCommand(t, "inspect", archive, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["events"])
	assert.Equal(t, true, data["era_date"])
}
