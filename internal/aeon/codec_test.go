package aeon

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholm/tlsync/internal/jdoc"
)

func minimalDocument() *Document {
	return &Document{Root: jdoc.Object{
		"entities": jdoc.Array{},
		"events":   jdoc.Array{},
		"template": jdoc.Object{
			"colors": jdoc.Array{},
			"rangeProperties": jdoc.Array{
				jdoc.Object{
					"type": "date",
					"guid": "DATE-GUID",
					"calendar": jdoc.Object{
						"eras": jdoc.Array{jdoc.Object{"name": "AD"}},
					},
				},
			},
			"types":      jdoc.Array{},
			"properties": jdoc.Array{},
		},
	}}
}

func TestSaveOpen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.aeonzip")
	doc := minimalDocument()
	doc.AppendEvent(jdoc.Object{"title": "Mrs Hubbard sleeps", "displayId": "1"})

	require.NoError(t, Save(doc, path))

	got, err := Open(path)
	require.NoError(t, err)
	events := got.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Mrs Hubbard sleeps", jdoc.Str(jdoc.Obj(events[0]), "title"))
}

func TestSave_BackupInvariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.aeonzip")
	require.NoError(t, Save(minimalDocument(), path))
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	doc := minimalDocument()
	doc.AppendEvent(jdoc.Object{"title": "New event", "displayId": "2"})
	require.NoError(t, Save(doc, path))

	// The pre-write content must be byte-identical to the .bak sibling.
	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	rewritten, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, original, rewritten)
}

func TestSave_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.aeonzip")
	b := filepath.Join(dir, "b.aeonzip")

	doc := minimalDocument()
	doc.AppendEvent(jdoc.Object{"title": "One", "tags": jdoc.Array{"x"}})
	require.NoError(t, Save(doc, a))
	require.NoError(t, Save(doc, b))

	da, err := Open(a)
	require.NoError(t, err)
	db, err := Open(b)
	require.NoError(t, err)
	ba, err := jdoc.MarshalCanonical(da.Root)
	require.NoError(t, err)
	bb, err := jdoc.MarshalCanonical(db.Root)
	require.NoError(t, err)
	assert.Equal(t, ba, bb)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.aeonzip"))
	assert.True(t, IsContainerError(err), "got %v", err)
}

func TestOpen_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.aeonzip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))
	_, err := Open(path)
	assert.True(t, IsContainerError(err), "got %v", err)
}

func TestOpen_MissingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noentry.aeonzip")
	writeZip(t, path, "other.txt", []byte("hello"))
	_, err := Open(path)
	require.True(t, IsContainerError(err), "got %v", err)
	assert.Contains(t, err.Error(), "timeline.json")
}

func TestOpen_EmptyEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.aeonzip")
	writeZip(t, path, "timeline.json", nil)
	_, err := Open(path)
	assert.True(t, IsContainerError(err), "got %v", err)
}

func TestOpen_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badjson.aeonzip")
	writeZip(t, path, "timeline.json", []byte("{broken"))
	_, err := Open(path)
	assert.True(t, IsContainerError(err), "got %v", err)
}

func writeZip(t *testing.T, path, name string, data []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}
