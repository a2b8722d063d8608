package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholm/tlsync/internal/model"
)

func TestTitleIndex_RejectsDuplicates(t *testing.T) {
	ti := titleIndex{}
	require.NoError(t, ti.add(SideProject, kindScene, "Mrs Hubbard sleeps", "a"))
	err := ti.add(SideProject, kindScene, "Mrs Hubbard sleeps", "b")
	require.Error(t, err)
	assert.True(t, IsAmbiguityError(err))
	assert.Contains(t, err.Error(), `"Mrs Hubbard sleeps"`)
}

func TestTitleIndex_SkipsEmptyTitles(t *testing.T) {
	ti := titleIndex{}
	require.NoError(t, ti.add(SideProject, kindScene, "", "a"))
	require.NoError(t, ti.add(SideProject, kindScene, "", "b"))
	assert.Empty(t, ti)
}

func TestTitleIndex_UnicodeNormalization(t *testing.T) {
	ti := titleIndex{}
	// Composed e-acute vs combining accent.
	require.NoError(t, ti.add(SideProject, kindCharacter, "Hélène", "a"))
	err := ti.add(SideProject, kindCharacter, "Hélène", "b")
	require.Error(t, err)
	assert.True(t, IsAmbiguityError(err))

	id, ok := ti.get("Hélène")
	assert.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestIndexElements(t *testing.T) {
	list := []*model.Element{
		{ID: "c1", Title: "Poirot"},
		{ID: "c2", Title: "Ratchett"},
	}
	ti, err := indexElements(SideProject, kindCharacter, list)
	require.NoError(t, err)
	id, ok := ti.get("Poirot")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
	assert.False(t, ti.has("Bouc"))
}

func TestIndexScenes_Duplicate(t *testing.T) {
	prj := model.NewProject()
	prj.AddScene(&model.Scene{ID: "s1", Title: "Night train"})
	prj.AddScene(&model.Scene{ID: "s2", Title: "Night train"})
	_, err := indexScenes(SideProject, prj)
	require.Error(t, err)
	assert.True(t, IsAmbiguityError(err))

	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SideProject, se.Side)
	assert.Equal(t, "Night train", se.Title)
}
