package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		require.NotEmpty(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestProject_AddAndAssign(t *testing.T) {
	prj := NewProject()
	prj.AddScene(&Scene{ID: "s1", Title: "One"})
	prj.AddScene(&Scene{ID: "s2", Title: "Two"})
	prj.AddChapter(&Chapter{ID: "ch1", Title: "First", SceneIDs: []string{"s1"}})

	assigned := prj.AssignedScenes()
	assert.True(t, assigned["s1"])
	assert.False(t, assigned["s2"])
}

func TestElementByID(t *testing.T) {
	list := []*Element{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
	require.NotNil(t, ElementByID(list, "b"))
	assert.Equal(t, "B", ElementByID(list, "b").Title)
	assert.Nil(t, ElementByID(list, "c"))
}
