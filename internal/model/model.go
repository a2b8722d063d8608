// Package model holds the in-memory writing project: chapters containing
// ordered scenes, plus the characters, locations, and items a story refers
// to. The sync engine reads and mutates this tree; how it is persisted is
// the store's business.
package model

import "github.com/google/uuid"

// SceneType classifies a scene within the narrative.
type SceneType int

const (
	// SceneNormal is part of the narrative proper.
	SceneNormal SceneType = iota
	// SceneNotes is background material, not part of the narrative.
	SceneNotes
	// SceneTodo is a planned scene or story point.
	SceneTodo
	// SceneUnused is a retired scene kept for reference.
	SceneUnused
)

// Scene is one narrative unit. Temporal and duration fields are pointers:
// nil means the field is absent, which is distinct from zero and governs
// round-trip fidelity with the timeline archive.
type Scene struct {
	ID     string
	Title  string
	Type   SceneType
	Status int

	Desc  string
	Notes string
	Tags  []string

	// Linked element IDs. A nil slice means "not set by the last sync",
	// as opposed to an empty slice meaning "explicitly none".
	Characters []string
	Locations  []string
	Items      []string

	// Arcs lists the story threads (sub-arcs) this scene belongs to.
	Arcs []string

	Date *string // "2006-01-02"
	Time *string // "15:04:05"
	// Day is an offset in whole days from the configured reference date,
	// used when the scene has no absolute date.
	Day *int

	LastsDays    *int
	LastsHours   *int
	LastsMinutes *int
}

// Chapter is an ordered group of scenes.
type Chapter struct {
	ID       string
	Title    string
	Trash    bool
	SceneIDs []string
}

// Element is a character, location, or item: a titled record with notes.
type Element struct {
	ID    string
	Title string
	Notes string
}

// Project is the root of the writing project tree.
type Project struct {
	Chapters   []*Chapter
	Scenes     map[string]*Scene
	Characters []*Element
	Locations  []*Element
	Items      []*Element
}

// NewProject returns an empty project.
func NewProject() *Project {
	return &Project{Scenes: map[string]*Scene{}}
}

// NewID returns a fresh project-internal identifier.
func NewID() string {
	return uuid.NewString()
}

// AddScene registers a scene without assigning it to a chapter.
func (p *Project) AddScene(sc *Scene) {
	p.Scenes[sc.ID] = sc
}

// AddChapter appends a chapter to the project.
func (p *Project) AddChapter(ch *Chapter) {
	p.Chapters = append(p.Chapters, ch)
}

// AssignedScenes returns the set of scene IDs already placed in a chapter.
func (p *Project) AssignedScenes() map[string]bool {
	assigned := make(map[string]bool)
	for _, ch := range p.Chapters {
		for _, id := range ch.SceneIDs {
			assigned[id] = true
		}
	}
	return assigned
}

// ElementByID looks an element up in a collection.
func ElementByID(list []*Element, id string) *Element {
	for _, el := range list {
		if el.ID == id {
			return el
		}
	}
	return nil
}

// IntPtr returns a pointer to n. Convenience for the optional temporal
// fields.
func IntPtr(n int) *int { return &n }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
