package engine

import (
	"golang.org/x/text/unicode/norm"

	"github.com/nholm/tlsync/internal/model"
)

// Object kinds used in ambiguity messages.
const (
	kindScene     = "scene"
	kindEvent     = "event"
	kindCharacter = "character"
	kindLocation  = "location"
	kindItem      = "item"
)

// titleKey returns the lookup key for a title. Titles are the identity
// shared across the two systems, so visually identical titles must compare
// equal regardless of Unicode composition.
func titleKey(title string) string {
	return norm.NFC.String(title)
}

// titleIndex maps normalized titles to identifiers on one side. Building
// one fails fast on the first duplicate: titles are the only cross-system
// identity, and a duplicate can never be merged safely.
type titleIndex map[string]string

func (ti titleIndex) add(side, kind, title, id string) error {
	if title == "" {
		return nil
	}
	key := titleKey(title)
	if _, dup := ti[key]; dup {
		return newAmbiguityError(side, kind, title)
	}
	ti[key] = id
	return nil
}

func (ti titleIndex) get(title string) (string, bool) {
	id, ok := ti[titleKey(title)]
	return id, ok
}

func (ti titleIndex) has(title string) bool {
	_, ok := ti[titleKey(title)]
	return ok
}

// indexElements builds a title index over a project element collection.
func indexElements(side, kind string, list []*model.Element) (titleIndex, error) {
	ti := titleIndex{}
	for _, el := range list {
		if err := ti.add(side, kind, el.Title, el.ID); err != nil {
			return nil, err
		}
	}
	return ti, nil
}

// indexScenes builds a title index over every scene in the project.
func indexScenes(side string, prj *model.Project) (titleIndex, error) {
	ti := titleIndex{}
	for id, sc := range prj.Scenes {
		if err := ti.add(side, kindScene, sc.Title, id); err != nil {
			return nil, err
		}
	}
	return ti, nil
}
