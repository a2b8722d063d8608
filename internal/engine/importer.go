package engine

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nholm/tlsync/internal/jdoc"
	"github.com/nholm/tlsync/internal/model"
)

// importEvents runs the import pass: timeline entities become project
// elements, events become scenes. Correspondence is by title; objects
// already present in the project are updated in place, the rest are
// created. The document's entity and event lists are read but only
// normalized (empty notes, missing value slots), never reordered.
func (s *session) importEvents() error {
	if err := s.importEntities(); err != nil {
		return err
	}

	sceneIdx, err := indexScenes(SideProject, s.prj)
	if err != nil {
		return err
	}

	// scIDsByTS groups scene IDs by event timestamp for chronological
	// placement of scenes that end up without a chapter.
	scIDsByTS := map[int64][]string{}
	var tsOrder []int64
	eventTitles := titleIndex{}

	for _, v := range s.doc.Events() {
		evt := jdoc.Obj(v)
		if evt == nil {
			continue
		}
		title := strings.TrimSpace(jdoc.Str(evt, "title"))
		evt["title"] = title
		if err := eventTitles.add(SideTimeline, kindEvent, title, title); err != nil {
			return err
		}

		isNarrative := s.hasNarrativeRelationship(evt)

		var sc *model.Scene
		if scID, ok := sceneIdx.get(title); ok {
			sc = s.prj.Scenes[scID]
		} else {
			if s.cfg.ScenesOnly && !isNarrative {
				// Plain event, not part of the narrative; leave it out.
				continue
			}
			sc = &model.Scene{ID: model.NewID(), Title: title, Status: 1}
			s.prj.AddScene(sc)
			if err := sceneIdx.add(SideProject, kindScene, title, sc.ID); err != nil {
				return err
			}
			s.log.Debug("import: new scene", zap.String("title", title))
		}
		s.touched[sc.ID] = true

		if id, err := strconv.ParseFloat(jdoc.Str(evt, "displayId"), 64); err == nil && id > s.displayIDMax {
			s.displayIDMax = id
		}

		s.importValues(evt, sc)

		if tags := jdoc.ArrAt(evt, "tags"); len(tags) > 0 {
			sc.Tags = nil
			for _, t := range tags {
				if tag, ok := t.(string); ok {
					sc.Tags = append(sc.Tags, tag)
				}
			}
		}

		ts := s.importTiming(evt, sc)
		if _, seen := scIDsByTS[ts]; !seen {
			tsOrder = append(tsOrder, ts)
		}
		scIDsByTS[ts] = append(scIDsByTS[ts], sc.ID)

		s.importRelationships(evt, sc, ts)
	}

	// Scenes that were in the narrative but have no event anymore were
	// deleted on the timeline side.
	for _, sc := range s.prj.Scenes {
		if !s.touched[sc.ID] && sc.Type == model.SceneNormal {
			sc.Type = model.SceneUnused
		}
	}

	s.collectOrphans(scIDsByTS, tsOrder)

	if s.timestampMax == 0 {
		s.timestampMax = timeTimestamp(s.ref)
	}
	return nil
}

// importEntities classifies the document's entities and creates the
// project elements they stand for. Arc entities are only recorded; they
// have no project-side object.
func (s *session) importEntities() error {
	charIdx, err := indexElements(SideProject, kindCharacter, s.prj.Characters)
	if err != nil {
		return err
	}
	locIdx, err := indexElements(SideProject, kindLocation, s.prj.Locations)
	if err != nil {
		return err
	}
	itemIdx, err := indexElements(SideProject, kindItem, s.prj.Items)
	if err != nil {
		return err
	}

	charNames := titleIndex{}
	locNames := titleIndex{}
	itemNames := titleIndex{}

	for _, v := range s.doc.Entities() {
		ent := jdoc.Obj(v)
		if ent == nil {
			continue
		}
		name := jdoc.Str(ent, "name")
		switch jdoc.Str(ent, "entityType") {
		case s.ids.TypeArc:
			s.arcCount++
			if name == s.cfg.NarrativeArc {
				s.narrativeGUID = jdoc.Str(ent, "guid")
			} else {
				s.arcGUIDs[name] = jdoc.Str(ent, "guid")
				s.arcNames = append(s.arcNames, name)
			}

		case s.ids.TypeCharacter:
			if err := charNames.add(SideTimeline, kindCharacter, name, name); err != nil {
				return err
			}
			el := s.importElement(&s.prj.Characters, charIdx, ent, name)
			s.charGUID[el.ID] = jdoc.Str(ent, "guid")
			s.charByGUID[jdoc.Str(ent, "guid")] = el.ID

		case s.ids.TypeLocation:
			if err := locNames.add(SideTimeline, kindLocation, name, name); err != nil {
				return err
			}
			el := s.importElement(&s.prj.Locations, locIdx, ent, name)
			s.locGUID[el.ID] = jdoc.Str(ent, "guid")
			s.locByGUID[jdoc.Str(ent, "guid")] = el.ID

		case s.ids.TypeItem:
			if err := itemNames.add(SideTimeline, kindItem, name, name); err != nil {
				return err
			}
			el := s.importElement(&s.prj.Items, itemIdx, ent, name)
			s.itemGUID[el.ID] = jdoc.Str(ent, "guid")
			s.itemByGUID[jdoc.Str(ent, "guid")] = el.ID
		}
	}
	return nil
}

// importElement reuses the project element matching the entity's name or
// creates a new one. Entity notes flow to the element; an entity without
// notes gets the field normalized to the empty string so a later save is
// stable.
func (s *session) importElement(list *[]*model.Element, idx titleIndex, ent jdoc.Object, name string) *model.Element {
	var el *model.Element
	if id, ok := idx.get(name); ok {
		el = model.ElementByID(*list, id)
	}
	if el == nil {
		el = &model.Element{ID: model.NewID(), Title: name}
		*list = append(*list, el)
		idx[titleKey(name)] = el.ID
	}
	if notes := jdoc.Str(ent, "notes"); notes != "" {
		el.Notes = notes
	} else {
		ent["notes"] = ""
	}
	return el
}

// importValues copies the description and notes properties to the scene
// and ensures both value slots exist on the event.
func (s *session) importValues(evt jdoc.Object, sc *model.Scene) {
	hasDesc := false
	hasNotes := false
	for _, v := range jdoc.ArrAt(evt, "values") {
		val := jdoc.Obj(v)
		if val == nil {
			continue
		}
		switch jdoc.Str(val, "property") {
		case s.ids.PropertyDesc:
			hasDesc = true
			if text := jdoc.Str(val, "value"); text != "" {
				sc.Desc = text
			}
		case s.ids.PropertyNotes:
			hasNotes = true
			if text := jdoc.Str(val, "value"); text != "" {
				sc.Notes = text
			}
		}
	}
	values := jdoc.ArrAt(evt, "values")
	if !hasDesc {
		values = append(values, jdoc.Object{"property": s.ids.PropertyDesc, "value": ""})
	}
	if !hasNotes {
		values = append(values, jdoc.Object{"property": s.ids.PropertyNotes, "value": ""})
	}
	evt["values"] = values
}

// importTiming applies the event's date range to the scene and returns the
// raw timestamp, zero when the event has no date range.
func (s *session) importTiming(evt jdoc.Object, sc *model.Scene) int64 {
	for _, v := range jdoc.ArrAt(evt, "rangeValues") {
		rgv := jdoc.Obj(v)
		if rgv == nil || jdoc.Str(rgv, "rangeProperty") != s.ids.Date {
			continue
		}
		ts, _ := jdoc.Int(jdoc.ObjAt(rgv, "position"), "timestamp")
		applyEventTiming(sc, ts, jdoc.ObjAt(rgv, "span"), s.ref)
		return ts
	}
	return 0
}

// importRelationships rebuilds the scene's element links and narrative
// membership from the event's relationships. The scene starts out as a
// notes scene; a narrative arc relationship promotes it.
func (s *session) importRelationships(evt jdoc.Object, sc *model.Scene, ts int64) {
	sc.Type = model.SceneNotes
	sc.Characters = nil
	sc.Locations = nil
	sc.Items = nil
	sc.Arcs = nil
	for _, v := range jdoc.ArrAt(evt, "relationships") {
		rel := jdoc.Obj(v)
		if rel == nil {
			continue
		}
		entity := jdoc.Str(rel, "entity")
		switch jdoc.Str(rel, "role") {
		case s.ids.RoleArc:
			if s.narrativeGUID != "" && entity == s.narrativeGUID {
				sc.Type = model.SceneNormal
				if ts > s.timestampMax {
					s.timestampMax = ts
				}
			}
		case s.ids.RoleStoryline:
			for _, name := range s.arcNames {
				if s.arcGUIDs[name] == entity {
					sc.Arcs = append(sc.Arcs, name)
				}
			}
		case s.ids.RoleCharacter:
			if id, ok := s.charByGUID[entity]; ok {
				sc.Characters = append(sc.Characters, id)
			}
		case s.ids.RoleLocation:
			if id, ok := s.locByGUID[entity]; ok {
				sc.Locations = append(sc.Locations, id)
			}
		case s.ids.RoleItem:
			if id, ok := s.itemByGUID[entity]; ok {
				sc.Items = append(sc.Items, id)
			}
		}
	}
}

// hasNarrativeRelationship reports whether the event belongs to the
// narrative arc.
func (s *session) hasNarrativeRelationship(evt jdoc.Object) bool {
	if s.narrativeGUID == "" {
		return false
	}
	for _, v := range jdoc.ArrAt(evt, "relationships") {
		rel := jdoc.Obj(v)
		if rel == nil {
			continue
		}
		if jdoc.Str(rel, "role") == s.ids.RoleArc && jdoc.Str(rel, "entity") == s.narrativeGUID {
			return true
		}
	}
	return false
}

// collectOrphans puts every scene not yet assigned to a chapter into a
// synthetic chapter, in event timestamp order. The chapter is only created
// when at least one such scene exists.
func (s *session) collectOrphans(scIDsByTS map[int64][]string, tsOrder []int64) {
	assigned := s.prj.AssignedScenes()
	sort.Slice(tsOrder, func(i, j int) bool { return tsOrder[i] < tsOrder[j] })

	var newChapter *model.Chapter
	for _, ts := range tsOrder {
		for _, scID := range scIDsByTS[ts] {
			if assigned[scID] {
				continue
			}
			if newChapter == nil {
				newChapter = &model.Chapter{ID: model.NewID(), Title: NewChapterTitle}
				s.prj.AddChapter(newChapter)
			}
			newChapter.SceneIDs = append(newChapter.SceneIDs, scID)
		}
	}
}

func formatDisplayID(f float64) string {
	return strconv.FormatInt(int64(f), 10)
}
