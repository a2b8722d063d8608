package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nholm/tlsync/internal/guid"
	"github.com/nholm/tlsync/internal/jdoc"
	"github.com/nholm/tlsync/internal/model"
	"github.com/nholm/tlsync/internal/moon"
)

// export merges src over the freshly imported baseline and pushes the
// result into the document. The session's prj is the baseline at entry;
// scenes and elements created here are added to it so that identity maps
// cover everything the document update needs.
func (s *session) export(src *model.Project) error {
	// Events present in the document, including the ones the import pass
	// skipped. A source scene whose title collides with one of those must
	// not spawn a second event.
	eventTitles := map[string]bool{}
	for _, v := range s.doc.Events() {
		if evt := jdoc.Obj(v); evt != nil {
			eventTitles[titleKey(jdoc.Str(evt, "title"))] = true
		}
	}

	srcScenes, linked, err := s.scanSource(src)
	if err != nil {
		return err
	}

	sceneIdx, err := indexScenes(SideTimeline, s.prj)
	if err != nil {
		return err
	}
	charIdx, err := indexElements(SideTimeline, kindCharacter, s.prj.Characters)
	if err != nil {
		return err
	}
	locIdx, err := indexElements(SideTimeline, kindLocation, s.prj.Locations)
	if err != nil {
		return err
	}
	itemIdx, err := indexElements(SideTimeline, kindItem, s.prj.Items)
	if err != nil {
		return err
	}

	// Baseline scenes missing from the source were deleted there; their
	// events go, unless they are notes-only events the project never
	// owned.
	trash := map[string]bool{}
	for id, sc := range s.prj.Scenes {
		if !srcScenes.has(sc.Title) && sc.Type != model.SceneNotes {
			trash[id] = true
		}
	}

	charMap := s.exportElements(&s.prj.Characters, charIdx, src.Characters, linked.characters,
		s.charGUID, s.ids.TypeCharacter, "person", "darkPink")
	locMap := s.exportElements(&s.prj.Locations, locIdx, src.Locations, linked.locations,
		s.locGUID, s.ids.TypeLocation, "map", "orange")
	itemMap := s.exportElements(&s.prj.Items, itemIdx, src.Items, linked.items,
		s.itemGUID, s.ids.TypeItem, "cube", "denim")

	s.mergeScenes(src, sceneIdx, eventTitles, charMap, locMap, itemMap)

	narrativeRel := s.ensureNarrative()
	arcRels := s.ensureArcs()

	s.updateEvents(sceneIdx, narrativeRel, arcRels)

	// Drop the events of trashed scenes.
	events := jdoc.Array{}
	for _, v := range s.doc.Events() {
		evt := jdoc.Obj(v)
		if evt != nil {
			if scID, ok := sceneIdx.get(jdoc.Str(evt, "title")); ok && trash[scID] {
				s.log.Debug("export: removing event", zap.String("title", jdoc.Str(evt, "title")))
				continue
			}
		}
		events = append(events, v)
	}
	s.doc.SetEvents(events)
	return nil
}

// linkedElements records which source elements are assigned to at least
// one exported scene. Unlinked elements never become entities.
type linkedElements struct {
	characters map[string]bool
	locations  map[string]bool
	items      map[string]bool
}

// scanSource walks the source chapters, rejecting duplicate titles among
// exported scenes and among the elements they link. Scenes in trash
// chapters and scenes not assigned to any chapter stay out of the export
// entirely. New arc names are registered for entity creation.
func (s *session) scanSource(src *model.Project) (titleIndex, linkedElements, error) {
	linked := linkedElements{
		characters: map[string]bool{},
		locations:  map[string]bool{},
		items:      map[string]bool{},
	}
	titles := titleIndex{}
	for _, ch := range src.Chapters {
		if ch.Trash {
			continue
		}
		for _, scID := range ch.SceneIDs {
			sc := src.Scenes[scID]
			if sc == nil {
				continue
			}
			if err := titles.add(SideProject, kindScene, sc.Title, scID); err != nil {
				return nil, linked, err
			}
			for _, id := range sc.Characters {
				linked.characters[id] = true
			}
			for _, id := range sc.Locations {
				linked.locations[id] = true
			}
			for _, id := range sc.Items {
				linked.items[id] = true
			}
			for _, arc := range sc.Arcs {
				if arc == s.cfg.NarrativeArc {
					continue
				}
				if _, known := s.arcGUIDs[arc]; !known {
					s.arcGUIDs[arc] = ""
					s.arcNames = append(s.arcNames, arc)
				}
			}
		}
	}

	if err := checkLinked(kindCharacter, src.Characters, linked.characters); err != nil {
		return nil, linked, err
	}
	if err := checkLinked(kindLocation, src.Locations, linked.locations); err != nil {
		return nil, linked, err
	}
	if err := checkLinked(kindItem, src.Items, linked.items); err != nil {
		return nil, linked, err
	}
	return titles, linked, nil
}

func checkLinked(kind string, list []*model.Element, linked map[string]bool) error {
	titles := titleIndex{}
	for _, el := range list {
		if !linked[el.ID] {
			continue
		}
		if err := titles.add(SideProject, kind, el.Title, el.ID); err != nil {
			return err
		}
	}
	return nil
}

// exportElements maps source elements to baseline elements by title and
// creates a baseline element plus a timeline entity for every linked
// source element with no counterpart. Returns source ID to baseline ID.
func (s *session) exportElements(list *[]*model.Element, idx titleIndex, srcList []*model.Element,
	linked map[string]bool, guidByID map[string]string, typeGUID, icon, swatch string) map[string]string {

	mapped := map[string]string{}
	count := len(*list)
	for _, el := range srcList {
		if id, ok := idx.get(el.Title); ok {
			mapped[el.ID] = id
			continue
		}
		if !linked[el.ID] {
			continue
		}
		count++
		created := &model.Element{ID: model.NewID(), Title: el.Title, Notes: el.Notes}
		*list = append(*list, created)
		idx[titleKey(el.Title)] = created.ID
		mapped[el.ID] = created.ID

		// The seed includes the running count so renaming an entity in
		// the timeline and recreating it here cannot collide.
		id := guid.Generate(fmt.Sprintf("%d%s", count, el.Title))
		guidByID[created.ID] = id
		s.doc.AppendEntity(jdoc.Object{
			"entityType":  typeGUID,
			"guid":        id,
			"icon":        icon,
			"name":        el.Title,
			"notes":       "",
			"sortOrder":   int64(count - 1),
			"swatchColor": swatch,
		})
	}
	return mapped
}

// mergeScenes folds the source scenes into the baseline. Unused scenes,
// notes scenes under scenes-only sync, and todo scenes without arcs are
// withdrawn from the narrative instead of being exported. Scenes unknown
// to the timeline get a fresh event.
func (s *session) mergeScenes(src *model.Project, sceneIdx titleIndex, eventTitles map[string]bool,
	charMap, locMap, itemMap map[string]string) {

	for _, ch := range src.Chapters {
		if ch.Trash {
			continue
		}
		for _, srcID := range ch.SceneIDs {
			srcSc := src.Scenes[srcID]
			if srcSc == nil {
				continue
			}

			withdraw := srcSc.Type == model.SceneUnused ||
				(srcSc.Type == model.SceneNotes && s.cfg.ScenesOnly) ||
				(srcSc.Type == model.SceneTodo && len(srcSc.Arcs) == 0)
			if withdraw {
				if scID, ok := sceneIdx.get(srcSc.Title); ok {
					s.prj.Scenes[scID].Type = model.SceneNotes
				}
				continue
			}

			var sc *model.Scene
			if scID, ok := sceneIdx.get(srcSc.Title); ok {
				sc = s.prj.Scenes[scID]
			} else if eventTitles[titleKey(srcSc.Title)] {
				// A non-narrative event already has this title.
				continue
			} else {
				sc = &model.Scene{ID: model.NewID(), Title: srcSc.Title, Type: srcSc.Type}
				s.prj.AddScene(sc)
				sceneIdx[titleKey(sc.Title)] = sc.ID
				s.doc.AppendEvent(s.buildEvent(sc))
				s.log.Debug("export: new event", zap.String("title", sc.Title))
			}

			sc.Status = srcSc.Status
			sc.Type = srcSc.Type
			if srcSc.Tags != nil {
				sc.Tags = srcSc.Tags
			}
			if srcSc.Desc != "" {
				sc.Desc = srcSc.Desc
			}
			if srcSc.Notes != "" {
				sc.Notes = srcSc.Notes
			}
			if srcSc.Characters != nil {
				sc.Characters = mapIDs(srcSc.Characters, charMap)
			}
			if srcSc.Locations != nil {
				sc.Locations = mapIDs(srcSc.Locations, locMap)
			}
			if srcSc.Items != nil {
				sc.Items = mapIDs(srcSc.Items, itemMap)
			}
			sc.Arcs = srcSc.Arcs

			if srcSc.Time != nil {
				sc.Time = srcSc.Time
			}
			switch {
			case srcSc.Day != nil:
				sc.Date = model.StrPtr(s.ref.AddDate(0, 0, *srcSc.Day).Format(dateLayout))
			case srcSc.Date == nil && srcSc.Time != nil:
				sc.Date = model.StrPtr(s.ref.Format(dateLayout))
			default:
				sc.Date = srcSc.Date
			}
			if srcSc.LastsDays != nil {
				sc.LastsDays = srcSc.LastsDays
			}
			if srcSc.LastsHours != nil {
				sc.LastsHours = srcSc.LastsHours
			}
			if srcSc.LastsMinutes != nil {
				sc.LastsMinutes = srcSc.LastsMinutes
			}
		}
	}
}

func mapIDs(ids []string, mapped map[string]string) []string {
	out := []string{}
	for _, id := range ids {
		if m, ok := mapped[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// buildEvent creates an event skeleton for a scene new to the timeline.
// The timestamp placeholder is below the representable range and gets its
// real value in the update pass.
func (s *session) buildEvent(sc *model.Scene) jdoc.Object {
	color := ""
	switch sc.Type {
	case model.SceneNotes:
		color = s.colors[s.cfg.ColorEvent]
	case model.SceneTodo:
		color = s.colors[s.cfg.ColorPoint]
	default:
		color = s.colors[s.cfg.ColorScene]
	}
	return jdoc.Object{
		"attachments": jdoc.Array{},
		"color":       color,
		"displayId":   s.nextDisplayID(),
		"guid":        guid.Generate("scene" + sc.Title),
		"links":       jdoc.Array{},
		"locked":      false,
		"priority":    int64(500),
		"rangeValues": jdoc.Array{jdoc.Object{
			"minimumZoom": int64(-1),
			"position": jdoc.Object{
				"precision": "minute",
				"timestamp": EraFloor,
			},
			"rangeProperty": s.ids.Date,
			"span":          jdoc.Object{},
		}},
		"relationships": jdoc.Array{},
		"tags":          jdoc.Array{},
		"title":         sc.Title,
		"values": jdoc.Array{
			jdoc.Object{"property": s.ids.PropertyNotes, "value": ""},
			jdoc.Object{"property": s.ids.PropertyDesc, "value": ""},
		},
	}
}

// ensureNarrative creates the narrative arc entity if the timeline lacks
// it and returns the relationship object that marks narrative membership.
func (s *session) ensureNarrative() jdoc.Object {
	if s.narrativeGUID == "" {
		s.narrativeGUID = guid.Generate("entityNarrativeGuid")
		s.doc.AppendEntity(jdoc.Object{
			"entityType":  s.ids.TypeArc,
			"guid":        s.narrativeGUID,
			"icon":        "book",
			"name":        s.cfg.NarrativeArc,
			"notes":       "",
			"sortOrder":   int64(s.arcCount),
			"swatchColor": "orange",
		})
		s.arcCount++
	}
	return relationship(s.narrativeGUID, s.ids.RoleArc)
}

// ensureArcs creates entities for arcs the source introduced and returns
// the storyline relationship per arc name, in discovery order.
func (s *session) ensureArcs() map[string]jdoc.Object {
	rels := make(map[string]jdoc.Object, len(s.arcNames))
	for _, name := range s.arcNames {
		if s.arcGUIDs[name] == "" {
			id := guid.Generate(fmt.Sprintf("entity%sArcGuid", name))
			s.arcGUIDs[name] = id
			s.doc.AppendEntity(jdoc.Object{
				"entityType":  s.ids.TypeArc,
				"guid":        id,
				"icon":        "book",
				"name":        name,
				"notes":       "",
				"sortOrder":   int64(s.arcCount),
				"swatchColor": "orange",
			})
			s.arcCount++
		}
		rels[name] = relationship(s.arcGUIDs[name], s.ids.RoleStoryline)
	}
	return rels
}

// updateEvents pushes the merged scene state into every event whose title
// maps to a scene. Events without a scene are left untouched.
func (s *session) updateEvents(sceneIdx titleIndex, narrativeRel jdoc.Object, arcRels map[string]jdoc.Object) {
	for _, v := range s.doc.Events() {
		evt := jdoc.Obj(v)
		if evt == nil {
			continue
		}
		scID, ok := sceneIdx.get(jdoc.Str(evt, "title"))
		if !ok {
			continue
		}
		sc := s.prj.Scenes[scID]

		// Timing is only overwritten on events inside the representable
		// range; one placed outside it was positioned by hand.
		if rvs := jdoc.ArrAt(evt, "rangeValues"); len(rvs) > 0 {
			if rgv := jdoc.Obj(rvs[0]); rgv != nil {
				pos := jdoc.ObjAt(rgv, "position")
				if ts, _ := jdoc.Int(pos, "timestamp"); ts >= EraFloor {
					rgv["span"] = sceneSpan(sc)
					pos["timestamp"] = sceneTimestamp(sc, s.nextTimestamp)
				}
			}
		}

		s.updateValues(evt, sc)

		if len(sc.Tags) > 0 {
			tags := jdoc.Array{}
			for _, t := range sc.Tags {
				tags = append(tags, t)
			}
			evt["tags"] = tags
		}

		evt["relationships"] = s.updateRelationships(evt, sc, narrativeRel, arcRels)
	}
}

// updateValues sets the description, notes, and moon phase property
// values on the event.
func (s *session) updateValues(evt jdoc.Object, sc *model.Scene) {
	phase := ""
	if s.ids.PropertyMoonphase != "" && sc.Date != nil {
		phase = moon.Display(*sc.Date)
	}

	hasMoonphase := false
	for _, v := range jdoc.ArrAt(evt, "values") {
		val := jdoc.Obj(v)
		if val == nil {
			continue
		}
		switch jdoc.Str(val, "property") {
		case s.ids.PropertyDesc:
			if sc.Desc != "" {
				val["value"] = sc.Desc
			}
		case s.ids.PropertyNotes:
			if sc.Notes != "" {
				val["value"] = sc.Notes
			}
		case s.ids.PropertyMoonphase:
			val["value"] = phase
			hasMoonphase = true
		}
	}
	if !hasMoonphase && s.ids.PropertyMoonphase != "" {
		evt["values"] = append(jdoc.ArrAt(evt, "values"),
			jdoc.Object{"property": s.ids.PropertyMoonphase, "value": phase})
	}
}

// updateRelationships rebuilds the event's element links from the scene
// and reconciles narrative and arc membership with the scene's type.
func (s *session) updateRelationships(evt jdoc.Object, sc *model.Scene,
	narrativeRel jdoc.Object, arcRels map[string]jdoc.Object) jdoc.Array {

	rels := jdoc.Array{}
	for _, v := range jdoc.ArrAt(evt, "relationships") {
		rel := jdoc.Obj(v)
		if rel != nil {
			switch jdoc.Str(rel, "role") {
			case s.ids.RoleCharacter, s.ids.RoleLocation, s.ids.RoleItem:
				continue
			}
		}
		rels = append(rels, v)
	}
	for _, id := range sc.Characters {
		rels = append(rels, relationship(s.charGUID[id], s.ids.RoleCharacter))
	}
	for _, id := range sc.Locations {
		rels = append(rels, relationship(s.locGUID[id], s.ids.RoleLocation))
	}
	for _, id := range sc.Items {
		rels = append(rels, relationship(s.itemGUID[id], s.ids.RoleItem))
	}

	sceneArcs := map[string]bool{}
	for _, name := range sc.Arcs {
		sceneArcs[name] = true
	}

	switch sc.Type {
	case model.SceneNormal:
		rels = addRel(rels, narrativeRel)
		rels = reconcileArcs(rels, s.arcNames, arcRels, sceneArcs)
	case model.SceneTodo:
		rels = removeRel(rels, narrativeRel)
		rels = reconcileArcs(rels, s.arcNames, arcRels, sceneArcs)
	case model.SceneNotes:
		rels = removeRel(rels, narrativeRel)
		for _, name := range sc.Arcs {
			if rel, ok := arcRels[name]; ok {
				rels = removeRel(rels, rel)
			}
		}
	}
	return rels
}

func reconcileArcs(rels jdoc.Array, arcNames []string, arcRels map[string]jdoc.Object, sceneArcs map[string]bool) jdoc.Array {
	for _, name := range arcNames {
		if sceneArcs[name] {
			rels = addRel(rels, arcRels[name])
		} else {
			rels = removeRel(rels, arcRels[name])
		}
	}
	return rels
}

func relationship(entity, role string) jdoc.Object {
	return jdoc.Object{
		"entity":           entity,
		"percentAllocated": int64(1),
		"role":             role,
	}
}

// relEquals compares relationships by entity and role; other attributes
// do not contribute to identity.
func relEquals(v any, rel jdoc.Object) bool {
	o := jdoc.Obj(v)
	return o != nil &&
		jdoc.Str(o, "entity") == jdoc.Str(rel, "entity") &&
		jdoc.Str(o, "role") == jdoc.Str(rel, "role")
}

func addRel(rels jdoc.Array, rel jdoc.Object) jdoc.Array {
	for _, v := range rels {
		if relEquals(v, rel) {
			return rels
		}
	}
	return append(rels, rel)
}

func removeRel(rels jdoc.Array, rel jdoc.Object) jdoc.Array {
	out := rels[:0]
	for _, v := range rels {
		if !relEquals(v, rel) {
			out = append(out, v)
		}
	}
	return out
}
