package aeon

import (
	"github.com/nholm/tlsync/internal/guid"
	"github.com/nholm/tlsync/internal/jdoc"
)

// TemplateSpec names the template vocabulary the sync engine depends on.
// Type, role, and property names are user-configurable; the Arc type and
// its Arc/Storyline roles are fixed.
type TemplateSpec struct {
	TypeCharacter string
	TypeLocation  string
	TypeItem      string

	RoleCharacter string
	RoleLocation  string
	RoleItem      string

	PropertyDesc      string
	PropertyNotes     string
	PropertyMoonphase string
	AddMoonphase      bool
}

// TemplateIDs holds the resolved GUIDs of the template elements the
// engine relies on. PropertyMoonphase stays empty unless the property
// exists or AddMoonphase asked for it.
type TemplateIDs struct {
	Date string

	TypeArc       string
	TypeCharacter string
	TypeLocation  string
	TypeItem      string

	RoleArc       string
	RoleStoryline string
	RoleCharacter string
	RoleLocation  string
	RoleItem      string

	PropertyDesc      string
	PropertyNotes     string
	PropertyMoonphase string
}

// RepairTemplate verifies that the types, roles, and event properties in
// spec exist in the document, inventing any missing ones with fixed-seed
// GUIDs. It is idempotent: repairing an already repaired document changes
// nothing. The returned TemplateIDs are the engine's handles into the
// template.
//
// It fails with a SchemaError when the document has no date range property
// anchored to the Era calendar, since without it no timestamp can be
// interpreted.
func RepairTemplate(d *Document, spec TemplateSpec) (*TemplateIDs, error) {
	ids := &TemplateIDs{Date: d.DateRangeGUID()}
	if ids.Date == "" {
		return nil, &SchemaError{Msg: `"` + Era + `" era is missing in the calendar`}
	}

	resolveTypes(d, spec, ids)
	repairArcType(d, ids)
	repairEntityType(d, &ids.TypeCharacter, &ids.RoleCharacter, typeMeta{
		seedType: "_typeCharacterGuid", seedRole: "_roleCharacterGuid",
		name: spec.TypeCharacter, role: spec.RoleCharacter,
		color: "iconRed", icon: "person", persistent: false,
	})
	repairEntityType(d, &ids.TypeLocation, &ids.RoleLocation, typeMeta{
		seedType: "_typeLocationGuid", seedRole: "_roleLocationGuid",
		name: spec.TypeLocation, role: spec.RoleLocation,
		color: "iconOrange", icon: "map", persistent: true,
	})
	repairEntityType(d, &ids.TypeItem, &ids.RoleItem, typeMeta{
		seedType: "_typeItemGuid", seedRole: "_roleItemGuid",
		name: spec.TypeItem, role: spec.RoleItem,
		color: "iconPurple", icon: "cube", persistent: true,
	})
	repairProperties(d, spec, ids)
	return ids, nil
}

// resolveTypes scans the existing type list and records the GUIDs of the
// types and roles it already defines.
func resolveTypes(d *Document, spec TemplateSpec, ids *TemplateIDs) {
	for _, v := range d.Types() {
		typ := jdoc.Obj(v)
		if typ == nil {
			continue
		}
		switch jdoc.Str(typ, "name") {
		case "Arc":
			ids.TypeArc = jdoc.Str(typ, "guid")
			ids.RoleArc = roleGUID(typ, "Arc")
			ids.RoleStoryline = roleGUID(typ, "Storyline")
		case spec.TypeCharacter:
			ids.TypeCharacter = jdoc.Str(typ, "guid")
			ids.RoleCharacter = roleGUID(typ, spec.RoleCharacter)
		case spec.TypeLocation:
			ids.TypeLocation = jdoc.Str(typ, "guid")
			ids.RoleLocation = roleGUID(typ, spec.RoleLocation)
		case spec.TypeItem:
			ids.TypeItem = jdoc.Str(typ, "guid")
			ids.RoleItem = roleGUID(typ, spec.RoleItem)
		}
	}
}

func roleGUID(typ jdoc.Object, name string) string {
	for _, v := range jdoc.ArrAt(typ, "roles") {
		role := jdoc.Obj(v)
		if role != nil && jdoc.Str(role, "name") == name {
			return jdoc.Str(role, "guid")
		}
	}
	return ""
}

// repairArcType ensures the Arc type exists and carries both the Arc role
// (narrative membership) and the Storyline role (sub-arc membership). The
// roles are checked independently of the type: an existing Arc type may
// still lack one of them.
func repairArcType(d *Document, ids *TemplateIDs) {
	if ids.TypeArc == "" {
		ids.TypeArc = guid.Generate("typeArcGuid")
		d.SetTypes(append(d.Types(), jdoc.Object{
			"color":      "iconYellow",
			"guid":       ids.TypeArc,
			"icon":       "book",
			"name":       "Arc",
			"persistent": true,
			"roles":      jdoc.Array{},
			"sortOrder":  int64(len(d.Types())),
		}))
	}
	for _, v := range d.Types() {
		typ := jdoc.Obj(v)
		if typ == nil || jdoc.Str(typ, "name") != "Arc" {
			continue
		}
		if ids.RoleArc == "" {
			ids.RoleArc = guid.Generate("_roleArcGuid")
			typ["roles"] = append(jdoc.ArrAt(typ, "roles"), newRole(ids.RoleArc, "Arc", "circle text"))
		}
		if ids.RoleStoryline == "" {
			ids.RoleStoryline = guid.Generate("_roleStorylineGuid")
			typ["roles"] = append(jdoc.ArrAt(typ, "roles"), newRole(ids.RoleStoryline, "Storyline", "circle filled text"))
		}
	}
}

type typeMeta struct {
	seedType, seedRole string
	name, role         string
	color, icon        string
	persistent         bool
}

// repairEntityType appends a complete type definition (with its single
// role) when the type is missing altogether, or just the role when the
// type exists without it.
func repairEntityType(d *Document, typeID, roleID *string, meta typeMeta) {
	if *typeID == "" {
		*typeID = guid.Generate(meta.seedType)
		*roleID = guid.Generate(meta.seedRole)
		d.SetTypes(append(d.Types(), jdoc.Object{
			"color":      meta.color,
			"guid":       *typeID,
			"icon":       meta.icon,
			"name":       meta.name,
			"persistent": meta.persistent,
			"roles":      jdoc.Array{newRole(*roleID, meta.role, "circle text")},
			"sortOrder":  int64(len(d.Types())),
		}))
		return
	}
	if *roleID != "" {
		return
	}
	*roleID = guid.Generate(meta.seedRole)
	for _, v := range d.Types() {
		typ := jdoc.Obj(v)
		if typ != nil && jdoc.Str(typ, "guid") == *typeID {
			typ["roles"] = append(jdoc.ArrAt(typ, "roles"), newRole(*roleID, meta.role, "circle text"))
			return
		}
	}
}

func newRole(id, name, icon string) jdoc.Object {
	return jdoc.Object{
		"allowsMultipleForEntity": true,
		"allowsMultipleForEvent":  true,
		"allowsPercentAllocated":  false,
		"guid":                    id,
		"icon":                    icon,
		"mandatoryForEntity":      false,
		"mandatoryForEvent":       false,
		"name":                    name,
		"sortOrder":               int64(0),
	}
}

// repairProperties ensures the notes, description, and (when requested)
// moon phase event properties exist. The notes property is inserted at the
// front with every existing sortOrder shifted up; the others are appended.
// The ordering only affects display, but it must be reproduced exactly for
// byte-stable output.
func repairProperties(d *Document, spec TemplateSpec, ids *TemplateIDs) {
	for _, v := range d.Properties() {
		prop := jdoc.Obj(v)
		if prop == nil {
			continue
		}
		switch jdoc.Str(prop, "name") {
		case spec.PropertyDesc:
			ids.PropertyDesc = jdoc.Str(prop, "guid")
		case spec.PropertyNotes:
			ids.PropertyNotes = jdoc.Str(prop, "guid")
		case spec.PropertyMoonphase:
			ids.PropertyMoonphase = jdoc.Str(prop, "guid")
		}
	}

	if ids.PropertyNotes == "" {
		for _, v := range d.Properties() {
			prop := jdoc.Obj(v)
			if prop == nil {
				continue
			}
			if n, ok := jdoc.Int(prop, "sortOrder"); ok {
				prop["sortOrder"] = n + 1
			}
		}
		ids.PropertyNotes = guid.Generate("_propertyNotesGuid")
		d.SetProperties(append(jdoc.Array{newProperty(ids.PropertyNotes, spec.PropertyNotes, "tag", "multitext", 0)}, d.Properties()...))
	}
	if ids.PropertyDesc == "" {
		ids.PropertyDesc = guid.Generate("_propertyDescGuid")
		d.SetProperties(append(d.Properties(), newProperty(ids.PropertyDesc, spec.PropertyDesc, "tag", "multitext", len(d.Properties()))))
	}
	if spec.AddMoonphase && ids.PropertyMoonphase == "" {
		ids.PropertyMoonphase = guid.Generate("_propertyMoonphaseGuid")
		d.SetProperties(append(d.Properties(), newProperty(ids.PropertyMoonphase, spec.PropertyMoonphase, "flag", "text", len(d.Properties()))))
	}
}

func newProperty(id, name, icon, kind string, sortOrder int) jdoc.Object {
	return jdoc.Object{
		"calcMode":    "default",
		"calculate":   false,
		"fadeEvents":  false,
		"guid":        id,
		"icon":        icon,
		"isMandatory": false,
		"name":        name,
		"sortOrder":   int64(sortOrder),
		"type":        kind,
	}
}
