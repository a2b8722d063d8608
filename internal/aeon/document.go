package aeon

import "github.com/nholm/tlsync/internal/jdoc"

// Era is the calendar era that anchors every timestamp. A date range
// property whose calendar lacks it makes the document unusable.
const Era = "AD"

// Template returns the template section of the document, creating it if
// absent.
func (d *Document) Template() jdoc.Object {
	tpl := jdoc.ObjAt(d.Root, "template")
	if tpl == nil {
		tpl = jdoc.Object{}
		d.Root["template"] = tpl
	}
	return tpl
}

// Types returns the template's entity type list.
func (d *Document) Types() jdoc.Array {
	return jdoc.ArrAt(d.Template(), "types")
}

// SetTypes replaces the template's entity type list.
func (d *Document) SetTypes(types jdoc.Array) {
	d.Template()["types"] = types
}

// Properties returns the template's event property list.
func (d *Document) Properties() jdoc.Array {
	return jdoc.ArrAt(d.Template(), "properties")
}

// SetProperties replaces the template's event property list.
func (d *Document) SetProperties(props jdoc.Array) {
	d.Template()["properties"] = props
}

// Entities returns the document's entity list.
func (d *Document) Entities() jdoc.Array {
	return jdoc.ArrAt(d.Root, "entities")
}

// AppendEntity adds an entity to the document.
func (d *Document) AppendEntity(ent jdoc.Object) {
	d.Root["entities"] = append(d.Entities(), ent)
}

// Events returns the document's event list.
func (d *Document) Events() jdoc.Array {
	return jdoc.ArrAt(d.Root, "events")
}

// AppendEvent adds an event to the document.
func (d *Document) AppendEvent(evt jdoc.Object) {
	d.Root["events"] = append(d.Events(), evt)
}

// SetEvents replaces the document's event list.
func (d *Document) SetEvents(events jdoc.Array) {
	d.Root["events"] = events
}

// Colors returns the template's color table as a name to GUID map.
func (d *Document) Colors() map[string]string {
	colors := make(map[string]string)
	for _, v := range jdoc.ArrAt(d.Template(), "colors") {
		col := jdoc.Obj(v)
		if col == nil {
			continue
		}
		colors[jdoc.Str(col, "name")] = jdoc.Str(col, "guid")
	}
	return colors
}

// DateRangeGUID returns the GUID of the template's "date" range property
// whose calendar defines the Era, or "" when no such property exists.
func (d *Document) DateRangeGUID() string {
	for _, v := range jdoc.ArrAt(d.Template(), "rangeProperties") {
		rgp := jdoc.Obj(v)
		if rgp == nil || jdoc.Str(rgp, "type") != "date" {
			continue
		}
		for _, e := range jdoc.ArrAt(jdoc.ObjAt(rgp, "calendar"), "eras") {
			era := jdoc.Obj(e)
			if era != nil && jdoc.Str(era, "name") == Era {
				return jdoc.Str(rgp, "guid")
			}
		}
	}
	return ""
}
