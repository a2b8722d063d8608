// Package engine reconciles a timeline archive with a writing project.
//
// The two systems assign independent identifiers to the same objects, so
// correspondence is established by title, rebuilt from scratch on every
// pass rather than persisted. This requires scene, character, location,
// and item titles to each be unique per side; a duplicate aborts the whole
// operation before anything is written.
//
// Import updates the project from the archive. Export first re-runs Import
// against the archive to obtain a freshly reconciled baseline (so archive
// data absent from the project is never silently dropped), then pushes the
// project's state into the document. The caller saves the document; the
// engine itself never touches the disk.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/nholm/tlsync/internal/aeon"
	"github.com/nholm/tlsync/internal/config"
	"github.com/nholm/tlsync/internal/model"
)

// NewChapterTitle is the title of the chapter synthesized for scenes that
// import finds unassigned.
const NewChapterTitle = "New scenes"

// Engine performs import and export synchronization. It is stateless
// across calls; each call owns its document and project exclusively and
// runs to completion or fails without partial effect.
type Engine struct {
	cfg config.Config
	log *zap.Logger
}

// New returns an engine using cfg. A nil logger disables logging.
func New(cfg config.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

// Import updates the project from the timeline document. The document is
// repaired (missing template vocabulary is invented) and lightly
// normalized in the process, which is what makes a following Save
// byte-stable.
func (e *Engine) Import(doc *aeon.Document, prj *model.Project) error {
	s, err := e.newSession(doc, prj)
	if err != nil {
		return err
	}
	return s.importEvents()
}

// Export updates the timeline document from the project. The archive's
// current content is imported into a fresh baseline first; src is then
// merged over that baseline and the result written into the document.
// Events retired on the project side are removed unless they are
// notes-only events the project never owned.
func (e *Engine) Export(src *model.Project, doc *aeon.Document) error {
	s, err := e.newSession(doc, model.NewProject())
	if err != nil {
		return err
	}
	if err := s.importEvents(); err != nil {
		return err
	}
	return s.export(src)
}

// session is the per-call state shared between the import pass and the
// export merge: resolved template GUIDs, identity maps, and the running
// timestamp and display-order maxima.
type session struct {
	engine *Engine
	cfg    config.Config
	log    *zap.Logger
	doc    *aeon.Document
	prj    *model.Project
	ids    *aeon.TemplateIDs
	ref    time.Time

	colors map[string]string

	// narrativeGUID is the entity GUID of the distinguished narrative
	// arc; empty until the entity exists.
	narrativeGUID string
	// arcNames preserves sub-arc discovery order so that generated
	// entities and relationship updates land in a reproducible order.
	arcNames []string
	arcGUIDs map[string]string
	arcCount int

	// Project element ID -> timeline entity GUID, and the reverse.
	charGUID   map[string]string
	locGUID    map[string]string
	itemGUID   map[string]string
	charByGUID map[string]string
	locByGUID  map[string]string
	itemByGUID map[string]string

	timestampMax int64
	displayIDMax float64

	// touched collects the scene IDs the import pass saw; untouched
	// normal scenes are retired afterwards.
	touched map[string]bool
}

func (e *Engine) newSession(doc *aeon.Document, prj *model.Project) (*session, error) {
	ids, err := aeon.RepairTemplate(doc, aeon.TemplateSpec{
		TypeCharacter:     e.cfg.TypeCharacter,
		TypeLocation:      e.cfg.TypeLocation,
		TypeItem:          e.cfg.TypeItem,
		RoleCharacter:     e.cfg.RoleCharacter,
		RoleLocation:      e.cfg.RoleLocation,
		RoleItem:          e.cfg.RoleItem,
		PropertyDesc:      e.cfg.PropertyDescription,
		PropertyNotes:     e.cfg.PropertyNotes,
		PropertyMoonphase: e.cfg.PropertyMoonphase,
		AddMoonphase:      e.cfg.AddMoonphase,
	})
	if err != nil {
		return nil, err
	}
	return &session{
		engine:     e,
		cfg:        e.cfg,
		log:        e.log,
		doc:        doc,
		prj:        prj,
		ids:        ids,
		ref:        e.cfg.Reference(),
		colors:     doc.Colors(),
		arcGUIDs:   map[string]string{},
		charGUID:   map[string]string{},
		locGUID:    map[string]string{},
		itemGUID:   map[string]string{},
		charByGUID: map[string]string{},
		locByGUID:  map[string]string{},
		itemByGUID: map[string]string{},
		touched:    map[string]bool{},
	}, nil
}

// nextTimestamp returns a synthetic timestamp strictly above every
// previously seen one.
func (s *session) nextTimestamp() int64 {
	s.timestampMax++
	return s.timestampMax
}

// nextDisplayID returns the next display-order value for a new event.
func (s *session) nextDisplayID() string {
	s.displayIDMax++
	return formatDisplayID(s.displayIDMax)
}
