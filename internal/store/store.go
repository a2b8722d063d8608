// Package store persists the writing project in a SQLite database.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nholm/tlsync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store provides durable storage for a writing project.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Load reads the whole project tree.
func (s *Store) Load(ctx context.Context) (*model.Project, error) {
	prj := model.NewProject()

	if err := s.loadChapters(ctx, prj); err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if err := s.loadScenes(ctx, prj); err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if err := s.loadElements(ctx, prj); err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return prj, nil
}

func (s *Store) loadChapters(ctx context.Context, prj *model.Project) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, trash FROM chapters ORDER BY position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		ch := &model.Chapter{}
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Trash); err != nil {
			return err
		}
		prj.AddChapter(ch)
	}
	return rows.Err()
}

func (s *Store) loadScenes(ctx context.Context, prj *model.Project) error {
	chapters := map[string]*model.Chapter{}
	for _, ch := range prj.Chapters {
		chapters[ch.ID] = ch
	}

	// Chapter membership follows the stored position, so scenes are read
	// in that order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, title, type, status, description, notes,
		       date, time, day, lasts_days, lasts_hours, lasts_minutes,
		       characters_set, locations_set, items_set
		FROM scenes ORDER BY chapter_id, position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type linkFlags struct{ characters, locations, items bool }
	flags := map[string]linkFlags{}

	for rows.Next() {
		sc := &model.Scene{}
		var (
			chapterID sql.NullString
			sceneType int
			f         linkFlags
		)
		if err := rows.Scan(&sc.ID, &chapterID, &sc.Title, &sceneType, &sc.Status,
			&sc.Desc, &sc.Notes, &sc.Date, &sc.Time, &sc.Day,
			&sc.LastsDays, &sc.LastsHours, &sc.LastsMinutes,
			&f.characters, &f.locations, &f.items); err != nil {
			return err
		}
		sc.Type = model.SceneType(sceneType)
		flags[sc.ID] = f
		prj.AddScene(sc)
		if chapterID.Valid {
			if ch, ok := chapters[chapterID.String]; ok {
				ch.SceneIDs = append(ch.SceneIDs, sc.ID)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := s.loadSceneStrings(ctx, prj, "scene_tags", "tag", func(sc *model.Scene, v string) {
		sc.Tags = append(sc.Tags, v)
	}); err != nil {
		return err
	}
	if err := s.loadSceneStrings(ctx, prj, "scene_arcs", "arc", func(sc *model.Scene, v string) {
		sc.Arcs = append(sc.Arcs, v)
	}); err != nil {
		return err
	}

	for id, f := range flags {
		sc := prj.Scenes[id]
		if f.characters {
			sc.Characters = []string{}
		}
		if f.locations {
			sc.Locations = []string{}
		}
		if f.items {
			sc.Items = []string{}
		}
	}
	return s.loadSceneLinks(ctx, prj)
}

func (s *Store) loadSceneStrings(ctx context.Context, prj *model.Project, table, column string, add func(*model.Scene, string)) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT scene_id, %s FROM %s ORDER BY scene_id, position", column, table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sceneID, value string
		if err := rows.Scan(&sceneID, &value); err != nil {
			return err
		}
		if sc, ok := prj.Scenes[sceneID]; ok {
			add(sc, value)
		}
	}
	return rows.Err()
}

func (s *Store) loadSceneLinks(ctx context.Context, prj *model.Project) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_id, kind, element_id FROM scene_links ORDER BY scene_id, kind, position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sceneID, kind, elementID string
		if err := rows.Scan(&sceneID, &kind, &elementID); err != nil {
			return err
		}
		sc, ok := prj.Scenes[sceneID]
		if !ok {
			continue
		}
		switch kind {
		case "character":
			sc.Characters = append(sc.Characters, elementID)
		case "location":
			sc.Locations = append(sc.Locations, elementID)
		case "item":
			sc.Items = append(sc.Items, elementID)
		}
	}
	return rows.Err()
}

func (s *Store) loadElements(ctx context.Context, prj *model.Project) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, title, notes FROM elements ORDER BY kind, position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		el := &model.Element{}
		var kind string
		if err := rows.Scan(&el.ID, &kind, &el.Title, &el.Notes); err != nil {
			return err
		}
		switch kind {
		case "character":
			prj.Characters = append(prj.Characters, el)
		case "location":
			prj.Locations = append(prj.Locations, el)
		case "item":
			prj.Items = append(prj.Items, el)
		}
	}
	return rows.Err()
}

// Save replaces the stored project with prj in one transaction.
func (s *Store) Save(ctx context.Context, prj *model.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	defer tx.Rollback()

	// scene_links and the per-scene tables cascade from scenes.
	for _, table := range []string{"scenes", "chapters", "elements"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save project: clear %s: %w", table, err)
		}
	}

	if err := saveChapters(ctx, tx, prj); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := saveScenes(ctx, tx, prj); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := saveElements(ctx, tx, prj); err != nil {
		return fmt.Errorf("save project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

func saveChapters(ctx context.Context, tx *sql.Tx, prj *model.Project) error {
	for i, ch := range prj.Chapters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (id, position, title, trash) VALUES (?, ?, ?, ?)
		`, ch.ID, i, ch.Title, ch.Trash)
		if err != nil {
			return fmt.Errorf("insert chapter: %w", err)
		}
	}
	return nil
}

func saveScenes(ctx context.Context, tx *sql.Tx, prj *model.Project) error {
	type placement struct {
		chapter  string
		position int
	}
	placed := map[string]placement{}
	for _, ch := range prj.Chapters {
		for i, scID := range ch.SceneIDs {
			placed[scID] = placement{chapter: ch.ID, position: i}
		}
	}

	for id, sc := range prj.Scenes {
		var chapterID any
		var position any
		if p, ok := placed[id]; ok {
			chapterID = p.chapter
			position = p.position
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scenes
			(id, chapter_id, position, title, type, status, description, notes,
			 date, time, day, lasts_days, lasts_hours, lasts_minutes,
			 characters_set, locations_set, items_set)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sc.ID, chapterID, position, sc.Title, int(sc.Type), sc.Status,
			sc.Desc, sc.Notes, sc.Date, sc.Time, sc.Day,
			sc.LastsDays, sc.LastsHours, sc.LastsMinutes,
			sc.Characters != nil, sc.Locations != nil, sc.Items != nil,
		)
		if err != nil {
			return fmt.Errorf("insert scene: %w", err)
		}

		for i, tag := range sc.Tags {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO scene_tags (scene_id, position, tag) VALUES (?, ?, ?)
			`, sc.ID, i, tag); err != nil {
				return fmt.Errorf("insert scene tag: %w", err)
			}
		}
		for i, arc := range sc.Arcs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO scene_arcs (scene_id, position, arc) VALUES (?, ?, ?)
			`, sc.ID, i, arc); err != nil {
				return fmt.Errorf("insert scene arc: %w", err)
			}
		}
	}

	// Element links are inserted by saveElements once the elements exist;
	// the foreign key checks at statement time.
	return nil
}

func saveElements(ctx context.Context, tx *sql.Tx, prj *model.Project) error {
	insert := func(kind string, list []*model.Element) error {
		for i, el := range list {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO elements (id, kind, position, title, notes) VALUES (?, ?, ?, ?, ?)
			`, el.ID, kind, i, el.Title, el.Notes); err != nil {
				return fmt.Errorf("insert %s: %w", kind, err)
			}
		}
		return nil
	}
	if err := insert("character", prj.Characters); err != nil {
		return err
	}
	if err := insert("location", prj.Locations); err != nil {
		return err
	}
	if err := insert("item", prj.Items); err != nil {
		return err
	}

	link := func(sceneID, kind string, ids []string) error {
		for i, elementID := range ids {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO scene_links (scene_id, kind, position, element_id) VALUES (?, ?, ?, ?)
			`, sceneID, kind, i, elementID); err != nil {
				return fmt.Errorf("insert scene link: %w", err)
			}
		}
		return nil
	}
	for id, sc := range prj.Scenes {
		if err := link(id, "character", sc.Characters); err != nil {
			return err
		}
		if err := link(id, "location", sc.Locations); err != nil {
			return err
		}
		if err := link(id, "item", sc.Items); err != nil {
			return err
		}
	}
	return nil
}
