// Package editstore implements EditStore (spec §4.6, C2): a key-value
// store, keyed by file_path, of per-project and global edit-cut lists.
// Grounded on the teacher's internal/store package (SQLiteStore: WAL
// mode, schema_version table, mutex-guarded *sql.DB) adapted from a
// job queue's row shape to a single JSON-blob-per-path row, since the
// value here (global_cuts + project_cuts) has no fixed column set the
// way a transcode job's fields do.
package editstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gwlsn/dvdarchive/internal/videoref"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS edit_lists (
	file_path TEXT PRIMARY KEY,
	global_cuts TEXT NOT NULL DEFAULT '[]',
	project_cuts TEXT NOT NULL DEFAULT '{}',
	migrated_legacy INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// Store is EditStore: a sqlite-backed key-value store over file_path.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// cutRow is the JSON shape persisted per column, matching spec §4.6's
// value shape exactly so read/write never need a lossy intermediate.
type cutRow struct {
	GlobalCuts  []videoref.EditCut            `json:"global_cuts"`
	ProjectCuts map[string][]videoref.EditCut `json:"project_cuts"`
}

// Open creates or opens the edit-list database at dbPath, applying the
// schema the way the teacher's NewSQLiteStore/InitStore pair does for
// its job queue. Legacy-JSON import is not run here; it is the separate
// MigrateLegacyJSON call.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create edit store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open edit store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create edit store schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert edit store schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check edit store schema version: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) loadLocked(filePath string) (cutRow, bool, error) {
	var row cutRow
	var globalJSON, projectJSON string

	err := s.db.QueryRow(
		"SELECT global_cuts, project_cuts FROM edit_lists WHERE file_path = ?",
		filePath,
	).Scan(&globalJSON, &projectJSON)
	if err == sql.ErrNoRows {
		return cutRow{ProjectCuts: map[string][]videoref.EditCut{}}, false, nil
	}
	if err != nil {
		return row, false, err
	}

	if err := json.Unmarshal([]byte(globalJSON), &row.GlobalCuts); err != nil {
		return row, false, fmt.Errorf("decode global_cuts for %s: %w", filePath, err)
	}
	row.ProjectCuts = map[string][]videoref.EditCut{}
	if err := json.Unmarshal([]byte(projectJSON), &row.ProjectCuts); err != nil {
		return row, false, fmt.Errorf("decode project_cuts for %s: %w", filePath, err)
	}
	return row, true, nil
}

func (s *Store) saveLocked(filePath string, row cutRow) error {
	globalJSON, err := json.Marshal(row.GlobalCuts)
	if err != nil {
		return err
	}
	projectJSON, err := json.Marshal(row.ProjectCuts)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO edit_lists (file_path, global_cuts, project_cuts, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(file_path) DO UPDATE SET
			global_cuts = excluded.global_cuts,
			project_cuts = excluded.project_cuts,
			updated_at = CURRENT_TIMESTAMP
	`, filePath, string(globalJSON), string(projectJSON))
	return err
}

// Read returns the project override for (filePath, project) if one
// exists and is non-empty; otherwise it returns the global cuts (spec
// §4.6's read operation).
func (s *Store) Read(filePath, project string) ([]videoref.EditCut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, _, err := s.loadLocked(filePath)
	if err != nil {
		return nil, err
	}
	if project != "" {
		if cuts, ok := row.ProjectCuts[project]; ok && len(cuts) > 0 {
			return cuts, nil
		}
	}
	return row.GlobalCuts, nil
}

// Write replaces the target scope (global cuts if project is empty,
// that project's override otherwise).
func (s *Store) Write(filePath, project string, cuts []videoref.EditCut) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, _, err := s.loadLocked(filePath)
	if err != nil {
		return err
	}
	if project == "" {
		row.GlobalCuts = cuts
	} else {
		row.ProjectCuts[project] = cuts
	}
	return s.saveLocked(filePath, row)
}

// Delete removes all cuts for filePath when project is empty, or just
// that project's override otherwise.
func (s *Store) Delete(filePath, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project == "" {
		_, err := s.db.Exec("DELETE FROM edit_lists WHERE file_path = ?", filePath)
		return err
	}

	row, exists, err := s.loadLocked(filePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	delete(row.ProjectCuts, project)
	return s.saveLocked(filePath, row)
}

// Promote moves a project override to global. When combine is true, the
// project cuts are unioned (appended) with the existing globals instead
// of replacing them.
func (s *Store) Promote(filePath, project string, combine bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists, err := s.loadLocked(filePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	override, ok := row.ProjectCuts[project]
	if !ok {
		return nil
	}
	if combine {
		row.GlobalCuts = append(append([]videoref.EditCut{}, row.GlobalCuts...), override...)
	} else {
		row.GlobalCuts = override
	}
	delete(row.ProjectCuts, project)
	return s.saveLocked(filePath, row)
}

// Visibility reports "project" if a non-empty project override exists
// for (filePath, project), else "global".
func (s *Store) Visibility(filePath, project string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, _, err := s.loadLocked(filePath)
	if err != nil {
		return "", err
	}
	if cuts, ok := row.ProjectCuts[project]; ok && len(cuts) > 0 {
		return "project", nil
	}
	return "global", nil
}
