package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Project represents a locally registered project.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Remote    string    `json:"remote"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrProjectExists is returned when registering a path twice.
var ErrProjectExists = fmt.Errorf("project already registered")

// CreateProject registers a project. The path must be unique.
func (db *DB) CreateProject(p *Project) error {
	result, err := db.Exec(`
		INSERT INTO projects (name, path, remote)
		VALUES (?, ?, ?)
	`, p.Name, p.Path, p.Remote)
	if err != nil {
		if existing, lookupErr := db.GetProjectByPath(p.Path); lookupErr == nil && existing != nil {
			return ErrProjectExists
		}
		return fmt.Errorf("insert project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// GetProject returns a project by ID, or nil when absent.
func (db *DB) GetProject(id int64) (*Project, error) {
	return db.scanProject(db.QueryRow(`
		SELECT id, name, path, remote, created_at
		FROM projects WHERE id = ?
	`, id))
}

// GetProjectByPath returns a project by path, or nil when absent.
func (db *DB) GetProjectByPath(path string) (*Project, error) {
	return db.scanProject(db.QueryRow(`
		SELECT id, name, path, remote, created_at
		FROM projects WHERE path = ?
	`, path))
}

// ListProjects returns all projects, newest first.
func (db *DB) ListProjects() ([]*Project, error) {
	rows, err := db.Query(`
		SELECT id, name, path, remote, created_at
		FROM projects ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.Remote, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (db *DB) scanProject(row *sql.Row) (*Project, error) {
	p := &Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Path, &p.Remote, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}
