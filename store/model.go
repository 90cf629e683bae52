package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Model records a model bundle that finished downloading.
type Model struct {
	Tag          string
	Path         string
	Size         int64
	SHA256       string
	DownloadedAt time.Time
}

type ModelRepository struct {
	db *sql.DB
}

func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Put inserts or replaces the record for m.Tag.
func (r *ModelRepository) Put(m *Model) error {
	if m.DownloadedAt.IsZero() {
		m.DownloadedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO models (tag, path, size, sha256, downloaded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tag) DO UPDATE SET
			path = excluded.path,
			size = excluded.size,
			sha256 = excluded.sha256,
			downloaded_at = excluded.downloaded_at`,
		m.Tag, m.Path, m.Size, m.SHA256, m.DownloadedAt,
	)
	return err
}

func (r *ModelRepository) Get(tag string) (*Model, error) {
	m := &Model{}
	err := r.db.QueryRow(
		`SELECT tag, path, size, sha256, downloaded_at FROM models WHERE tag = ?`,
		tag,
	).Scan(&m.Tag, &m.Path, &m.Size, &m.SHA256, &m.DownloadedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// Exists is Get without the row.
func (r *ModelRepository) Exists(tag string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM models WHERE tag = ?`, tag).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns every record ordered by tag.
func (r *ModelRepository) List() ([]*Model, error) {
	rows, err := r.db.Query(
		`SELECT tag, path, size, sha256, downloaded_at FROM models ORDER BY tag`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		m := &Model{}
		if err := rows.Scan(&m.Tag, &m.Path, &m.Size, &m.SHA256, &m.DownloadedAt); err != nil {
			return nil, err
		}
		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return models, nil
}

func (r *ModelRepository) Delete(tag string) error {
	result, err := r.db.Exec(`DELETE FROM models WHERE tag = ?`, tag)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
