package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned when a versioned prompt update loses a
// race: the stored current_version no longer matches what the caller
// read. Callers retry with a fresh read.
var ErrVersionConflict = errors.New("store: prompt version conflict")

// Prompt represents a saved prompt row.
type Prompt struct {
	ID                 string
	AccountID          string
	Title              string
	Content            string
	Source             string
	CategoryID         sql.NullString
	CollectionID       sql.NullString
	EffectivenessScore sql.NullInt64
	UseCount           int64
	IsFavorite         bool
	CurrentVersion     int64
	CreatedAt          string
	UpdatedAt          string
}

// PromptVersion represents an immutable snapshot of prompt content.
type PromptVersion struct {
	ID                 string
	PromptID           string
	VersionNumber      int64
	Content            string
	ChangeNotes        sql.NullString
	EffectivenessScore sql.NullInt64
	CreatedAt          string
}

// PromptFilter narrows ListPrompts results. Zero values mean "no filter".
type PromptFilter struct {
	AccountID    string
	Query        string
	Source       string
	CategoryID   string
	CollectionID string
	Favorite     *bool
	Limit        int
	Offset       int
}

const promptColumns = `id, account_id, title, content, source, category_id, collection_id,
       effectiveness_score, use_count, is_favorite, current_version, created_at, updated_at`

// CreatePrompt inserts a new prompt together with its initial version
// snapshot in a single transaction. The caller provides the ID and the
// change note for version 1.
func (s *Store) CreatePrompt(p *Prompt, note string) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ts := now()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	p.CurrentVersion = 1

	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: create prompt begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	favInt := 0
	if p.IsFavorite {
		favInt = 1
	}

	_, err = tx.Exec(`
		INSERT INTO prompts (
			id, account_id, title, content, source, category_id, collection_id,
			effectiveness_score, use_count, is_favorite, current_version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 1, ?, ?)`,
		p.ID, p.AccountID, p.Title, p.Content, p.Source, p.CategoryID, p.CollectionID,
		p.EffectivenessScore, favInt, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("store: insert prompt: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO prompt_versions (
			id, prompt_id, version_number, content, change_notes,
			effectiveness_score, created_at
		) VALUES (?, ?, 1, ?, ?, ?, ?)`,
		uuid.NewString(), p.ID, p.Content, note, p.EffectivenessScore, ts,
	)
	if err != nil {
		return fmt.Errorf("store: insert initial version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: create prompt commit: %w", err)
	}
	return nil
}

// GetPrompt retrieves a single prompt by its ID.
// The wrapped error is sql.ErrNoRows when the prompt does not exist.
func (s *Store) GetPrompt(id string) (*Prompt, error) {
	p := &Prompt{}
	var favInt int
	err := s.reader.QueryRow(
		"SELECT "+promptColumns+" FROM prompts WHERE id = ?", id,
	).Scan(
		&p.ID, &p.AccountID, &p.Title, &p.Content, &p.Source, &p.CategoryID,
		&p.CollectionID, &p.EffectivenessScore, &p.UseCount, &favInt,
		&p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get prompt %s: %w", id, err)
	}
	p.IsFavorite = favInt != 0
	return p, nil
}

// ListPrompts returns prompts matching the filter, newest-updated first.
func (s *Store) ListPrompts(f PromptFilter) ([]*Prompt, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Query != "" {
		where = append(where, "(title LIKE ? OR content LIKE ?)")
		pattern := "%" + f.Query + "%"
		args = append(args, pattern, pattern)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.CollectionID != "" {
		where = append(where, "collection_id = ?")
		args = append(args, f.CollectionID)
	}
	if f.Favorite != nil {
		where = append(where, "is_favorite = ?")
		fav := 0
		if *f.Favorite {
			fav = 1
		}
		args = append(args, fav)
	}

	query := "SELECT " + promptColumns + " FROM prompts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.reader.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list prompts: %w", err)
	}
	defer rows.Close()

	var results []*Prompt
	for rows.Next() {
		p := &Prompt{}
		var favInt int
		if err := rows.Scan(
			&p.ID, &p.AccountID, &p.Title, &p.Content, &p.Source, &p.CategoryID,
			&p.CollectionID, &p.EffectivenessScore, &p.UseCount, &favInt,
			&p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan prompt row: %w", err)
		}
		p.IsFavorite = favInt != 0
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list prompts iteration: %w", err)
	}
	return results, nil
}

// UpdatePromptFields applies a metadata-only update: every mutable
// column except content and current_version. No version row is written.
func (s *Store) UpdatePromptFields(p *Prompt) error {
	p.UpdatedAt = now()
	favInt := 0
	if p.IsFavorite {
		favInt = 1
	}

	result, err := s.writer.Exec(`
		UPDATE prompts
		SET title = ?, source = ?, category_id = ?, collection_id = ?,
		    effectiveness_score = ?, is_favorite = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Source, p.CategoryID, p.CollectionID,
		p.EffectivenessScore, favInt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update prompt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update prompt rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: update prompt %s: %w", p.ID, sql.ErrNoRows)
	}
	return nil
}

// UpdatePromptWithVersion applies a content change: the prompt row is
// updated and exactly one new version snapshot is appended, all in one
// transaction. The UPDATE is conditional on prevVersion so a concurrent
// writer cannot produce a gap or duplicate in the version sequence;
// losing the race returns ErrVersionConflict.
func (s *Store) UpdatePromptWithVersion(p *Prompt, prevVersion int64, note sql.NullString) error {
	ts := now()
	favInt := 0
	if p.IsFavorite {
		favInt = 1
	}
	newVersion := prevVersion + 1

	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: version update begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.Exec(`
		UPDATE prompts
		SET title = ?, content = ?, source = ?, category_id = ?, collection_id = ?,
		    effectiveness_score = ?, is_favorite = ?, current_version = ?, updated_at = ?
		WHERE id = ? AND current_version = ?`,
		p.Title, p.Content, p.Source, p.CategoryID, p.CollectionID,
		p.EffectivenessScore, favInt, newVersion, ts,
		p.ID, prevVersion,
	)
	if err != nil {
		return fmt.Errorf("store: version update: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: version update rows affected: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	_, err = tx.Exec(`
		INSERT INTO prompt_versions (
			id, prompt_id, version_number, content, change_notes,
			effectiveness_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), p.ID, newVersion, p.Content, note, p.EffectivenessScore, ts,
	)
	if err != nil {
		return fmt.Errorf("store: insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: version update commit: %w", err)
	}

	p.CurrentVersion = newVersion
	p.UpdatedAt = ts
	return nil
}

// DeletePrompt removes a prompt; versions and tag links cascade.
func (s *Store) DeletePrompt(id string) error {
	result, err := s.writer.Exec("DELETE FROM prompts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete prompt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete prompt rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete prompt %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// IncrementUseCount atomically bumps a prompt's use counter.
func (s *Store) IncrementUseCount(id string) error {
	result, err := s.writer.Exec(
		"UPDATE prompts SET use_count = use_count + 1, updated_at = ? WHERE id = ?",
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("store: increment use count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: increment use count rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: increment use count %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ListVersions returns all version snapshots for a prompt, newest first.
func (s *Store) ListVersions(promptID string) ([]*PromptVersion, error) {
	rows, err := s.reader.Query(`
		SELECT id, prompt_id, version_number, content, change_notes,
		       effectiveness_score, created_at
		FROM prompt_versions
		WHERE prompt_id = ?
		ORDER BY version_number DESC`, promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer rows.Close()

	var results []*PromptVersion
	for rows.Next() {
		v := &PromptVersion{}
		if err := rows.Scan(
			&v.ID, &v.PromptID, &v.VersionNumber, &v.Content,
			&v.ChangeNotes, &v.EffectivenessScore, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan version row: %w", err)
		}
		results = append(results, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list versions iteration: %w", err)
	}
	return results, nil
}

// PromptStats holds aggregate counters for an account's library.
type PromptStats struct {
	Total     int64
	Favorites int64
	AddedIn7d int64
}

// GetPromptStats computes library totals for an account.
func (s *Store) GetPromptStats(accountID string) (*PromptStats, error) {
	weekAgo := time.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339)
	stats := &PromptStats{}

	err := s.reader.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_favorite = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM prompts
		WHERE account_id = ?`, weekAgo, accountID,
	).Scan(&stats.Total, &stats.Favorites, &stats.AddedIn7d)
	if err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return nil, fmt.Errorf("store: get prompt stats: %w", err)
	}
	return stats, nil
}
