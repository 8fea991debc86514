package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Collection represents a group of prompts that can be shared publicly.
type Collection struct {
	ID          string
	AccountID   string
	Name        string
	Description string
	Icon        string
	Color       string
	IsPublic    bool
	ShareToken  sql.NullString
	CreatedAt   string
	UpdatedAt   string

	// PromptCount is populated by ListCollections only.
	PromptCount int64
}

// CreateCollection inserts a new collection.
func (s *Store) CreateCollection(c *Collection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Icon == "" {
		c.Icon = "📁"
	}
	if c.Color == "" {
		c.Color = "#6366f1"
	}
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts

	_, err := s.writer.Exec(`
		INSERT INTO collections (
			id, account_id, name, description, icon, color,
			is_public, share_token, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		c.ID, c.AccountID, c.Name, c.Description, c.Icon, c.Color, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("store: create collection: %w", err)
	}
	return nil
}

const collectionColumns = `id, account_id, name, description, icon, color,
       is_public, share_token, created_at, updated_at`

// GetCollection retrieves a collection by its ID.
func (s *Store) GetCollection(id string) (*Collection, error) {
	c := &Collection{}
	var publicInt int
	err := s.reader.QueryRow(
		"SELECT "+collectionColumns+" FROM collections WHERE id = ?", id,
	).Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Description, &c.Icon, &c.Color,
		&publicInt, &c.ShareToken, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get collection %s: %w", id, err)
	}
	c.IsPublic = publicInt != 0
	return c, nil
}

// GetCollectionByToken retrieves a collection by its share token.
// Only collections with sharing currently enabled are visible.
func (s *Store) GetCollectionByToken(token string) (*Collection, error) {
	c := &Collection{}
	var publicInt int
	err := s.reader.QueryRow(
		"SELECT "+collectionColumns+" FROM collections WHERE share_token = ? AND is_public = 1",
		token,
	).Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Description, &c.Icon, &c.Color,
		&publicInt, &c.ShareToken, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get collection by token: %w", err)
	}
	c.IsPublic = publicInt != 0
	return c, nil
}

// ListCollections returns an account's collections with prompt counts,
// newest first.
func (s *Store) ListCollections(accountID string) ([]*Collection, error) {
	rows, err := s.reader.Query(`
		SELECT c.id, c.account_id, c.name, c.description, c.icon, c.color,
		       c.is_public, c.share_token, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM prompts p WHERE p.collection_id = c.id)
		FROM collections c
		WHERE c.account_id = ?
		ORDER BY c.created_at DESC`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list collections: %w", err)
	}
	defer rows.Close()

	var results []*Collection
	for rows.Next() {
		c := &Collection{}
		var publicInt int
		if err := rows.Scan(
			&c.ID, &c.AccountID, &c.Name, &c.Description, &c.Icon, &c.Color,
			&publicInt, &c.ShareToken, &c.CreatedAt, &c.UpdatedAt, &c.PromptCount,
		); err != nil {
			return nil, fmt.Errorf("store: scan collection row: %w", err)
		}
		c.IsPublic = publicInt != 0
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list collections iteration: %w", err)
	}
	return results, nil
}

// UpdateCollection applies a metadata update to a collection.
func (s *Store) UpdateCollection(c *Collection) error {
	c.UpdatedAt = now()
	result, err := s.writer.Exec(`
		UPDATE collections
		SET name = ?, description = ?, icon = ?, color = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Icon, c.Color, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update collection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update collection rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: update collection %s: %w", c.ID, sql.ErrNoRows)
	}
	return nil
}

// DeleteCollection removes a collection. Prompts keep existing with
// their collection reference cleared.
func (s *Store) DeleteCollection(id string) error {
	result, err := s.writer.Exec("DELETE FROM collections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete collection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete collection rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete collection %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// EnableSharing marks a collection public. The provided token is only
// stored when the collection does not already have one, so repeated
// enables keep the existing token stable.
func (s *Store) EnableSharing(id, token string) (*Collection, error) {
	result, err := s.writer.Exec(`
		UPDATE collections
		SET is_public = 1, share_token = COALESCE(share_token, ?), updated_at = ?
		WHERE id = ?`,
		token, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: enable sharing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: enable sharing rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("store: enable sharing %s: %w", id, sql.ErrNoRows)
	}
	return s.GetCollection(id)
}

// DisableSharing clears both the public flag and the share token in a
// single statement, so the token can never survive a disable.
func (s *Store) DisableSharing(id string) error {
	result, err := s.writer.Exec(`
		UPDATE collections
		SET is_public = 0, share_token = NULL, updated_at = ?
		WHERE id = ?`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("store: disable sharing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: disable sharing rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: disable sharing %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
