package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint the caller should surface (tag or category names).
var ErrDuplicate = errors.New("store: duplicate")

// Tag represents a tag row. Names are stored lowercase.
type Tag struct {
	ID              string
	Name            string
	Color           string
	IsAutoGenerated bool
	CreatedAt       string
}

// CreateTag inserts a new tag. Returns ErrDuplicate (wrapped) when a
// tag with the same name already exists.
func (s *Store) CreateTag(t *Tag) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Color == "" {
		t.Color = "#6366f1"
	}
	t.CreatedAt = now()

	autoInt := 0
	if t.IsAutoGenerated {
		autoInt = 1
	}

	_, err := s.writer.Exec(`
		INSERT INTO tags (id, name, color, is_auto_generated, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Color, autoInt, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: create tag %q: %w", t.Name, ErrDuplicate)
		}
		return fmt.Errorf("store: create tag: %w", err)
	}
	return nil
}

// GetTagByName retrieves a tag by its (already normalised) name.
func (s *Store) GetTagByName(name string) (*Tag, error) {
	t := &Tag{}
	var autoInt int
	err := s.reader.QueryRow(`
		SELECT id, name, color, is_auto_generated, created_at
		FROM tags WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.Color, &autoInt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get tag %q: %w", name, err)
	}
	t.IsAutoGenerated = autoInt != 0
	return t, nil
}

// EnsureTag returns the tag with the given name, creating it if needed.
// The insert-then-recover order makes concurrent callers converge on a
// single row instead of racing a read-then-insert.
func (s *Store) EnsureTag(name, color string, autoGenerated bool) (*Tag, error) {
	t := &Tag{Name: name, Color: color, IsAutoGenerated: autoGenerated}
	err := s.CreateTag(t)
	if err == nil {
		return t, nil
	}
	if errors.Is(err, ErrDuplicate) {
		return s.GetTagByName(name)
	}
	return nil, err
}

// LinkTag associates a tag with a prompt. Linking an already linked
// pair is a no-op.
func (s *Store) LinkTag(promptID, tagID string) error {
	_, err := s.writer.Exec(
		"INSERT OR IGNORE INTO prompt_tags (prompt_id, tag_id) VALUES (?, ?)",
		promptID, tagID,
	)
	if err != nil {
		return fmt.Errorf("store: link tag: %w", err)
	}
	return nil
}

// UnlinkTags removes all tag associations for a prompt.
func (s *Store) UnlinkTags(promptID string) error {
	_, err := s.writer.Exec("DELETE FROM prompt_tags WHERE prompt_id = ?", promptID)
	if err != nil {
		return fmt.Errorf("store: unlink tags: %w", err)
	}
	return nil
}

// TagsForPrompt returns the tags linked to a prompt, ordered by name.
func (s *Store) TagsForPrompt(promptID string) ([]*Tag, error) {
	rows, err := s.reader.Query(`
		SELECT t.id, t.name, t.color, t.is_auto_generated, t.created_at
		FROM tags t
		JOIN prompt_tags pt ON pt.tag_id = t.id
		WHERE pt.prompt_id = ?
		ORDER BY t.name`, promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: tags for prompt: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags() ([]*Tag, error) {
	rows, err := s.reader.Query(`
		SELECT id, name, color, is_auto_generated, created_at
		FROM tags ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// TagNames returns up to limit tag names, most recently created first.
// Used to give the analysis provider the existing vocabulary.
func (s *Store) TagNames(limit int) ([]string, error) {
	rows, err := s.reader.Query(
		"SELECT name FROM tags ORDER BY created_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: tag names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: tag names iteration: %w", err)
	}
	return names, nil
}

type tagRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTags(rows tagRows) ([]*Tag, error) {
	var results []*Tag
	for rows.Next() {
		t := &Tag{}
		var autoInt int
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &autoInt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan tag row: %w", err)
		}
		t.IsAutoGenerated = autoInt != 0
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: tag iteration: %w", err)
	}
	return results, nil
}
