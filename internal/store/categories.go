package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Category represents a prompt category row.
type Category struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Color       string
	ParentID    sql.NullString
	CreatedAt   string
}

// defaultCategories are seeded into every fresh database.
var defaultCategories = []Category{
	{Name: "Copywriting", Description: "Marketing copy, headlines, and persuasive writing", Icon: "✍️", Color: "#f59e0b"},
	{Name: "Coding", Description: "Programming, debugging, and technical prompts", Icon: "💻", Color: "#3b82f6"},
	{Name: "Analysis", Description: "Data analysis, research, and evaluation", Icon: "📊", Color: "#10b981"},
	{Name: "Creative", Description: "Storytelling, art direction, and ideation", Icon: "🎨", Color: "#8b5cf6"},
	{Name: "Automation", Description: "Workflows, agents, and task automation", Icon: "⚙️", Color: "#6b7280"},
	{Name: "Communication", Description: "Emails, messages, and correspondence", Icon: "💬", Color: "#06b6d4"},
	{Name: "Learning", Description: "Explanations, tutoring, and study aids", Icon: "📚", Color: "#ec4899"},
}

// seedCategories inserts the default category set. Existing names are
// left untouched.
func (s *Store) seedCategories() error {
	ts := now()
	for _, c := range defaultCategories {
		_, err := s.writer.Exec(`
			INSERT OR IGNORE INTO categories (id, name, description, icon, color, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), c.Name, c.Description, c.Icon, c.Color, ts,
		)
		if err != nil {
			return fmt.Errorf("store: seed category %q: %w", c.Name, err)
		}
	}
	return nil
}

// CreateCategory inserts a new category. Returns ErrDuplicate (wrapped)
// when a category with the same name already exists.
func (s *Store) CreateCategory(c *Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now()

	_, err := s.writer.Exec(`
		INSERT INTO categories (id, name, description, icon, color, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Icon, c.Color, c.ParentID, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: create category %q: %w", c.Name, ErrDuplicate)
		}
		return fmt.Errorf("store: create category: %w", err)
	}
	return nil
}

// GetCategory retrieves a category by its ID.
func (s *Store) GetCategory(id string) (*Category, error) {
	c := &Category{}
	err := s.reader.QueryRow(`
		SELECT id, name, description, icon, color, parent_id, created_at
		FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.ParentID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get category %s: %w", id, err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories() ([]*Category, error) {
	rows, err := s.reader.Query(`
		SELECT id, name, description, icon, color, parent_id, created_at
		FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	defer rows.Close()

	var results []*Category
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan category row: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list categories iteration: %w", err)
	}
	return results, nil
}
