package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var _ CategoryRepository = (*CategoryStore)(nil)

// CategoryStore handles database operations for feed categories
type CategoryStore struct {
	db *DB
}

func NewCategoryStore(db *DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (r *CategoryStore) GetCategory(id string) (*Category, error) {
	return r.getCategoryBy("id", id)
}

// GetCategoryByName returns the earliest category with the given name.
func (r *CategoryStore) GetCategoryByName(name string) (*Category, error) {
	return r.getCategoryBy("name", name)
}

func (r *CategoryStore) getCategoryBy(column, value string) (*Category, error) {
	var category Category
	err := r.db.QueryRow(`
		SELECT id, name, color FROM categories WHERE `+column+` = ? ORDER BY rowid LIMIT 1
	`, value).Scan(&category.ID, &category.Name, &category.Color)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by %s: %w", column, err)
	}

	return &category, nil
}

func (r *CategoryStore) ListCategories() ([]Category, error) {
	rows, err := r.db.Query(`SELECT id, name, color FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var category Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Color); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

func (r *CategoryStore) CreateCategory(category Category) (*Category, error) {
	category.ID = uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO categories (id, name, color) VALUES (?, ?, ?)
	`, category.ID, category.Name, category.Color)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}

	return &category, nil
}

func (r *CategoryStore) UpdateCategory(category Category) error {
	result, err := r.db.Exec(`
		UPDATE categories SET name = ?, color = ? WHERE id = ?
	`, category.Name, category.Color, category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(result)
}

// DeleteCategory removes the category and unassigns it from every feed.
func (r *CategoryStore) DeleteCategory(id string) error {
	result, err := r.db.Exec(`DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(result)
}
