// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides one generic set of functions shared by
// the recipe attribute models (domain.Tag and domain.Ingredient).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ListAttributes returns the owner's attributes ordered by name descending.
// When assignedOnly is set, only attributes attached to at least one recipe
// are returned (each once).
func ListAttributes[T domain.Attribute](ctx context.Context, db *gorm.DB, userID uint, assignedOnly bool) ([]T, error) {
	var out []T
	q := db.WithContext(ctx).Model(new(T)).Where("user_id = ?", userID)
	if assignedOnly {
		assoc := domain.AssociationOf[T]()
		q = q.Where("id IN (SELECT " + assoc.Column + " FROM " + assoc.JoinTable + ")")
	}
	err := q.Order("name DESC, id DESC").Find(&out).Error
	return out, err
}

// GetAttribute fetches one attribute by id and owner, or ErrNotFound.
func GetAttribute[T domain.Attribute](ctx context.Context, db *gorm.DB, id, userID uint) (*T, error) {
	var out T
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameAttribute sets the name of an owned attribute. It returns ErrNotFound
// if no row matched.
func RenameAttribute[T domain.Attribute](ctx context.Context, db *gorm.DB, id, userID uint, name string) error {
	res := db.WithContext(ctx).
		Model(new(T)).
		Where("id = ? AND user_id = ?", id, userID).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAttribute removes an owned attribute and detaches it from every
// recipe. Recipe rows are kept.
func DeleteAttribute[T domain.Attribute](ctx context.Context, db *gorm.DB, id, userID uint) error {
	assoc := domain.AssociationOf[T]()
	tx := db.WithContext(ctx)
	table := tableOf[T]()
	// Recipes that rendered this attribute change too; bump them so listing
	// watermarks move.
	if err := tx.Exec("UPDATE recipes SET updated_at = ? WHERE user_id = ? AND id IN (SELECT recipe_id FROM "+assoc.JoinTable+" WHERE "+assoc.Column+" = ?)", time.Now(), userID, id).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM "+assoc.JoinTable+" WHERE "+assoc.Column+" IN (SELECT id FROM "+table+" WHERE id = ? AND user_id = ?)", id, userID).Error; err != nil {
		return err
	}
	res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveAttributes maps names to the owner's attributes, creating the ones
// that do not exist yet. Lookup is exact and case-sensitive; duplicate names
// resolve to a single row. The result follows the order of first appearance.
func ResolveAttributes[T domain.Attribute](ctx context.Context, db *gorm.DB, userID uint, names []string) ([]T, error) {
	tx := db.WithContext(ctx)
	out := make([]T, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var item T
		err := tx.Where("user_id = ? AND name = ?", userID, name).Take(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			item = domain.NewAttribute[T](userID, name)
			err = tx.Omit("User").Create(&item).Error
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// tableOf returns the table name of attribute type T.
func tableOf[T domain.Attribute]() string {
	var zero T
	if t, ok := any(zero).(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return ""
}
