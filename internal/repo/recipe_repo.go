// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipe model.
//
// Every read and write is scoped by the owner (user_id). A recipe owned by
// somebody else is therefore reported exactly like a missing one:
// gorm.ErrRecordNotFound (exported as ErrNotFound).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// RecipeFilter narrows ListRecipes and CountRecipes.
//
// TagIDs and IngredientIDs each match recipes having at least one of the
// listed associations (OR within a list); when both are set a recipe must
// satisfy both lists. Limit <= 0 disables pagination.
type RecipeFilter struct {
	TagIDs        []uint
	IngredientIDs []uint
	Offset        int
	Limit         int
}

// byName orders preloaded attributes alphabetically.
func byName(db *gorm.DB) *gorm.DB { return db.Order("name ASC, id ASC") }

// scopeRecipes applies owner scoping and the association filters.
func scopeRecipes(q *gorm.DB, userID uint, f RecipeFilter) *gorm.DB {
	q = q.Where("recipes.user_id = ?", userID)
	if len(f.TagIDs) > 0 {
		q = q.Where("recipes.id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN ?)", f.TagIDs)
	}
	if len(f.IngredientIDs) > 0 {
		q = q.Where("recipes.id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN ?)", f.IngredientIDs)
	}
	return q
}

// CreateRecipe inserts r together with its (already persisted) tags and
// ingredients. Association rows are written, attribute rows are not upserted.
func CreateRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	return db.WithContext(ctx).
		Omit("User", "Tags.*", "Ingredients.*").
		Create(r).Error
}

// ListRecipes returns the owner's recipes, newest id first, with tags and
// ingredients preloaded.
func ListRecipes(ctx context.Context, db *gorm.DB, userID uint, f RecipeFilter) ([]domain.Recipe, error) {
	var out []domain.Recipe
	q := scopeRecipes(db.WithContext(ctx).Model(&domain.Recipe{}), userID, f).
		Preload("Tags", byName).
		Preload("Ingredients", byName).
		Order("recipes.id DESC")
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountRecipes returns how many recipes match the filter (pagination ignored).
func CountRecipes(ctx context.Context, db *gorm.DB, userID uint, f RecipeFilter) (int64, error) {
	var total int64
	err := scopeRecipes(db.WithContext(ctx).Model(&domain.Recipe{}), userID, f).
		Count(&total).Error
	return total, err
}

// GetRecipe fetches a single recipe by id and owner with its associations.
// If the record does not exist (or is not owned by userID), it returns
// ErrNotFound.
func GetRecipe(ctx context.Context, db *gorm.DB, id, userID uint) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).
		Preload("Tags", byName).
		Preload("Ingredients", byName).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRecipeFields writes the given column values on an owned recipe.
// Column names are trusted (built by the service layer). If no row matches,
// it returns ErrNotFound.
func UpdateRecipeFields(ctx context.Context, db *gorm.DB, id, userID uint, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceRecipeAttributes swaps the full set of T associations of r for items.
// An empty items slice clears the association; attribute rows are untouched.
func ReplaceRecipeAttributes[T domain.Attribute](ctx context.Context, db *gorm.DB, r *domain.Recipe, items []T) error {
	assoc := domain.AssociationOf[T]()
	a := db.WithContext(ctx).Model(r).Association(assoc.Field)
	if len(items) == 0 {
		return a.Clear()
	}
	return a.Replace(items)
}

// DeleteRecipe removes an owned recipe and its association rows. It returns
// ErrNotFound when nothing was deleted.
func DeleteRecipe(ctx context.Context, db *gorm.DB, id, userID uint) error {
	tx := db.WithContext(ctx)
	if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id IN (SELECT id FROM recipes WHERE id = ? AND user_id = ?)", id, userID).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM recipe_ingredients WHERE recipe_id IN (SELECT id FROM recipes WHERE id = ? AND user_id = ?)", id, userID).Error; err != nil {
		return err
	}
	res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Recipe{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecipeImage records a new media path (and its BlurHash) on an owned
// recipe. An empty path clears the image.
func SetRecipeImage(ctx context.Context, db *gorm.DB, id, userID uint, path, blurHash string) error {
	return UpdateRecipeFields(ctx, db, id, userID, map[string]any{
		"image":           path,
		"image_blur_hash": blurHash,
	})
}
