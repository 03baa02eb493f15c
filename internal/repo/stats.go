// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// RecipeStats summarizes everything that can change a user's recipe listing:
// the number of recipes and the latest UpdatedAt across recipes, tags and
// ingredients (renaming a tag changes how recipes render).
type RecipeStats struct {
	Count        int64
	MaxUpdatedAt *time.Time
}

// RecipesStats returns RecipeStats for userID. When the user owns nothing,
// Count is 0 and MaxUpdatedAt is nil.
func RecipesStats(ctx context.Context, db *gorm.DB, userID uint) (RecipeStats, error) {
	var st RecipeStats
	base := db.WithContext(ctx)
	if err := base.Model(&domain.Recipe{}).Where("user_id = ?", userID).Count(&st.Count).Error; err != nil {
		return RecipeStats{}, err
	}

	for _, model := range []any{&domain.Recipe{}, &domain.Tag{}, &domain.Ingredient{}} {
		ts, err := latestUpdate(base, model, userID)
		if err != nil {
			return RecipeStats{}, err
		}
		if ts != nil && (st.MaxUpdatedAt == nil || ts.After(*st.MaxUpdatedAt)) {
			st.MaxUpdatedAt = ts
		}
	}
	return st, nil
}

// latestUpdate returns the greatest updated_at of model rows owned by userID,
// or nil when there are none. Ordering instead of MAX() keeps the column typed
// as a timestamp under SQLite.
func latestUpdate(db *gorm.DB, model any, userID uint) (*time.Time, error) {
	var rows []struct {
		UpdatedAt time.Time
	}
	err := db.Model(model).
		Select("updated_at").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].UpdatedAt, nil
}
