// Package services – RecipeService
//
// This file implements RecipeService, which owns the recipe lifecycle:
// validation of create/update payloads, resolve-or-create of nested tags and
// ingredients, owner-scoped reads and writes, safe-retry (idempotent) creates
// and image attachment.
//
// Every query is scoped by the calling user, so a recipe owned by someone else
// is reported exactly like a missing one (ErrRecipeNotFound).
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include recipe/user identifiers where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/utils"
	"github.com/tbourn/go-recipe-backend/internal/validation"
)

// ScopeRecipeCreate namespaces idempotency keys used on recipe creation.
const ScopeRecipeCreate = "recipes.create"

const defaultIdempotencyTTL = 24 * time.Hour

// ImageStore persists media files addressed by media-relative paths.
type ImageStore interface {
	Save(rel string, data []byte) error
	Delete(rel string) error
}

// RecipeService provides the recipe use-cases.
type RecipeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Images stores uploaded recipe images.
	Images ImageStore
	// Validator checks payloads; New() is used when nil.
	Validator *validation.Validator
	// IdempotencyTTL is how long a create can be replayed by key.
	IdempotencyTTL time.Duration
}

// NewRecipeService constructs a RecipeService with default settings.
func NewRecipeService(db *gorm.DB, images ImageStore) *RecipeService {
	return &RecipeService{
		DB:             db,
		Images:         images,
		Validator:      validation.New(),
		IdempotencyTTL: defaultIdempotencyTTL,
	}
}

func (s *RecipeService) tracer() trace.Tracer { return otel.Tracer("services/RecipeService") }

func (s *RecipeService) validator() *validation.Validator {
	if s.Validator == nil {
		s.Validator = validation.New()
	}
	return s.Validator
}

// List returns the user's recipes matching f, newest first, together with the
// total number of matches (ignoring pagination).
func (s *RecipeService) List(ctx context.Context, userID uint, f repo.RecipeFilter) ([]domain.Recipe, int64, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int("filter.tags", len(f.TagIDs)),
			attribute.Int("filter.ingredients", len(f.IngredientIDs)),
			attribute.Int("limit", f.Limit),
		),
	)
	defer span.End()

	total, err := repo.CountRecipes(ctx, s.DB, userID, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Recipe{}, 0, nil
	}
	items, err := repo.ListRecipes(ctx, s.DB, userID, f)
	return items, total, err
}

// Stats reports the listing watermark used for conditional GETs.
func (s *RecipeService) Stats(ctx context.Context, userID uint) (repo.RecipeStats, error) {
	return repo.RecipesStats(ctx, s.DB, userID)
}

// Get returns one owned recipe with its tags and ingredients.
func (s *RecipeService) Get(ctx context.Context, userID, id uint) (*domain.Recipe, error) {
	ctx, span := s.tracer().Start(ctx, "Get", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("recipe.id", int64(id)),
	))
	defer span.End()

	r, err := repo.GetRecipe(ctx, s.DB, id, userID)
	return r, notFound(err, ErrRecipeNotFound)
}

// Create validates in and stores a new recipe owned by userID. Nested tags
// and ingredients are matched by exact name among the user's own, and created
// when missing.
//
// When idemKey is non-empty and a create with the same key succeeded earlier
// (within IdempotencyTTL), the earlier recipe is returned and replayed is true.
func (s *RecipeService) Create(ctx context.Context, userID uint, in RecipeInput, idemKey string) (r *domain.Recipe, replayed bool, err error) {
	ctx, span := s.tracer().Start(ctx, "Create", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Bool("idempotent", idemKey != ""),
	))
	defer span.End()

	if idemKey != "" {
		if prev, ok := s.replay(ctx, userID, idemKey); ok {
			return prev, true, nil
		}
	}
	if err := in.check(s.validator(), true); err != nil {
		return nil, false, err
	}

	var id uint
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := &domain.Recipe{
			UserID:      userID,
			Title:       utils.NormalizeName(*in.Title),
			TimeMinutes: *in.TimeMinutes,
			Price:       in.Price.Round(2),
		}
		if in.Link != nil {
			rec.Link = *in.Link
		}
		if in.Description != nil {
			rec.Description = *in.Description
		}
		if in.Tags != nil {
			tags, err := repo.ResolveAttributes[domain.Tag](ctx, tx, userID, names(*in.Tags))
			if err != nil {
				return err
			}
			rec.Tags = tags
		}
		if in.Ingredients != nil {
			ings, err := repo.ResolveAttributes[domain.Ingredient](ctx, tx, userID, names(*in.Ingredients))
			if err != nil {
				return err
			}
			rec.Ingredients = ings
		}
		if err := repo.CreateRecipe(ctx, tx, rec); err != nil {
			return err
		}
		id = rec.ID

		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, userID, ScopeRecipeCreate, idemKey, rec.ID, http.StatusCreated, s.ttl()); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key won the race.
		if prev, ok := s.replay(ctx, userID, idemKey); ok {
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	r, err = repo.GetRecipe(ctx, s.DB, id, userID)
	return r, false, err
}

func (s *RecipeService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

// replay loads the recipe recorded for (userID, key), if any and still owned.
func (s *RecipeService) replay(ctx context.Context, userID uint, key string) (*domain.Recipe, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, ScopeRecipeCreate, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	r, err := repo.GetRecipe(ctx, s.DB, rec.ResourceID, userID)
	if err != nil {
		return nil, false
	}
	return r, true
}

// Update applies in to an owned recipe. With partial=false (PUT) title,
// time_minutes and price are required. Fields absent from in keep their
// values; tags and ingredients are replaced only when present.
func (s *RecipeService) Update(ctx context.Context, userID, id uint, in RecipeInput, partial bool) (*domain.Recipe, error) {
	ctx, span := s.tracer().Start(ctx, "Update", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("recipe.id", int64(id)),
		attribute.Bool("partial", partial),
	))
	defer span.End()

	// Ownership is checked before payload validation: a foreign recipe is a
	// 404 whatever the body says.
	if _, err := repo.GetRecipe(ctx, s.DB, id, userID); err != nil {
		return nil, notFound(err, ErrRecipeNotFound)
	}
	if err := in.check(s.validator(), !partial); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := repo.GetRecipe(ctx, tx, id, userID)
		if err != nil {
			return err
		}

		fields := map[string]any{"updated_at": time.Now().UTC()}
		if in.Title != nil {
			fields["title"] = utils.NormalizeName(*in.Title)
		}
		if in.TimeMinutes != nil {
			fields["time_minutes"] = *in.TimeMinutes
		}
		if in.Price != nil {
			fields["price"] = in.Price.Round(2)
		}
		if in.Link != nil {
			fields["link"] = *in.Link
		}
		if in.Description != nil {
			fields["description"] = *in.Description
		}
		if err := repo.UpdateRecipeFields(ctx, tx, id, userID, fields); err != nil {
			return err
		}

		if in.Tags != nil {
			tags, err := repo.ResolveAttributes[domain.Tag](ctx, tx, userID, names(*in.Tags))
			if err != nil {
				return err
			}
			if err := repo.ReplaceRecipeAttributes(ctx, tx, current, tags); err != nil {
				return err
			}
		}
		if in.Ingredients != nil {
			ings, err := repo.ResolveAttributes[domain.Ingredient](ctx, tx, userID, names(*in.Ingredients))
			if err != nil {
				return err
			}
			if err := repo.ReplaceRecipeAttributes(ctx, tx, current, ings); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, ErrRecipeNotFound)
	}

	r, err := repo.GetRecipe(ctx, s.DB, id, userID)
	return r, notFound(err, ErrRecipeNotFound)
}

// Delete removes an owned recipe, its association rows and its image file.
func (s *RecipeService) Delete(ctx context.Context, userID, id uint) error {
	ctx, span := s.tracer().Start(ctx, "Delete", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("recipe.id", int64(id)),
	))
	defer span.End()

	var image string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetRecipe(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		image = r.Image
		return repo.DeleteRecipe(ctx, tx, id, userID)
	})
	if err != nil {
		return notFound(err, ErrRecipeNotFound)
	}

	// The row is gone; a leftover file is harmless.
	if image != "" && s.Images != nil {
		_ = s.Images.Delete(image)
	}
	return nil
}

// UploadImage validates data as an image, stores it under a fresh name and
// points the owned recipe at it. The previous file, if any, is removed.
func (s *RecipeService) UploadImage(ctx context.Context, userID, id uint, data []byte) (*domain.Recipe, error) {
	ctx, span := s.tracer().Start(ctx, "UploadImage", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("recipe.id", int64(id)),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	current, err := repo.GetRecipe(ctx, s.DB, id, userID)
	if err != nil {
		return nil, notFound(err, ErrRecipeNotFound)
	}

	img, err := media.Inspect(data)
	if err != nil {
		return nil, ErrInvalidImage
	}
	hash, err := media.BlurHash(img.Image)
	if err != nil {
		// A placeholder is optional; the image itself is fine.
		hash = ""
	}

	if s.Images == nil {
		return nil, errors.New("image storage not configured")
	}
	rel := media.NewRecipeImagePath(img.Ext)
	if err := s.Images.Save(rel, data); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	if err := repo.SetRecipeImage(ctx, s.DB, id, userID, rel, hash); err != nil {
		_ = s.Images.Delete(rel)
		return nil, notFound(err, ErrRecipeNotFound)
	}
	if current.Image != "" && current.Image != rel {
		_ = s.Images.Delete(current.Image)
	}

	r, err := repo.GetRecipe(ctx, s.DB, id, userID)
	return r, notFound(err, ErrRecipeNotFound)
}

// notFound maps repo.ErrNotFound to the given service sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return err
}
