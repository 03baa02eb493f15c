// Package services – AttrService
//
// AttrService is the single implementation behind the tag and ingredient
// endpoints. Both entity kinds are user-scoped names attached to recipes, so
// listing, renaming and deleting are written once over domain.Attribute and
// instantiated per kind (see NewTagService and NewIngredientService).
//
// There is no create use-case: attributes come into existence only through
// recipe create/update.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/utils"
	"github.com/tbourn/go-recipe-backend/internal/validation"
)

// AttrService manages one kind of recipe attribute.
type AttrService[T domain.Attribute] struct {
	DB        *gorm.DB
	Validator *validation.Validator
	// NotFound is returned for missing or foreign ids.
	NotFound error
	// Name labels spans ("tag", "ingredient").
	Name string
}

// NewTagService returns the tag instantiation of AttrService.
func NewTagService(db *gorm.DB) *AttrService[domain.Tag] {
	return &AttrService[domain.Tag]{DB: db, Validator: validation.New(), NotFound: ErrTagNotFound, Name: "tag"}
}

// NewIngredientService returns the ingredient instantiation of AttrService.
func NewIngredientService(db *gorm.DB) *AttrService[domain.Ingredient] {
	return &AttrService[domain.Ingredient]{DB: db, Validator: validation.New(), NotFound: ErrIngredientNotFound, Name: "ingredient"}
}

func (s *AttrService[T]) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("attribute.kind", s.Name))
	return otel.Tracer("services/AttrService").Start(ctx, op, trace.WithAttributes(attrs...))
}

// List returns the user's attributes ordered by name descending. assignedOnly
// keeps only those attached to at least one recipe.
func (s *AttrService[T]) List(ctx context.Context, userID uint, assignedOnly bool) ([]T, error) {
	ctx, span := s.start(ctx, "List",
		attribute.Int64("user.id", int64(userID)),
		attribute.Bool("assigned_only", assignedOnly),
	)
	defer span.End()

	items, err := repo.ListAttributes[T](ctx, s.DB, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get returns one owned attribute.
func (s *AttrService[T]) Get(ctx context.Context, userID, id uint) (*T, error) {
	ctx, span := s.start(ctx, "Get", attribute.Int64("user.id", int64(userID)), attribute.Int64("id", int64(id)))
	defer span.End()

	item, err := repo.GetAttribute[T](ctx, s.DB, id, userID)
	return item, notFound(err, s.NotFound)
}

// Rename validates in and renames an owned attribute.
func (s *AttrService[T]) Rename(ctx context.Context, userID, id uint, in NameInput) (*T, error) {
	ctx, span := s.start(ctx, "Rename", attribute.Int64("user.id", int64(userID)), attribute.Int64("id", int64(id)))
	defer span.End()

	if _, err := repo.GetAttribute[T](ctx, s.DB, id, userID); err != nil {
		return nil, notFound(err, s.NotFound)
	}
	v := s.Validator
	if v == nil {
		v = validation.New()
	}
	if err := v.Validate(in); err != nil {
		return nil, err
	}
	if err := repo.RenameAttribute[T](ctx, s.DB, id, userID, utils.NormalizeName(in.Name)); err != nil {
		return nil, notFound(err, s.NotFound)
	}
	item, err := repo.GetAttribute[T](ctx, s.DB, id, userID)
	return item, notFound(err, s.NotFound)
}

// Delete removes an owned attribute and detaches it from every recipe.
func (s *AttrService[T]) Delete(ctx context.Context, userID, id uint) error {
	ctx, span := s.start(ctx, "Delete", attribute.Int64("user.id", int64(userID)), attribute.Int64("id", int64(id)))
	defer span.End()

	return notFound(s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteAttribute[T](ctx, tx, id, userID)
	}), s.NotFound)
}
