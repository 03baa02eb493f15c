// Package domain defines the persistence models for users, recipes, tags and
// ingredients. These types are mapped with GORM and shared by the repository
// and service layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account that owns recipes and their attributes.
//
// Fields:
//   - Email: login identifier, stored lower-cased and unique.
//   - PasswordHash: argon2id encoded hash, never serialized.
//   - IsActive: inactive users cannot obtain or use tokens.
type User struct {
	ID           uint      `json:"id"         gorm:"primaryKey"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Name         string    `json:"name"       gorm:"type:varchar(255);not null;default:''"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	IsActive     bool      `json:"-"          gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Recipe is owned by exactly one user. Tags and ingredients are shared rows
// attached through join tables; removing a recipe removes only the join rows.
//
// Fields:
//   - Price: fixed-point, at most 5 digits with 2 decimal places.
//   - Image: media path relative to the media root ("" when unset).
//   - ImageBlurHash: placeholder hash computed when the image was uploaded.
type Recipe struct {
	ID            uint            `json:"id"           gorm:"primaryKey"`
	UserID        uint            `json:"user_id"      gorm:"not null;index:idx_user_recipes"`
	Title         string          `json:"title"        gorm:"type:varchar(255);not null"`
	TimeMinutes   int             `json:"time_minutes" gorm:"not null;check:time_minutes >= 0"`
	Price         decimal.Decimal `json:"price"        gorm:"type:decimal(5,2);not null"`
	Link          string          `json:"link"         gorm:"type:varchar(255);not null;default:''"`
	Description   string          `json:"description"  gorm:"type:text;not null;default:''"`
	Image         string          `json:"image"        gorm:"type:varchar(255);not null;default:''"`
	ImageBlurHash string          `json:"-"            gorm:"type:varchar(64);not null;default:''"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Tags        []Tag        `json:"tags"        gorm:"many2many:recipe_tags;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Ingredients []Ingredient `json:"ingredients" gorm:"many2many:recipe_ingredients;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// User is the owner. Recipes are cascade-deleted with their user.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// Tag is a user-scoped label attached to recipes.
type Tag struct {
	ID        uint      `json:"id"   gorm:"primaryKey"`
	UserID    uint      `json:"-"    gorm:"not null;index:idx_user_tags,priority:1"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;index:idx_user_tags,priority:2"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Tag.
func (Tag) TableName() string { return "tags" }

// Ingredient has the same shape and semantics as Tag, with its own join table.
type Ingredient struct {
	ID        uint      `json:"id"   gorm:"primaryKey"`
	UserID    uint      `json:"-"    gorm:"not null;index:idx_user_ingredients,priority:1"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;index:idx_user_ingredients,priority:2"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Ingredient.
func (Ingredient) TableName() string { return "ingredients" }

// Attribute is the set of recipe attribute types that share one
// list/rename/delete implementation.
type Attribute interface {
	Tag | Ingredient
}

// Association describes how an attribute type is joined to recipes.
type Association struct {
	// Field is the Recipe association name used with GORM's Association API.
	Field string
	// JoinTable is the many2many table name.
	JoinTable string
	// Column is the attribute foreign key column inside JoinTable.
	Column string
}

// AssociationOf returns the join metadata for attribute type T.
func AssociationOf[T Attribute]() Association {
	var zero T
	switch any(zero).(type) {
	case Ingredient:
		return Association{Field: "Ingredients", JoinTable: "recipe_ingredients", Column: "ingredient_id"}
	default:
		return Association{Field: "Tags", JoinTable: "recipe_tags", Column: "tag_id"}
	}
}

// NewAttribute builds an unsaved attribute of type T owned by userID.
func NewAttribute[T Attribute](userID uint, name string) T {
	var out T
	switch p := any(&out).(type) {
	case *Tag:
		*p = Tag{UserID: userID, Name: name}
	case *Ingredient:
		*p = Ingredient{UserID: userID, Name: name}
	}
	return out
}
