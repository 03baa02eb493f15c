package repo

import (
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// newTestDB opens a unique in-memory database per test with foreign keys on.
// When migrate is true the full schema is created.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Test", PasswordHash: "x", IsActive: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedRecipe(t *testing.T, db *gorm.DB, userID uint, title string, tags []domain.Tag, ings []domain.Ingredient) *domain.Recipe {
	t.Helper()
	r := &domain.Recipe{
		UserID:      userID,
		Title:       title,
		TimeMinutes: 22,
		Price:       decimal.RequireFromString("5.25"),
		Tags:        tags,
		Ingredients: ings,
	}
	if err := db.Omit("User", "Tags.*", "Ingredients.*").Create(r).Error; err != nil {
		t.Fatalf("seed recipe: %v", err)
	}
	return r
}

func seedTag(t *testing.T, db *gorm.DB, userID uint, name string) domain.Tag {
	t.Helper()
	tag := domain.Tag{UserID: userID, Name: name}
	if err := db.Omit("User").Create(&tag).Error; err != nil {
		t.Fatalf("seed tag: %v", err)
	}
	return tag
}

func seedIngredient(t *testing.T, db *gorm.DB, userID uint, name string) domain.Ingredient {
	t.Helper()
	ing := domain.Ingredient{UserID: userID, Name: name}
	if err := db.Omit("User").Create(&ing).Error; err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	return ing
}
