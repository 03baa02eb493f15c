package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/auth"
	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// testUserHeader stands in for RequireAuth in handler tests.
const testUserHeader = "X-Test-User"

type testEnv struct {
	db    *gorm.DB
	store *media.Storage
	r     *gin.Engine
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	store, err := media.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("media storage: %v", err)
	}
	tokens, err := auth.NewTokenService("test-secret-test-secret-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	rh := NewRecipeHandler(services.NewRecipeService(db, store), "/static/media", 64<<10)
	th := NewTagHandler(services.NewTagService(db))
	ih := NewIngredientHandler(services.NewIngredientService(db))
	uh := NewUserHandler(services.NewUserService(db, tokens))

	r := gin.New()
	r.Use(middleware.RequestID())
	stubAuth := func(c *gin.Context) {
		if id, err := strconv.ParseUint(c.GetHeader(testUserHeader), 10, 64); err == nil {
			middleware.SetUserID(c, uint(id))
		}
		c.Next()
	}
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{Scope: services.ScopeRecipeCreate},
		func(ctx context.Context, userID uint, scope, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			return err == nil, nil
		},
	)

	api := r.Group("/api", stubAuth)
	api.GET("/recipe/recipes/", rh.List)
	api.POST("/recipe/recipes/", idem, rh.Create)
	api.GET("/recipe/recipes/:id/", rh.Get)
	api.PUT("/recipe/recipes/:id/", rh.Update)
	api.PATCH("/recipe/recipes/:id/", rh.Update)
	api.DELETE("/recipe/recipes/:id/", rh.Delete)
	api.POST("/recipe/recipes/:id/upload-image/", rh.UploadImage)
	for _, g := range []struct {
		path                   string
		list, get, rename, del gin.HandlerFunc
	}{
		{"/recipe/tags/", th.List, th.Get, th.Rename, th.Delete},
		{"/recipe/ingredients/", ih.List, ih.Get, ih.Rename, ih.Delete},
	} {
		api.GET(g.path, g.list)
		api.GET(g.path+":id/", g.get)
		api.PUT(g.path+":id/", g.rename)
		api.PATCH(g.path+":id/", g.rename)
		api.DELETE(g.path+":id/", g.del)
	}
	api.POST("/user/create/", uh.Register)
	api.POST("/user/token/", uh.Token)
	api.GET("/user/me/", uh.Me)
	api.PUT("/user/me/", uh.UpdateMe)
	api.PATCH("/user/me/", uh.UpdateMe)

	return &testEnv{db: db, store: store, r: r}
}

func (e *testEnv) user(t *testing.T, email string) uint {
	t.Helper()
	u := &domain.User{Email: email, Name: "Test", PasswordHash: "x", IsActive: true}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

// do sends body (JSON-encoded unless it is a string or []byte) as user.
// user 0 sends the request unauthenticated.
func (e *testEnv) do(method, path string, user uint, body any, hdr ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(user), 10))
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// upload posts data as the multipart field name.
func (e *testEnv) upload(path string, user uint, field string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, _ := mw.CreateFormFile(field, "pic.bin")
		_, _ = fw.Write(data)
	} else {
		_ = mw.WriteField("note", "no file")
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(testUserHeader, strconv.FormatUint(uint64(user), 10))
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, code, w.Body.String())
	}
}

func recipeBody(title string, extra map[string]any) map[string]any {
	b := map[string]any{"title": title, "time_minutes": 22, "price": "5.25"}
	for k, v := range extra {
		b[k] = v
	}
	return b
}

func (e *testEnv) createRecipe(t *testing.T, user uint, body map[string]any) RecipeDetail {
	t.Helper()
	w := e.do(http.MethodPost, "/api/recipe/recipes/", user, body)
	wantStatus(t, w, http.StatusCreated)
	return decode[RecipeDetail](t, w)
}

func recipePath(id uint) string { return fmt.Sprintf("/api/recipe/recipes/%d/", id) }

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 25), G: 90, B: uint8(y * 25), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// oversizedPNG is a 1x1 PNG whose header claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}
