// Recipe HTTP handlers.
//
// This file exposes REST endpoints for recipe resources:
//   - GET    /recipes/                    (list, filters, optional paging, ETag)
//   - POST   /recipes/                    (create, Idempotency-Key aware)
//   - GET    /recipes/{id}/               (retrieve)
//   - PUT    /recipes/{id}/               (full update)
//   - PATCH  /recipes/{id}/               (partial update)
//   - DELETE /recipes/{id}/               (delete)
//   - POST   /recipes/{id}/upload-image/  (attach image)
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

// HeaderIdempotencyReplayed marks a create answered from an earlier request.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// RecipeHandler serves the recipe endpoints.
type RecipeHandler struct {
	svc   RecipeService
	media mediaURLs
	// maxUpload caps image uploads in bytes.
	maxUpload int64
}

// NewRecipeHandler binds svc. mediaPrefix is the URL prefix media files are
// served from; maxUpload caps image uploads (<= 0 means 10 MiB).
func NewRecipeHandler(svc RecipeService, mediaPrefix string, maxUpload int64) *RecipeHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &RecipeHandler{svc: svc, media: mediaURLs{Prefix: mediaPrefix}, maxUpload: maxUpload}
}

// TrustProxies makes image URLs follow X-Forwarded-Proto and X-Forwarded-Host
// sent by peers in proxies (IPs or CIDRs). By default those headers are ignored.
func (h *RecipeHandler) TrustProxies(proxies []string) error {
	nets, err := parseProxies(proxies)
	if err != nil {
		return err
	}
	h.media.Proxies = nets
	return nil
}

//
// DTOs
//

// RecipeRequest is the JSON payload for create and update. Omitted keys are
// left unchanged by PATCH; PUT and POST require title, time_minutes and price.
// Unknown keys (id, user, ...) are ignored. Price accepts a JSON number or a
// numeric string with at most 2 decimals.
type RecipeRequest struct {
	Title       *string               `json:"title"        example:"Chana masala"`
	TimeMinutes *int                  `json:"time_minutes" example:"40"`
	Price       json.RawMessage       `json:"price"        swaggertype:"string" example:"5.25"`
	Link        *string               `json:"link"         example:"https://example.com/chana"`
	Description *string               `json:"description"  example:"Simmer for 20 minutes."`
	Tags        *[]services.NameInput `json:"tags"`
	Ingredients *[]services.NameInput `json:"ingredients"`
}

// input converts the wire payload, reporting a malformed price as a field error.
func (r RecipeRequest) input() (services.RecipeInput, map[string]string) {
	in := services.RecipeInput{
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Link:        r.Link,
		Description: r.Description,
		Tags:        r.Tags,
		Ingredients: r.Ingredients,
	}
	if len(r.Price) == 0 {
		return in, nil
	}
	raw := bytes.TrimSpace(r.Price)
	if bytes.Equal(raw, []byte("null")) {
		return in, map[string]string{"price": "may not be null"}
	}
	s := string(raw)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return in, map[string]string{"price": "must be a valid decimal number"}
		}
	}
	p, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return in, map[string]string{"price": "must be a valid decimal number"}
	}
	in.Price = &p
	return in, nil
}

//
// Helpers
//

// listFilter reads tags, ingredients, page and page_size. Without page and
// page_size the whole result is returned.
func listFilter(c *gin.Context) (repo.RecipeFilter, map[string]string) {
	var f repo.RecipeFilter
	problems := map[string]string{}

	if v, present := c.GetQuery("tags"); present {
		ids, err := utils.ParseIDList(v)
		if err != nil {
			problems["tags"] = "must be a comma-separated list of integer ids"
		}
		f.TagIDs = ids
	}
	if v, present := c.GetQuery("ingredients"); present {
		ids, err := utils.ParseIDList(v)
		if err != nil {
			problems["ingredients"] = "must be a comma-separated list of integer ids"
		}
		f.IngredientIDs = ids
	}
	if len(problems) > 0 {
		return f, problems
	}

	if c.Query("page") != "" || c.Query("page_size") != "" {
		page, pageSize := clampPagination(c)
		f.Offset, f.Limit = utils.PageBounds(page, pageSize)
	}
	return f, nil
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// listETag identifies one rendering of a filtered listing. It changes when a
// recipe is added or removed, or when any recipe, tag or ingredient of the
// user is modified.
func listETag(userID uint, st repo.RecipeStats, f repo.RecipeFilter) string {
	var ts int64
	if st.MaxUpdatedAt != nil {
		ts = st.MaxUpdatedAt.UnixNano()
	}
	return fmt.Sprintf(`W/"recipes:%d:%d:%d:t%s:i%s:%d+%d"`,
		userID, st.Count, ts, joinIDs(f.TagIDs), joinIDs(f.IngredientIDs), f.Offset, f.Limit)
}

func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// etagMatches implements If-None-Match with weak comparison.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

//
// Handlers
//

// List godoc
// @ID          listRecipes
// @Summary     List recipes
// @Description Returns the caller's recipes, newest first. tags and ingredients filter by comma-separated ids
// @Description (any of the ids, both lists combined with AND). Supports weak ETag via If-None-Match.
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
//
// @Param       tags           query   string  false "Tag ids"         example(1,2)
// @Param       ingredients    query   string  false "Ingredient ids"  example(3)
// @Param       page           query   int     false "Page number"     minimum(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {array}  handlers.RecipeSummary
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Header      200  {int}    X-Total-Count  "Matches before paging"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Invalid filter"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Router      /recipe/recipes/ [get]
func (h *RecipeHandler) List(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	f, problems := listFilter(c)
	if problems != nil {
		failValidation(c, problems)
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if st, err := h.svc.Stats(ctx, uid); err == nil {
		etag := listETag(uid, st, f)
		c.Header("ETag", etag)
		if etagMatches(c.GetHeader("If-None-Match"), etag) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.List(ctx, uid, f)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RecipeSummary, 0, len(items))
	for i := range items {
		out = append(out, summarize(&items[i]))
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	ok(c, http.StatusOK, out)
}

// Get godoc
// @ID          getRecipe
// @Summary     Retrieve a recipe
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
// @Param       id   path     int  true  "Recipe ID"
// @Success     200  {object} handlers.RecipeDetail
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Router      /recipe/recipes/{id}/ [get]
func (h *RecipeHandler) Get(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, "recipe")
	if !found {
		return
	}
	r, err := h.svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, h.media.detail(c, r))
}

// Create godoc
// @ID          createRecipe
// @Summary     Create a recipe
// @Description Creates a recipe owned by the caller. Nested tags and ingredients are matched by name and created when
// @Description missing. With Idempotency-Key, a retried request returns the recipe created the first time.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                   false "Retry key"
// @Param       body             body    handlers.RecipeRequest  true  "Recipe"
// @Success     201  {object} handlers.RecipeDetail
// @Header      201  {string} Idempotency-Replayed "true when served from an earlier request"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Router      /recipe/recipes/ [post]
func (h *RecipeHandler) Create(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	var req RecipeRequest
	if !decodeJSON(c, &req) {
		return
	}
	in, problems := req.input()
	if problems != nil {
		failValidation(c, problems)
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	r, replayed, err := h.svc.Create(c.Request.Context(), uid, in, key)
	if err != nil {
		respondError(c, err)
		return
	}
	if replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, h.media.detail(c, r))
}

// Update godoc
// @ID          updateRecipe
// @Summary     Update a recipe
// @Description PUT replaces the writable fields (title, time_minutes and price required). PATCH changes only the keys
// @Description present; tags or ingredients, when present, replace the association ([] clears it).
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int                      true  "Recipe ID"
// @Param       body  body  handlers.RecipeRequest  true  "Fields"
// @Success     200  {object} handlers.RecipeDetail
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Router      /recipe/recipes/{id}/ [put]
// @Router      /recipe/recipes/{id}/ [patch]
func (h *RecipeHandler) Update(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, "recipe")
	if !found {
		return
	}
	ctx := c.Request.Context()

	var in services.RecipeInput
	var req RecipeRequest
	derr := readJSON(c.Request.Body, &req)
	if derr == nil {
		var problems map[string]string
		if in, problems = req.input(); problems != nil {
			derr = validationError(problems)
		}
	}
	if derr != nil {
		// Foreign or missing recipes answer 404 whatever the payload.
		if _, err := h.svc.Get(ctx, uid, id); err != nil {
			respondError(c, err)
			return
		}
		derr.write(c)
		return
	}

	partial := c.Request.Method == http.MethodPatch
	r, err := h.svc.Update(ctx, uid, id, in, partial)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, h.media.detail(c, r))
}

// Delete godoc
// @ID          deleteRecipe
// @Summary     Delete a recipe
// @Description Removes the recipe, its tag and ingredient links and its image file. Tags and ingredients are kept.
// @Tags        Recipes
// @Security    BearerAuth
// @Param       id  path  int  true  "Recipe ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Router      /recipe/recipes/{id}/ [delete]
func (h *RecipeHandler) Delete(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, "recipe")
	if !found {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uid, id); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}

// UploadImage godoc
// @ID          uploadRecipeImage
// @Summary     Attach an image to a recipe
// @Description Multipart upload with a single file field "image" (JPEG, PNG, GIF or WebP). Replaces any previous image.
// @Tags        Recipes
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id     path      int   true  "Recipe ID"
// @Param       image  formData  file  true  "Image file"
// @Success     201  {object} handlers.RecipeDetail
// @Failure     400  {object} handlers.ErrorResponse "Missing or invalid image"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Failure     413  {object} handlers.ErrorResponse "Image too large"
// @Router      /recipe/recipes/{id}/upload-image/ [post]
func (h *RecipeHandler) UploadImage(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, "recipe")
	if !found {
		return
	}

	// Headroom for multipart framing around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+64<<10)
	data, aerr := h.readUpload(c)
	if aerr != nil {
		middleware.ObserveImageUpload(false, "", 0)
		aerr.write(c)
		return
	}

	r, err := h.svc.UploadImage(c.Request.Context(), uid, id, data)
	if err != nil {
		if errors.Is(err, services.ErrInvalidImage) {
			middleware.ObserveImageUpload(false, "", len(data))
		}
		respondError(c, err)
		return
	}
	middleware.ObserveImageUpload(true, imageFormat(r.Image), len(data))
	ok(c, http.StatusCreated, h.media.detail(c, r))
}

// readUpload returns the bytes of the "image" form file.
func (h *RecipeHandler) readUpload(c *gin.Context) ([]byte, *apiError) {
	tooLarge := &apiError{
		status: http.StatusRequestEntityTooLarge,
		code:   ErrCodePayloadTooLarge,
		msg:    fmt.Sprintf("image exceeds %d bytes", h.maxUpload),
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge
		}
		return nil, validationError(map[string]string{"image": "no file was submitted"})
	}
	if fh.Size > h.maxUpload {
		return nil, tooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, validationError(map[string]string{"image": "the submitted file could not be read"})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, validationError(map[string]string{"image": "the submitted file could not be read"})
	}
	if int64(len(data)) > h.maxUpload {
		return nil, tooLarge
	}
	if len(data) == 0 {
		return nil, validationError(map[string]string{"image": "the submitted file is empty"})
	}
	return data, nil
}

// imageFormat derives the metric label from the stored file extension.
func imageFormat(rel string) string {
	i := strings.LastIndexByte(rel, '.')
	if i < 0 {
		return ""
	}
	return strings.TrimPrefix(rel[i:], ".")
}
