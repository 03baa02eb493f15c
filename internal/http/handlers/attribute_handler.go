// Tag and ingredient HTTP handlers.
//
// One generic implementation serves both resources:
//   - GET          /{tags|ingredients}/        (list, ?assigned_only=1)
//   - GET          /{tags|ingredients}/{id}/   (retrieve)
//   - PUT|PATCH    /{tags|ingredients}/{id}/   (rename)
//   - DELETE       /{tags|ingredients}/{id}/   (delete, recipes are kept)
//
// There is no create endpoint: attributes are created by naming them in a
// recipe payload.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// AttrHandler serves one attribute resource.
type AttrHandler[T domain.Attribute] struct {
	svc AttrService[T]
	// noun is used in not-found messages ("tag", "ingredient").
	noun string
}

// NewTagHandler serves /tags/.
func NewTagHandler(svc AttrService[domain.Tag]) *AttrHandler[domain.Tag] {
	return &AttrHandler[domain.Tag]{svc: svc, noun: "tag"}
}

// NewIngredientHandler serves /ingredients/.
func NewIngredientHandler(svc AttrService[domain.Ingredient]) *AttrHandler[domain.Ingredient] {
	return &AttrHandler[domain.Ingredient]{svc: svc, noun: "ingredient"}
}

// List godoc
// @ID          listAttributes
// @Summary     List tags or ingredients
// @Description Returns the caller's tags (or ingredients) ordered by name descending.
// @Tags        Tags, Ingredients
// @Produce     json
// @Security    BearerAuth
// @Param       assigned_only  query  int  false  "Only those used by a recipe"  Enums(0, 1)
// @Success     200  {array}  handlers.AttrResponse
// @Router      /recipe/tags/ [get]
// @Router      /recipe/ingredients/ [get]
func (h *AttrHandler[T]) List(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	items, err := h.svc.List(c.Request.Context(), uid, truthy(c.Query("assigned_only")))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]AttrResponse, 0, len(items))
	for _, it := range items {
		out = append(out, attrRef(it))
	}
	ok(c, http.StatusOK, out)
}

// Get godoc
// @ID          getAttribute
// @Summary     Retrieve a tag or ingredient
// @Tags        Tags, Ingredients
// @Produce     json
// @Security    BearerAuth
// @Param       id   path     int  true  "ID"
// @Success     200  {object} handlers.AttrResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /recipe/tags/{id}/ [get]
// @Router      /recipe/ingredients/{id}/ [get]
func (h *AttrHandler[T]) Get(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, h.noun)
	if !found {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, attrRef(*item))
}

// Rename godoc
// @ID          renameAttribute
// @Summary     Rename a tag or ingredient
// @Tags        Tags, Ingredients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int                  true  "ID"
// @Param       body  body  services.NameInput   true  "New name"
// @Success     200  {object} handlers.AttrResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /recipe/tags/{id}/ [put]
// @Router      /recipe/tags/{id}/ [patch]
// @Router      /recipe/ingredients/{id}/ [put]
// @Router      /recipe/ingredients/{id}/ [patch]
func (h *AttrHandler[T]) Rename(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, h.noun)
	if !found {
		return
	}
	ctx := c.Request.Context()

	var in services.NameInput
	if derr := readJSON(c.Request.Body, &in); derr != nil {
		if _, err := h.svc.Get(ctx, uid, id); err != nil {
			respondError(c, err)
			return
		}
		derr.write(c)
		return
	}
	item, err := h.svc.Rename(ctx, uid, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, attrRef(*item))
}

// Delete godoc
// @ID          deleteAttribute
// @Summary     Delete a tag or ingredient
// @Description Detaches it from every recipe; the recipes are kept.
// @Tags        Tags, Ingredients
// @Security    BearerAuth
// @Param       id  path  int  true  "ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /recipe/tags/{id}/ [delete]
// @Router      /recipe/ingredients/{id}/ [delete]
func (h *AttrHandler[T]) Delete(c *gin.Context) {
	uid, authed := callerID(c)
	if !authed {
		return
	}
	id, found := pathID(c, h.noun)
	if !found {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uid, id); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}
