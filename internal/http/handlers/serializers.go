package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// AttrRef is a tag or ingredient as embedded in a recipe.
type AttrRef struct {
	ID   uint   `json:"id"   example:"3"`
	Name string `json:"name" example:"Vegan"`
}

// RecipeSummary is the list representation of a recipe.
type RecipeSummary struct {
	ID          uint      `json:"id"           example:"12"`
	Title       string    `json:"title"        example:"Chana masala"`
	TimeMinutes int       `json:"time_minutes" example:"40"`
	Price       string    `json:"price"        example:"5.25"`
	Link        string    `json:"link"         example:"https://example.com/chana"`
	Tags        []AttrRef `json:"tags"`
	Ingredients []AttrRef `json:"ingredients"`
}

// RecipeDetail adds the description and image to RecipeSummary.
type RecipeDetail struct {
	RecipeSummary
	Description string `json:"description"`
	// Image is an absolute URL, or null when no image was uploaded.
	Image *string `json:"image" example:"http://localhost:8080/static/media/uploads/recipe/0b6f.jpg"`
	// ImageBlurHash is a compact placeholder for Image.
	ImageBlurHash string `json:"image_blurhash,omitempty" example:"LEHV6nWB2yk8pyo0adR*.7kCMdnj"`
}

// AttrResponse is a standalone tag or ingredient.
type AttrResponse = AttrRef

// UserResponse is the public view of an account.
type UserResponse struct {
	Email string `json:"email" example:"cook@example.com"`
	Name  string `json:"name"  example:"Sam"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

func tagRefs(in []domain.Tag) []AttrRef {
	out := make([]AttrRef, 0, len(in))
	for _, t := range in {
		out = append(out, AttrRef{ID: t.ID, Name: t.Name})
	}
	return out
}

func ingredientRefs(in []domain.Ingredient) []AttrRef {
	out := make([]AttrRef, 0, len(in))
	for _, t := range in {
		out = append(out, AttrRef{ID: t.ID, Name: t.Name})
	}
	return out
}

func attrRef[T domain.Attribute](v T) AttrRef {
	switch a := any(v).(type) {
	case domain.Tag:
		return AttrRef{ID: a.ID, Name: a.Name}
	case domain.Ingredient:
		return AttrRef{ID: a.ID, Name: a.Name}
	}
	return AttrRef{}
}

func summarize(r *domain.Recipe) RecipeSummary {
	return RecipeSummary{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(2),
		Link:        r.Link,
		Tags:        tagRefs(r.Tags),
		Ingredients: ingredientRefs(r.Ingredients),
	}
}

// mediaURLs turns stored media paths into URLs clients can fetch.
type mediaURLs struct {
	// Prefix is where media is served, either a path ("/static/media") or an
	// absolute URL ("https://cdn.example.com/media").
	Prefix string
	// Proxies whose X-Forwarded-Proto and X-Forwarded-Host are honored.
	Proxies []*net.IPNet
}

func (m mediaURLs) url(c *gin.Context, rel string) string {
	base := strings.TrimSuffix(m.Prefix, "/")
	u := base + "/" + strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return u
	}
	return m.origin(c.Request) + u
}

func (m mediaURLs) detail(c *gin.Context, r *domain.Recipe) RecipeDetail {
	d := RecipeDetail{
		RecipeSummary: summarize(r),
		Description:   r.Description,
		ImageBlurHash: r.ImageBlurHash,
	}
	if r.Image != "" {
		u := m.url(c, r.Image)
		d.Image = &u
	}
	return d
}

// origin is scheme://host as seen by the client. Forwarded headers count only
// when the direct peer is one of m.Proxies.
func (m mediaURLs) origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if m.fromProxy(r.RemoteAddr) {
		if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		if fh := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); fh != "" {
			host = fh
		}
	}
	return scheme + "://" + host
}

func (m mediaURLs) fromProxy(remoteAddr string) bool {
	if len(m.Proxies) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range m.Proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// parseProxies accepts IPs and CIDR ranges.
func parseProxies(list []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(list))
	for _, p := range list {
		p = strings.TrimSpace(p)
		if ip := net.ParseIP(p); ip != nil {
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
