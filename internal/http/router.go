// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Every /recipe and /user/me route is owner-scoped behind RequireAuth
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/config"
	"github.com/tbourn/go-recipe-backend/internal/http/handlers"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", "X-Total-Count", "Retry-After", handlers.HeaderIdempotencyReplayed}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. tokens signs and verifies bearer tokens; store holds uploaded
// images, which are also served read-only under cfg.Media.URL.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. CORS and Security headers
//  7. gzip (API JSON only)
//
// Per route: body limit → RequireAuth → idempotency validator (recipe
// create) → rate limiter, so limits are per user and replays bypass them.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store *media.Storage, tokens services.TokenIssuer, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	// ClientIP (rate limiting, logs) reads X-Forwarded-For only from these peers.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Warn().Err(err).Msg("trusted proxies ignored")
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		Private:      true,
		EnablePolicy: true,
		MediaPrefix:  cfg.Media.URL,
	}))

	// 7) Compress JSON; images are already compressed
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.Media.URL, "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Uploaded media (no directory listing)
	r.Static(cfg.Media.URL, store.Root())

	// Dependency injection: services ← repo/db/media
	recipeSvc := services.NewRecipeService(db, store)
	recipeSvc.IdempotencyTTL = cfg.IdempotencyTTL
	userSvc := services.NewUserService(db, tokens)

	rh := handlers.NewRecipeHandler(recipeSvc, cfg.Media.URL, cfg.Media.MaxUploadBytes)
	if err := rh.TrustProxies(cfg.TrustedProxies); err != nil {
		log.Warn().Err(err).Msg("image URLs ignore forwarded headers")
	}
	th := handlers.NewTagHandler(services.NewTagService(db))
	ih := handlers.NewIngredientHandler(services.NewIngredientService(db))
	uh := handlers.NewUserHandler(userSvc)

	jsonBody := limitBody(cfg.MaxBodyBytes)
	authn := middleware.RequireAuth(userSvc)
	limited := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{Scope: services.ScopeRecipeCreate, MaxLen: 200},
		idempotencyLookup(db),
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Accounts
		api.POST("/user/create/", jsonBody, limited, uh.Register)
		api.POST("/user/token/", jsonBody, limited, uh.Token)
		me := api.Group("/user/me", jsonBody, authn, limited)
		me.GET("/", uh.Me)
		me.PUT("/", uh.UpdateMe)
		me.PATCH("/", uh.UpdateMe)

		recipe := api.Group("/recipe", authn)

		// Recipes
		recipe.POST("/recipes/", jsonBody, idem, limited, rh.Create)
		// The upload handler enforces MAX_UPLOAD_BYTES itself.
		recipe.POST("/recipes/:id/upload-image/", limited, rh.UploadImage)

		rg := recipe.Group("", jsonBody, limited)
		rg.GET("/recipes/", rh.List)
		rg.GET("/recipes/:id/", rh.Get)
		rg.PUT("/recipes/:id/", rh.Update)
		rg.PATCH("/recipes/:id/", rh.Update)
		rg.DELETE("/recipes/:id/", rh.Delete)

		// Tags and ingredients
		mountAttr(rg, "/tags/", th)
		mountAttr(rg, "/ingredients/", ih)
	}
}

// idempotencyLookup reports whether an unexpired key is already recorded.
// A missing key is a first attempt; storage errors are returned.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID uint, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return true, nil
	}
}

// attrRoutes is the handler surface shared by tags and ingredients.
type attrRoutes interface {
	List(*gin.Context)
	Get(*gin.Context)
	Rename(*gin.Context)
	Delete(*gin.Context)
}

func mountAttr(g *gin.RouterGroup, base string, h attrRoutes) {
	g.GET(base, h.List)
	g.GET(base+":id/", h.Get)
	g.PUT(base+":id/", h.Rename)
	g.PATCH(base+":id/", h.Rename)
	g.DELETE(base+":id/", h.Delete)
}

// corsMiddleware returns the CORS chain. Without an allowlist every origin is
// allowed (no credentials); otherwise only listed origins are echoed back.
func corsMiddleware(cfg config.CORSConfig) []gin.HandlerFunc {
	if len(cfg.AllowedOrigins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     corsMethods,
				AllowHeaders:     corsHeaders,
				ExposeHeaders:    corsExpose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error (answered 413 by the handlers).
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
