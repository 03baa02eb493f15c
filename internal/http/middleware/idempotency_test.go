package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must be absent")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("expected IsReplay=true")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}
}

func withUser(id uint) gin.HandlerFunc {
	return func(c *gin.Context) { SetUserID(c, id); c.Next() }
}

func TestIdempotencyValidator_NoHeader_NoLookupCalled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	called := false
	lookup := func(context.Context, uint, string, string, time.Time) (bool, error) {
		called = true
		return false, nil
	}
	r.POST("/recipes/", withUser(1), IdempotencyValidator(IdempotencyOptions{Scope: "recipes.create"}, lookup), func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be present when header missing")
		}
		c.Status(http.StatusCreated)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/recipes/", nil))

	if w.Code != http.StatusCreated || called {
		t.Fatalf("code=%d called=%v", w.Code, called)
	}
}

func TestIdempotencyValidator_InvalidKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"default max", IdempotencyOptions{}, strings.Repeat("a", 201)},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		{"default pattern", IdempotencyOptions{}, "has space"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID(), IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] == "" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_Lookup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type seen struct {
		uid        uint
		scope, key string
	}
	run := func(t *testing.T, found bool, lerr error, user gin.HandlerFunc) (replay bool, args *seen) {
		t.Helper()
		r := gin.New()
		lookup := func(_ context.Context, uid uint, scope, key string, now time.Time) (bool, error) {
			if now.IsZero() {
				t.Fatalf("now not populated")
			}
			args = &seen{uid, scope, key}
			return found, lerr
		}
		r.POST("/recipes/", user, IdempotencyValidator(IdempotencyOptions{Scope: "recipes.create"}, lookup), func(c *gin.Context) {
			replay = IsReplay(c)
			if replay != IsRateBypass(c) {
				t.Fatalf("replay and rate bypass must agree")
			}
			if k, _ := GetIdempotencyKey(c); k != "k-9" {
				t.Fatalf("key = %q", k)
			}
			c.Status(http.StatusCreated)
		})
		req := httptest.NewRequest(http.MethodPost, "/recipes/", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d", w.Code)
		}
		return replay, args
	}

	t.Run("hit", func(t *testing.T) {
		replay, args := run(t, true, nil, withUser(9))
		if !replay {
			t.Fatalf("expected replay")
		}
		if args == nil || args.uid != 9 || args.scope != "recipes.create" || args.key != "k-9" {
			t.Fatalf("lookup args = %+v", args)
		}
	})
	t.Run("miss", func(t *testing.T) {
		if replay, _ := run(t, false, nil, withUser(9)); replay {
			t.Fatalf("unexpected replay")
		}
	})
	t.Run("lookup error proceeds", func(t *testing.T) {
		if replay, _ := run(t, true, errors.New("db down"), withUser(9)); replay {
			t.Fatalf("errors must not mark replay")
		}
	})
	t.Run("anonymous skips lookup", func(t *testing.T) {
		replay, args := run(t, true, nil, func(c *gin.Context) { c.Next() })
		if replay || args != nil {
			t.Fatalf("lookup must not run without a user")
		}
	})
}
