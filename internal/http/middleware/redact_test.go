package middleware

import (
	"net/http"
	"testing"
)

func TestRedactor_Scrub(t *testing.T) {
	r := newRedactor(RedactOptions{})
	got := r.scrub("email=a.b+tag@example.com&phone=+1-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000")
	want := "email=[REDACTED:email]&phone=+[REDACTED:phone]&id=[REDACTED:id]"
	if got != want {
		t.Fatalf("scrub = %q; want %q", got, want)
	}
	if r.scrub("") != "" {
		t.Fatalf("empty input should stay empty")
	}
	if got := r.scrub("tags=1,2&ingredients=3"); got != "tags=1,2&ingredients=3" {
		t.Fatalf("plain filter query altered: %q", got)
	}
}

func TestRedactor_Headers(t *testing.T) {
	r := newRedactor(RedactOptions{MaskHeaders: []string{" X-Api-Key ", ""}})
	h := http.Header{}
	h.Set("Authorization", "Token abc")
	h.Set("Cookie", "sid=1")
	h.Set("X-Api-Key", "shhh")
	h.Set("X-Custom", "mail a@b.com")
	h.Set("Accept", "application/json")

	got := r.headers(h)
	for _, k := range []string{"Authorization", "Cookie", "X-Api-Key"} {
		if got[k] != "[REDACTED]" {
			t.Fatalf("%s = %q; want masked", k, got[k])
		}
	}
	if got["X-Custom"] != "mail [REDACTED:email]" {
		t.Fatalf("X-Custom = %q", got["X-Custom"])
	}
	if got["Accept"] != "application/json" {
		t.Fatalf("Accept = %q", got["Accept"])
	}
}
