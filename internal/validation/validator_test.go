package validation

import (
	"errors"
	"strings"
	"testing"
)

type nameInput struct {
	Name string `json:"name" validate:"required,notblank,max=5"`
}

type sample struct {
	Title   *string     `json:"title"        validate:"omitempty,notblank,max=10"`
	Minutes *int        `json:"time_minutes" validate:"omitempty,gte=0"`
	Email   string      `json:"email"        validate:"omitempty,email"`
	Tags    []nameInput `json:"tags"         validate:"omitempty,max=2,dive"`
	Secret  string      `json:"-"            validate:"omitempty,max=1"`
}

func ptr[T any](v T) *T { return &v }

func TestValidate_OK(t *testing.T) {
	v := New()
	s := sample{Title: ptr("Soup"), Minutes: ptr(5), Email: "a@b.co", Tags: []nameInput{{Name: "Thai"}}}
	if err := v.Validate(s); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	// nil pointers are absent, not blank.
	if err := v.Validate(sample{}); err != nil {
		t.Fatalf("expected empty sample to be valid, got %v", err)
	}
}

func TestValidate_FieldMessages(t *testing.T) {
	v := New()
	s := sample{
		Title:   ptr("   "),
		Minutes: ptr(-1),
		Email:   "nope",
		Tags:    []nameInput{{Name: ""}, {Name: "toolongname"}},
	}
	err := v.Validate(s)
	ve, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	want := map[string]string{
		"title":        "must not be blank",
		"time_minutes": "must be greater than or equal to 0",
		"email":        "must be a valid email address",
		"tags[0].name": "is required",
		"tags[1].name": "must not exceed 5 characters",
	}
	for k, msg := range want {
		if ve.Fields[k] != msg {
			t.Fatalf("field %q: got %q, want %q (all=%v)", k, ve.Fields[k], msg, ve.Fields)
		}
	}
}

func TestValidate_SliceMaxUsesItems(t *testing.T) {
	err := New().Validate(sample{Tags: []nameInput{{"a"}, {"b"}, {"c"}}})
	ve, _ := As(err)
	if ve == nil || ve.Fields["tags"] != "must not exceed 2 items" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestError_Helpers(t *testing.T) {
	var e Error
	if !e.Empty() || e.OrNil() != nil {
		t.Fatalf("zero Error must be empty")
	}
	e.Add("b", "first")
	e.Add("b", "second")
	e.Add("a", "x")
	if e.Fields["b"] != "first" {
		t.Fatalf("Add must keep first message")
	}
	if got := e.Error(); got != "validation failed: a: x, b: first" {
		t.Fatalf("unexpected Error(): %q", got)
	}

	wrapped := errors.Join(errors.New("ctx"), Field("price", "bad"))
	ve, ok := As(wrapped)
	if !ok || ve.Fields["price"] != "bad" {
		t.Fatalf("As failed on wrapped error: %v", wrapped)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("As must not match plain errors")
	}
	if !strings.Contains(Field("x", "y").Error(), "x: y") {
		t.Fatalf("Field Error() missing content")
	}
}
