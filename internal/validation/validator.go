// Package validation provides request validation on top of go-playground/validator
// and a field-keyed error type the HTTP layer renders as a 400 response.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error maps request field names (JSON names, nested as "tags[0].name") to a
// human readable message.
type Error struct {
	Fields map[string]string
}

// Field returns an Error with a single field message.
func Field(name, msg string) *Error {
	return &Error{Fields: map[string]string{name: msg}}
}

// Add records msg for name, keeping the first message per field.
func (e *Error) Add(name, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[name]; !ok {
		e.Fields[name] = msg
	}
}

// Empty reports whether no field has been recorded.
func (e *Error) Empty() bool { return e == nil || len(e.Fields) == 0 }

// OrNil returns e as an error, or nil when it is empty.
func (e *Error) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validator wraps go-playground/validator with field error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports JSON field names and knows the
// "notblank" tag (string must contain a non-space character).
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				return true
			}
			f = f.Elem()
		}
		return f.Kind() != reflect.String || strings.TrimSpace(f.String()) != ""
	})

	return &Validator{v: v}
}

// Validate validates s and returns a *Error describing every failing field.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, e := range verrs {
		out.Add(fieldPath(e), friendlyMessage(e))
	}
	return out
}

// fieldPath drops the root struct name from the namespace
// ("recipeInput.tags[0].name" -> "tags[0].name").
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	unit := "characters"
	switch e.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		unit = "items"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		unit = ""
	}

	switch e.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if unit == "" {
			return "must be at least " + e.Param()
		}
		return fmt.Sprintf("must be at least %s %s", e.Param(), unit)
	case "max":
		if unit == "" {
			return "must not exceed " + e.Param()
		}
		return fmt.Sprintf("must not exceed %s %s", e.Param(), unit)
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	default:
		return "is invalid"
	}
}
