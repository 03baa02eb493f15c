package services

import (
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-recipe-backend/internal/utils"
	"github.com/tbourn/go-recipe-backend/internal/validation"
)

// maxPrice is the first value that no longer fits decimal(5,2).
var maxPrice = decimal.NewFromInt(1000)

// NameInput names a tag or ingredient, both in nested recipe payloads and in
// rename requests.
type NameInput struct {
	Name string `json:"name" validate:"required,notblank,max=255"`
}

// RecipeInput carries the writable recipe fields. Nil pointers are fields the
// client did not send. A non-nil Tags or Ingredients pointer replaces the
// association; an empty slice clears it.
type RecipeInput struct {
	Title       *string          `json:"title"        validate:"omitempty,notblank,max=255"`
	TimeMinutes *int             `json:"time_minutes" validate:"omitempty,gte=0,lte=1000000"`
	Price       *decimal.Decimal `json:"price"        validate:"-"`
	Link        *string          `json:"link"         validate:"omitempty,max=255,url"`
	Description *string          `json:"description"  validate:"omitempty,max=10000"`
	Tags        *[]NameInput     `json:"tags"         validate:"omitempty,max=50,dive"`
	Ingredients *[]NameInput     `json:"ingredients"  validate:"omitempty,max=100,dive"`
}

// check validates in. full requires the fields a complete representation
// must carry (create and PUT).
func (in RecipeInput) check(v *validation.Validator, full bool) error {
	verr := &validation.Error{}
	if err := v.Validate(in); err != nil {
		ve, ok := validation.As(err)
		if !ok {
			return err
		}
		verr = ve
	}

	if full {
		if in.Title == nil {
			verr.Add("title", "is required")
		}
		if in.TimeMinutes == nil {
			verr.Add("time_minutes", "is required")
		}
		if in.Price == nil {
			verr.Add("price", "is required")
		}
	}
	if in.Price != nil {
		if msg := priceProblem(*in.Price); msg != "" {
			verr.Add("price", msg)
		}
	}
	return verr.OrNil()
}

// priceProblem returns a message when p does not fit decimal(5,2).
func priceProblem(p decimal.Decimal) string {
	switch {
	case p.IsNegative():
		return "must be greater than or equal to 0"
	case !p.Equal(p.Truncate(2)):
		return "must have no more than 2 decimal places"
	case p.GreaterThanOrEqual(maxPrice):
		return "must have no more than 5 digits in total"
	}
	return ""
}

// names extracts the normalized names of a nested attribute list.
func names(in []NameInput) []string {
	out := make([]string, len(in))
	for i, n := range in {
		out[i] = utils.NormalizeName(n.Name)
	}
	return out
}
